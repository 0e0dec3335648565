package registry_ext

import (
	"os"

	"github.com/sandy1219/ypf/application/config"
	appconsts "github.com/sandy1219/ypf/application/consts"
	"github.com/sandy1219/ypf/application/core"
	"github.com/sandy1219/ypf/application/registry"
	"github.com/sandy1219/ypf/internal/consts"
	"github.com/sandy1219/ypf/internal/worker"
)

func init() {
	registry.Register(consts.COMP_CUSTOM_WORKER, func(cfg *config.AppConfig, c *core.Container) (bool, core.Component, error) {
		if cfg.Runtime.Role != appconsts.ROLE_WORKER {
			return false, nil, nil
		}
		biz, err := loadBiz(cfg)
		if err != nil {
			return true, nil, err
		}
		return true, worker.NewCustomRunner(biz.Server, os.Stdin), nil
	})

	registry.Register(consts.COMP_CRON_WORKER, func(cfg *config.AppConfig, c *core.Container) (bool, core.Component, error) {
		if cfg.Runtime.Role != appconsts.ROLE_CRON {
			return false, nil, nil
		}
		biz, err := loadBiz(cfg)
		if err != nil {
			return true, nil, err
		}
		return true, worker.NewCronRunner(biz.Server, biz.Crontab.TickInterval, os.Stdin), nil
	})
}
