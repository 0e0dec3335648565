package registry

import (
	"github.com/sandy1219/ypf/application/components/logging"
	"github.com/sandy1219/ypf/application/config"
	"github.com/sandy1219/ypf/application/consts"
	"github.com/sandy1219/ypf/application/core"
)

func init() {
	Register(consts.COMPONENT_LOGGING, func(cfg *config.AppConfig, c *core.Container) (bool, core.Component, error) {
		if cfg.Logging == nil || !cfg.Logging.Enabled {
			return false, nil, nil
		}
		comp, err := logging.NewFactory().Create(cfg.Logging, cfg.Runtime.Role)
		if err != nil {
			return true, nil, err
		}
		return true, comp, nil
	})
}
