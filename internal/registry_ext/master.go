package registry_ext

import (
	"github.com/sandy1219/ypf/application/config"
	appconsts "github.com/sandy1219/ypf/application/consts"
	"github.com/sandy1219/ypf/application/core"
	"github.com/sandy1219/ypf/application/registry"
	"github.com/sandy1219/ypf/internal/api"
	"github.com/sandy1219/ypf/internal/consts"
	"github.com/sandy1219/ypf/internal/engine"
	"github.com/sandy1219/ypf/internal/supervisor"
)

func init() {
	// http_server 在 controller 之后启动, 路由挂载时 controller 已就绪
	registry.ExtendRuntimeDependencies(appconsts.COMPONENT_HTTP_SERVER, consts.COMP_API_CONTROLLER)

	registry.Register(consts.COMP_SUPERVISOR, func(cfg *config.AppConfig, c *core.Container) (bool, core.Component, error) {
		if !isMaster(cfg) {
			return false, nil, nil
		}
		biz, err := loadBiz(cfg)
		if err != nil {
			return true, nil, err
		}
		// 子进程用同一份配置文件与环境启动
		spawner, err := engine.NewExecSpawner("-config", cfg.Runtime.ConfigPath, "-env", cfg.Runtime.Env)
		if err != nil {
			return true, nil, err
		}
		return true, supervisor.NewSupervisor(biz.WorkersDir, spawner), nil
	})

	registry.Register(consts.COMP_API_CONTROLLER, func(cfg *config.AppConfig, c *core.Container) (bool, core.Component, error) {
		if !isMaster(cfg) {
			return false, nil, nil
		}
		return true, api.NewController(), nil
	})
}
