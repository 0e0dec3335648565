package registry_ext

import (
	"fmt"

	"github.com/sandy1219/ypf/application/config"
	"github.com/sandy1219/ypf/application/core"
	"github.com/sandy1219/ypf/application/registry"
	"github.com/sandy1219/ypf/internal/consts"
	"github.com/sandy1219/ypf/internal/dispatch"
	"github.com/sandy1219/ypf/internal/engine"
	"github.com/sandy1219/ypf/internal/lifecycle"
)

func init() {
	// 子进程只需要 loop 与 task pool, 不触发生命周期事件
	registry.Register(consts.COMP_ENGINE, func(cfg *config.AppConfig, c *core.Container) (bool, core.Component, error) {
		biz, err := loadBiz(cfg)
		if err != nil {
			return true, nil, err
		}
		return true, engine.NewServer(biz.Engine, !isMaster(cfg)), nil
	})

	registry.RegisterWithDeps(consts.COMP_DISPATCHER, []string{consts.COMP_ENGINE}, func(cfg *config.AppConfig, c *core.Container) (bool, core.Component, error) {
		srv, err := resolveEngine(c)
		if err != nil {
			return true, nil, err
		}
		d := dispatch.NewDispatcher()
		d.BindEngine(srv)
		return true, d, nil
	})

	// engine 的事件全部交给 router; SetHandler 让 engine 在 router 之后启动
	registry.RegisterWithDeps(consts.COMP_LIFECYCLE_ROUTER, []string{consts.COMP_ENGINE}, func(cfg *config.AppConfig, c *core.Container) (bool, core.Component, error) {
		biz, err := loadBiz(cfg)
		if err != nil {
			return true, nil, err
		}
		srv, err := resolveEngine(c)
		if err != nil {
			return true, nil, err
		}
		router := lifecycle.NewRouter(biz.Server)
		srv.SetHandler(router)
		return true, router, nil
	})
}

func resolveEngine(c *core.Container) (*engine.Server, error) {
	comp, err := c.Resolve(consts.COMP_ENGINE)
	if err != nil {
		return nil, fmt.Errorf("resolve engine failed: %w", err)
	}
	srv, ok := comp.(*engine.Server)
	if !ok {
		return nil, fmt.Errorf("engine type assertion failed")
	}
	return srv, nil
}
