package registry_ext

import (
	"fmt"

	"github.com/sandy1219/ypf/application/config"
	"github.com/sandy1219/ypf/application/core"
	"github.com/sandy1219/ypf/application/registry"
	"github.com/sandy1219/ypf/internal/consts"
	"github.com/sandy1219/ypf/internal/handler"
	"github.com/sandy1219/ypf/internal/store"
)

func init() {
	registry.Register(consts.COMP_STATE_STORE, func(cfg *config.AppConfig, c *core.Container) (bool, core.Component, error) {
		biz, err := loadBiz(cfg)
		if err != nil {
			return true, nil, err
		}
		return true, store.NewComponent(biz.Store), nil
	})

	// handler 注册表: 内置 handler 在构建期注册, heartbeat 持有的是 store 组件本身, 运行时才取底层 KV
	registry.RegisterWithDeps(consts.COMP_HANDLER_REGISTRY, []string{consts.COMP_STATE_STORE}, func(cfg *config.AppConfig, c *core.Container) (bool, core.Component, error) {
		comp, err := c.Resolve(consts.COMP_STATE_STORE)
		if err != nil {
			return true, nil, fmt.Errorf("resolve state_store failed: %w", err)
		}
		st, ok := comp.(*store.Component)
		if !ok {
			return true, nil, fmt.Errorf("state_store type assertion failed")
		}
		reg := handler.NewRegistry()
		reg.AddDependencies(consts.COMP_STATE_STORE)
		if err := handler.RegisterBuiltins(reg, st); err != nil {
			return true, nil, err
		}
		return true, reg, nil
	})
}
