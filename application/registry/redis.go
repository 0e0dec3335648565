package registry

import (
	"github.com/sandy1219/ypf/application/components/redis"
	"github.com/sandy1219/ypf/application/config"
	"github.com/sandy1219/ypf/application/consts"
	"github.com/sandy1219/ypf/application/core"
)

func init() {
	Register(consts.COMPONENT_REDIS, func(cfg *config.AppConfig, c *core.Container) (bool, core.Component, error) {
		if cfg.Redis == nil || !cfg.Redis.Enabled {
			return false, nil, nil
		}
		comp, err := redis.NewFactory().Create(cfg.Redis, cfg.Runtime.Role)
		if err != nil {
			return true, nil, err
		}
		return true, comp, nil
	})
}
