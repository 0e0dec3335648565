package registry

import (
	"github.com/sandy1219/ypf/application/components/prometheus"
	"github.com/sandy1219/ypf/application/config"
	"github.com/sandy1219/ypf/application/consts"
	"github.com/sandy1219/ypf/application/core"
)

func init() {
	Register(consts.COMPONENT_PROMETHEUS, func(cfg *config.AppConfig, c *core.Container) (bool, core.Component, error) {
		if cfg.Prometheus == nil || !cfg.Prometheus.Enabled {
			return false, nil, nil
		}
		comp, err := prometheus.NewFactory().Create(cfg.Prometheus, cfg.Runtime.Role)
		if err != nil {
			return true, nil, err
		}
		return true, comp, nil
	})
}
