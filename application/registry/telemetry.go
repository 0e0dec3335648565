package registry

import (
	"github.com/sandy1219/ypf/application/components/telemetry"
	"github.com/sandy1219/ypf/application/config"
	"github.com/sandy1219/ypf/application/consts"
	"github.com/sandy1219/ypf/application/core"
)

func init() {
	Register(consts.COMPONENT_TELEMETRY, func(cfg *config.AppConfig, c *core.Container) (bool, core.Component, error) {
		if cfg.Telemetry == nil || !cfg.Telemetry.Enabled {
			return false, nil, nil
		}
		if cfg.Telemetry.ServiceName == "" && cfg.APPInfo != nil {
			cfg.Telemetry.ServiceName = cfg.APPInfo.APPName
		}
		return true, telemetry.NewTelemetryComponent(cfg.Telemetry, cfg.Runtime.Role), nil
	})
}
