package registry

import (
	"github.com/sandy1219/ypf/application/components/http_server"
	"github.com/sandy1219/ypf/application/config"
	"github.com/sandy1219/ypf/application/consts"
	"github.com/sandy1219/ypf/application/core"
)

func init() {
	Register(consts.COMPONENT_HTTP_SERVER, func(cfg *config.AppConfig, c *core.Container) (bool, core.Component, error) {
		if cfg.HTTPServer == nil || !cfg.HTTPServer.Enabled {
			return false, nil, nil
		}
		// 子进程不对外提供服务
		if cfg.Runtime.Role != "" && cfg.Runtime.Role != consts.ROLE_MASTER {
			return false, nil, nil
		}
		if cfg.APPInfo != nil {
			cfg.HTTPServer.ServiceName = cfg.APPInfo.APPName
		}
		var deps []string
		if cfg.Telemetry != nil && cfg.Telemetry.Enabled {
			deps = append(deps, consts.COMPONENT_TELEMETRY)
		}
		comp, err := http_server.NewFactory(c).Create(cfg.HTTPServer, deps...)
		if err != nil {
			return true, nil, err
		}
		return true, comp, nil
	})
}
