package config

import (
	"github.com/sandy1219/ypf/application/components/http_server"
	"github.com/sandy1219/ypf/application/components/logging"
	"github.com/sandy1219/ypf/application/components/prometheus"
	"github.com/sandy1219/ypf/application/components/redis"
	"github.com/sandy1219/ypf/application/components/telemetry"
)

// AppConfig 应用程序配置结构
type AppConfig struct {
	APPInfo    *APPInfo                      `yaml:"app_info" json:"app_info"`
	Logging    *logging.LoggingConfig        `yaml:"logging" json:"logging"`
	Redis      *redis.Config                 `yaml:"redis" json:"redis"`
	Prometheus *prometheus.Config            `yaml:"prometheus" json:"prometheus"`
	Telemetry  *telemetry.Config             `yaml:"telemetry" json:"telemetry"`
	HTTPServer *http_server.HTTPServerConfig `yaml:"http_server" json:"http_server"`
	BizConfig  any                           `yaml:"biz_config" json:"biz_config"`

	// 运行期信息, 不来自配置文件
	Runtime Runtime `yaml:"-" json:"-"`
}

type APPInfo struct {
	APPName string `yaml:"app_name" json:"app_name"`
	ENV     string `yaml:"env" json:"env"`
}

// Runtime 描述当前进程: 角色以及重新拉起子进程所需的参数
type Runtime struct {
	Role       string
	Env        string
	ConfigPath string
}
