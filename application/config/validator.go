package config

import (
	"fmt"

	"github.com/sandy1219/ypf/application/consts"
)

// Validator 配置验证器
type Validator struct{}

func NewValidator() *Validator {
	return &Validator{}
}

// BizValidator 业务配置可选实现, 加载后自动调用
type BizValidator interface {
	Validate() error
}

func (v *Validator) ValidateAppConfig(config *AppConfig) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}
	// 其它组件都依赖 logging
	if config.Logging == nil || !config.Logging.Enabled {
		return fmt.Errorf("logging section must be present and enabled")
	}
	if config.Telemetry != nil && config.Telemetry.Enabled && config.Telemetry.ServiceName == "" {
		if config.APPInfo == nil || config.APPInfo.APPName == "" {
			return fmt.Errorf("telemetry.service_name empty and app_info.app_name not provided")
		}
	}
	if bv, ok := config.BizConfig.(BizValidator); ok {
		if err := bv.Validate(); err != nil {
			return fmt.Errorf("biz_config invalid: %w", err)
		}
	}
	return nil
}

func (v *Validator) validateConfigFilePath(env string, path string) error {
	if path == "" {
		return fmt.Errorf("config file path cannot be empty")
	}
	if len(path) > 255 {
		return fmt.Errorf("config file path is too long")
	}
	if !fileExists(path) {
		return fmt.Errorf("config file does not exist: %s", path)
	}
	switch env {
	case consts.ENV_DEVELOPMENT, consts.ENV_PRODUCTION, consts.ENV_TEST:
	default:
		return fmt.Errorf("running environment is not valid: %s", env)
	}
	return nil
}
