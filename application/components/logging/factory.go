package logging

import (
	"fmt"
	"strings"

	"github.com/sandy1219/ypf/application/core"
)

// Factory 日志组件工厂
type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

// Create 创建日志组件实例; role 会作为固定字段写入每条日志
func (f *Factory) Create(cfg *LoggingConfig, role string) (core.Component, error) {
	if cfg == nil {
		return nil, fmt.Errorf("logging config is nil")
	}
	if !cfg.Enabled {
		return nil, fmt.Errorf("logging component is disabled")
	}

	f.setDefaults(cfg)
	if err := f.validate(cfg); err != nil {
		return nil, err
	}
	return NewLoggerComponent(cfg, role), nil
}

func (f *Factory) setDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	if cfg.Format == "" {
		cfg.Format = "json"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
	if strings.EqualFold(cfg.Output, "file") && cfg.FileConfig == nil {
		cfg.FileConfig = &FileConfig{Dir: "./logs", Filename: "ypf"}
	}
	if rc := cfg.RotateConfig; rc != nil && rc.Enabled {
		if rc.Mode == "" {
			rc.Mode = RotateModeSize
		}
		if rc.Mode == RotateModeSize && rc.MaxSizeMB <= 0 {
			rc.MaxSizeMB = 100
		}
	}
}

func (f *Factory) validate(cfg *LoggingConfig) error {
	rc := cfg.RotateConfig
	if rc == nil || !rc.Enabled {
		return nil
	}
	switch rc.Mode {
	case RotateModeSize:
	case RotateModeInterval:
		if rc.RotateInterval <= 0 {
			return fmt.Errorf("logging.rotate_config.rotate_interval must be > 0 in interval mode")
		}
	default:
		return fmt.Errorf("logging.rotate_config.mode %q not supported", rc.Mode)
	}
	if rc.MaxAge < 0 {
		return fmt.Errorf("logging.rotate_config.max_age must be >= 0")
	}
	return nil
}
