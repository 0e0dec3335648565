package config

type ConfigManager struct {
	configLoader *Loader
	validator    *Validator
	appConfig    *AppConfig
	role         string
}

func NewConfigManager(env string, configPath string) *ConfigManager {
	return &ConfigManager{
		configLoader: NewLoader(env, configPath),
		validator:    NewValidator(),
	}
}

// NewConfigManagerWithBiz 便捷构造: 直接提供业务配置指针
func NewConfigManagerWithBiz(env, configPath string, biz any) *ConfigManager {
	cm := NewConfigManager(env, configPath)
	cm.SetBizConfig(biz)
	return cm
}

// SetBizConfig 在加载前设置业务配置指针
func (cf *ConfigManager) SetBizConfig(b any) {
	cf.configLoader.SetBizConfig(b)
}

// SetRole 记录当前进程角色, 写入 AppConfig.Runtime
func (cf *ConfigManager) SetRole(role string) {
	cf.role = role
}

func (cf *ConfigManager) BizConfig() any {
	if cf == nil || cf.appConfig == nil {
		return nil
	}
	return cf.appConfig.BizConfig
}

func (cf *ConfigManager) GetConfig() *AppConfig {
	return cf.appConfig
}

func (cf *ConfigManager) LoadConfig() error {
	if err := cf.validator.validateConfigFilePath(cf.configLoader.env, cf.configLoader.configPath); err != nil {
		return err
	}
	cfg, err := cf.configLoader.LoadConfig()
	if err != nil {
		return err
	}
	cfg.Runtime.Role = cf.role
	if err = cf.validator.ValidateAppConfig(cfg); err != nil {
		return err
	}
	applyListenAddress(cfg)
	cf.appConfig = cfg
	return nil
}

// ListenAddresser 业务配置可选实现: 非空时覆盖 http_server.address
type ListenAddresser interface {
	ListenAddress() string
}

func applyListenAddress(cfg *AppConfig) {
	la, ok := cfg.BizConfig.(ListenAddresser)
	if !ok || cfg.HTTPServer == nil {
		return
	}
	if addr := la.ListenAddress(); addr != "" {
		cfg.HTTPServer.Address = addr
	}
}
