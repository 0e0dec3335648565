package registry_ext

import (
	"fmt"

	"github.com/sandy1219/ypf/application/config"
	appconsts "github.com/sandy1219/ypf/application/consts"
	bizConfig "github.com/sandy1219/ypf/internal/config"
)

// loadBiz 取出业务配置并校验, 每个 builder 都会调用, Validate 可重入
func loadBiz(cfg *config.AppConfig) (*bizConfig.BizConfig, error) {
	biz, err := bizConfig.FromApp(cfg)
	if err != nil {
		return nil, err
	}
	if err := biz.Validate(); err != nil {
		return nil, fmt.Errorf("invalid biz_config: %w", err)
	}
	return biz, nil
}

func isMaster(cfg *config.AppConfig) bool {
	return cfg.Runtime.Role == "" || cfg.Runtime.Role == appconsts.ROLE_MASTER
}
