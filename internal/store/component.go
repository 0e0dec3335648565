package store

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sandy1219/ypf/application/components/logging"
	rediscomp "github.com/sandy1219/ypf/application/components/redis"
	appconsts "github.com/sandy1219/ypf/application/consts"
	"github.com/sandy1219/ypf/application/core"
	"github.com/sandy1219/ypf/internal/config"
	"github.com/sandy1219/ypf/internal/consts"
)

// Component 按配置选择驱动; 启动后自身即是 Store
type Component struct {
	*core.BaseComponent
	cfg config.StoreConfig

	Redis *rediscomp.RedisComponent `infra:"dep:redis?"`

	*KV
}

var _ Store = (*Component)(nil)

func NewComponent(cfg config.StoreConfig) *Component {
	return &Component{
		BaseComponent: core.NewBaseComponent(consts.COMP_STATE_STORE, appconsts.COMPONENT_LOGGING),
		cfg:           cfg,
	}
}

func (c *Component) Start(ctx context.Context) error {
	if err := c.BaseComponent.Start(ctx); err != nil {
		return err
	}
	driver, err := c.openDriver()
	if err != nil {
		return err
	}
	c.KV = NewKV(driver, c.cfg.Prefix, c.cfg.OpTimeout)
	logging.Info(ctx, "state store started",
		zap.String("driver", c.cfg.Driver),
		zap.String("prefix", c.cfg.Prefix),
	)
	return nil
}

func (c *Component) openDriver() (Driver, error) {
	switch c.cfg.Driver {
	case config.DriverMemory:
		return NewMemoryDriver(), nil
	case config.DriverRedis:
		if c.Redis == nil || c.Redis.Client() == nil {
			return nil, fmt.Errorf("store driver redis requires the redis component to be enabled")
		}
		return NewRedisDriver(c.Redis.Client()), nil
	case config.DriverSQLite:
		return OpenSQLite(c.cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown store driver %q", c.cfg.Driver)
	}
}

func (c *Component) Stop(ctx context.Context) error {
	defer c.BaseComponent.Stop(ctx)
	if c.KV == nil {
		return nil
	}
	if err := c.KV.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	return nil
}

func (c *Component) HealthCheck() error {
	if err := c.BaseComponent.HealthCheck(); err != nil {
		return err
	}
	if c.KV == nil {
		return fmt.Errorf("state store not opened")
	}
	return nil
}
