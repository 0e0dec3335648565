package redis

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sandy1219/ypf/application/consts"
	"github.com/sandy1219/ypf/application/core"
)

type Factory struct{}

func NewFactory() *Factory { return &Factory{} }

func (f *Factory) Create(rc *Config, role string) (core.Component, error) {
	if rc == nil || !rc.Enabled {
		return nil, fmt.Errorf("redis component disabled")
	}
	setDefaults(rc, role)
	if err := rc.validate(); err != nil {
		return nil, err
	}
	return NewRedisComponent(rc), nil
}

func setDefaults(c *Config, role string) {
	if c.Mode == "" {
		c.Mode = ModeSingle
	}
	c.Mode = Mode(strings.ToLower(string(c.Mode)))
	if c.ClientName == "" {
		if role == "" {
			role = consts.ROLE_MASTER
		}
		c.ClientName = fmt.Sprintf("ypf-%s-%d", role, os.Getpid())
	}
	if len(c.Addresses) == 0 {
		switch c.Mode {
		case ModeSingle:
			c.Addresses = []string{"127.0.0.1:6379"}
		case ModeSentinel:
			c.Addresses = []string{"127.0.0.1:26379"}
		case ModeCluster:
			c.Addresses = []string{"127.0.0.1:7000", "127.0.0.1:7001", "127.0.0.1:7002"}
		}
	}

	// 每个子进程各自持有连接池, 默认值偏小
	if c.PoolSize <= 0 {
		c.PoolSize = 8
	}
	if c.MinIdleConns < 0 {
		c.MinIdleConns = 0
	} else if c.MinIdleConns > c.PoolSize {
		c.MinIdleConns = c.PoolSize / 2
	}

	if c.DialTimeout <= 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 3 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 3 * time.Second
	}
	if c.ConnMaxIdleTime < 0 {
		c.ConnMaxIdleTime = 0
	}
	if c.ConnMaxLifetime < 0 {
		c.ConnMaxLifetime = 0
	}
	if c.DB < 0 {
		c.DB = 0
	}
}
