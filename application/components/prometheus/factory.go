package prometheus

import (
	"fmt"
	"time"

	"github.com/sandy1219/ypf/application/consts"
	"github.com/sandy1219/ypf/application/core"
)

type Factory struct{}

func NewFactory() *Factory { return &Factory{} }

// Create 按角色决定是否监听: 只有 master 监听 Address, 其它角色只推送
func (f *Factory) Create(c *Config, role string) (core.Component, error) {
	if c == nil || !c.Enabled {
		return nil, fmt.Errorf("prometheus component disabled")
	}
	if c.Address == "" {
		c.Address = ":9090"
	}
	if c.Path == "" {
		c.Path = "/metrics"
	}
	if c.CollectGoMetrics == nil {
		on := true
		c.CollectGoMetrics = &on
	}
	if c.CollectProcess == nil {
		on := true
		c.CollectProcess = &on
	}
	if c.PushInterval <= 0 {
		c.PushInterval = 15 * time.Second
	}
	serve := role == "" || role == consts.ROLE_MASTER
	return NewComponent(c, role, serve), nil
}
