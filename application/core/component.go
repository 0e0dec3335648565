package core

import (
	"context"
	"fmt"
	"sync/atomic"
)

// Component 定义组件的基本接口
type Component interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	HealthCheck() error
	Dependencies() []string
	IsActive() bool
}

// BaseComponent 提供组件的基础实现
type BaseComponent struct {
	name   string
	active atomic.Bool
	deps   []string
}

// NewBaseComponent 创建基础组件
func NewBaseComponent(name string, deps ...string) *BaseComponent {
	return &BaseComponent{
		name: name,
		deps: deps,
	}
}

func (c *BaseComponent) Name() string {
	return c.name
}

func (c *BaseComponent) Dependencies() []string {
	return c.deps
}

func (c *BaseComponent) IsActive() bool {
	return c.active.Load()
}

func (c *BaseComponent) SetActive(active bool) {
	c.active.Store(active)
}

func (c *BaseComponent) Start(ctx context.Context) error {
	c.SetActive(true)
	return nil
}

func (c *BaseComponent) Stop(ctx context.Context) error {
	c.SetActive(false)
	return nil
}

func (c *BaseComponent) HealthCheck() error {
	if !c.IsActive() {
		return fmt.Errorf("component %s is not active", c.name)
	}
	return nil
}

// AddDependencies 在组件启动前追加运行时依赖 (只影响启动/停止顺序), 重复项忽略。
func (c *BaseComponent) AddDependencies(deps ...string) {
	for _, d := range deps {
		if d == "" || d == c.name || c.hasDependency(d) {
			continue
		}
		c.deps = append(c.deps, d)
	}
}

func (c *BaseComponent) hasDependency(name string) bool {
	for _, d := range c.deps {
		if d == name {
			return true
		}
	}
	return false
}
