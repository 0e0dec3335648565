package http_server

import (
	"fmt"

	"github.com/sandy1219/ypf/application/core"
)

type Factory struct {
	container *core.Container
}

func NewFactory(c *core.Container) *Factory { return &Factory{container: c} }

func (f *Factory) Create(cfg *HTTPServerConfig, extraDeps ...string) (core.Component, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, fmt.Errorf("http_server component disabled")
	}
	comp := NewHTTPServerComponent(cfg, f.container)
	comp.AddDependencies(extraDeps...)
	return comp, nil
}
