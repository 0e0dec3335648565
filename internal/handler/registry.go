// Package handler 按名称注册的可调用对象。worker action、task 函数以及回调都从这里解析,
// 消息里只携带名称, 不携带闭包。
package handler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	appconsts "github.com/sandy1219/ypf/application/consts"
	"github.com/sandy1219/ypf/application/core"
	"github.com/sandy1219/ypf/internal/consts"
)

var ErrUnknownHandler = errors.New("unknown handler")

// Args handler 入参, 来自 worker 描述文件或 task 消息, 值均可 JSON 序列化
type Args map[string]any

type Handler interface {
	Handle(ctx context.Context, args Args) (any, error)
}

// HandlerFunc 函数适配器
type HandlerFunc func(ctx context.Context, args Args) (any, error)

func (f HandlerFunc) Handle(ctx context.Context, args Args) (any, error) {
	return f(ctx, args)
}

// Registry 启动阶段注册完毕, 之后只读
type Registry struct {
	*core.BaseComponent
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{
		BaseComponent: core.NewBaseComponent(consts.COMP_HANDLER_REGISTRY, appconsts.COMPONENT_LOGGING),
		handlers:      map[string]Handler{},
	}
}

// Register 名称重复返回错误
func (r *Registry) Register(name string, h Handler) error {
	if name == "" {
		return fmt.Errorf("handler name empty")
	}
	if h == nil {
		return fmt.Errorf("handler %s is nil", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[name]; exists {
		return fmt.Errorf("handler %s already registered", name)
	}
	r.handlers[name] = h
	return nil
}

func (r *Registry) RegisterFunc(name string, fn func(ctx context.Context, args Args) (any, error)) error {
	return r.Register(name, HandlerFunc(fn))
}

func (r *Registry) Resolve(name string) (Handler, error) {
	r.mu.RLock()
	h, ok := r.handlers[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownHandler, name)
	}
	return h, nil
}

// Has 只判断是否注册
func (r *Registry) Has(name string) bool {
	_, err := r.Resolve(name)
	return err == nil
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.handlers))
	for n := range r.handlers {
		names = append(names, n)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Dispatch 解析并同步调用
func (r *Registry) Dispatch(ctx context.Context, name string, args map[string]any) (any, error) {
	h, err := r.Resolve(name)
	if err != nil {
		return nil, err
	}
	return h.Handle(ctx, Args(args))
}
