package application

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/sandy1219/ypf/application/autowire"
	"github.com/sandy1219/ypf/application/config"
	"github.com/sandy1219/ypf/application/core"
	"github.com/sandy1219/ypf/application/hooks"
	"github.com/sandy1219/ypf/application/registry"
)

// Option 调整 App 的构造参数
type Option func(*App)

// WithRole 指定当前进程角色 (master / worker / cron), 组件 builder 据此裁剪
func WithRole(role string) Option {
	return func(a *App) { a.configManager.SetRole(role) }
}

// WithBizConfig 提供业务配置指针, 填充 biz_config 小节
func WithBizConfig(biz any) Option {
	return func(a *App) { a.configManager.SetBizConfig(biz) }
}

// WithShutdownTimeout 单个组件停止的超时时间
func WithShutdownTimeout(d time.Duration) Option {
	return func(a *App) { a.shutdownTimeout = d }
}

type App struct {
	container        *core.Container
	lifecycleManager *core.LifecycleManager
	configManager    *config.ConfigManager

	bootOnce sync.Once
	bootErr  error

	shutdownTimeout time.Duration
}

func NewApp(env string, configPath string, opts ...Option) *App {
	abs := configPath
	if p, err := filepath.Abs(configPath); err == nil {
		abs = p
	}
	container := core.NewContainer()
	app := &App{
		configManager:    config.NewConfigManager(env, abs),
		container:        container,
		lifecycleManager: core.NewLifecycleManagerWithManager(container, hooks.GetGlobalHookManager()),
		shutdownTimeout:  30 * time.Second,
	}
	for _, opt := range opts {
		opt(app)
	}
	app.lifecycleManager.SetTimeout(app.shutdownTimeout)
	return app
}

// Boot 加载配置、构建组件并完成注入; 可重复调用, 只执行一次
func (app *App) Boot() error {
	app.bootOnce.Do(func() {
		if err := app.configManager.LoadConfig(); err != nil {
			app.bootErr = fmt.Errorf("load config failed: %w", err)
			return
		}
		if err := registry.BuildAndRegisterAll(app.configManager.GetConfig(), app.container); err != nil {
			app.bootErr = fmt.Errorf("register components failed: %w", err)
			return
		}
		if err := autowire.InjectAll(app.container); err != nil {
			app.bootErr = err
			return
		}
	})
	return app.bootErr
}

func (app *App) GetComponent(name string) (core.Component, error) {
	return app.container.Resolve(name)
}

func (app *App) Container() *core.Container {
	return app.container
}

func (app *App) GetConfig() *config.AppConfig {
	return app.configManager.GetConfig()
}

func (app *App) AddHook(name string, phase hooks.Phase, fn hooks.HookFunc, priority int) error {
	return app.lifecycleManager.AddHook(name, phase, fn, priority)
}

// Run 监听 SIGINT/SIGTERM, 收到后优雅退出
func (app *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return app.RunWithContext(ctx)
}

// RunWithContext 启动组件并阻塞到 ctx 结束, 然后停止全部组件
func (app *App) RunWithContext(ctx context.Context) error {
	if err := app.Boot(); err != nil {
		return err
	}
	if err := app.lifecycleManager.StartAll(ctx); err != nil {
		return err
	}

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), app.shutdownTimeout)
	defer cancel()
	app.lifecycleManager.StopAll(stopCtx)
	return nil
}

func (app *App) Shutdown(ctx context.Context) {
	app.lifecycleManager.StopAll(ctx)
}
