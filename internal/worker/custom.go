package worker

import (
	"context"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/sandy1219/ypf/application/components/logging"
	appconsts "github.com/sandy1219/ypf/application/consts"
	"github.com/sandy1219/ypf/application/core"
	"github.com/sandy1219/ypf/internal/config"
	"github.com/sandy1219/ypf/internal/consts"
	"github.com/sandy1219/ypf/internal/engine"
	"github.com/sandy1219/ypf/internal/handler"
	"github.com/sandy1219/ypf/internal/model"
)

// CustomRunner 在 0 号 loop 上执行 worker 配置的 action, action 返回即 Done
type CustomRunner struct {
	*core.BaseComponent

	Engine   *engine.Server    `infra:"dep:engine"`
	Handlers *handler.Registry `infra:"dep:handler_registry"`

	server *config.ServerConfig
	in     io.Reader

	worker model.WorkerConfig
	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
}

func NewCustomRunner(server *config.ServerConfig, in io.Reader) *CustomRunner {
	return &CustomRunner{
		BaseComponent: core.NewBaseComponent(consts.COMP_CUSTOM_WORKER, appconsts.COMPONENT_LOGGING),
		server:        server,
		in:            in,
		done:          make(chan struct{}),
	}
}

func (r *CustomRunner) Start(ctx context.Context) error {
	if err := r.BaseComponent.Start(ctx); err != nil {
		return err
	}
	if err := decodePayload(r.in, &r.worker); err != nil {
		return err
	}
	if r.worker.Action == "" {
		return fmt.Errorf("worker %q has no action", r.worker.Name)
	}
	if !r.Handlers.Has(r.worker.Action) {
		return fmt.Errorf("worker %q: %w: %q", r.worker.Name, handler.ErrUnknownHandler, r.worker.Action)
	}

	r.Engine.SetProcessName(engine.MasterSlot, r.Title())

	loop := r.Engine.Loop(0)
	if loop == nil {
		return engine.ErrLoopClosed
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r.cancel = cancel
	runCtx = engine.WithLoop(runCtx, loop)

	w := r.worker
	err := loop.Post(func() {
		defer close(r.done)
		logging.Info(runCtx, "custom worker running", zap.String("worker", w.Name), zap.String("action", w.Action))
		if _, err := r.Handlers.Dispatch(runCtx, w.Action, w.ActionArgs()); err != nil {
			r.setErr(err)
			logging.Error(runCtx, "custom worker action failed", zap.String("worker", w.Name), zap.Error(err))
			return
		}
		logging.Info(runCtx, "custom worker action returned", zap.String("worker", w.Name))
	})
	if err != nil {
		cancel()
		return fmt.Errorf("schedule worker %q: %w", w.Name, err)
	}
	return nil
}

// Stop 取消 action 的 ctx 并等待其返回
func (r *CustomRunner) Stop(ctx context.Context) error {
	if r.cancel != nil {
		r.cancel()
		select {
		case <-r.done:
		case <-ctx.Done():
			logging.Warn(ctx, "custom worker action did not return before shutdown", zap.String("worker", r.worker.Name))
		}
	}
	return r.BaseComponent.Stop(ctx)
}

// Title 进程名: worker 模板取 0 号, 再加上 worker 名称
func (r *CustomRunner) Title() string {
	return fmt.Sprintf(r.server.WorkerProcessName, 0) + ":" + r.worker.Name
}

func (r *CustomRunner) Worker() model.WorkerConfig { return r.worker }

// Done action 返回后关闭
func (r *CustomRunner) Done() <-chan struct{} { return r.done }

func (r *CustomRunner) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func (r *CustomRunner) setErr(err error) {
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
}
