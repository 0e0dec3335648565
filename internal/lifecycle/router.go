// Package lifecycle 把 engine 的生命周期事件分发到 supervisor 与 dispatcher
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"

	"github.com/sandy1219/ypf/application/components/logging"
	appconsts "github.com/sandy1219/ypf/application/consts"
	"github.com/sandy1219/ypf/application/core"
	"github.com/sandy1219/ypf/internal/config"
	"github.com/sandy1219/ypf/internal/consts"
	"github.com/sandy1219/ypf/internal/dispatch"
	"github.com/sandy1219/ypf/internal/engine"
	"github.com/sandy1219/ypf/internal/supervisor"
)

type Router struct {
	*core.BaseComponent

	Dispatcher *dispatch.Dispatcher   `infra:"dep:dispatcher"`
	Supervisor *supervisor.Supervisor `infra:"dep:supervisor?"`

	server *config.ServerConfig
}

var _ engine.EventHandler = (*Router)(nil)

func NewRouter(server *config.ServerConfig) *Router {
	return &Router{
		BaseComponent: core.NewBaseComponent(consts.COMP_LIFECYCLE_ROUTER, appconsts.COMPONENT_LOGGING),
		server:        server,
	}
}

func (r *Router) Start(ctx context.Context) error {
	if err := r.BaseComponent.Start(ctx); err != nil {
		return err
	}
	if r.server == nil {
		return config.ErrServerConfigMissing
	}
	if r.Dispatcher == nil {
		return fmt.Errorf("lifecycle router requires dispatcher")
	}
	return nil
}

func (r *Router) OnStart(ctx context.Context, e engine.Engine) {
	e.SetProcessName(engine.MasterSlot, r.server.MasterProcessName)
	if err := writePidFile(r.server.PidFile, e.MasterPID()); err != nil {
		logging.Error(ctx, "write pid file failed", zap.String("path", r.server.PidFile), zap.Error(err))
		return
	}
	logging.Info(ctx, "master started", zap.Int("pid", e.MasterPID()), zap.String("pid_file", r.server.PidFile))
}

func (r *Router) OnManagerStart(ctx context.Context, e engine.Engine) {
	e.SetProcessName(engine.ManagerSlot, r.server.ManagerProcessName)
}

func (r *Router) OnManagerStop(ctx context.Context, e engine.Engine) {
	e.SetProcessName(engine.ManagerSlot, r.server.ManagerProcessName)
}

// OnWorkerStart id >= WorkerNum 的是 task worker; 0 号 worker 负责拉起子进程
func (r *Router) OnWorkerStart(ctx context.Context, e engine.Engine, workerID int) {
	tpl := r.server.WorkerProcessName
	if workerID >= e.WorkerNum() {
		tpl = r.server.TaskWorkerProcessName
	}
	e.SetProcessName(workerID, fmt.Sprintf(tpl, workerID))

	if workerID != 0 || r.Supervisor == nil {
		return
	}
	if err := r.Supervisor.SpawnAll(ctx); err != nil {
		logging.Error(ctx, "spawn child processes failed", zap.Error(err))
	}
}

func (r *Router) OnWorkerStop(ctx context.Context, e engine.Engine, workerID int) {
	logging.Debug(ctx, "worker stopped", zap.Int("worker_id", workerID))
}

// OnPipeMessage 消息体是 TaskMessage, 转交 task 池; 结果回到当前 worker
func (r *Router) OnPipeMessage(ctx context.Context, e engine.Engine, fromWorker int, data []byte) {
	if _, err := r.Dispatcher.Forward(ctx, data); err != nil {
		logging.Error(ctx, "forward pipe message failed", zap.Int("from_worker", fromWorker), zap.Error(err))
	}
}

func (r *Router) OnTask(ctx context.Context, e engine.Engine, taskID int64, fromWorker int, data []byte) []byte {
	return r.Dispatcher.Execute(ctx, taskID, data)
}

func (r *Router) OnFinish(ctx context.Context, e engine.Engine, taskID int64, data []byte) {
	r.Dispatcher.Complete(ctx, taskID, data)
}

func (r *Router) OnShutdown(ctx context.Context, e engine.Engine) {
	if r.Supervisor != nil {
		n, err := r.Supervisor.Reap(ctx)
		if err != nil {
			logging.Error(ctx, "reap child processes failed", zap.Error(err))
		} else {
			logging.Info(ctx, "child processes reaped", zap.Int("killed", n))
		}
	}
	if err := removePidFile(r.server.PidFile); err != nil {
		logging.Warn(ctx, "remove pid file failed", zap.String("path", r.server.PidFile), zap.Error(err))
	}
}

// Request 请求事件: 轮询选出一个 worker, 在其 loop 上执行后续 handler
func (r *Router) Request(e engine.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			loop := e.Loop(e.NextWorker())
			if loop == nil {
				http.Error(w, "engine not ready", http.StatusServiceUnavailable)
				return
			}
			ctx := engine.WithLoop(req.Context(), loop)
			// 必须等 handler 执行完才能返回, 否则会在返回后写 ResponseWriter
			err := loop.Call(context.WithoutCancel(req.Context()), func() {
				next.ServeHTTP(w, req.WithContext(ctx))
			})
			if err != nil {
				http.Error(w, "worker unavailable", http.StatusServiceUnavailable)
			}
		})
	}
}

func writePidFile(path string, pid int) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(pid)), 0o644)
}

// removePidFile 文件不存在时什么都不做
func removePidFile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
