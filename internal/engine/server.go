package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/sandy1219/ypf/application/components/logging"
	appconsts "github.com/sandy1219/ypf/application/consts"
	"github.com/sandy1219/ypf/application/core"
	"github.com/sandy1219/ypf/internal/config"
	"github.com/sandy1219/ypf/internal/consts"
)

// Server 宿主组件: 启动时依次触发 Start → ManagerStart → WorkerStart,
// 停止时 WorkerStop → ManagerStop → Shutdown。
// standalone 模式 (子进程) 只提供 loop 与 task 池, 不触发生命周期事件
type Server struct {
	*core.BaseComponent
	cfg        config.EngineConfig
	standalone bool

	handler EventHandler
	setName func(title string) error

	masterPID int
	loops     []*Loop
	pool      *TaskPool
	rr        atomic.Uint64
	bg        context.Context

	titlesMu sync.RWMutex
	titles   map[int]string
}

var _ Engine = (*Server)(nil)

func NewServer(cfg config.EngineConfig, standalone bool) *Server {
	return &Server{
		BaseComponent: core.NewBaseComponent(consts.COMP_ENGINE, appconsts.COMPONENT_LOGGING),
		cfg:           cfg,
		standalone:    standalone,
		handler:       NopHandler{},
		setName:       SetProcessTitle,
		titles:        map[int]string{},
	}
}

// SetHandler 必须在 Start 之前调用; handler 若是组件, 会被加入启动依赖
func (s *Server) SetHandler(h EventHandler) {
	if h == nil {
		return
	}
	s.handler = h
	if named, ok := h.(interface{ Name() string }); ok {
		s.AddDependencies(named.Name())
	}
}

// SetNamer 替换修改 OS 进程名的实现, nil 表示只记录标题
func (s *Server) SetNamer(fn func(title string) error) {
	s.setName = fn
}

func (s *Server) Start(ctx context.Context) error {
	if s.IsActive() {
		return nil
	}
	if s.cfg.WorkerNum < 1 {
		return fmt.Errorf("engine needs at least one worker, got %d", s.cfg.WorkerNum)
	}
	if err := s.BaseComponent.Start(ctx); err != nil {
		return err
	}
	// Start 的 ctx 在返回后即被取消, 事件回调使用独立的 ctx
	s.bg = context.WithoutCancel(ctx)
	s.masterPID = os.Getpid()

	s.loops = make([]*Loop, s.cfg.WorkerNum)
	for i := range s.loops {
		s.loops[i] = NewLoop(i)
	}
	s.pool = NewTaskPool(s.cfg.WorkerNum, s.cfg.TaskWorkerNum, s.cfg.TaskQueueSize, s.execTask, s.finishTask, s.loops[0])
	s.pool.Start(s.bg)

	logging.Info(ctx, "engine started",
		zap.Int("master_pid", s.masterPID),
		zap.Int("worker_num", s.cfg.WorkerNum),
		zap.Int("task_worker_num", s.cfg.TaskWorkerNum),
		zap.Bool("standalone", s.standalone),
	)
	if s.standalone {
		return nil
	}

	s.handler.OnStart(s.bg, s)
	s.handler.OnManagerStart(s.bg, s)
	for _, l := range s.loops {
		l := l
		if err := l.Call(ctx, func() { s.handler.OnWorkerStart(WithLoop(s.bg, l), s, l.ID()) }); err != nil {
			return fmt.Errorf("worker %d start: %w", l.ID(), err)
		}
	}
	for _, id := range s.pool.WorkerIDs() {
		s.handler.OnWorkerStart(s.bg, s, id)
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	if !s.IsActive() {
		return nil
	}
	defer s.BaseComponent.Stop(ctx)

	var errs []error
	if !s.standalone {
		for _, l := range s.loops {
			l := l
			if err := l.Call(ctx, func() { s.handler.OnWorkerStop(WithLoop(s.bg, l), s, l.ID()) }); err != nil {
				errs = append(errs, fmt.Errorf("worker %d stop: %w", l.ID(), err))
			}
		}
		for _, id := range s.pool.WorkerIDs() {
			s.handler.OnWorkerStop(s.bg, s, id)
		}
		s.handler.OnManagerStop(s.bg, s)
		s.handler.OnShutdown(s.bg, s)
	}

	s.pool.Close()
	for _, l := range s.loops {
		l.Close()
	}
	for _, l := range s.loops {
		if err := l.Wait(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	logging.Info(ctx, "engine stopped")
	return errors.Join(errs...)
}

func (s *Server) execTask(ctx context.Context, taskID int64, fromWorker int, data []byte) []byte {
	return s.handler.OnTask(ctx, s, taskID, fromWorker, data)
}

func (s *Server) finishTask(ctx context.Context, taskID int64, data []byte) {
	s.handler.OnFinish(ctx, s, taskID, data)
}

func (s *Server) MasterPID() int     { return s.masterPID }
func (s *Server) WorkerNum() int     { return s.cfg.WorkerNum }
func (s *Server) TaskWorkerNum() int { return s.cfg.TaskWorkerNum }

func (s *Server) Task(ctx context.Context, data []byte) (int64, error) {
	if s.pool == nil {
		return 0, ErrPoolClosed
	}
	return s.pool.Submit(ctx, data)
}

func (s *Server) SendMessage(ctx context.Context, dst int, data []byte) error {
	l := s.Loop(dst)
	if l == nil {
		return fmt.Errorf("send message: no worker %d", dst)
	}
	from := WorkerIDFromContext(ctx)
	return l.Post(func() { s.handler.OnPipeMessage(WithLoop(s.bg, l), s, from, data) })
}

func (s *Server) Loop(id int) *Loop {
	if id < 0 || id >= len(s.loops) {
		return nil
	}
	return s.loops[id]
}

// Background loop 外部使用的 ctx (子进程在上面执行 action)
func (s *Server) Background() context.Context {
	if s.bg == nil {
		return context.Background()
	}
	return s.bg
}

func (s *Server) NextWorker() int {
	n := uint64(len(s.loops))
	if n == 0 {
		return 0
	}
	return int((s.rr.Add(1) - 1) % n)
}

// SetProcessName 记录槽位的标题; 只有 MasterSlot 对应真实进程, 会修改 OS 进程名
func (s *Server) SetProcessName(slot int, title string) {
	s.titlesMu.Lock()
	s.titles[slot] = title
	s.titlesMu.Unlock()
	if slot != MasterSlot || s.setName == nil {
		return
	}
	if err := s.setName(title); err != nil {
		logging.Warn(s.Background(), "set process name failed", zap.String("title", title), zap.Error(err))
	}
}

func (s *Server) Titles() map[int]string {
	s.titlesMu.RLock()
	defer s.titlesMu.RUnlock()
	out := make(map[int]string, len(s.titles))
	for k, v := range s.titles {
		out[k] = v
	}
	return out
}

// SortedSlots Titles 的槽位按数值排序, 便于展示
func SortedSlots(titles map[int]string) []int {
	slots := make([]int, 0, len(titles))
	for k := range titles {
		slots = append(slots, k)
	}
	sort.Ints(slots)
	return slots
}
