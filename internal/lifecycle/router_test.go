package lifecycle

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandy1219/ypf/internal/config"
	"github.com/sandy1219/ypf/internal/dispatch"
	"github.com/sandy1219/ypf/internal/engine"
	"github.com/sandy1219/ypf/internal/handler"
	"github.com/sandy1219/ypf/internal/model"
	"github.com/sandy1219/ypf/internal/store"
	"github.com/sandy1219/ypf/internal/supervisor"
)

type stubSpawner struct {
	mu     sync.Mutex
	names  []string
	killed []int
}

func (s *stubSpawner) Spawn(_ context.Context, spec engine.SpawnSpec) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.names = append(s.names, spec.Name)
	return 1000 + len(s.names), nil
}

func (s *stubSpawner) Kill(pid int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.killed = append(s.killed, pid)
	return nil
}

type fixture struct {
	router  *Router
	server  *engine.Server
	spawner *stubSpawner
	results chan handler.Args
	pidFile string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	workers := filepath.Join(dir, "workers")
	require.NoError(t, os.MkdirAll(workers, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(workers, "A.yaml"), []byte("status: true\naction: heartbeat\n"), 0o644))

	biz := &config.BizConfig{Server: &config.ServerConfig{PidFile: filepath.Join(dir, "run", "ypf.pid")}}
	biz.ApplyDefaults()
	biz.Engine = config.EngineConfig{WorkerNum: 2, TaskWorkerNum: 2, TaskQueueSize: 8}

	st := store.NewMemory("")
	results := make(chan handler.Args, 8)
	reg := handler.NewRegistry()
	require.NoError(t, handler.RegisterBuiltins(reg, st))
	require.NoError(t, reg.RegisterFunc("collect", func(_ context.Context, a handler.Args) (any, error) {
		results <- a
		return nil, nil
	}))

	ctx := context.Background()
	disp := dispatch.NewDispatcher()
	disp.Handlers = reg
	disp.Store = st
	require.NoError(t, disp.Start(ctx))

	sp := &stubSpawner{}
	sup := supervisor.NewSupervisor(workers, sp)
	sup.Store = st
	require.NoError(t, sup.Start(ctx))

	router := NewRouter(biz.Server)
	router.Dispatcher = disp
	router.Supervisor = sup
	require.NoError(t, router.Start(ctx))

	srv := engine.NewServer(biz.Engine, false)
	srv.SetNamer(nil)
	srv.SetHandler(router)
	disp.BindEngine(srv)

	return &fixture{router: router, server: srv, spawner: sp, results: results, pidFile: biz.Server.PidFile}
}

func TestLifecycleStartAndShutdown(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.server.Start(ctx))

	raw, err := os.ReadFile(f.pidFile)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(raw))

	titles := f.server.Titles()
	assert.Equal(t, "ypf-master", titles[engine.MasterSlot])
	assert.Equal(t, "ypf-manager", titles[engine.ManagerSlot])
	assert.Equal(t, "ypf-worker-0", titles[0])
	assert.Equal(t, "ypf-worker-1", titles[1])
	assert.Equal(t, "ypf-task-worker-2", titles[2])
	assert.Equal(t, "ypf-task-worker-3", titles[3])

	// worker 0 启动时拉起 A 与 cron worker, 只执行一次
	assert.Equal(t, []string{"A", "cron"}, f.spawner.names)

	require.NoError(t, f.server.Stop(ctx))
	assert.ElementsMatch(t, []int{1001, 1002}, f.spawner.killed)
	_, err = os.Stat(f.pidFile)
	assert.True(t, os.IsNotExist(err))

	// pid 文件已不存在时再次关闭不报错
	f.router.OnShutdown(ctx, f.server)
	assert.Len(t, f.spawner.killed, 2)
}

func TestPipeMessageRunsTaskAndCallback(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.server.Start(ctx))
	defer f.server.Stop(ctx)

	msg, _ := json.Marshal(model.TaskMessage{Func: "square", Args: map[string]any{"n": 6}, Callback: "collect"})
	require.NoError(t, f.server.SendMessage(ctx, 1, msg))

	select {
	case got := <-f.results:
		assert.Equal(t, float64(36), got["result"])
	case <-time.After(2 * time.Second):
		t.Fatal("callback not invoked")
	}
}

func TestRequestRunsOnWorkerLoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.server.Start(ctx))
	defer f.server.Stop(ctx)

	var seen []int
	var mu sync.Mutex
	h := f.router.Request(f.server)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		l := engine.LoopFromContext(r.Context())
		mu.Lock()
		if l != nil {
			seen = append(seen, l.ID())
		}
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))

	for i := 0; i < 4; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	}
	assert.Equal(t, []int{0, 1, 0, 1}, seen)
}

func TestRequestBeforeEngineStart(t *testing.T) {
	f := newFixture(t)
	h := f.router.Request(f.server)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRemovePidFileAbsent(t *testing.T) {
	assert.NoError(t, removePidFile(filepath.Join(t.TempDir(), "none.pid")))
	assert.NoError(t, removePidFile(""))
}
