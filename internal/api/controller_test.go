package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandy1219/ypf/internal/config"
	"github.com/sandy1219/ypf/internal/consts"
	"github.com/sandy1219/ypf/internal/dispatch"
	"github.com/sandy1219/ypf/internal/engine"
	"github.com/sandy1219/ypf/internal/handler"
	"github.com/sandy1219/ypf/internal/lifecycle"
	"github.com/sandy1219/ypf/internal/model"
	"github.com/sandy1219/ypf/internal/store"
)

func newTestAPI(t *testing.T) (*httptest.Server, *Controller) {
	t.Helper()
	ctx := context.Background()
	biz := &config.BizConfig{Server: &config.ServerConfig{PidFile: filepath.Join(t.TempDir(), "ypf.pid")}}
	biz.ApplyDefaults()

	st := store.NewMemory("")
	reg := handler.NewRegistry()
	require.NoError(t, handler.RegisterBuiltins(reg, st))
	require.NoError(t, reg.RegisterFunc("boom", func(context.Context, handler.Args) (any, error) {
		return nil, assert.AnError
	}))

	disp := dispatch.NewDispatcher()
	disp.Handlers = reg
	disp.Store = st
	require.NoError(t, disp.Start(ctx))

	router := lifecycle.NewRouter(biz.Server)
	router.Dispatcher = disp
	require.NoError(t, router.Start(ctx))

	srv := engine.NewServer(config.EngineConfig{WorkerNum: 2, TaskWorkerNum: 2, TaskQueueSize: 16}, false)
	srv.SetNamer(nil)
	srv.SetHandler(router)
	disp.BindEngine(srv)
	require.NoError(t, srv.Start(ctx))
	t.Cleanup(func() { _ = srv.Stop(ctx) })

	ctrl := NewController()
	ctrl.Engine = srv
	ctrl.Router = router
	ctrl.Dispatcher = disp
	ctrl.Handlers = reg
	ctrl.Store = st

	r := chi.NewRouter()
	ctrl.Mount(r)
	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return ts, ctrl
}

func doJSON(t *testing.T, method, url string, body any) (int, map[string]any) {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, rd)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	out := map[string]any{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func TestRunAction(t *testing.T) {
	ts, _ := newTestAPI(t)

	code, out := doJSON(t, http.MethodPost, ts.URL+"/actions/square", map[string]any{"n": 7})
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(49), out["result"])

	code, _ = doJSON(t, http.MethodPost, ts.URL+"/actions/nope", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, out = doJSON(t, http.MethodPost, ts.URL+"/actions/boom", nil)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.NotEmpty(t, out["error"])
}

func TestSubmitTask(t *testing.T) {
	ts, _ := newTestAPI(t)

	code, out := doJSON(t, http.MethodPost, ts.URL+"/tasks/square", map[string]any{"args": map[string]any{"n": 2}, "callback": "sum"})
	assert.Equal(t, http.StatusAccepted, code)
	assert.NotZero(t, out["task_id"])

	code, _ = doJSON(t, http.MethodPost, ts.URL+"/tasks/unknown", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, out = doJSON(t, http.MethodPost, ts.URL+"/tasks/square", map[string]any{
		"args":   map[string]any{"n": 2},
		"thread": map[string]any{"task": consts.KEY_WORKER_CRON_QUEUE, "id": "x"},
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, out["error"], "reserved")

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/tasks/square", strings.NewReader("{not json"))
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestJobsFanOutAndPoll(t *testing.T) {
	ts, _ := newTestAPI(t)

	code, out := doJSON(t, http.MethodPost, ts.URL+"/jobs", map[string]any{
		"func": "square",
		"args": []map[string]any{{"n": 1}, {"n": 2}, {"n": 3}},
	})
	require.Equal(t, http.StatusAccepted, code)
	key, _ := out["key"].(string)
	require.NotEmpty(t, key)

	require.Eventually(t, func() bool {
		code, out := doJSON(t, http.MethodGet, ts.URL+"/jobs/"+key, nil)
		return code == http.StatusOK && out["done"] == true
	}, 2*time.Second, 10*time.Millisecond)

	_, out = doJSON(t, http.MethodGet, ts.URL+"/jobs/"+key, nil)
	assert.Equal(t, map[string]any{"0": float64(1), "1": float64(4), "2": float64(9)}, out["results"])

	code, _ = doJSON(t, http.MethodGet, ts.URL+"/jobs/fanin:missing", nil)
	assert.Equal(t, http.StatusNotFound, code)

	// 其它记录不是 fan-in 任务, 不能报告 done
	for _, other := range []string{consts.KEY_WORKER_PID, consts.KEY_WORKER_CRON_QUEUE} {
		code, out = doJSON(t, http.MethodGet, ts.URL+"/jobs/"+other, nil)
		assert.Equal(t, http.StatusNotFound, code, other)
		assert.Nil(t, out["done"], other)
	}

	code, _ = doJSON(t, http.MethodPost, ts.URL+"/jobs", map[string]any{"func": "square"})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestStatus(t *testing.T) {
	ts, ctrl := newTestAPI(t)
	ctx := context.Background()
	require.NoError(t, ctrl.Store.Set(ctx, "worker_pid", []model.ProcessRecord{{PID: 42, WorkerName: "A", Role: model.RoleCustomWorker}}))
	cr := model.Crontab("60")
	require.NoError(t, ctrl.Store.SetMulti(ctx, map[string]any{
		"worker_cron_queue": model.CronSet{"C": {Name: "C", Status: true, Crontab: &cr}},
		"worker_cron_ready": model.CronSet{},
	}))

	code, out := doJSON(t, http.MethodGet, ts.URL+"/status", nil)
	require.Equal(t, http.StatusOK, code)
	assert.NotZero(t, out["master_pid"])

	children := out["children"].([]any)
	require.Len(t, children, 1)
	assert.Equal(t, "A", children[0].(map[string]any)["worker_name"])

	cron := out["cron"].(map[string]any)
	assert.Equal(t, []any{"C"}, cron["queue"])
	assert.Equal(t, []any{}, cron["ready"])

	procs := out["processes"].([]any)
	first := procs[0].(map[string]any)
	assert.Equal(t, "manager", first["slot"])
	assert.Contains(t, out["handlers"], "square")
}
