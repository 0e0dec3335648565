package supervisor

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandy1219/ypf/application/components/prometheus"
	"github.com/sandy1219/ypf/internal/engine"
	"github.com/sandy1219/ypf/internal/model"
	"github.com/sandy1219/ypf/internal/store"
)

type stubSpawner struct {
	mu      sync.Mutex
	nextPID int
	specs   []engine.SpawnSpec
	fail    map[string]bool
	killed  []int
	killErr map[int]error
}

func newStubSpawner() *stubSpawner {
	return &stubSpawner{nextPID: 100, fail: map[string]bool{}, killErr: map[int]error{}}
}

func (s *stubSpawner) Spawn(_ context.Context, spec engine.SpawnSpec) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.specs = append(s.specs, spec)
	if s.fail[spec.Name] {
		return 0, errors.New("fork failed")
	}
	s.nextPID++
	return s.nextPID, nil
}

func (s *stubSpawner) Kill(pid int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.killErr[pid]; err != nil {
		return err
	}
	s.killed = append(s.killed, pid)
	return nil
}

func writeWorkers(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	return dir
}

func newSupervisor(t *testing.T, dir string, sp engine.Spawner) (*Supervisor, store.Store) {
	t.Helper()
	st := store.NewMemory("")
	s := NewSupervisor(dir, sp)
	s.Store = st
	s.Metrics = prometheus.NewComponent(&prometheus.Config{}, "test", false)
	require.NoError(t, s.Start(context.Background()))
	return s, st
}

func TestSpawnAllSingleWorker(t *testing.T) {
	dir := writeWorkers(t, map[string]string{
		"A.yaml": "status: true\naction: heartbeat\ninterval: 5\n",
	})
	sp := newStubSpawner()
	s, _ := newSupervisor(t, dir, sp)
	ctx := context.Background()

	require.NoError(t, s.SpawnAll(ctx))
	require.NoError(t, s.SpawnAll(ctx)) // 只执行一次

	require.Len(t, sp.specs, 2)
	assert.Equal(t, "worker", sp.specs[0].Command)
	assert.Equal(t, "cron", sp.specs[1].Command)

	var w model.WorkerConfig
	require.NoError(t, json.Unmarshal(sp.specs[0].Payload, &w))
	assert.Equal(t, "A", w.Name)
	assert.Equal(t, "heartbeat", w.Action)

	var all []model.WorkerConfig
	require.NoError(t, json.Unmarshal(sp.specs[1].Payload, &all))
	assert.Len(t, all, 1)

	records, err := s.Records(ctx)
	require.NoError(t, err)
	assert.Equal(t, []model.ProcessRecord{
		{PID: 101, WorkerName: "A", Role: model.RoleCustomWorker},
		{PID: 102, WorkerName: "cron", Role: model.RoleCronWorker},
	}, records)
}

func TestDisabledAndCronWorkersNotSpawned(t *testing.T) {
	dir := writeWorkers(t, map[string]string{
		"A.yaml": "status: true\naction: heartbeat\n",
		"B.yaml": "status: false\naction: heartbeat\n",
		"C.yml":  "status: true\naction: log\ncrontab: 60\n",
	})
	sp := newStubSpawner()
	s, _ := newSupervisor(t, dir, sp)
	require.NoError(t, s.SpawnAll(context.Background()))

	var spawned []string
	for _, spec := range sp.specs {
		spawned = append(spawned, spec.Name)
	}
	assert.Equal(t, []string{"A", "cron"}, spawned)

	// cron worker 拿到全部配置, 自己过滤
	var all []model.WorkerConfig
	require.NoError(t, json.Unmarshal(sp.specs[1].Payload, &all))
	assert.Len(t, all, 3)
}

func TestSpawnFailureNotRecorded(t *testing.T) {
	dir := writeWorkers(t, map[string]string{
		"A.yaml": "status: true\naction: heartbeat\n",
		"B.yaml": "status: true\naction: heartbeat\n",
	})
	sp := newStubSpawner()
	sp.fail["A"] = true
	s, _ := newSupervisor(t, dir, sp)
	require.NoError(t, s.SpawnAll(context.Background()))

	records, err := s.Records(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "B", records[0].WorkerName)
	assert.Equal(t, float64(1), testutil.ToFloat64(s.spawnFailures.WithLabelValues("A")))
}

func TestMissingWorkersDir(t *testing.T) {
	sp := newStubSpawner()
	s, _ := newSupervisor(t, filepath.Join(t.TempDir(), "nope"), sp)
	assert.Empty(t, s.Workers())
	require.NoError(t, s.SpawnAll(context.Background()))
	// 仍然拉起 cron worker
	require.Len(t, sp.specs, 1)
	assert.Equal(t, "cron", sp.specs[0].Name)
}

func TestReap(t *testing.T) {
	sp := newStubSpawner()
	sp.killErr[7] = errors.New("no such process")
	s, st := newSupervisor(t, t.TempDir(), sp)
	ctx := context.Background()

	n, err := s.Reap(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, sp.killed)

	require.NoError(t, st.Set(ctx, "worker_pid", []model.ProcessRecord{
		{PID: 5, WorkerName: "A", Role: model.RoleCustomWorker},
		{PID: 7, WorkerName: "B", Role: model.RoleCustomWorker},
		{PID: 9, WorkerName: "cron", Role: model.RoleCronWorker},
	}))
	n, err = s.Reap(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []int{5, 9}, sp.killed)

	records, err := s.Records(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)

	// 再次调用无副作用
	n, err = s.Reap(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
