// Package supervisor 拉起并跟踪 custom worker 与 cron worker 子进程。
// 进程表只在全部拉起后写入共享存储一次, 在关闭前读出并逐个 SIGKILL。
package supervisor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	prom "github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/sandy1219/ypf/application/components/logging"
	"github.com/sandy1219/ypf/application/components/prometheus"
	appconsts "github.com/sandy1219/ypf/application/consts"
	"github.com/sandy1219/ypf/application/core"
	"github.com/sandy1219/ypf/internal/config"
	"github.com/sandy1219/ypf/internal/consts"
	"github.com/sandy1219/ypf/internal/engine"
	"github.com/sandy1219/ypf/internal/model"
	"github.com/sandy1219/ypf/internal/store"
)

// CronWorkerName cron worker 在进程表里的名称
const CronWorkerName = "cron"

type Supervisor struct {
	*core.BaseComponent

	Store   store.Store           `infra:"dep:state_store"`
	Metrics *prometheus.Component `infra:"dep:prometheus?"`

	workersDir string
	spawner    engine.Spawner
	workers    []model.WorkerConfig

	once          sync.Once
	spawnFailures *prom.CounterVec
}

func NewSupervisor(workersDir string, spawner engine.Spawner) *Supervisor {
	return &Supervisor{
		BaseComponent: core.NewBaseComponent(consts.COMP_SUPERVISOR, appconsts.COMPONENT_LOGGING),
		workersDir:    workersDir,
		spawner:       spawner,
	}
}

// Start 读取 worker 描述文件; 目录缺失或单个文件出错只告警
func (s *Supervisor) Start(ctx context.Context) error {
	if err := s.BaseComponent.Start(ctx); err != nil {
		return err
	}
	if s.Store == nil {
		return fmt.Errorf("supervisor requires state store")
	}
	if s.Metrics != nil {
		s.spawnFailures = s.Metrics.NewCounter(consts.METRIC_SPAWN_FAILURES, "Child processes that failed to start.", []string{"worker"})
	}

	workers, err := config.LoadWorkers(s.workersDir)
	switch {
	case errors.Is(err, config.ErrWorkersDirMissing):
		logging.Warn(ctx, "workers dir missing, no custom workers", zap.String("dir", s.workersDir))
	case err != nil:
		logging.Warn(ctx, "some worker descriptors skipped", zap.String("dir", s.workersDir), zap.Error(err))
	}
	if len(workers) == 0 && !errors.Is(err, config.ErrWorkersDirMissing) {
		logging.Warn(ctx, "workers dir empty", zap.String("dir", s.workersDir))
	}
	s.workers = workers
	logging.Info(ctx, "supervisor started", zap.Int("workers", len(workers)))
	return nil
}

// Workers 加载到的全部 worker 配置
func (s *Supervisor) Workers() []model.WorkerConfig {
	return s.workers
}

// SpawnAll 只执行一次: 每个启用且无 crontab 的 worker 一个进程, 再加一个 cron worker,
// 最后把进程表写入存储
func (s *Supervisor) SpawnAll(ctx context.Context) (err error) {
	s.once.Do(func() { err = s.spawnAll(ctx) })
	return err
}

func (s *Supervisor) spawnAll(ctx context.Context) error {
	var records []model.ProcessRecord

	for _, w := range s.workers {
		if !w.IsCustomWorker() {
			continue
		}
		payload, err := json.Marshal(w)
		if err != nil {
			s.spawnFailed(ctx, w.Name, fmt.Errorf("encode worker config: %w", err))
			continue
		}
		pid, err := s.spawn(ctx, w.Name, consts.CMD_WORKER, payload)
		if err != nil {
			s.spawnFailed(ctx, w.Name, err)
			continue
		}
		logging.Info(ctx, "starting worker [ OK ]", zap.String("worker", w.Name), zap.Int("pid", pid))
		records = append(records, model.ProcessRecord{PID: pid, WorkerName: w.Name, Role: model.RoleCustomWorker})
	}

	payload, err := json.Marshal(s.workers)
	if err != nil {
		s.spawnFailed(ctx, CronWorkerName, fmt.Errorf("encode worker list: %w", err))
	} else if pid, err := s.spawn(ctx, CronWorkerName, consts.CMD_CRON, payload); err != nil {
		s.spawnFailed(ctx, CronWorkerName, err)
	} else {
		logging.Info(ctx, "starting cron worker [ OK ]", zap.Int("pid", pid))
		records = append(records, model.ProcessRecord{PID: pid, WorkerName: CronWorkerName, Role: model.RoleCronWorker})
	}

	if records == nil {
		records = []model.ProcessRecord{}
	}
	if err := s.Store.Set(ctx, consts.KEY_WORKER_PID, records); err != nil {
		return fmt.Errorf("persist process registry: %w", err)
	}
	return nil
}

func (s *Supervisor) spawn(ctx context.Context, name, command string, payload []byte) (int, error) {
	pid, err := s.spawner.Spawn(ctx, engine.SpawnSpec{Name: name, Command: command, Payload: payload})
	if err != nil {
		return 0, err
	}
	if pid <= 0 {
		return 0, fmt.Errorf("invalid pid %d", pid)
	}
	return pid, nil
}

func (s *Supervisor) spawnFailed(ctx context.Context, name string, err error) {
	logging.Error(ctx, "starting worker [ FAIL ]", zap.String("worker", name), zap.Error(err))
	if s.spawnFailures != nil {
		s.spawnFailures.WithLabelValues(name).Inc()
	}
}

// Records 从存储读取进程表, 未写入时为空
func (s *Supervisor) Records(ctx context.Context) ([]model.ProcessRecord, error) {
	return LoadRecords(ctx, s.Store)
}

// Reap 读出进程表, 逐个 SIGKILL 后删除; 单个进程终止失败只记录日志。返回成功终止的数量
func (s *Supervisor) Reap(ctx context.Context) (int, error) {
	records, err := s.Records(ctx)
	if err != nil {
		return 0, err
	}
	killed := 0
	for _, r := range records {
		if err := s.spawner.Kill(r.PID); err != nil {
			logging.Warn(ctx, "kill child process failed",
				zap.String("worker", r.WorkerName),
				zap.Int("pid", r.PID),
				zap.Error(err),
			)
			continue
		}
		killed++
		logging.Info(ctx, "child process killed", zap.String("worker", r.WorkerName), zap.Int("pid", r.PID))
	}
	if len(records) > 0 {
		if err := s.Store.Del(ctx, consts.KEY_WORKER_PID); err != nil {
			return killed, fmt.Errorf("delete process registry: %w", err)
		}
	}
	return killed, nil
}

// LoadRecords 读取共享存储中的进程表
func LoadRecords(ctx context.Context, st store.Store) ([]model.ProcessRecord, error) {
	var records []model.ProcessRecord
	if err := st.Get(ctx, consts.KEY_WORKER_PID, &records); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load process registry: %w", err)
	}
	return records, nil
}
