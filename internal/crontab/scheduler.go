// Package crontab cron worker 进程内的调度器。
//
// 所有启用了 crontab 的 worker 要么在 queue (等待排期) 要么在 ready (已排期、等待触发),
// 两个集合都保存在共享存储里, 每次变更用一次 SetMulti 同时写入。
package crontab

import (
	"context"
	"errors"
	"fmt"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/sandy1219/ypf/application/components/logging"
	"github.com/sandy1219/ypf/internal/consts"
	"github.com/sandy1219/ypf/internal/engine"
	"github.com/sandy1219/ypf/internal/model"
	"github.com/sandy1219/ypf/internal/store"
)

// Invoker 按名称调用 action
type Invoker interface {
	Dispatch(ctx context.Context, action string, args map[string]any) (any, error)
}

type Option func(*Scheduler)

// WithClock 替换时间源
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithAfterFunc 替换一次性定时器; fn 需要在 loop 上执行
func WithAfterFunc(after func(d time.Duration, fn func())) Option {
	return func(s *Scheduler) { s.afterFunc = after }
}

// WithFiresCounter 触发次数计数器, 标签 worker/status
func WithFiresCounter(c *prom.CounterVec) Option {
	return func(s *Scheduler) { s.fires = c }
}

type Scheduler struct {
	store   store.Store
	invoker Invoker
	loop    *engine.Loop
	tick    time.Duration

	now       func() time.Time
	afterFunc func(d time.Duration, fn func())
	fires     *prom.CounterVec
	tracer    trace.Tracer

	// pending 已排期、定时器尚未触发的任务; 只在 loop 上读写
	pending map[string]struct{}

	stopTick func()
}

func NewScheduler(st store.Store, inv Invoker, loop *engine.Loop, tick time.Duration, opts ...Option) *Scheduler {
	if tick <= 0 {
		tick = time.Second
	}
	s := &Scheduler{
		store:   st,
		invoker: inv,
		loop:    loop,
		tick:    tick,
		now:     time.Now,
		tracer:  otel.Tracer("ypf/crontab"),
		pending: map[string]struct{}{},
	}
	s.afterFunc = func(d time.Duration, fn func()) { s.loop.After(d, fn) }
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start 写入初始 queue (只含启用且带 crontab 的 worker) 并清空 ready, 然后开始周期扫描
func (s *Scheduler) Start(ctx context.Context, workers []model.WorkerConfig) error {
	queue := model.CronSet{}
	for _, w := range workers {
		if w.IsCronJob() {
			queue[w.Name] = w
		}
	}
	if err := s.save(ctx, queue, model.CronSet{}); err != nil {
		return fmt.Errorf("init cron queue: %w", err)
	}
	logging.Info(ctx, "crontab scheduler started",
		zap.Int("jobs", len(queue)),
		zap.Duration("tick", s.tick),
	)

	s.stopTick = s.loop.Tick(s.tick, func() {
		if err := s.Pass(ctx); err != nil {
			logging.Error(ctx, "crontab pass failed", zap.Error(err))
		}
	})
	return nil
}

func (s *Scheduler) Stop() {
	if s.stopTick != nil {
		s.stopTick()
	}
}

// Pass 一次扫描: queue 中 delay >= 1 的任务排期并移入 ready, 其余留在 queue。
// ready 里没有对应定时器的任务 (上次 fire 回写失败) 先放回 queue 重新排期
func (s *Scheduler) Pass(ctx context.Context) error {
	queue, ready, err := s.load(ctx)
	if err != nil {
		return err
	}
	changed := false
	for name, w := range ready {
		if _, ok := s.pending[name]; ok {
			continue
		}
		delete(ready, name)
		queue[name] = w
		changed = true
		logging.Warn(ctx, "cron job left in ready without a timer, requeued", zap.String("worker", name))
	}

	now := s.now()
	for name, w := range queue {
		if w.Crontab == nil {
			continue
		}
		delay := Delay(w.Crontab.String(), now)
		if delay < 1 {
			continue
		}
		delete(queue, name)
		ready[name] = w
		s.pending[name] = struct{}{}
		changed = true

		name, w := name, w
		s.afterFunc(time.Duration(delay)*time.Second, func() { s.fire(ctx, name, w) })
		logging.Debug(ctx, "cron job armed", zap.String("worker", name), zap.Int("delay_sec", delay))
	}
	if !changed {
		return nil
	}
	return s.save(ctx, queue, ready)
}

// fire 执行 action, 无论成败都把任务从 ready 移回 queue; 回写失败时留给下一次 Pass 处理
func (s *Scheduler) fire(ctx context.Context, name string, w model.WorkerConfig) {
	delete(s.pending, name)

	ctx, span := s.tracer.Start(ctx, "cron "+name, trace.WithAttributes(
		attribute.String("ypf.worker", name),
		attribute.String("ypf.action", w.Action),
	))
	defer span.End()

	status := "ok"
	if _, err := s.invoker.Dispatch(ctx, w.Action, w.ActionArgs()); err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logging.Error(ctx, "cron action failed",
			zap.String("worker", name),
			zap.String("action", w.Action),
			zap.Error(err),
		)
	} else {
		logging.Info(ctx, "cron action done", zap.String("worker", name), zap.String("action", w.Action))
	}
	if s.fires != nil {
		s.fires.WithLabelValues(name, status).Inc()
	}

	queue, ready, err := s.load(ctx)
	if err != nil {
		logging.Error(ctx, "reload cron sets failed, requeue deferred to next pass", zap.String("worker", name), zap.Error(err))
		return
	}
	delete(ready, name)
	queue[name] = w
	if err := s.save(ctx, queue, ready); err != nil {
		logging.Error(ctx, "requeue cron job failed, deferred to next pass", zap.String("worker", name), zap.Error(err))
	}
}

func (s *Scheduler) load(ctx context.Context) (model.CronSet, model.CronSet, error) {
	return LoadSets(ctx, s.store)
}

func (s *Scheduler) save(ctx context.Context, queue, ready model.CronSet) error {
	return s.store.SetMulti(ctx, map[string]any{
		consts.KEY_WORKER_CRON_QUEUE: queue,
		consts.KEY_WORKER_CRON_READY: ready,
	})
}

// LoadSets 从存储读取 queue / ready, 供其它进程展示
func LoadSets(ctx context.Context, st store.Store) (queue, ready model.CronSet, err error) {
	if queue, err = loadSet(ctx, st, consts.KEY_WORKER_CRON_QUEUE); err != nil {
		return nil, nil, err
	}
	if ready, err = loadSet(ctx, st, consts.KEY_WORKER_CRON_READY); err != nil {
		return nil, nil, err
	}
	return queue, ready, nil
}

func loadSet(ctx context.Context, st store.Store, key string) (model.CronSet, error) {
	set := model.CronSet{}
	if err := st.Get(ctx, key, &set); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.CronSet{}, nil
		}
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	if set == nil {
		set = model.CronSet{}
	}
	return set, nil
}
