package worker

import (
	"context"
	"io"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/sandy1219/ypf/application/components/prometheus"
	appconsts "github.com/sandy1219/ypf/application/consts"
	"github.com/sandy1219/ypf/application/core"
	"github.com/sandy1219/ypf/internal/config"
	"github.com/sandy1219/ypf/internal/consts"
	"github.com/sandy1219/ypf/internal/crontab"
	"github.com/sandy1219/ypf/internal/engine"
	"github.com/sandy1219/ypf/internal/handler"
	"github.com/sandy1219/ypf/internal/model"
	"github.com/sandy1219/ypf/internal/store"
)

// CronRunner cron worker 进程: 读取完整的 worker 列表并在 0 号 loop 上运行调度器
type CronRunner struct {
	*core.BaseComponent

	Engine   *engine.Server        `infra:"dep:engine"`
	Handlers *handler.Registry     `infra:"dep:handler_registry"`
	Store    store.Store           `infra:"dep:state_store"`
	Metrics  *prometheus.Component `infra:"dep:prometheus?"`

	server *config.ServerConfig
	tick   time.Duration
	in     io.Reader

	workers   []model.WorkerConfig
	scheduler *crontab.Scheduler
	opts      []crontab.Option
}

func NewCronRunner(server *config.ServerConfig, tick time.Duration, in io.Reader, opts ...crontab.Option) *CronRunner {
	return &CronRunner{
		BaseComponent: core.NewBaseComponent(consts.COMP_CRON_WORKER, appconsts.COMPONENT_LOGGING),
		server:        server,
		tick:          tick,
		in:            in,
		opts:          opts,
	}
}

func (r *CronRunner) Start(ctx context.Context) error {
	if err := r.BaseComponent.Start(ctx); err != nil {
		return err
	}
	if err := decodePayload(r.in, &r.workers); err != nil {
		return err
	}
	r.Engine.SetProcessName(engine.MasterSlot, r.server.CronWorkerProcessName)

	loop := r.Engine.Loop(0)
	if loop == nil {
		return engine.ErrLoopClosed
	}
	opts := r.opts
	if r.Metrics != nil {
		opts = append([]crontab.Option{crontab.WithFiresCounter(r.firesCounter())}, opts...)
	}
	r.scheduler = crontab.NewScheduler(r.Store, r.Handlers, loop, r.tick, opts...)
	return r.scheduler.Start(engine.WithLoop(context.WithoutCancel(ctx), loop), r.workers)
}

func (r *CronRunner) firesCounter() *prom.CounterVec {
	return r.Metrics.NewCounter(consts.METRIC_CRON_FIRES, "Crontab jobs fired.", []string{"worker", "status"})
}

func (r *CronRunner) Stop(ctx context.Context) error {
	if r.scheduler != nil {
		r.scheduler.Stop()
	}
	return r.BaseComponent.Stop(ctx)
}

func (r *CronRunner) Workers() []model.WorkerConfig { return r.workers }
