package prometheus

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/sandy1219/ypf/application/components/logging"
	"github.com/sandy1219/ypf/application/consts"
	"github.com/sandy1219/ypf/application/core"
)

const pushJob = "ypf"

type Component struct {
	*core.BaseComponent
	cfg      *Config
	role     string
	serve    bool
	server   *http.Server
	registry *prometheus.Registry
	pusher   *push.Pusher

	stopPush chan struct{}
	pushWG   sync.WaitGroup
}

func NewComponent(cfg *Config, role string, serve bool) *Component {
	return &Component{
		BaseComponent: core.NewBaseComponent(consts.COMPONENT_PROMETHEUS, consts.COMPONENT_LOGGING),
		cfg:           cfg,
		role:          role,
		serve:         serve,
		registry:      prometheus.NewRegistry(),
	}
}

func (c *Component) Start(ctx context.Context) error {
	if err := c.BaseComponent.Start(ctx); err != nil {
		return err
	}
	if *c.cfg.CollectGoMetrics {
		_ = c.registry.Register(collectors.NewGoCollector())
	}
	if *c.cfg.CollectProcess {
		_ = c.registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	if c.serve {
		mux := http.NewServeMux()
		mux.Handle(c.cfg.Path, promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}))
		c.server = &http.Server{
			Addr:              c.cfg.Address,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logging.Infof(ctx, "prometheus metrics listening on %s%s", c.cfg.Address, c.cfg.Path)
			if err := c.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.Errorf(ctx, "prometheus server error: %v", err)
			}
		}()
	} else if c.cfg.PushURL != "" {
		c.pusher = push.New(c.cfg.PushURL, pushJob).
			Gatherer(c.registry).
			Grouping(consts.KEY_Role, c.role).
			Grouping("instance", strconv.Itoa(os.Getpid()))
		c.stopPush = make(chan struct{})
		c.pushWG.Add(1)
		go c.pushLoop(ctx)
	}

	return nil
}

func (c *Component) pushLoop(ctx context.Context) {
	defer c.pushWG.Done()
	ticker := time.NewTicker(c.cfg.PushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopPush:
			return
		case <-ticker.C:
			if err := c.pusher.Push(); err != nil {
				logging.Warnf(ctx, "prometheus push failed: %v", err)
			}
		}
	}
}

func (c *Component) Stop(ctx context.Context) error {
	defer c.BaseComponent.Stop(ctx)
	if c.stopPush != nil {
		close(c.stopPush)
		c.pushWG.Wait()
		// 退出前再推一次, 短命进程也能留下数据
		if err := c.pusher.Push(); err != nil {
			logging.Warnf(ctx, "prometheus final push failed: %v", err)
		}
	}
	if c.server == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := c.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("prometheus server shutdown: %w", err)
	}
	logging.Info(ctx, "prometheus component stopped")
	return nil
}

func (c *Component) fqName(name string) string {
	return prometheus.BuildFQName(c.cfg.Namespace, c.cfg.Subsystem, name)
}

// NewCounter 注册计数器; 同名重复注册时返回已存在的实例
func (c *Component) NewCounter(name, help string, labels []string) *prometheus.CounterVec {
	cv := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: c.fqName(name),
		Help: help,
	}, labels)
	if err := c.registry.Register(cv); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing
			}
		}
	}
	return cv
}

func (c *Component) NewHistogram(name, help string, labels []string, buckets []float64) *prometheus.HistogramVec {
	hv := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    c.fqName(name),
		Help:    help,
		Buckets: buckets,
	}, labels)
	if err := c.registry.Register(hv); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing
			}
		}
	}
	return hv
}
