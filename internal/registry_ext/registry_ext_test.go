package registry_ext_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sandy1219/ypf/application/autowire"
	"github.com/sandy1219/ypf/application/config"
	appconsts "github.com/sandy1219/ypf/application/consts"
	"github.com/sandy1219/ypf/application/core"
	"github.com/sandy1219/ypf/application/registry"
	"github.com/sandy1219/ypf/internal/api"
	bizConfig "github.com/sandy1219/ypf/internal/config"
	"github.com/sandy1219/ypf/internal/consts"
	"github.com/sandy1219/ypf/internal/dispatch"
	"github.com/sandy1219/ypf/internal/lifecycle"
	_ "github.com/sandy1219/ypf/internal/registry_ext" // builders registered via init
	"github.com/sandy1219/ypf/internal/worker"
)

const testConfig = `
logging:
  enabled: true
  level: error
http_server:
  enabled: true
biz_config:
  server:
    listen: 127.0.0.1:0
  workers_dir: ./workers
  store:
    driver: memory
`

func buildContainer(t *testing.T, role string) *core.Container {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(testConfig), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cm := config.NewConfigManagerWithBiz(appconsts.ENV_TEST, path, &bizConfig.BizConfig{})
	cm.SetRole(role)
	if err := cm.LoadConfig(); err != nil {
		t.Fatalf("load config failed: %v", err)
	}

	c := core.NewContainer()
	if err := registry.BuildAndRegisterAll(cm.GetConfig(), c); err != nil {
		t.Fatalf("registry build failed: %v", err)
	}
	if err := autowire.InjectAll(c); err != nil {
		t.Fatalf("autowire failed: %v", err)
	}
	return c
}

func startOrder(t *testing.T, c *core.Container) map[string]int {
	t.Helper()
	ordered, err := c.ValidateDependencies()
	if err != nil {
		t.Fatalf("dependency validation failed: %v", err)
	}
	pos := make(map[string]int, len(ordered))
	for i, comp := range ordered {
		pos[comp.Name()] = i
	}
	return pos
}

func TestMasterComponents(t *testing.T) {
	c := buildContainer(t, appconsts.ROLE_MASTER)

	d, err := core.ResolveAs[*dispatch.Dispatcher](c, consts.COMP_DISPATCHER)
	if err != nil {
		t.Fatalf("resolve dispatcher: %v", err)
	}
	if d.Handlers == nil || d.Store == nil {
		t.Fatalf("dispatcher dependencies not injected: handlers=%v store=%v", d.Handlers, d.Store)
	}

	r, err := core.ResolveAs[*lifecycle.Router](c, consts.COMP_LIFECYCLE_ROUTER)
	if err != nil {
		t.Fatalf("resolve router: %v", err)
	}
	if r.Dispatcher == nil || r.Supervisor == nil {
		t.Fatalf("router dependencies not injected: dispatcher=%v supervisor=%v", r.Dispatcher, r.Supervisor)
	}

	ctrl, err := core.ResolveAs[*api.Controller](c, consts.COMP_API_CONTROLLER)
	if err != nil {
		t.Fatalf("resolve controller: %v", err)
	}
	if ctrl.Engine == nil || ctrl.Router == nil || ctrl.Supervisor == nil {
		t.Fatalf("controller dependencies not injected")
	}

	pos := startOrder(t, c)
	before := [][2]string{
		{consts.COMP_STATE_STORE, consts.COMP_HANDLER_REGISTRY},
		{consts.COMP_DISPATCHER, consts.COMP_LIFECYCLE_ROUTER},
		{consts.COMP_SUPERVISOR, consts.COMP_LIFECYCLE_ROUTER},
		{consts.COMP_LIFECYCLE_ROUTER, consts.COMP_ENGINE},
		{consts.COMP_ENGINE, consts.COMP_API_CONTROLLER},
		{consts.COMP_API_CONTROLLER, appconsts.COMPONENT_HTTP_SERVER},
	}
	for _, pair := range before {
		a, okA := pos[pair[0]]
		b, okB := pos[pair[1]]
		if !okA || !okB {
			t.Fatalf("components missing: %s=%v %s=%v", pair[0], okA, pair[1], okB)
		}
		if a >= b {
			t.Errorf("%s should start before %s", pair[0], pair[1])
		}
	}
	if _, ok := pos[consts.COMP_CUSTOM_WORKER]; ok {
		t.Errorf("custom worker must not be built in master")
	}
}

func TestWorkerComponents(t *testing.T) {
	c := buildContainer(t, appconsts.ROLE_WORKER)
	pos := startOrder(t, c)

	for _, name := range []string{consts.COMP_SUPERVISOR, consts.COMP_API_CONTROLLER, appconsts.COMPONENT_HTTP_SERVER, consts.COMP_CRON_WORKER} {
		if _, ok := pos[name]; ok {
			t.Errorf("%s must not be built for worker role", name)
		}
	}
	runner, err := core.ResolveAs[*worker.CustomRunner](c, consts.COMP_CUSTOM_WORKER)
	if err != nil {
		t.Fatalf("resolve custom worker: %v", err)
	}
	if runner.Engine == nil || runner.Handlers == nil {
		t.Fatalf("custom worker dependencies not injected")
	}
	if pos[consts.COMP_ENGINE] >= pos[consts.COMP_CUSTOM_WORKER] {
		t.Errorf("engine should start before custom worker")
	}

	r, err := core.ResolveAs[*lifecycle.Router](c, consts.COMP_LIFECYCLE_ROUTER)
	if err != nil {
		t.Fatalf("resolve router: %v", err)
	}
	if r.Supervisor != nil {
		t.Errorf("router in worker must not have a supervisor")
	}
}

func TestCronComponents(t *testing.T) {
	c := buildContainer(t, appconsts.ROLE_CRON)
	pos := startOrder(t, c)

	runner, err := core.ResolveAs[*worker.CronRunner](c, consts.COMP_CRON_WORKER)
	if err != nil {
		t.Fatalf("resolve cron worker: %v", err)
	}
	if runner.Store == nil || runner.Handlers == nil || runner.Engine == nil {
		t.Fatalf("cron worker dependencies not injected")
	}
	if runner.Metrics != nil {
		t.Errorf("prometheus disabled, metrics should stay nil")
	}
	if _, ok := pos[consts.COMP_CUSTOM_WORKER]; ok {
		t.Errorf("custom worker must not be built for cron role")
	}
}
