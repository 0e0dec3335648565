package telemetry

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"

	"github.com/sandy1219/ypf/application/consts"
)

func attrs(t *testing.T, role string) map[attribute.Key]attribute.Value {
	t.Helper()
	res, err := newResource(context.Background(), "ypf", role)
	require.NoError(t, err)
	out := map[attribute.Key]attribute.Value{}
	for _, kv := range res.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestResourceCarriesRole(t *testing.T) {
	pid := strconv.Itoa(os.Getpid())

	cron := attrs(t, consts.ROLE_CRON)
	assert.Equal(t, "ypf", cron["service.name"].AsString())
	assert.Equal(t, "ypf", cron["service.namespace"].AsString())
	assert.Equal(t, "cron-"+pid, cron["service.instance.id"].AsString())
	assert.Equal(t, consts.ROLE_CRON, cron["ypf.role"].AsString())
	assert.True(t, cron["ypf.supervised"].AsBool())

	master := attrs(t, "")
	assert.Equal(t, consts.ROLE_MASTER, master["ypf.role"].AsString())
	assert.Equal(t, "master-"+pid, master["service.instance.id"].AsString())
	assert.False(t, master["ypf.supervised"].AsBool())
}

func TestStartStdoutExporter(t *testing.T) {
	out := filepath.Join(t.TempDir(), "otel.jsonl")
	tc := NewTelemetryComponent(&Config{Enabled: true, ServiceName: "ypf", StdoutFile: out}, consts.ROLE_WORKER)
	ctx := context.Background()

	require.NoError(t, tc.Start(ctx))
	require.NoError(t, tc.HealthCheck())
	assert.Equal(t, ExporterStdout, tc.cfg.Exporter)

	_, span := tc.tp.Tracer("test").Start(ctx, "cron C")
	span.End()
	require.NoError(t, tc.Stop(ctx))

	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "cron C")
	assert.Contains(t, string(raw), "worker-"+strconv.Itoa(os.Getpid()))
}

func TestStartRejectsBadConfig(t *testing.T) {
	ctx := context.Background()
	assert.Error(t, NewTelemetryComponent(nil, "").Start(ctx))
	assert.Error(t, NewTelemetryComponent(&Config{Enabled: true}, "").Start(ctx))
	assert.Error(t, NewTelemetryComponent(&Config{Enabled: true, ServiceName: "ypf", Exporter: ExporterOTLP}, "").Start(ctx))
}
