package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/sandy1219/ypf/application/config"
)

const appYAML = `
logging:
  enabled: true
http_server:
  enabled: true
  address: ":8080"
biz_config:
  server:
    listen: 127.0.0.1:9100
  engine:
    worker_num: 3
  store:
    driver: sqlite
    sqlite_path: /tmp/x.db
`

func TestLoadThroughConfigManager(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(appYAML), 0o644))

	biz := &BizConfig{}
	cm := appconfig.NewConfigManagerWithBiz("test", path, biz)
	cm.SetRole("worker")
	require.NoError(t, cm.LoadConfig())

	cfg := cm.GetConfig()
	got, err := FromApp(cfg)
	require.NoError(t, err)
	assert.Same(t, biz, got)
	assert.Equal(t, 3, got.Engine.WorkerNum)
	assert.Equal(t, 4, got.Engine.TaskWorkerNum)
	assert.Equal(t, DriverSQLite, got.Store.Driver)
	assert.Equal(t, "worker", cfg.Runtime.Role)

	// server.listen 覆盖 http_server.address
	assert.Equal(t, "127.0.0.1:9100", cfg.HTTPServer.Address)
}

func TestLoadFailsWithoutServerSection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  enabled: true\nbiz_config:\n  workers_dir: w\n"), 0o644))

	cm := appconfig.NewConfigManagerWithBiz("test", path, &BizConfig{})
	err := cm.LoadConfig()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrServerConfigMissing)
}

func TestFromAppRejectsForeignBiz(t *testing.T) {
	_, err := FromApp(&appconfig.AppConfig{BizConfig: map[string]any{}})
	assert.Error(t, err)
	_, err = FromApp(nil)
	assert.Error(t, err)
}
