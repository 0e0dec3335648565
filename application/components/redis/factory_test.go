package redis

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandy1219/ypf/application/consts"
)

func TestCreateAppliesRoleDefaults(t *testing.T) {
	cfg := &Config{Enabled: true, Mode: "SENTINEL", SentinelMaster: "mymaster"}
	comp, err := NewFactory().Create(cfg, consts.ROLE_CRON)
	require.NoError(t, err)
	assert.Equal(t, consts.COMPONENT_REDIS, comp.Name())

	assert.Equal(t, ModeSentinel, cfg.Mode)
	assert.Equal(t, []string{"127.0.0.1:26379"}, cfg.Addresses)
	assert.Equal(t, fmt.Sprintf("ypf-cron-%d", os.Getpid()), cfg.ClientName)
	assert.Equal(t, 8, cfg.PoolSize)

	named := &Config{Enabled: true, ClientName: "fixed"}
	_, err = NewFactory().Create(named, "")
	require.NoError(t, err)
	assert.Equal(t, "fixed", named.ClientName)
	assert.Equal(t, ModeSingle, named.Mode)
}

func TestCreateRejectsBadConfig(t *testing.T) {
	f := NewFactory()
	_, err := f.Create(nil, "")
	assert.Error(t, err)
	_, err = f.Create(&Config{Enabled: true, Mode: "sentinel"}, "")
	assert.Error(t, err)
	_, err = f.Create(&Config{Enabled: true, Mode: "ring"}, "")
	assert.Error(t, err)
	_, err = f.Create(&Config{Enabled: true, Mode: ModeCluster, DB: 2}, "")
	assert.Error(t, err)
}

func TestStartPingsServer(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := &Config{Enabled: true, Addresses: []string{mr.Addr()}}
	comp, err := NewFactory().Create(cfg, consts.ROLE_WORKER)
	require.NoError(t, err)
	rc := comp.(*RedisComponent)

	ctx := context.Background()
	require.NoError(t, rc.Start(ctx))
	require.NoError(t, rc.HealthCheck())
	require.NoError(t, rc.Client().Set(ctx, "k", "v", 0).Err())
	got, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
	require.NoError(t, rc.Stop(ctx))
}
