package redis

import (
	"fmt"
	"strings"
	"time"
)

type Mode string

const (
	ModeSingle   Mode = "single"
	ModeCluster  Mode = "cluster"
	ModeSentinel Mode = "sentinel"
)

// Config 状态存储选用 redis 驱动时, master 与所有子进程各建一个客户端。
// cluster 模式下 store.prefix 需带 hash tag (如 "{ypf}:"), cron 的 queue/ready 才能一次 MSET 写入
type Config struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	Mode    Mode `yaml:"mode" json:"mode"`

	Addresses      []string `yaml:"addresses" json:"addresses"`
	Username       string   `yaml:"username" json:"username"`
	Password       string   `yaml:"password" json:"password"`
	DB             int      `yaml:"db" json:"db"`
	SentinelMaster string   `yaml:"sentinel_master" json:"sentinel_master"`
	// ClientName 为空时按进程角色生成, CLIENT LIST 里可区分 master / worker / cron
	ClientName string `yaml:"client_name" json:"client_name"`

	PoolSize     int `yaml:"pool_size" json:"pool_size"`
	MinIdleConns int `yaml:"min_idle_conns" json:"min_idle_conns"`

	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" json:"conn_max_idle_time"`

	DialTimeout  time.Duration `yaml:"dial_timeout" json:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
}

func (c *Config) validate() error {
	if len(c.Addresses) == 0 {
		return fmt.Errorf("redis addresses empty")
	}
	switch Mode(strings.ToLower(string(c.Mode))) {
	case ModeSingle, ModeCluster:
	case ModeSentinel:
		if c.SentinelMaster == "" {
			return fmt.Errorf("sentinel mode requires sentinel_master")
		}
	default:
		return fmt.Errorf("unknown redis mode: %s", c.Mode)
	}
	if c.Mode == ModeCluster && c.DB != 0 {
		return fmt.Errorf("cluster mode only supports db 0, got %d", c.DB)
	}
	return nil
}
