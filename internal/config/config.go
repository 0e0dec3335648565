package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	appconfig "github.com/sandy1219/ypf/application/config"
)

const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
	DriverSQLite = "sqlite"
)

var ErrServerConfigMissing = errors.New("server config content empty")

// ServerConfig 服务进程: 监听地址、pid 文件以及各类进程名模板
type ServerConfig struct {
	Listen                string `yaml:"listen"`
	PidFile               string `yaml:"pid_file"`
	MasterProcessName     string `yaml:"master_process_name"`
	ManagerProcessName    string `yaml:"manager_process_name"`
	WorkerProcessName     string `yaml:"worker_process_name"`      // %d 为 worker id
	TaskWorkerProcessName string `yaml:"task_worker_process_name"` // %d 为 worker id
	CronWorkerProcessName string `yaml:"cron_worker_process_name"`
}

type EngineConfig struct {
	WorkerNum     int `yaml:"worker_num"`
	TaskWorkerNum int `yaml:"task_worker_num"`
	TaskQueueSize int `yaml:"task_queue_size"`
}

type StoreConfig struct {
	Driver     string        `yaml:"driver"`
	Prefix     string        `yaml:"prefix"`
	SQLitePath string        `yaml:"sqlite_path"`
	OpTimeout  time.Duration `yaml:"op_timeout"`
}

type CrontabConfig struct {
	TickInterval time.Duration `yaml:"tick_interval"`
}

// BizConfig biz_config 小节
type BizConfig struct {
	Server     *ServerConfig `yaml:"server"`
	Engine     EngineConfig  `yaml:"engine"`
	WorkersDir string        `yaml:"workers_dir"`
	Store      StoreConfig   `yaml:"store"`
	Crontab    CrontabConfig `yaml:"crontab"`
}

var bizConfig = &BizConfig{}

// GetBizConfig 返回进程内唯一的业务配置指针, 交给 application 填充
func GetBizConfig() *BizConfig {
	return bizConfig
}

// FromApp 从已加载的 AppConfig 取出业务配置
func FromApp(cfg *appconfig.AppConfig) (*BizConfig, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app config nil")
	}
	biz, ok := cfg.BizConfig.(*BizConfig)
	if !ok || biz == nil {
		return nil, fmt.Errorf("biz_config has unexpected type %T", cfg.BizConfig)
	}
	return biz, nil
}

// Validate 校验并补全默认值; server 小节缺失视为致命错误
func (b *BizConfig) Validate() error {
	if b.Server == nil {
		return ErrServerConfigMissing
	}
	b.ApplyDefaults()

	if b.Engine.WorkerNum < 1 {
		return fmt.Errorf("engine.worker_num must be >= 1, got %d", b.Engine.WorkerNum)
	}
	if b.Engine.TaskWorkerNum < 1 {
		return fmt.Errorf("engine.task_worker_num must be >= 1, got %d", b.Engine.TaskWorkerNum)
	}
	switch b.Store.Driver {
	case DriverMemory, DriverRedis:
	case DriverSQLite:
		if b.Store.SQLitePath == "" {
			return fmt.Errorf("store.sqlite_path required for sqlite driver")
		}
	default:
		return fmt.Errorf("store.driver %q not supported", b.Store.Driver)
	}
	for name, tpl := range map[string]string{
		"worker_process_name":      b.Server.WorkerProcessName,
		"task_worker_process_name": b.Server.TaskWorkerProcessName,
	} {
		if strings.Count(tpl, "%d") != 1 {
			return fmt.Errorf("server.%s must contain exactly one %%d: %q", name, tpl)
		}
	}
	return nil
}

// ListenAddress server.listen 即 http_server 的监听地址
func (b *BizConfig) ListenAddress() string {
	if b.Server == nil {
		return ""
	}
	return b.Server.Listen
}

func (b *BizConfig) ApplyDefaults() {
	s := b.Server
	if s == nil {
		s = &ServerConfig{}
		b.Server = s
	}
	if s.Listen == "" {
		s.Listen = "127.0.0.1:9002"
	}
	if s.PidFile == "" {
		s.PidFile = "/tmp/ypf.pid"
	}
	if s.MasterProcessName == "" {
		s.MasterProcessName = "ypf-master"
	}
	if s.ManagerProcessName == "" {
		s.ManagerProcessName = "ypf-manager"
	}
	if s.WorkerProcessName == "" {
		s.WorkerProcessName = "ypf-worker-%d"
	}
	if s.TaskWorkerProcessName == "" {
		s.TaskWorkerProcessName = "ypf-task-worker-%d"
	}
	if s.CronWorkerProcessName == "" {
		s.CronWorkerProcessName = "ypf-cron-worker"
	}

	if b.Engine.WorkerNum == 0 {
		b.Engine.WorkerNum = 2
	}
	if b.Engine.TaskWorkerNum == 0 {
		b.Engine.TaskWorkerNum = 4
	}
	if b.Engine.TaskQueueSize <= 0 {
		b.Engine.TaskQueueSize = 1024
	}

	if b.WorkersDir == "" {
		b.WorkersDir = "./conf/workers"
	}
	if b.Store.Driver == "" {
		b.Store.Driver = DriverMemory
	}
	if b.Store.Prefix == "" {
		b.Store.Prefix = "ypf:"
	}
	if b.Store.OpTimeout <= 0 {
		b.Store.OpTimeout = 3 * time.Second
	}
	if b.Crontab.TickInterval <= 0 {
		b.Crontab.TickInterval = time.Second
	}
}
