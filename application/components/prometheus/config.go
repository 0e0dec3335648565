package prometheus

import "time"

// Config for Prometheus metrics exporter.
// master 进程监听 Address 暴露 /metrics; 子进程无法共用端口, 配置 PushURL 后定时推送到 Pushgateway。
type Config struct {
	Enabled          bool          `yaml:"enabled" json:"enabled"`
	Address          string        `yaml:"address" json:"address"` // e.g. ":9090"
	Path             string        `yaml:"path" json:"path"`       // default /metrics
	Namespace        string        `yaml:"namespace" json:"namespace"`
	Subsystem        string        `yaml:"subsystem" json:"subsystem"`
	CollectGoMetrics *bool         `yaml:"collect_go_metrics" json:"collect_go_metrics"` // default true
	CollectProcess   *bool         `yaml:"collect_process" json:"collect_process"`       // default true
	PushURL          string        `yaml:"push_url" json:"push_url"`
	PushInterval     time.Duration `yaml:"push_interval" json:"push_interval"`
}
