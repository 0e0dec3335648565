package model

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sandy1219/ypf/internal/consts"
)

// Crontab 保留配置里的原始文本: 5 段 cron 表达式或秒数
type Crontab string

// UnmarshalYAML 接受字符串或整数标量
func (c *Crontab) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("crontab must be a scalar, got yaml kind %d at line %d", node.Kind, node.Line)
	}
	*c = Crontab(node.Value)
	return nil
}

// UnmarshalJSON 接受字符串或数字
func (c *Crontab) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*c = Crontab(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("crontab must be a string or number: %w", err)
	}
	*c = Crontab(n.String())
	return nil
}

func (c Crontab) String() string { return strings.TrimSpace(string(c)) }

// WorkerConfig 一个 worker 描述文件; 加载后不再修改
type WorkerConfig struct {
	Name    string         `yaml:"-" json:"name"`
	Status  bool           `yaml:"status" json:"status"`
	Action  string         `yaml:"action" json:"action"`
	Crontab *Crontab       `yaml:"crontab,omitempty" json:"crontab,omitempty"`
	Extra   map[string]any `yaml:",inline" json:"extra,omitempty"`
}

// HasCrontab 只要出现 crontab 字段就算, 值是否合法由调度器判断
func (w WorkerConfig) HasCrontab() bool {
	return w.Crontab != nil
}

// IsCustomWorker 启用且没有 crontab: 需要独立进程
func (w WorkerConfig) IsCustomWorker() bool {
	return w.Status && !w.HasCrontab()
}

// IsCronJob 启用且带 crontab: 交给 cron worker 调度
func (w WorkerConfig) IsCronJob() bool {
	return w.Status && w.HasCrontab()
}

// ActionArgs action 调用参数: {worker_name} 加上透传字段
func (w WorkerConfig) ActionArgs() map[string]any {
	args := make(map[string]any, len(w.Extra)+1)
	for k, v := range w.Extra {
		args[k] = v
	}
	args[consts.ARG_WORKER_NAME] = w.Name
	return args
}
