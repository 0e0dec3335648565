package logging

import "time"

// LoggingConfig 日志配置
type LoggingConfig struct {
	Enabled      bool          `yaml:"enabled" json:"enabled"`
	Level        string        `yaml:"level" json:"level"`
	Format       string        `yaml:"format" json:"format"`
	Output       string        `yaml:"output" json:"output"`
	FileConfig   *FileConfig   `yaml:"file_config,omitempty" json:"file_config,omitempty"`
	RotateConfig *RotateConfig `yaml:"rotate_config,omitempty" json:"rotate_config,omitempty"`
}

// FileConfig 文件输出配置; 子进程会在文件名后追加角色, 避免多个进程写同一个文件
type FileConfig struct {
	Dir      string `yaml:"dir" json:"dir"`
	Filename string `yaml:"filename" json:"filename"`
}

const (
	RotateModeSize     = "size"
	RotateModeInterval = "interval"
)

// RotateConfig 日志轮转配置
type RotateConfig struct {
	Enabled        bool          `yaml:"enabled" json:"enabled"`
	Mode           string        `yaml:"mode" json:"mode"`                       // size | interval
	MaxSizeMB      int           `yaml:"max_size_mb" json:"max_size_mb"`         // size 模式
	RotateInterval time.Duration `yaml:"rotate_interval" json:"rotate_interval"` // interval 模式 (>0)
	MaxAge         time.Duration `yaml:"max_age" json:"max_age"`
	CleanupEnabled bool          `yaml:"cleanup_enabled" json:"cleanup_enabled"`
}
