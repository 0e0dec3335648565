package model

// Role 被托管进程的类型
type Role string

const (
	RoleCustomWorker Role = "custom-worker"
	RoleCronWorker   Role = "cron-worker"
)

// ProcessRecord 一个已拉起的子进程
type ProcessRecord struct {
	PID        int    `json:"pid"`
	WorkerName string `json:"worker_name"`
	Role       Role   `json:"role"`
}

// CronSet worker 名称到配置的映射, 即 queue / ready 两个集合
type CronSet map[string]WorkerConfig
