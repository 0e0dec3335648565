package consts

// 共享存储中的 key, 实际写入时会加上 store.prefix
const (
	KEY_WORKER_PID        = "worker_pid"
	KEY_WORKER_CRON_QUEUE = "worker_cron_queue"
	KEY_WORKER_CRON_READY = "worker_cron_ready"
	KEY_FANIN_PREFIX      = "fanin:"
	KEY_HEARTBEAT_PREFIX  = "heartbeat:"
)

// 子命令, 同时也是子进程的角色
const (
	CMD_SERVE  = "serve"
	CMD_WORKER = "worker"
	CMD_CRON   = "cron"
)

// 内置 handler 名称
const (
	HANDLER_LOG       = "log"
	HANDLER_HEARTBEAT = "heartbeat"
	HANDLER_HTTP      = "http"
	HANDLER_SQUARE    = "square"
	HANDLER_SUM       = "sum"
)

// 传给 action 的固定参数
const (
	ARG_WORKER_NAME = "worker_name"
	ARG_TASK_ID     = "task_id"
	ARG_RESULT      = "result"
)
