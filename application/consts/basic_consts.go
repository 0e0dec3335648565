package consts

const (
	ENV_PRODUCTION  = "production"
	ENV_DEVELOPMENT = "development"
	ENV_TEST        = "test"

	DEFAULT_CONFIG_PATH = "conf/config.yaml"

	KEY_TraceID = "trace_id"
	KEY_Role    = "role"
)

// 进程角色: 同一个二进制以不同子命令启动后承担不同职责
const (
	ROLE_MASTER = "master"
	ROLE_WORKER = "worker"
	ROLE_CRON   = "cron"
)
