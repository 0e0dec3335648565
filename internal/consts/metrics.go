package consts

const (
	METRIC_SPAWN_FAILURES = "spawn_failures_total"
	METRIC_CRON_FIRES     = "cron_fires_total"
	METRIC_JOIN_DROPPED   = "join_dropped_total"
	METRIC_TASKS          = "tasks_total"
	METRIC_TASK_DURATION  = "task_duration_seconds"
)
