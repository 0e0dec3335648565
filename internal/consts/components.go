package consts

const (
	COMP_STATE_STORE      = "state_store"
	COMP_HANDLER_REGISTRY = "handler_registry"
	COMP_ENGINE           = "engine"
	COMP_DISPATCHER       = "dispatcher"
	COMP_SUPERVISOR       = "supervisor"
	COMP_LIFECYCLE_ROUTER = "lifecycle_router"
	COMP_CUSTOM_WORKER    = "custom_worker"
	COMP_CRON_WORKER      = "cron_worker"
	COMP_API_CONTROLLER   = "api_controller"
)
