package types

type RunMode string

const (
	// ModeLocal runs the API server and the scheduler in one process
	ModeLocal RunMode = "local"
	// ModeAPI runs just the API server; jobs are triggered through the cron endpoints
	ModeAPI RunMode = "api"
	// ModeScheduler runs just the in-process cron scheduler
	ModeScheduler RunMode = "scheduler"
)

type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)
