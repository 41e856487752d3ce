package config

// EnvPrefix is empty because every field carries a fully-qualified env tag.
const EnvPrefix = ""

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

// Environment variable names referenced outside struct tags (tests, tooling).
const (
	EnvAppEnv   = "DEFECTWATCH_APP_ENV"
	EnvPort     = "DEFECTWATCH_APP_PORT"
	EnvDBDSN    = "DEFECTWATCH_DB_DSN"
	EnvRedisURL = "DEFECTWATCH_REDIS_URL"
)
