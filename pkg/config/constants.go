package config

// EnvPrefix is empty because every field spells out its full ALO17_ key.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	RateLimitBackendMemory = "memory"
	RateLimitBackendRedis  = "redis"
)

const (
	EnvAppEnv           = "ALO17_APP_ENV"
	EnvPort             = "ALO17_APP_PORT"
	EnvDBDSN            = "ALO17_DB_DSN"
	EnvDBHost           = "ALO17_DB_HOST"
	EnvDBUser           = "ALO17_DB_USER"
	EnvDBName           = "ALO17_DB_NAME"
	EnvRedisURL         = "ALO17_REDIS_URL"
	EnvJWTSecret        = "ALO17_JWT_SECRET"
	EnvJWTIssuer        = "ALO17_JWT_ISSUER"
	EnvEncryptionKey    = "ALO17_ENCRYPTION_KEY"
	EnvCronSecret       = "ALO17_CRON_SECRET"
	EnvCronTimezone     = "ALO17_CRON_TIMEZONE"
	EnvCronScheduleTime = "ALO17_CRON_SCHEDULE_TIME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
