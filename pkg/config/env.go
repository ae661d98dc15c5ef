package config

const (
	EnvPrefix = "LEADASSIGN"

	EnvAppEnv       = "LEADASSIGN_APP_ENV"
	EnvPort         = "LEADASSIGN_APP_PORT"
	EnvLogLevel     = "LEADASSIGN_LOG_LEVEL"
	EnvLogWarnStack = "LEADASSIGN_LOG_WARN_STACK"
	EnvServiceKind  = "LEADASSIGN_SERVICE_KIND"

	EnvDBDSN      = "LEADASSIGN_DB_DSN"
	EnvDBHost     = "LEADASSIGN_DB_HOST"
	EnvDBPort     = "LEADASSIGN_DB_PORT"
	EnvDBUser     = "LEADASSIGN_DB_USER"
	EnvDBPassword = "LEADASSIGN_DB_PASSWORD"
	EnvDBName     = "LEADASSIGN_DB_NAME"
	EnvDBSSLMode  = "LEADASSIGN_DB_SSLMODE"

	EnvRedisURL = "LEADASSIGN_REDIS_URL"

	EnvJWTSecret  = "LEADASSIGN_JWT_SECRET"
	EnvJWTIssuer  = "LEADASSIGN_JWT_ISSUER"
	EnvJWTExpMins = "LEADASSIGN_JWT_EXPIRATION_MINUTES"

	EnvAutoMigrate = "LEADASSIGN_AUTO_MIGRATE"

	EnvGCPProjectID = "LEADASSIGN_GCP_PROJECT_ID"

	EnvPubSubLeadsTopic       = "LEADASSIGN_PUBSUB_LEADS_TOPIC"
	EnvPubSubLeadsSub         = "LEADASSIGN_PUBSUB_LEADS_SUBSCRIPTION"
	EnvPubSubAssignmentsTopic = "LEADASSIGN_PUBSUB_ASSIGNMENTS_TOPIC"

	EnvAssignmentTimezone    = "LEADASSIGN_ASSIGNMENT_TIMEZONE"
	EnvAssignmentLockEnabled = "LEADASSIGN_ASSIGNMENT_LOCK_ENABLED"
	EnvAssignmentLockTTL     = "LEADASSIGN_ASSIGNMENT_LOCK_TTL"

	EnvCronSchedule = "LEADASSIGN_CRON_SCHEDULE"
	EnvCronSweepAge = "LEADASSIGN_CRON_SWEEP_MIN_AGE"
	EnvCORSOrigins  = "LEADASSIGN_CORS_ALLOWED_ORIGINS"
)

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
