package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Assignment   AssignmentConfig
	Cron         CronConfig
	CORS         CORSConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if _, err := time.LoadLocation(cfg.Assignment.DefaultTimezone); err != nil {
		return nil, fmt.Errorf("invalid %s %q: %w", EnvAssignmentTimezone, cfg.Assignment.DefaultTimezone, err)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"LEADASSIGN_APP_ENV" required:"true"`
	Port         string `envconfig:"LEADASSIGN_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"LEADASSIGN_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"LEADASSIGN_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"LEADASSIGN_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"LEADASSIGN_DB_DSN"`
	Driver string `envconfig:"LEADASSIGN_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"LEADASSIGN_DB_HOST"`
	LegacyPort     int    `envconfig:"LEADASSIGN_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"LEADASSIGN_DB_USER"`
	LegacyPassword string `envconfig:"LEADASSIGN_DB_PASSWORD"`
	LegacyName     string `envconfig:"LEADASSIGN_DB_NAME"`
	LegacySSLMode  string `envconfig:"LEADASSIGN_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"LEADASSIGN_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"LEADASSIGN_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"LEADASSIGN_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"LEADASSIGN_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	// SlowQueryThreshold logs statements slower than this at warn; 0 disables.
	SlowQueryThreshold time.Duration `envconfig:"LEADASSIGN_DB_SLOW_QUERY" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"LEADASSIGN_REDIS_URL" required:"true"`
	Address      string        `envconfig:"LEADASSIGN_REDIS_ADDR"`
	Password     string        `envconfig:"LEADASSIGN_REDIS_PASSWORD"`
	DB           int           `envconfig:"LEADASSIGN_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"LEADASSIGN_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"LEADASSIGN_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"LEADASSIGN_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"LEADASSIGN_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"LEADASSIGN_REDIS_WRITE_TIMEOUT" default:"5s"`
	// KeyPrefix namespaces every key so environments can share one instance.
	KeyPrefix string `envconfig:"LEADASSIGN_REDIS_KEY_PREFIX" default:"la"`
}

// JWTConfig verifies tokens minted by the identity service.
type JWTConfig struct {
	Secret            string `envconfig:"LEADASSIGN_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"LEADASSIGN_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"LEADASSIGN_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"LEADASSIGN_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"LEADASSIGN_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"LEADASSIGN_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"LEADASSIGN_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"LEADASSIGN_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	LeadsTopic              string `envconfig:"LEADASSIGN_PUBSUB_LEADS_TOPIC" default:"la-lead-events"`
	LeadsSubscription       string `envconfig:"LEADASSIGN_PUBSUB_LEADS_SUBSCRIPTION" default:"la-lead-events-assigner"`
	AssignmentsTopic        string `envconfig:"LEADASSIGN_PUBSUB_ASSIGNMENTS_TOPIC" default:"la-assignment-events"`
	AssignmentsSubscription string `envconfig:"LEADASSIGN_PUBSUB_ASSIGNMENTS_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"LEADASSIGN_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"LEADASSIGN_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"LEADASSIGN_OUTBOX_MAX_ATTEMPTS" default:"10"`
	// MetricsAddr exposes publisher counters when set, e.g. ":9102".
	MetricsAddr string `envconfig:"LEADASSIGN_OUTBOX_METRICS_ADDR"`
}

// AssignmentConfig tunes the lead assignment engine.
type AssignmentConfig struct {
	DefaultTimezone string        `envconfig:"LEADASSIGN_ASSIGNMENT_TIMEZONE" default:"UTC"`
	LockEnabled     bool          `envconfig:"LEADASSIGN_ASSIGNMENT_LOCK_ENABLED" default:"true"`
	LockTTL         time.Duration `envconfig:"LEADASSIGN_ASSIGNMENT_LOCK_TTL" default:"10s"`
	LockWait        time.Duration `envconfig:"LEADASSIGN_ASSIGNMENT_LOCK_WAIT" default:"2s"`
	DecisionTimeout time.Duration `envconfig:"LEADASSIGN_ASSIGNMENT_DECISION_TIMEOUT" default:"15s"`
}

// Location returns the configured default timezone, falling back to UTC.
func (a AssignmentConfig) Location() *time.Location {
	loc, err := time.LoadLocation(a.DefaultTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

type CronConfig struct {
	Schedule             string        `envconfig:"LEADASSIGN_CRON_SCHEDULE" default:"*/5 * * * *"`
	LockTTL              time.Duration `envconfig:"LEADASSIGN_CRON_LOCK_TTL" default:"10m"`
	SweepMinAge          time.Duration `envconfig:"LEADASSIGN_CRON_SWEEP_MIN_AGE" default:"5m"`
	SweepBatchSize       int           `envconfig:"LEADASSIGN_CRON_SWEEP_BATCH_SIZE" default:"100"`
	OutboxRetentionDays  int           `envconfig:"LEADASSIGN_CRON_OUTBOX_RETENTION_DAYS" default:"30"`
	OutboxRetentionLimit int           `envconfig:"LEADASSIGN_CRON_OUTBOX_RETENTION_MIN_ATTEMPTS" default:"0"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"LEADASSIGN_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
