package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Listings      ListingsConfig
	Encryption    EncryptionConfig
	RevealPhone   RevealPhoneConfig
	RateLimit     RateLimitConfig
	Cache         CacheConfig
	Cron          CronConfig
	Payments      PaymentsConfig
	FeatureFlags  FeatureFlagsConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Notifications NotificationsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if _, err := time.LoadLocation(cfg.Cron.Timezone); err != nil {
		return nil, fmt.Errorf("invalid %s %q: %w", EnvCronTimezone, cfg.Cron.Timezone, err)
	}
	if _, _, err := cfg.Cron.ScheduleClock(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"ALO17_APP_ENV" required:"true"`
	Port         string `envconfig:"ALO17_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"ALO17_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"ALO17_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"ALO17_SERVICE_KIND" default:"api"`
	// AllowedOrigins lists the browser origins allowed to call the API cross-origin.
	AllowedOrigins []string `envconfig:"ALO17_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000,https://alo17.tr,https://www.alo17.tr"`
}

type DBConfig struct {
	DSN    string `envconfig:"ALO17_DB_DSN"`
	Driver string `envconfig:"ALO17_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"ALO17_DB_HOST"`
	LegacyPort     int    `envconfig:"ALO17_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"ALO17_DB_USER"`
	LegacyPassword string `envconfig:"ALO17_DB_PASSWORD"`
	LegacyName     string `envconfig:"ALO17_DB_NAME"`
	LegacySSLMode  string `envconfig:"ALO17_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"ALO17_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"ALO17_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"ALO17_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ALO17_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"ALO17_REDIS_URL" required:"true"`
	Address      string        `envconfig:"ALO17_REDIS_ADDR"`
	Password     string        `envconfig:"ALO17_REDIS_PASSWORD"`
	DB           int           `envconfig:"ALO17_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ALO17_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ALO17_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ALO17_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ALO17_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ALO17_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"ALO17_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"ALO17_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"ALO17_JWT_EXPIRATION_MINUTES" default:"60"`
}

// ListingsConfig holds the lifecycle constants.
type ListingsConfig struct {
	DurationDays        int    `envconfig:"ALO17_LISTING_DURATION_DAYS" default:"30"`
	RenewalGraceDays    int    `envconfig:"ALO17_LISTING_RENEWAL_GRACE_DAYS" default:"7"`
	HouseAccountEmail   string `envconfig:"ALO17_HOUSE_ACCOUNT_EMAIL" default:"destek@alo17.tr"`
	PremiumDurationDays int    `envconfig:"ALO17_PREMIUM_DURATION_DAYS" default:"30"`
	HomepagePremium     int    `envconfig:"ALO17_HOMEPAGE_PREMIUM_COUNT" default:"6"`
	HomepageLatest      int    `envconfig:"ALO17_HOMEPAGE_LATEST_COUNT" default:"12"`
}

// Duration returns the active lifetime granted on create and renew.
func (l ListingsConfig) Duration() time.Duration {
	return time.Duration(l.DurationDays) * 24 * time.Hour
}

type EncryptionConfig struct {
	Key string `envconfig:"ALO17_ENCRYPTION_KEY" required:"true"`
}

type RevealPhoneConfig struct {
	Limit   int           `envconfig:"ALO17_REVEAL_PHONE_LIMIT" default:"30"`
	Window  time.Duration `envconfig:"ALO17_REVEAL_PHONE_WINDOW" default:"60s"`
	Timeout time.Duration `envconfig:"ALO17_REVEAL_PHONE_TIMEOUT" default:"2s"`
}

type RateLimitConfig struct {
	Backend       string        `envconfig:"ALO17_RATE_LIMIT_BACKEND" default:"memory"`
	MaxEntries    int           `envconfig:"ALO17_RATE_LIMIT_MAX_ENTRIES" default:"10000"`
	CreateLimit   int           `envconfig:"ALO17_RATE_LIMIT_CREATE_LIMIT" default:"10"`
	CreateWindow  time.Duration `envconfig:"ALO17_RATE_LIMIT_CREATE_WINDOW" default:"1m"`
	CronLimit     int           `envconfig:"ALO17_RATE_LIMIT_CRON_LIMIT" default:"5"`
	CronWindow    time.Duration `envconfig:"ALO17_RATE_LIMIT_CRON_WINDOW" default:"1m"`
	PaymentsLimit int           `envconfig:"ALO17_RATE_LIMIT_PAYMENTS_LIMIT" default:"60"`
}

// UseRedis reports whether limiter state should be shared through Redis.
func (r RateLimitConfig) UseRedis() bool {
	return strings.EqualFold(strings.TrimSpace(r.Backend), RateLimitBackendRedis)
}

type CacheConfig struct {
	MaxEntries      int           `envconfig:"ALO17_CACHE_MAX_ENTRIES" default:"1000"`
	HomepageTTL     time.Duration `envconfig:"ALO17_CACHE_HOMEPAGE_TTL" default:"30s"`
	HouseAccountTTL time.Duration `envconfig:"ALO17_CACHE_HOUSE_ACCOUNT_TTL" default:"5m"`
}

type CronConfig struct {
	Secret          string        `envconfig:"ALO17_CRON_SECRET"`
	TrustedHeader   string        `envconfig:"ALO17_CRON_TRUSTED_HEADER"`
	ScheduleTime    string        `envconfig:"ALO17_CRON_SCHEDULE_TIME" default:"00:02"`
	Timezone        string        `envconfig:"ALO17_CRON_TIMEZONE" default:"Europe/Istanbul"`
	OnDemandTimeout time.Duration `envconfig:"ALO17_CRON_ON_DEMAND_TIMEOUT" default:"10s"`
	LockTTL         time.Duration `envconfig:"ALO17_CRON_LOCK_TTL" default:"1h"`
}

// ScheduleClock parses ScheduleTime as HH:MM.
func (c CronConfig) ScheduleClock() (int, int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(c.ScheduleTime))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid %s %q: expected HH:MM", EnvCronScheduleTime, c.ScheduleTime)
	}
	return t.Hour(), t.Minute(), nil
}

type PaymentsConfig struct {
	MerchantKey  string `envconfig:"ALO17_PAYMENTS_MERCHANT_KEY"`
	MerchantSalt string `envconfig:"ALO17_PAYMENTS_MERCHANT_SALT"`
	OrderPrefix  string `envconfig:"ALO17_PAYMENTS_ORDER_PREFIX" default:"alo17"`
}

// Enabled reports whether webhook signatures can be verified.
func (p PaymentsConfig) Enabled() bool {
	return strings.TrimSpace(p.MerchantKey) != "" && strings.TrimSpace(p.MerchantSalt) != ""
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"ALO17_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"ALO17_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"ALO17_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	NotificationTopic string `envconfig:"ALO17_PUBSUB_NOTIFICATION_TOPIC"`
}

// Enabled reports whether listing notifications should be published.
func (p PubSubConfig) Enabled() bool {
	return strings.TrimSpace(p.NotificationTopic) != ""
}

type NotificationsConfig struct {
	PublishTimeout      time.Duration `envconfig:"ALO17_NOTIFICATIONS_PUBLISH_TIMEOUT" default:"5s"`
	BreakerMaxFailures  uint32        `envconfig:"ALO17_NOTIFICATIONS_BREAKER_MAX_FAILURES" default:"5"`
	BreakerOpenTimeout  time.Duration `envconfig:"ALO17_NOTIFICATIONS_BREAKER_OPEN_TIMEOUT" default:"30s"`
	BreakerCountsWindow time.Duration `envconfig:"ALO17_NOTIFICATIONS_BREAKER_WINDOW" default:"1m"`
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
