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
	FeatureFlags FeatureFlagsConfig
	Scheduler    SchedulerConfig
	Billing      BillingConfig
	Providers    ProvidersConfig
	Paystack     PaystackConfig
	Flutterwave  FlutterwaveConfig
	Stripe       StripeConfig
	MoMo         MoMoConfig
	Square       SquareConfig
	Admin        AdminConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Metrics      MetricsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Scheduler.validate(cfg.Billing.GracePeriod()); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"HMSBILLING_APP_ENV" required:"true"`
	Port         string `envconfig:"HMSBILLING_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"HMSBILLING_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"HMSBILLING_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"HMSBILLING_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN string `envconfig:"HMSBILLING_DB_DSN"`

	LegacyHost     string `envconfig:"HMSBILLING_DB_HOST"`
	LegacyPort     int    `envconfig:"HMSBILLING_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"HMSBILLING_DB_USER"`
	LegacyPassword string `envconfig:"HMSBILLING_DB_PASSWORD"`
	LegacyName     string `envconfig:"HMSBILLING_DB_NAME"`
	LegacySSLMode  string `envconfig:"HMSBILLING_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"HMSBILLING_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"HMSBILLING_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"HMSBILLING_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"HMSBILLING_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"HMSBILLING_REDIS_URL" required:"true"`
	Address      string        `envconfig:"HMSBILLING_REDIS_ADDR"`
	Password     string        `envconfig:"HMSBILLING_REDIS_PASSWORD"`
	DB           int           `envconfig:"HMSBILLING_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"HMSBILLING_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"HMSBILLING_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"HMSBILLING_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"HMSBILLING_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"HMSBILLING_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"HMSBILLING_AUTO_MIGRATE" default:"false"`
}

// SchedulerConfig holds the cadence of every background job.
type SchedulerConfig struct {
	EnforcerInterval        time.Duration `envconfig:"HMSBILLING_SCHEDULER_ENFORCER_INTERVAL" default:"4h"`
	EnforcerInitialDelay    time.Duration `envconfig:"HMSBILLING_SCHEDULER_ENFORCER_INITIAL_DELAY" default:"15s"`
	GeneratorInterval       time.Duration `envconfig:"HMSBILLING_SCHEDULER_GENERATOR_INTERVAL" default:"24h"`
	GeneratorInitialDelay   time.Duration `envconfig:"HMSBILLING_SCHEDULER_GENERATOR_INITIAL_DELAY" default:"5s"`
	OverdueInterval         time.Duration `envconfig:"HMSBILLING_SCHEDULER_OVERDUE_INTERVAL" default:"6h"`
	OutboxRetentionInterval time.Duration `envconfig:"HMSBILLING_SCHEDULER_OUTBOX_RETENTION_INTERVAL" default:"24h"`
	LockTTL                 time.Duration `envconfig:"HMSBILLING_SCHEDULER_LOCK_TTL" default:"2h"`
	OutboxRetentionDays     int           `envconfig:"HMSBILLING_OUTBOX_RETENTION_DAYS" default:"30"`
	OutboxRetentionAttempts int           `envconfig:"HMSBILLING_OUTBOX_RETENTION_MIN_ATTEMPTS" default:"5"`
}

func (s SchedulerConfig) validate(grace time.Duration) error {
	if s.EnforcerInterval <= 0 {
		return fmt.Errorf("%s must be positive", EnvEnforcerInterval)
	}
	if grace > 0 && s.EnforcerInterval*2 > grace {
		return fmt.Errorf("%s (%s) must be shorter than half the grace period (%s)", EnvEnforcerInterval, s.EnforcerInterval, grace)
	}
	return nil
}

type BillingConfig struct {
	GracePeriodDays       int           `envconfig:"HMSBILLING_BILLING_GRACE_PERIOD_DAYS" default:"3"`
	TrialDays             int           `envconfig:"HMSBILLING_BILLING_TRIAL_DAYS" default:"14"`
	InvoiceDueDays        int           `envconfig:"HMSBILLING_BILLING_INVOICE_DUE_DAYS" default:"7"`
	DefaultCurrency       string        `envconfig:"HMSBILLING_BILLING_DEFAULT_CURRENCY" default:"GHS"`
	GeneratorBatchSize    int           `envconfig:"HMSBILLING_BILLING_GENERATOR_BATCH_SIZE" default:"500"`
	WebhookIdempotencyTTL time.Duration `envconfig:"HMSBILLING_BILLING_WEBHOOK_IDEMPOTENCY_TTL" default:"72h"`
	InitiateLimitPerMin   int64         `envconfig:"HMSBILLING_BILLING_INITIATE_LIMIT_PER_MIN" default:"5"`
	InitiateIPLimitPerMin int64         `envconfig:"HMSBILLING_BILLING_INITIATE_IP_LIMIT_PER_MIN" default:"30"`
}

// GracePeriod converts the configured day count into a duration.
func (b BillingConfig) GracePeriod() time.Duration {
	if b.GracePeriodDays <= 0 {
		return 0
	}
	return time.Duration(b.GracePeriodDays) * 24 * time.Hour
}

type ProvidersConfig struct {
	Timeout         time.Duration `envconfig:"HMSBILLING_PROVIDER_TIMEOUT" default:"8s"`
	RatePerSecond   float64       `envconfig:"HMSBILLING_PROVIDER_RATE_PER_SECOND" default:"10"`
	Burst           int           `envconfig:"HMSBILLING_PROVIDER_BURST" default:"20"`
	CallbackBaseURL string        `envconfig:"HMSBILLING_PROVIDER_CALLBACK_BASE_URL"`
}

type PaystackConfig struct {
	SecretKey string `envconfig:"HMSBILLING_PAYSTACK_SECRET_KEY"`
	BaseURL   string `envconfig:"HMSBILLING_PAYSTACK_BASE_URL" default:"https://api.paystack.co"`
}

type FlutterwaveConfig struct {
	SecretKey  string `envconfig:"HMSBILLING_FLUTTERWAVE_SECRET_KEY"`
	SecretHash string `envconfig:"HMSBILLING_FLUTTERWAVE_SECRET_HASH"`
	BaseURL    string `envconfig:"HMSBILLING_FLUTTERWAVE_BASE_URL" default:"https://api.flutterwave.com"`
}

type StripeConfig struct {
	APIKey     string `envconfig:"HMSBILLING_STRIPE_API_KEY"`
	Secret     string `envconfig:"HMSBILLING_STRIPE_SECRET"`
	Env        string `envconfig:"HMSBILLING_STRIPE_ENV" default:"test"`
	SuccessURL string `envconfig:"HMSBILLING_STRIPE_SUCCESS_URL"`
	CancelURL  string `envconfig:"HMSBILLING_STRIPE_CANCEL_URL"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type MoMoConfig struct {
	BaseURL           string `envconfig:"HMSBILLING_MOMO_BASE_URL" default:"https://sandbox.momodeveloper.mtn.com"`
	SubscriptionKey   string `envconfig:"HMSBILLING_MOMO_SUBSCRIPTION_KEY"`
	APIUser           string `envconfig:"HMSBILLING_MOMO_API_USER"`
	APIKey            string `envconfig:"HMSBILLING_MOMO_API_KEY"`
	TargetEnvironment string `envconfig:"HMSBILLING_MOMO_TARGET_ENVIRONMENT" default:"sandbox"`
	CallbackSecret    string `envconfig:"HMSBILLING_MOMO_CALLBACK_SECRET"`
}

type SquareConfig struct {
	AccessToken   string `envconfig:"HMSBILLING_SQUARE_ACCESS_TOKEN"`
	WebhookSecret string `envconfig:"HMSBILLING_SQUARE_WEBHOOK_SECRET"`
	WebhookURL    string `envconfig:"HMSBILLING_SQUARE_WEBHOOK_URL"`
	LocationID    string `envconfig:"HMSBILLING_SQUARE_LOCATION_ID"`
	Env           string `envconfig:"HMSBILLING_SQUARE_ENV" default:"sandbox"`
}

// Environment returns the normalized Square environment (sandbox/production).
func (s SquareConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

type AdminConfig struct {
	APIKey string `envconfig:"HMSBILLING_ADMIN_API_KEY"`
}

type GCPConfig struct {
	ProjectID       string `envconfig:"HMSBILLING_GCP_PROJECT_ID"`
	CredentialsJSON string `envconfig:"HMSBILLING_GCP_CREDENTIALS_JSON"`
}

type PubSubConfig struct {
	BillingTopic        string `envconfig:"HMSBILLING_PUBSUB_BILLING_TOPIC" default:"hms-billing-events"`
	BillingSubscription string `envconfig:"HMSBILLING_PUBSUB_BILLING_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"HMSBILLING_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"HMSBILLING_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"HMSBILLING_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type MetricsConfig struct {
	Addr string `envconfig:"HMSBILLING_METRICS_ADDR" default:":9102"`
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
