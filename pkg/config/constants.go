package config

const EnvPrefix = "HMSBILLING"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv = "HMSBILLING_APP_ENV"
	EnvPort   = "HMSBILLING_APP_PORT"

	EnvDBDSN  = "HMSBILLING_DB_DSN"
	EnvDBHost = "HMSBILLING_DB_HOST"
	EnvDBUser = "HMSBILLING_DB_USER"
	EnvDBName = "HMSBILLING_DB_NAME"

	EnvRedisURL = "HMSBILLING_REDIS_URL"

	EnvGCPProjectID       = "HMSBILLING_GCP_PROJECT_ID"
	EnvPubSubBillingTopic = "HMSBILLING_PUBSUB_BILLING_TOPIC"
	EnvPubSubBillingSub   = "HMSBILLING_PUBSUB_BILLING_SUBSCRIPTION"

	EnvEnforcerInterval  = "HMSBILLING_SCHEDULER_ENFORCER_INTERVAL"
	EnvGracePeriodDays   = "HMSBILLING_BILLING_GRACE_PERIOD_DAYS"
	EnvProviderTimeout   = "HMSBILLING_PROVIDER_TIMEOUT"
	EnvAdminAPIKey       = "HMSBILLING_ADMIN_API_KEY"
	EnvPaystackSecretKey = "HMSBILLING_PAYSTACK_SECRET_KEY"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
