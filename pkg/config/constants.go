package config

// EnvPrefix is handed to envconfig; every field below carries an explicit name.
const EnvPrefix = "ASSETCART"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv       = "ASSETCART_APP_ENV"
	EnvPort         = "ASSETCART_APP_PORT"
	EnvLogLevel     = "ASSETCART_LOG_LEVEL"
	EnvLogWarnStack = "ASSETCART_LOG_WARN_STACK"

	EnvDBDSN      = "ASSETCART_DB_DSN"
	EnvDBDriver   = "ASSETCART_DB_DRIVER"
	EnvDBHost     = "ASSETCART_DB_HOST"
	EnvDBPort     = "ASSETCART_DB_PORT"
	EnvDBUser     = "ASSETCART_DB_USER"
	EnvDBPassword = "ASSETCART_DB_PASSWORD"
	EnvDBName     = "ASSETCART_DB_NAME"

	EnvRedisURL = "ASSETCART_REDIS_URL"

	EnvUseSQLite   = "ASSETCART_USE_SQLITE"
	EnvAutoMigrate = "ASSETCART_AUTO_MIGRATE"

	EnvCartStorage   = "ASSETCART_CART_STORAGE"
	EnvCartSlotTTL   = "ASSETCART_CART_SLOT_TTL"
	EnvCartIdleTTL   = "ASSETCART_CART_IDLE_TTL"
	EnvSweepInterval = "ASSETCART_SWEEP_INTERVAL"

	EnvCheckoutSubmitTimeout  = "ASSETCART_CHECKOUT_SUBMIT_TIMEOUT"
	EnvCheckoutSessionIdleTTL = "ASSETCART_CHECKOUT_SESSION_IDLE_TTL"

	EnvIdentityJWTSecret = "ASSETCART_IDENTITY_JWT_SECRET"
	EnvIdentityIssuer    = "ASSETCART_IDENTITY_ISSUER"

	EnvIdempotencyTTL         = "ASSETCART_IDEMPOTENCY_TTL"
	EnvIdempotencyResponseTTL = "ASSETCART_IDEMPOTENCY_RESPONSE_TTL"

	EnvCORSAllowedOrigins = "ASSETCART_CORS_ALLOWED_ORIGINS"
)

const (
	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"
)

// Cart storage backends.
const (
	CartStorageRedis  = "redis"
	CartStorageMemory = "memory"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
