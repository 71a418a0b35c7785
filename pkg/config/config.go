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
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	Cart         CartConfig
	Checkout     CheckoutConfig
	Identity     IdentityConfig
	Idempotency  IdempotencyConfig
	CORS         CORSConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = DBDriverSQLite
	}
	if !cfg.DB.IsSQLite() {
		if err := cfg.DB.ensureDSN(); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch strings.ToLower(strings.TrimSpace(c.DB.Driver)) {
	case DBDriverPostgres, DBDriverSQLite:
	default:
		return fmt.Errorf("%s must be %q or %q, got %q", EnvDBDriver, DBDriverPostgres, DBDriverSQLite, c.DB.Driver)
	}
	switch strings.ToLower(strings.TrimSpace(c.Cart.Storage)) {
	case CartStorageRedis, CartStorageMemory:
	default:
		return fmt.Errorf("%s must be %q or %q, got %q", EnvCartStorage, CartStorageRedis, CartStorageMemory, c.Cart.Storage)
	}
	if err := positive(EnvCheckoutSubmitTimeout, c.Checkout.SubmitTimeout); err != nil {
		return err
	}
	if err := positive(EnvCartIdleTTL, c.Cart.IdleTTL); err != nil {
		return err
	}
	if err := positive(EnvSweepInterval, c.Cart.SweepInterval); err != nil {
		return err
	}
	return positive(EnvCheckoutSessionIdleTTL, c.Checkout.SessionIdleTTL)
}

func positive(env string, d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("%s must be positive", env)
	}
	return nil
}

type AppConfig struct {
	Env          string `envconfig:"ASSETCART_APP_ENV" required:"true"`
	Port         string `envconfig:"ASSETCART_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"ASSETCART_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"ASSETCART_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN        string `envconfig:"ASSETCART_DB_DSN"`
	Driver     string `envconfig:"ASSETCART_DB_DRIVER" default:"postgres"`
	SQLitePath string `envconfig:"ASSETCART_DB_SQLITE_PATH" default:"assetcart.db"`

	LegacyHost     string `envconfig:"ASSETCART_DB_HOST"`
	LegacyPort     int    `envconfig:"ASSETCART_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"ASSETCART_DB_USER"`
	LegacyPassword string `envconfig:"ASSETCART_DB_PASSWORD"`
	LegacyName     string `envconfig:"ASSETCART_DB_NAME"`
	LegacySSLMode  string `envconfig:"ASSETCART_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"ASSETCART_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"ASSETCART_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"ASSETCART_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ASSETCART_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"ASSETCART_REDIS_URL"`
	Address      string        `envconfig:"ASSETCART_REDIS_ADDR"`
	Password     string        `envconfig:"ASSETCART_REDIS_PASSWORD"`
	DB           int           `envconfig:"ASSETCART_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ASSETCART_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ASSETCART_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ASSETCART_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ASSETCART_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ASSETCART_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether enough settings exist to dial Redis.
func (r RedisConfig) Enabled() bool {
	return r.URL != "" || r.Address != ""
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"ASSETCART_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"ASSETCART_AUTO_MIGRATE" default:"false"`
}

type CartConfig struct {
	Storage string        `envconfig:"ASSETCART_CART_STORAGE" default:"redis"`
	SlotTTL time.Duration `envconfig:"ASSETCART_CART_SLOT_TTL" default:"720h"`

	// IdleTTL is how long an untouched cart stays in memory; it reloads from its slot afterwards.
	IdleTTL       time.Duration `envconfig:"ASSETCART_CART_IDLE_TTL" default:"30m"`
	SweepInterval time.Duration `envconfig:"ASSETCART_SWEEP_INTERVAL" default:"1m"`
}

// UsesRedis reports whether carts persist to Redis slots.
func (c CartConfig) UsesRedis() bool {
	return strings.EqualFold(strings.TrimSpace(c.Storage), CartStorageRedis)
}

type CheckoutConfig struct {
	SubmitTimeout  time.Duration `envconfig:"ASSETCART_CHECKOUT_SUBMIT_TIMEOUT" default:"15s"`
	SessionIdleTTL time.Duration `envconfig:"ASSETCART_CHECKOUT_SESSION_IDLE_TTL" default:"2h"`
}

// IdentityConfig verifies the optional bearer token used to prefill shipping details.
type IdentityConfig struct {
	JWTSecret string `envconfig:"ASSETCART_IDENTITY_JWT_SECRET"`
	Issuer    string `envconfig:"ASSETCART_IDENTITY_ISSUER"`
}

func (i IdentityConfig) Enabled() bool {
	return strings.TrimSpace(i.JWTSecret) != ""
}

type IdempotencyConfig struct {
	OrderTTL    time.Duration `envconfig:"ASSETCART_IDEMPOTENCY_TTL" default:"720h"`
	ResponseTTL time.Duration `envconfig:"ASSETCART_IDEMPOTENCY_RESPONSE_TTL" default:"168h"`
}

// CORSConfig lists the storefront origins allowed to call the API from a browser.
type CORSConfig struct {
	AllowedOrigins []string `envconfig:"ASSETCART_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
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
