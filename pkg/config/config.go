package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	// EnvPrefix is the envconfig prefix shared by every Shopster binary.
	EnvPrefix = "SHOPSTER"

	AppEnvDev  = "development"
	AppEnvProd = "production"
)

// Environment variable names referenced outside envconfig tags (tests, error text).
const (
	EnvAppEnv    = "SHOPSTER_APP_ENV"
	EnvPort      = "SHOPSTER_APP_PORT"
	EnvDBDSN     = "SHOPSTER_DB_DSN"
	EnvDBHost    = "SHOPSTER_DB_HOST"
	EnvDBUser    = "SHOPSTER_DB_USER"
	EnvDBName    = "SHOPSTER_DB_NAME"
	EnvRedisURL  = "SHOPSTER_REDIS_URL"
	EnvJWTSecret = "SHOPSTER_JWT_SECRET"
	EnvJWTIssuer = "SHOPSTER_JWT_ISSUER"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Password     PasswordConfig
	Checkout     CheckoutConfig
	Sendgrid     SendgridConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Frontend     FrontendConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SHOPSTER_APP_ENV" required:"true"`
	Port         string `envconfig:"SHOPSTER_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"SHOPSTER_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SHOPSTER_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"SHOPSTER_DB_DSN"`
	Driver string `envconfig:"SHOPSTER_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"SHOPSTER_DB_HOST"`
	LegacyPort     int    `envconfig:"SHOPSTER_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SHOPSTER_DB_USER"`
	LegacyPassword string `envconfig:"SHOPSTER_DB_PASSWORD"`
	LegacyName     string `envconfig:"SHOPSTER_DB_NAME"`
	LegacySSLMode  string `envconfig:"SHOPSTER_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SHOPSTER_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SHOPSTER_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SHOPSTER_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SHOPSTER_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SHOPSTER_REDIS_URL" required:"true"`
	Address      string        `envconfig:"SHOPSTER_REDIS_ADDR"`
	Password     string        `envconfig:"SHOPSTER_REDIS_PASSWORD"`
	DB           int           `envconfig:"SHOPSTER_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SHOPSTER_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SHOPSTER_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SHOPSTER_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SHOPSTER_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SHOPSTER_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"SHOPSTER_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"SHOPSTER_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"SHOPSTER_JWT_EXPIRATION_MINUTES" default:"60"`
	// ActivationTTLMinutes bounds how long an account-activation link stays valid.
	ActivationTTLMinutes int `envconfig:"SHOPSTER_ACTIVATION_TTL_MINUTES" default:"4320"`
}

// ActivationTTL returns the activation token TTL configured in minutes.
func (j JWTConfig) ActivationTTL() time.Duration {
	if j.ActivationTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ActivationTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"SHOPSTER_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"SHOPSTER_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"SHOPSTER_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"SHOPSTER_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"SHOPSTER_ARGON_KEY_LEN" default:"32"`
}

type CheckoutConfig struct {
	DefaultCurrency        string `envconfig:"SHOPSTER_DEFAULT_CURRENCY" default:"RUB"`
	DefaultShippingCountry string `envconfig:"SHOPSTER_DEFAULT_SHIPPING_COUNTRY" default:"Russia"`
}

type SendgridConfig struct {
	APIKey          string `envconfig:"SHOPSTER_SENDGRID_API_KEY"`
	DefaultFrom     string `envconfig:"SHOPSTER_SENDGRID_FROM_EMAIL"`
	DefaultFromName string `envconfig:"SHOPSTER_SENDGRID_FROM_NAME" default:"Shopster"`
	BaseURL         string `envconfig:"SHOPSTER_SENDGRID_BASE_URL" default:"https://api.sendgrid.com"`
}

// Enabled reports whether outbound email is configured at all.
func (s SendgridConfig) Enabled() bool {
	return strings.TrimSpace(s.APIKey) != "" && strings.TrimSpace(s.DefaultFrom) != ""
}

type GCPConfig struct {
	ProjectID string `envconfig:"SHOPSTER_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	OrdersTopic string `envconfig:"SHOPSTER_PUBSUB_ORDERS_TOPIC" default:"shopster-order-events"`
}

type FrontendConfig struct {
	PasswordResetURL     string `envconfig:"SHOPSTER_FRONTEND_PASSWORD_RESET_URL" default:"http://localhost:3000/reset-password"`
	AccountActivationURL string `envconfig:"SHOPSTER_FRONTEND_ACTIVATION_URL" default:"http://localhost:3000/activate-account"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"SHOPSTER_AUTO_MIGRATE" default:"false"`
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
