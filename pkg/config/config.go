package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix namespaces every Keyline environment variable.
const EnvPrefix = "KEYLINE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

// Environment variable names shared between Load and tests.
const (
	EnvAppEnv      = "KEYLINE_APP_ENV"
	EnvPort        = "KEYLINE_APP_PORT"
	EnvDBDSN       = "KEYLINE_DB_DSN"
	EnvDBHost      = "KEYLINE_DB_HOST"
	EnvDBUser      = "KEYLINE_DB_USER"
	EnvDBName      = "KEYLINE_DB_NAME"
	EnvRedisURL    = "KEYLINE_REDIS_URL"
	EnvJWTSecret   = "KEYLINE_JWT_SECRET"
	EnvJWTIssuer   = "KEYLINE_JWT_ISSUER"
	EnvJWTExpMins  = "KEYLINE_JWT_EXPIRATION_MINUTES"
	EnvR2AccountID = "KEYLINE_R2_ACCOUNT_ID"
	EnvR2Bucket    = "KEYLINE_R2_BUCKET_NAME"
	EnvR2AccessKey = "KEYLINE_R2_ACCESS_KEY_ID"
	EnvR2SecretKey = "KEYLINE_R2_SECRET_ACCESS_KEY"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	R2           R2Config
	Inventory    InventoryConfig
	RateLimit    RateLimitConfig
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
	Env          string `envconfig:"KEYLINE_APP_ENV" required:"true"`
	Port         string `envconfig:"KEYLINE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"KEYLINE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"KEYLINE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"KEYLINE_DB_DSN"`
	Driver string `envconfig:"KEYLINE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"KEYLINE_DB_HOST"`
	LegacyPort     int    `envconfig:"KEYLINE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"KEYLINE_DB_USER"`
	LegacyPassword string `envconfig:"KEYLINE_DB_PASSWORD"`
	LegacyName     string `envconfig:"KEYLINE_DB_NAME"`
	LegacySSLMode  string `envconfig:"KEYLINE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"KEYLINE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"KEYLINE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"KEYLINE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"KEYLINE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"KEYLINE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"KEYLINE_REDIS_ADDR"`
	Password     string        `envconfig:"KEYLINE_REDIS_PASSWORD"`
	DB           int           `envconfig:"KEYLINE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"KEYLINE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"KEYLINE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"KEYLINE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"KEYLINE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"KEYLINE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"KEYLINE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"KEYLINE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"KEYLINE_JWT_EXPIRATION_MINUTES" required:"true"`
}

// R2Config binds the Cloudflare R2 bucket that stores inventory blobs.
type R2Config struct {
	AccountID       string        `envconfig:"KEYLINE_R2_ACCOUNT_ID"`
	BucketName      string        `envconfig:"KEYLINE_R2_BUCKET_NAME"`
	AccessKeyID     string        `envconfig:"KEYLINE_R2_ACCESS_KEY_ID"`
	SecretAccessKey string        `envconfig:"KEYLINE_R2_SECRET_ACCESS_KEY"`
	Endpoint        string        `envconfig:"KEYLINE_R2_ENDPOINT"`
	RequestTimeout  time.Duration `envconfig:"KEYLINE_R2_REQUEST_TIMEOUT" default:"30s"`
}

// Configured reports whether the credentials needed to reach the bucket are present.
func (r R2Config) Configured() bool {
	return r.BucketName != "" && r.AccessKeyID != "" && r.SecretAccessKey != "" &&
		(r.AccountID != "" || r.Endpoint != "")
}

type InventoryConfig struct {
	MaxUploadBytes      int64 `envconfig:"KEYLINE_INVENTORY_MAX_UPLOAD_BYTES" default:"5242880"`
	MaxLinesPerBatch    int   `envconfig:"KEYLINE_INVENTORY_MAX_LINES_PER_BATCH" default:"10000"`
	ReservationAttempts int   `envconfig:"KEYLINE_INVENTORY_RESERVATION_ATTEMPTS" default:"5"`
}

type RateLimitConfig struct {
	PurchaseWindow  time.Duration `envconfig:"KEYLINE_RATE_LIMIT_PURCHASE_WINDOW" default:"1m"`
	PurchaseIPLimit int           `envconfig:"KEYLINE_RATE_LIMIT_PURCHASE_IP_LIMIT" default:"30"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"KEYLINE_AUTO_MIGRATE" default:"false"`
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
