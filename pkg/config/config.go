package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "bozorline"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Password     PasswordConfig
	Verification VerificationConfig
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
	Env          string `envconfig:"BOZORLINE_APP_ENV" required:"true"`
	Port         string `envconfig:"BOZORLINE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"BOZORLINE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"BOZORLINE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"BOZORLINE_DB_DSN"`
	Driver string `envconfig:"BOZORLINE_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"BOZORLINE_DB_HOST"`
	Port     int    `envconfig:"BOZORLINE_DB_PORT" default:"5432"`
	User     string `envconfig:"BOZORLINE_DB_USER"`
	Password string `envconfig:"BOZORLINE_DB_PASSWORD"`
	Name     string `envconfig:"BOZORLINE_DB_NAME"`
	SSLMode  string `envconfig:"BOZORLINE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"BOZORLINE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"BOZORLINE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"BOZORLINE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"BOZORLINE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.Host == "" || db.User == "" || db.Name == "" {
		return fmt.Errorf("either BOZORLINE_DB_DSN or host/user/name settings are required")
	}
	dsn := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(db.User, db.Password),
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}
	query := dsn.Query()
	query.Set("sslmode", db.SSLMode)
	dsn.RawQuery = query.Encode()
	db.DSN = dsn.String()
	return nil
}

type RedisConfig struct {
	URL          string        `envconfig:"BOZORLINE_REDIS_URL"`
	Address      string        `envconfig:"BOZORLINE_REDIS_ADDR"`
	Password     string        `envconfig:"BOZORLINE_REDIS_PASSWORD"`
	DB           int           `envconfig:"BOZORLINE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"BOZORLINE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"BOZORLINE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"BOZORLINE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BOZORLINE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"BOZORLINE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"BOZORLINE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"BOZORLINE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"BOZORLINE_JWT_EXPIRATION_MINUTES" default:"60"`
	SessionTTLMinutes int    `envconfig:"BOZORLINE_SESSION_TTL_MINUTES" default:"43200"`
}

// SessionTTL returns the server-side session lifetime.
func (j JWTConfig) SessionTTL() time.Duration {
	if j.SessionTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.SessionTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"BOZORLINE_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"BOZORLINE_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"BOZORLINE_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"BOZORLINE_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"BOZORLINE_ARGON_KEY_LEN" default:"32"`
}

type VerificationConfig struct {
	CodeTTL    time.Duration `envconfig:"BOZORLINE_VERIFICATION_CODE_TTL" default:"5m"`
	CodeLength int           `envconfig:"BOZORLINE_VERIFICATION_CODE_LENGTH" default:"6"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"BOZORLINE_AUTO_MIGRATE" default:"false"`
}
