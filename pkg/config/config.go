package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix  = "ARCHIVE"
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App        AppConfig
	DB         DBConfig
	Redis      RedisConfig
	JWT        JWTConfig
	Password   PasswordConfig
	Session    SessionConfig
	Compliance ComplianceConfig
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
	Env          string `envconfig:"ARCHIVE_APP_ENV" required:"true"`
	Port         string `envconfig:"ARCHIVE_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"ARCHIVE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"ARCHIVE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"ARCHIVE_DB_DSN"`
	Driver string `envconfig:"ARCHIVE_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"ARCHIVE_DB_HOST"`
	Port     int    `envconfig:"ARCHIVE_DB_PORT" default:"5432"`
	User     string `envconfig:"ARCHIVE_DB_USER"`
	Password string `envconfig:"ARCHIVE_DB_PASSWORD"`
	Name     string `envconfig:"ARCHIVE_DB_NAME"`
	SSLMode  string `envconfig:"ARCHIVE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"ARCHIVE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"ARCHIVE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"ARCHIVE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ARCHIVE_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	AutoMigrate   bool   `envconfig:"ARCHIVE_DB_AUTO_MIGRATE" default:"false"`
	MigrationsDir string `envconfig:"ARCHIVE_DB_MIGRATIONS_DIR" default:"pkg/migrate/migrations"`
}

func (d *DBConfig) ensureDSN() error {
	if d.DSN != "" {
		return nil
	}
	if d.Host == "" || d.User == "" || d.Name == "" {
		return fmt.Errorf("database DSN or host/user/name required")
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   "/" + d.Name,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	d.DSN = u.String()
	return nil
}

type RedisConfig struct {
	URL          string        `envconfig:"ARCHIVE_REDIS_URL"`
	Address      string        `envconfig:"ARCHIVE_REDIS_ADDR"`
	Password     string        `envconfig:"ARCHIVE_REDIS_PASSWORD"`
	DB           int           `envconfig:"ARCHIVE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ARCHIVE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ARCHIVE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ARCHIVE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ARCHIVE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ARCHIVE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"ARCHIVE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"ARCHIVE_JWT_ISSUER" default:"archive-backend"`
	ExpirationMinutes int    `envconfig:"ARCHIVE_JWT_EXPIRATION_MINUTES" default:"60"`
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"ARCHIVE_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"ARCHIVE_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"ARCHIVE_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"ARCHIVE_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"ARCHIVE_ARGON_KEY_LEN" default:"32"`
}

type SessionConfig struct {
	// InactivityTimeout is the sliding idle window after which a session is
	// expired and the expiry audited. The system_policies row can shorten it
	// per deployment; this is the ceiling.
	InactivityTimeout time.Duration `envconfig:"ARCHIVE_SESSION_INACTIVITY_TIMEOUT" default:"30m"`
}

type ComplianceConfig struct {
	// EnforceSeparationOfDuties rejects approve/reject/send-back calls made by
	// the request's own creator. The reference deployment left this relaxed;
	// relaxing it here requires an explicit opt-out.
	EnforceSeparationOfDuties bool `envconfig:"ARCHIVE_ENFORCE_SEPARATION_OF_DUTIES" default:"true"`
}
