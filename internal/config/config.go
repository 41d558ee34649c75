// Package config loads application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all runtime configuration values.  Security relevant values
// (secret, cache endpoint, verdict TTL, revocation policy) have no defaults:
// a process missing any of them refuses to start.
type Config struct {
	Env  string `envconfig:"APP_ENV" default:"dev"`
	Port string `envconfig:"APP_PORT" default:"8080"`

	DBUser string `envconfig:"DB_USER" required:"true"`
	DBPass string `envconfig:"DB_PASS"`
	DBHost string `envconfig:"DB_HOST" required:"true"`
	DBPort string `envconfig:"DB_PORT" required:"true"`
	DBName string `envconfig:"DB_NAME" required:"true"`

	JWTSecret      string        `envconfig:"JWT_SECRET" required:"true"`
	AccessTokenTTL time.Duration `envconfig:"ACCESS_TOKEN_TTL" required:"true"`
	// BcryptCost must match the cost stored password hashes were made with.
	BcryptCost int `envconfig:"BCRYPT_COST" default:"12"`

	Redis RedisConfig

	// PermissionCacheTTL bounds how long a verdict may be served without
	// consulting the store.
	PermissionCacheTTL time.Duration `envconfig:"PERMISSION_CACHE_TTL" required:"true"`
	// RevocationFailOpen lets requests through when the blacklist is down.
	RevocationFailOpen *bool `envconfig:"REVOCATION_FAIL_OPEN" required:"true"`
	// PermissionFanout invalidates every holder of a role when its grants change.
	PermissionFanout bool `envconfig:"PERMISSION_FANOUT" default:"true"`

	RabbitMQURL  string `envconfig:"RABBITMQ_URL"`
	AuditLogPath string `envconfig:"AUDIT_LOG_PATH" default:"logs/rbac_audit.log"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`

	RateLimit RateLimitConfig
}

// RedisConfig locates the Redis server shared by the verdict cache, the
// token blacklist and the login rate limiter.
type RedisConfig struct {
	Addr     string `envconfig:"REDIS_ADDR" required:"true"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
	TLS      bool   `envconfig:"REDIS_TLS" default:"false"`
}

// RateLimitConfig drives the Redis token bucket in front of login.
type RateLimitConfig struct {
	Enabled        bool          `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
	Capacity       int           `envconfig:"RATE_LIMIT_CAPACITY" default:"10"`
	RefillTokens   int           `envconfig:"RATE_LIMIT_REFILL_TOKENS" default:"1"`
	RefillInterval time.Duration `envconfig:"RATE_LIMIT_REFILL_INTERVAL" default:"6s"`
	TTL            time.Duration `envconfig:"RATE_LIMIT_TTL" default:"10m"`
	Prefix         string        `envconfig:"RATE_LIMIT_PREFIX" default:"rl"`
}

// Load reads an optional .env file and then the environment.  Values
// already exported win over the file.  A missing .env is fine; one that
// cannot be parsed is an error.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values envconfig cannot express.  Every violation is
// reported, not only the first.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.JWTSecret) == "" {
		errs = append(errs, errors.New("JWT_SECRET must not be blank"))
	} else if len(c.JWTSecret) < 32 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 32 bytes"))
	}
	if c.AccessTokenTTL <= 0 {
		errs = append(errs, errors.New("ACCESS_TOKEN_TTL must be positive"))
	}
	if c.PermissionCacheTTL <= 0 {
		errs = append(errs, errors.New("PERMISSION_CACHE_TTL must be positive"))
	}
	if c.RevocationFailOpen == nil {
		errs = append(errs, errors.New("REVOCATION_FAIL_OPEN must be set"))
	}
	if strings.TrimSpace(c.Redis.Addr) == "" {
		errs = append(errs, errors.New("REDIS_ADDR must not be blank"))
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		errs = append(errs, fmt.Errorf("BCRYPT_COST %d out of range [4,31]", c.BcryptCost))
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT %q must be text or json", c.LogFormat))
	}
	rl := &c.RateLimit
	if rl.Enabled {
		if rl.Capacity < 1 {
			errs = append(errs, errors.New("RATE_LIMIT_CAPACITY must be at least 1"))
		}
		if rl.RefillTokens < 1 {
			errs = append(errs, errors.New("RATE_LIMIT_REFILL_TOKENS must be at least 1"))
		}
		if rl.RefillInterval <= 0 {
			errs = append(errs, errors.New("RATE_LIMIT_REFILL_INTERVAL must be positive"))
		}
		if floor := 5 * rl.RefillInterval; rl.TTL < floor {
			rl.TTL = floor
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// FailOpen reports the configured revocation policy.
func (c *Config) FailOpen() bool {
	return c.RevocationFailOpen != nil && *c.RevocationFailOpen
}
