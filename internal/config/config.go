// Package config handles application configuration from environment variables
package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// Config holds all application configuration
type Config struct {
	Port        string `env:"PORT"         envDefault:"8080"`
	BaseURL     string `env:"BASE_URL"     envDefault:"http://localhost:8080"`
	DatabaseURL string `env:"DATABASE_URL"`
	LogLevel    string `env:"LOG_LEVEL"    envDefault:"info"`

	Redis RedisConfig
	JWT   JWTConfig

	// LookupCacheTTL is the expiry of read-through cached lookups.
	LookupCacheTTL time.Duration `env:"LOOKUP_CACHE_TTL" envDefault:"10s"`
}

// RedisConfig points at the shared cache store.
type RedisConfig struct {
	Addr     string        `env:"REDIS_ADDR"     envDefault:"localhost:6379"`
	Username string        `env:"REDIS_USERNAME"`
	Password string        `env:"REDIS_PASSWORD"`
	DB       int           `env:"REDIS_DB"       envDefault:"0"`
	Timeout  time.Duration `env:"REDIS_TIMEOUT"  envDefault:"3s"`
}

// JWTConfig holds token signing settings
type JWTConfig struct {
	Algorithm          string        `env:"JWT_ALGORITHM"            envDefault:"HS256"`
	Secret             string        `env:"JWT_SECRET"`
	PrivateKey         string        `env:"JWT_PRIVATE_KEY"`
	PublicKey          string        `env:"JWT_PUBLIC_KEY"`
	AccessTTL          time.Duration `env:"JWT_ACCESS_TTL"           envDefault:"15m"`
	ReferralExpireDays int           `env:"JWT_REFERRAL_EXPIRE_DAYS" envDefault:"100"`
}

// Load reads configuration from environment variables
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "parse env")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ReferralTTL is how long an issued referral token stays valid and cached.
func (c Config) ReferralTTL() time.Duration {
	return time.Duration(c.JWT.ReferralExpireDays) * 24 * time.Hour
}

// Level parses LOG_LEVEL, falling back to info.
func (c Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// Validate checks the settings that have no usable default
func (c Config) Validate() error {
	switch c.JWT.Algorithm {
	case "HS256":
		if c.JWT.Secret == "" {
			return errors.New("JWT_SECRET is required for HS256")
		}
	case "RS256":
		if c.JWT.PublicKey == "" {
			return errors.New("JWT_PUBLIC_KEY is required for RS256")
		}
	default:
		return errors.Newf("JWT_ALGORITHM must be HS256 or RS256, got %q", c.JWT.Algorithm)
	}
	if c.JWT.ReferralExpireDays <= 0 {
		return errors.Newf("JWT_REFERRAL_EXPIRE_DAYS must be positive, got %d", c.JWT.ReferralExpireDays)
	}
	if c.Redis.Timeout <= 0 {
		return errors.Newf("REDIS_TIMEOUT must be positive, got %s", c.Redis.Timeout)
	}
	if c.LookupCacheTTL < time.Second {
		return errors.Newf("LOOKUP_CACHE_TTL must be at least 1s, got %s", c.LookupCacheTTL)
	}
	return nil
}
