// Package config loads process configuration from the environment so main
// stays lean. Environment variables are the only configuration surface, which
// maps cleanly onto Kubernetes Secrets in deployment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config is read once at startup and treated as read-only for the process
// lifetime. It is passed explicitly rather than kept in package globals.
type Config struct {
	Addr           string        `env:"FLOCK_ADDR" envDefault:":8000"`
	RequestTimeout time.Duration `env:"FLOCK_REQUEST_TIMEOUT" envDefault:"30s"`

	DatabaseURL       string        `env:"DATABASE_URL"`
	DBMaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	DBConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"5m"`

	// IdP settings. Domain is the bare host (e.g. tenant.idp.example.com);
	// Issuer defaults to the https URL the IdP puts in the iss claim.
	IdPDomain       string        `env:"IDP_DOMAIN"`
	IdPIssuer       string        `env:"IDP_ISSUER"`
	IdPAudience     string        `env:"IDP_AUDIENCE"`
	IdPClientID     string        `env:"IDP_CLIENT_ID"`
	IdPClientSecret string        `env:"IDP_CLIENT_SECRET"`
	IdPConnection   string        `env:"IDP_CONNECTION"`
	IdPPublicKey    string        `env:"IDP_PUBLIC_KEY"`
	IdPTimeout      time.Duration `env:"IDP_TIMEOUT" envDefault:"10s"`

	Redis RedisConfig
}

// RedisConfig configures the optional profile cache. An empty URL disables
// Redis entirely.
type RedisConfig struct {
	URL          string        `env:"REDIS_URL"`
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`
	CacheTTL     time.Duration `env:"REDIS_CACHE_TTL" envDefault:"60s"`
}

// FromEnv builds a Config from environment variables.
func FromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if cfg.IdPIssuer == "" && cfg.IdPDomain != "" {
		cfg.IdPIssuer = "https://" + cfg.IdPDomain + "/"
	}
	return cfg, nil
}

// IdPBaseURL returns the base URL for IdP API calls.
func (c Config) IdPBaseURL() string {
	return "https://" + c.IdPDomain
}
