// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN. Required.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// SessionSecret signs session tokens. Required, at least 32 bytes; a
	// misconfigured deploy fails at startup instead of running with a
	// guessable key.
	SessionSecret string `mapstructure:"SESSION_SECRET"`
	// SessionTTL is the session token lifetime (e.g. "720h").
	SessionTTL string `mapstructure:"SESSION_TTL"`
	// CookieSecure marks the session cookie Secure; disable only for local
	// plain-HTTP development.
	CookieSecure bool `mapstructure:"COOKIE_SECURE"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
}

// minSecretLen is the minimum SESSION_SECRET length in bytes.
const minSecretLen = 32

// Load reads .env (if present), then builds and validates Config from the
// environment via Viper. Missing .env is ignored. Env vars override .env.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	// Registered empty so AutomaticEnv can see the key; validation below
	// rejects the empty value.
	v.SetDefault("SESSION_SECRET", "")
	v.SetDefault("SESSION_TTL", "720h")
	v.SetDefault("COOKIE_SECURE", true)
	v.SetDefault("APP_ENV", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("config: DATABASE_URL must be set")
	}
	if len(cfg.SessionSecret) < minSecretLen {
		return nil, fmt.Errorf("config: SESSION_SECRET must be at least %d bytes", minSecretLen)
	}

	return &cfg, nil
}

// TokenTTL parses SessionTTL as a time.Duration. Returns 720h if unset or
// invalid.
func (c *Config) TokenTTL() time.Duration {
	d, err := time.ParseDuration(c.SessionTTL)
	if err != nil || d <= 0 {
		return 720 * time.Hour
	}
	return d
}
