package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the server settings, read from the environment.
type Config struct {
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":8080"`
	// FunctionsPort overrides ListenAddr when the process runs as an
	// Azure Functions custom handler.
	FunctionsPort string `env:"FUNCTIONS_CUSTOMHANDLER_PORT"`
	Debug         bool   `env:"DEBUG"`
	// DevMode swaps the table store for an in-memory repository when
	// no connection string is configured.
	DevMode bool `env:"DEV_MODE"`

	StorageConnStr string `env:"STORAGE_CONNECTION_STRING"`
	TasksTable     string `env:"TASKS_TABLE" envDefault:"tasks"`

	RedisConnStr string        `env:"REDIS_CONNECTION_STRING"`
	CacheTTL     time.Duration `env:"TASKS_CACHE_TTL" envDefault:"30s"`

	AuthDomain    string `env:"AUTH0_DOMAIN"`
	AuthAudience  string `env:"AUTH0_AUDIENCE"`
	AuthTestMode  bool   `env:"AUTH_TEST_MODE"`
	LocalAuthMode string `env:"LOCAL_AUTH_MODE"`
}

// Load parses the configuration from environment variables.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Addr returns the address the server should listen on.
func (c Config) Addr() string {
	if c.FunctionsPort != "" {
		return ":" + c.FunctionsPort
	}
	return c.ListenAddr
}
