package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Logging   LogConfig
	Timing    TimingConfig
	HTTP      HTTPConfig
	RateLimit RateLimitConfig
	// RulesFile optionally points at a YAML file extending the built-in
	// vocabulary and endpoint rules.
	RulesFile string `envconfig:"RULES_FILE"`
}

// ServerConfig holds bridge server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8787"`
	Host string `envconfig:"HOST" default:"127.0.0.1"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// TimingConfig holds the delays of the interception flows.
type TimingConfig struct {
	// LoaderGrace is how long the hidden background loader lives.
	LoaderGrace time.Duration `envconfig:"LOADER_GRACE" default:"5s"`
	// RevokeDelay is how long an object URL outlives its save-as.
	RevokeDelay time.Duration `envconfig:"REVOKE_DELAY" default:"1s"`
	// SelectionTimeout bounds the wait for a file chooser answer.
	SelectionTimeout time.Duration `envconfig:"SELECTION_TIMEOUT" default:"60s"`
}

// HTTPConfig holds the outbound client configuration.
type HTTPConfig struct {
	Timeout      time.Duration `envconfig:"HTTP_TIMEOUT" default:"30s"`
	Retries      int           `envconfig:"HTTP_RETRIES" default:"0"`
	RateLimit    float64       `envconfig:"HTTP_RATE_LIMIT" default:"0"`
	UserAgent    string        `envconfig:"HTTP_USER_AGENT" default:"pagehook/1.0"`
	FetchEnabled bool          `envconfig:"FETCH_ENABLED" default:"true"`
}

// RateLimitConfig holds per-IP rate limiting of the bridge server.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8787",
			Host: "127.0.0.1",
		},
		Logging: LogConfig{
			Level: "info",
		},
		Timing: TimingConfig{
			LoaderGrace:      5 * time.Second,
			RevokeDelay:      time.Second,
			SelectionTimeout: 60 * time.Second,
		},
		HTTP: HTTPConfig{
			Timeout:      30 * time.Second,
			UserAgent:    "pagehook/1.0",
			FetchEnabled: true,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}

// Addr returns the listen address of the bridge server.
func (c *Config) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}
