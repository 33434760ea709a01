// Package config manages environment variables.
//
// It reads variables from the process environment (and a `.env` file when
// present), loads them into structured Go types, and validates them so the
// service fails fast on bad configuration.
//
// Every value has a default, so the echo agent runs with no configuration at
// all: in-memory storage on port 8080 with CORS open to every origin.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	// Side-effect import: loads `.env` into the process environment before
	// anything reads it.
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

/*
	Env vars are read using the ECHOAGENT_ prefix. Keys are lowercased with
	the prefix removed, and "." separates nesting:

	  ECHOAGENT_SERVER.PORT          -> server.port       -> Config.Server.Port
	  ECHOAGENT_STREAM.TOKEN_DELAY   -> stream.token_delay -> Config.Stream.TokenDelay
*/

// EnvPrefix is the prefix every configuration variable carries.
const EnvPrefix = "ECHOAGENT_"

// Storage drivers accepted by storage.driver.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// listKeys are the keys whose env values are comma-separated lists.
var listKeys = map[string]bool{
	"server.cors_allowed_origins":        true,
	"observability.health_checks.checks": true,
}

// Config is the root configuration object for the application.
//
// Database and Redis are pointers because they are optional: the memory
// store needs neither, and Redis only powers background jobs and health
// reporting.
type Config struct {
	Primary       Primary              `koanf:"primary" validate:"required"`
	Server        ServerConfig         `koanf:"server" validate:"required"`
	Assistant     AssistantConfig      `koanf:"assistant" validate:"required"`
	Stream        StreamConfig         `koanf:"stream"`
	Storage       StorageConfig        `koanf:"storage" validate:"required"`
	Database      *DatabaseConfig      `koanf:"database"`
	Redis         *RedisConfig         `koanf:"redis"`
	Jobs          JobsConfig           `koanf:"jobs"`
	Auth          AuthConfig           `koanf:"auth"`
	RateLimit     RateLimitConfig      `koanf:"rate_limit"`
	Observability *ObservabilityConfig `koanf:"observability"`
}

// Primary holds top-level information about the runtime environment.
type Primary struct {
	Env string `koanf:"env" validate:"required"`
}

// ServerConfig groups settings for the HTTP server runtime.
//
// Timeouts are seconds. WriteTimeout defaults to 0 (no limit) because a
// streaming run keeps its response open for as long as the agent talks.
type ServerConfig struct {
	Port               string   `koanf:"port" validate:"required"`
	ReadTimeout        int      `koanf:"read_timeout" validate:"min=0"`
	WriteTimeout       int      `koanf:"write_timeout" validate:"min=0"`
	IdleTimeout        int      `koanf:"idle_timeout" validate:"min=0"`
	ShutdownTimeout    int      `koanf:"shutdown_timeout" validate:"min=1"`
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins" validate:"required,min=1"`
}

// AssistantConfig describes the single assistant this backend serves.
type AssistantConfig struct {
	ID          string `koanf:"id" validate:"required,uuid"`
	GraphID     string `koanf:"graph_id" validate:"required"`
	Name        string `koanf:"name" validate:"required"`
	Description string `koanf:"description"`
}

// StreamConfig tunes the SSE stream of a run.
type StreamConfig struct {
	// TokenDelay is the pause between streamed chunks.
	TokenDelay time.Duration `koanf:"token_delay" validate:"min=0"`
}

// StorageConfig selects the thread/run/checkpoint store.
type StorageConfig struct {
	Driver string `koanf:"driver" validate:"required,oneof=memory postgres"`
}

// DatabaseConfig contains PostgreSQL connection parameters and pool tuning.
type DatabaseConfig struct {
	Host            string `koanf:"host" validate:"required"`
	Port            int    `koanf:"port" validate:"required"`
	User            string `koanf:"user" validate:"required"`
	Password        string `koanf:"password" validate:"required"`
	Name            string `koanf:"name" validate:"required"`
	SSLMode         string `koanf:"ssl_mode" validate:"required"`
	MaxOpenConns    int    `koanf:"max_open_conns" validate:"required"`
	MaxIdleConns    int    `koanf:"max_idle_conns" validate:"required"`
	ConnMaxLifetime int    `koanf:"conn_max_lifetime" validate:"required"`
	ConnMaxIdleTime int    `koanf:"conn_max_idle_time" validate:"required"`
}

// RedisConfig contains Redis connection details.
// Address is typically "host:port".
type RedisConfig struct {
	Address string `koanf:"address" validate:"required"`
}

// JobsConfig controls background maintenance jobs. A zero ThreadTTL
// disables thread pruning.
type JobsConfig struct {
	ThreadTTL     time.Duration `koanf:"thread_ttl" validate:"min=0"`
	PruneInterval time.Duration `koanf:"prune_interval" validate:"min=1m"`
}

// AuthConfig stores the Clerk secret key. Auth is off when it is empty.
type AuthConfig struct {
	SecretKey string `koanf:"secret_key"`
}

// Enabled reports whether API routes require a Clerk session.
func (a AuthConfig) Enabled() bool {
	return a.SecretKey != ""
}

// RateLimitConfig configures the per-client request limiter.
type RateLimitConfig struct {
	Enabled           bool    `koanf:"enabled"`
	RequestsPerSecond float64 `koanf:"requests_per_second" validate:"min=0"`
	Burst             int     `koanf:"burst" validate:"min=0"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Primary: Primary{Env: "development"},
		Server: ServerConfig{
			Port:               "8080",
			ReadTimeout:        30,
			WriteTimeout:       0,
			IdleTimeout:        120,
			ShutdownTimeout:    30,
			CORSAllowedOrigins: []string{"*"},
		},
		Assistant: AssistantConfig{
			ID:          "11111111-1111-1111-1111-111111111111",
			GraphID:     "echo",
			Name:        "Echo Assistant",
			Description: "Replies with exactly what you said.",
		},
		Stream: StreamConfig{
			TokenDelay: 20 * time.Millisecond,
		},
		Storage: StorageConfig{Driver: StorageMemory},
		Jobs: JobsConfig{
			ThreadTTL:     0,
			PruneInterval: time.Hour,
		},
		RateLimit: RateLimitConfig{
			Enabled:           false,
			RequestsPerSecond: 20,
			Burst:             40,
		},
		Observability: DefaultObservabilityConfig(),
	}
}

// LoadConfig loads configuration from ECHOAGENT_ environment variables on
// top of Default, validates it, and fills in observability defaults.
func LoadConfig() (*Config, error) {
	k := koanf.New(".")

	err := k.Load(env.ProviderWithValue(EnvPrefix, ".", func(key, value string) (string, interface{}) {
		key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
		if listKeys[key] {
			return key, splitList(value)
		}
		return key, value
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("could not load env variables: %w", err)
	}

	mainConfig := Default()
	if err := k.Unmarshal("", mainConfig); err != nil {
		return nil, fmt.Errorf("could not unmarshal config: %w", err)
	}

	if err := mainConfig.finalize(); err != nil {
		return nil, err
	}

	return mainConfig, nil
}

// finalize validates the config, injects observability defaults, and
// checks cross-field rules that struct tags cannot express.
func (c *Config) finalize() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	if c.Storage.Driver == StoragePostgres && c.Database == nil {
		return fmt.Errorf("storage driver %q requires database configuration", StoragePostgres)
	}

	if c.Jobs.ThreadTTL != 0 && c.Jobs.ThreadTTL < time.Second {
		return fmt.Errorf("jobs.thread_ttl must be 0 or at least 1s, got %s", c.Jobs.ThreadTTL)
	}

	if c.Observability == nil {
		c.Observability = DefaultObservabilityConfig()
	}

	// Service name and environment always follow the primary config.
	c.Observability.ServiceName = ServiceName
	c.Observability.Environment = c.Primary.Env

	if err := c.Observability.Validate(); err != nil {
		return fmt.Errorf("invalid observability config: %w", err)
	}

	return nil
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
