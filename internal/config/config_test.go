package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Primary.Env)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSAllowedOrigins)
	assert.Equal(t, StorageMemory, cfg.Storage.Driver)
	assert.Equal(t, "11111111-1111-1111-1111-111111111111", cfg.Assistant.ID)
	assert.Equal(t, "echo", cfg.Assistant.GraphID)
	assert.Equal(t, 20*time.Millisecond, cfg.Stream.TokenDelay)
	assert.Nil(t, cfg.Database)
	assert.Nil(t, cfg.Redis)
	assert.False(t, cfg.Auth.Enabled())

	require.NotNil(t, cfg.Observability)
	assert.Equal(t, ServiceName, cfg.Observability.ServiceName)
	assert.Equal(t, "development", cfg.Observability.Environment)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("ECHOAGENT_PRIMARY.ENV", "production")
	t.Setenv("ECHOAGENT_SERVER.PORT", "9090")
	t.Setenv("ECHOAGENT_SERVER.CORS_ALLOWED_ORIGINS", "http://localhost:3000, https://chat.example.com")
	t.Setenv("ECHOAGENT_STREAM.TOKEN_DELAY", "5ms")
	t.Setenv("ECHOAGENT_ASSISTANT.NAME", "Parrot")
	t.Setenv("ECHOAGENT_REDIS.ADDRESS", "localhost:6379")
	t.Setenv("ECHOAGENT_JOBS.THREAD_TTL", "24h")
	t.Setenv("ECHOAGENT_OBSERVABILITY.LOGGING.LEVEL", "warn")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, []string{"http://localhost:3000", "https://chat.example.com"}, cfg.Server.CORSAllowedOrigins)
	assert.Equal(t, 5*time.Millisecond, cfg.Stream.TokenDelay)
	assert.Equal(t, "Parrot", cfg.Assistant.Name)
	assert.Equal(t, "echo", cfg.Assistant.GraphID, "untouched keys keep their defaults")
	require.NotNil(t, cfg.Redis)
	assert.Equal(t, "localhost:6379", cfg.Redis.Address)
	assert.Equal(t, 24*time.Hour, cfg.Jobs.ThreadTTL)
	assert.Equal(t, "warn", cfg.Observability.GetLogLevel())
	assert.Equal(t, "json", cfg.Observability.Logging.Format)
	assert.True(t, cfg.Observability.IsProduction())
}

func TestLoadConfig_PostgresRequiresDatabase(t *testing.T) {
	t.Setenv("ECHOAGENT_STORAGE.DRIVER", "postgres")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires database configuration")
}

func TestLoadConfig_RejectsSubSecondThreadTTL(t *testing.T) {
	t.Setenv("ECHOAGENT_JOBS.THREAD_TTL", "500ms")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jobs.thread_ttl")
}

func TestLoadConfig_RejectsUnknownDriver(t *testing.T) {
	t.Setenv("ECHOAGENT_STORAGE.DRIVER", "sqlite")

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestLoadConfig_RejectsBadAssistantID(t *testing.T) {
	t.Setenv("ECHOAGENT_ASSISTANT.ID", "not-a-uuid")

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestObservabilityConfig_Validate(t *testing.T) {
	cfg := DefaultObservabilityConfig()
	require.NoError(t, cfg.Validate())

	cfg.Logging.Level = "verbose"
	assert.Error(t, cfg.Validate())

	cfg = DefaultObservabilityConfig()
	cfg.HealthChecks.Checks = []string{"database"}
	assert.Error(t, cfg.Validate())

	cfg = DefaultObservabilityConfig()
	cfg.Logging.SlowQueryThreshold = -time.Second
	assert.Error(t, cfg.Validate())
}

func TestObservabilityConfig_GetLogLevel(t *testing.T) {
	cfg := DefaultObservabilityConfig()
	cfg.Logging.Level = ""

	cfg.Environment = "production"
	assert.Equal(t, "info", cfg.GetLogLevel())

	cfg.Environment = "development"
	assert.Equal(t, "debug", cfg.GetLogLevel())

	cfg.Logging.Level = "error"
	assert.Equal(t, "error", cfg.GetLogLevel())
}

func TestObservabilityConfig_HasCheck(t *testing.T) {
	cfg := DefaultObservabilityConfig()
	assert.True(t, cfg.HasCheck("storage"))
	assert.True(t, cfg.HasCheck("redis"))

	cfg.HealthChecks.Enabled = false
	assert.False(t, cfg.HasCheck("storage"))
}
