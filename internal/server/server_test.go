package server

import (
	"context"
	"net/http"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/deppfellow/agent-chat-backend/internal/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_MemoryWithoutRedis(t *testing.T) {
	logger := zerolog.Nop()
	cfg := config.Default()

	s, err := New(cfg, &logger, nil)
	require.NoError(t, err)
	assert.Nil(t, s.DB)
	assert.Nil(t, s.Redis)
	assert.Nil(t, s.Job)

	assert.EqualError(t, s.Start(), "HTTP server not initialized")
	assert.NoError(t, s.Shutdown(context.Background()))
}

func TestNew_WithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	logger := zerolog.Nop()
	cfg := config.Default()
	cfg.Redis = &config.RedisConfig{Address: mr.Addr()}

	s, err := New(cfg, &logger, nil)
	require.NoError(t, err)
	require.NotNil(t, s.Redis)
	require.NotNil(t, s.Job)
	t.Cleanup(func() {
		_ = s.Job.Client.Close()
		_ = s.Redis.Close()
	})

	assert.NoError(t, s.Redis.Ping(context.Background()).Err())
}

func TestSetupHTTPServer(t *testing.T) {
	logger := zerolog.Nop()
	cfg := config.Default()
	cfg.Server.Port = "9999"

	s, err := New(cfg, &logger, nil)
	require.NoError(t, err)

	s.SetupHTTPServer(http.NotFoundHandler())
	require.NotNil(t, s.httpServer)
	assert.Equal(t, ":9999", s.httpServer.Addr)
	assert.Zero(t, s.httpServer.WriteTimeout)
}
