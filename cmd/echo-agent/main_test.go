package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRun_StartupFailureReturnsExitCode(t *testing.T) {
	t.Setenv("ECHOAGENT_STORAGE.DRIVER", "postgres")
	t.Setenv("ECHOAGENT_DATABASE.HOST", "127.0.0.1")
	t.Setenv("ECHOAGENT_DATABASE.PORT", "1")
	t.Setenv("ECHOAGENT_DATABASE.USER", "echo")
	t.Setenv("ECHOAGENT_DATABASE.PASSWORD", "echo")
	t.Setenv("ECHOAGENT_DATABASE.NAME", "echo")
	t.Setenv("ECHOAGENT_DATABASE.SSL_MODE", "disable")
	t.Setenv("ECHOAGENT_DATABASE.MAX_OPEN_CONNS", "2")
	t.Setenv("ECHOAGENT_DATABASE.MAX_IDLE_CONNS", "1")
	t.Setenv("ECHOAGENT_DATABASE.CONN_MAX_LIFETIME", "60")
	t.Setenv("ECHOAGENT_DATABASE.CONN_MAX_IDLE_TIME", "60")

	assert.Equal(t, 1, run())
}
