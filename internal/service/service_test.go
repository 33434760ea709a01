package service

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/deppfellow/agent-chat-backend/internal/repository"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotFound(t *testing.T) {
	missing := fmt.Errorf("table:threads: t-1 %w", repository.ErrNotFound)
	requireHTTPError(t, notFound(missing, MsgThreadNotFound), http.StatusNotFound, MsgThreadNotFound)

	assert.NoError(t, notFound(nil, MsgThreadNotFound))

	cause := fmt.Errorf("connection reset")
	err := notFound(cause, MsgThreadNotFound)
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "connection reset", err.Error())

	var traced interface{ StackTrace() errors.StackTrace }
	require.True(t, errors.As(err, &traced))
	assert.NotEmpty(t, traced.StackTrace())
}
