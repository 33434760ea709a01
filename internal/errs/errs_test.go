package errs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructors(t *testing.T) {
	notFound := NewNotFoundError("Thread not found", false, nil)
	assert.Equal(t, "NOT_FOUND", notFound.Code)
	assert.Equal(t, http.StatusNotFound, notFound.Status)
	assert.Equal(t, "Thread not found", notFound.Error())

	code := "UNKNOWN_ASSISTANT"
	bad := NewBadRequestError("Unknown assistant_id", true, &code, nil, nil)
	assert.Equal(t, code, bad.Code)
	assert.Equal(t, http.StatusBadRequest, bad.Status)
	assert.True(t, bad.Override)

	assert.Equal(t, "TOO_MANY_REQUESTS", NewTooManyRequestsError("slow down").Code)
	assert.Equal(t, "INTERNAL_SERVER_ERROR", NewInternalServerError().Code)
	assert.Equal(t, "UNAUTHORIZED", NewUnauthorizedError("no", false).Code)
}

func TestHTTPError_IsAndAs(t *testing.T) {
	wrapped := fmt.Errorf("loading thread: %w", NewNotFoundError("Thread not found", false, nil))

	assert.True(t, errors.Is(wrapped, &HTTPError{}))

	var httpErr *HTTPError
	require.True(t, errors.As(wrapped, &httpErr))
	assert.Equal(t, http.StatusNotFound, httpErr.Status)
}

func TestHTTPError_WithMessage(t *testing.T) {
	base := NewNotFoundError("Thread not found", false, nil)
	other := base.WithMessage("Run not found")

	assert.Equal(t, "Thread not found", base.Message)
	assert.Equal(t, "Run not found", other.Message)
	assert.Equal(t, base.Code, other.Code)
}
