package providers

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/JustinTDCT/MediaForge/internal/breaker"
	"github.com/stretchr/testify/assert"
)

func TestStatusErrorMapping(t *testing.T) {
	tests := []struct {
		status    int
		kind      ErrorKind
		retryable bool
	}{
		{429, ErrRateLimit, true},
		{500, ErrServer, true},
		{503, ErrServer, true},
		{401, ErrAuth, false},
		{403, ErrAuth, false},
		{404, ErrNotFound, false},
		{400, ErrValidation, false},
	}
	for _, tt := range tests {
		err := statusError("tmdb", tt.status, "")
		assert.Equal(t, tt.kind, err.Kind, "status %d", tt.status)
		assert.Equal(t, tt.retryable, err.Retryable(), "status %d", tt.status)
	}
}

func TestStatusErrorRetryAfter(t *testing.T) {
	err := statusError("tmdb", 429, "30")
	assert.Equal(t, 30*time.Second, err.RetryAfter)

	err = statusError("tmdb", 429, "garbage")
	assert.Zero(t, err.RetryAfter)
}

func TestTranslate(t *testing.T) {
	assert.NoError(t, translate("tmdb", nil))

	// Typed errors pass through untouched.
	typed := newError("tmdb", ErrAuth, fmt.Errorf("bad key"))
	assert.Same(t, typed, translate("tmdb", typed).(*Error))

	var pe *Error
	assert.True(t, errors.As(translate("tmdb", breaker.ErrCircuitOpen), &pe))
	assert.Equal(t, ErrCircuitOpen, pe.Kind)

	assert.True(t, errors.As(translate("tmdb", context.Canceled), &pe))
	assert.Equal(t, ErrCancelled, pe.Kind)
	assert.False(t, pe.Retryable())

	assert.True(t, errors.As(translate("tmdb", fmt.Errorf("connection reset")), &pe))
	assert.Equal(t, ErrNetwork, pe.Kind)
	assert.True(t, pe.Retryable())
}

func TestHelpers(t *testing.T) {
	assert.True(t, IsRetryable(newError("x", ErrServer, nil)))
	assert.False(t, IsRetryable(newError("x", ErrAuth, nil)))
	assert.False(t, IsRetryable(errors.New("plain")))

	assert.True(t, IsNotFound(newError("x", ErrNotFound, nil)))
	assert.False(t, IsNotFound(newError("x", ErrServer, nil)))

	wrapped := fmt.Errorf("outer: %w", newError("x", ErrRateLimit, nil))
	assert.True(t, IsRetryable(wrapped))
}
