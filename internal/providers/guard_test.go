package providers

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/JustinTDCT/MediaForge/internal/breaker"
	"github.com/JustinTDCT/MediaForge/internal/models"
	"github.com/JustinTDCT/MediaForge/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGuarded(inner Adapter, prio Priority) (*Guard, *ratelimit.Limiter, *breaker.Breakers) {
	lim := ratelimit.New()
	brk := breaker.NewWithSettings(3, time.Minute)
	return NewGuard(inner, lim, brk, prio, 0), lim, brk
}

// fastPriority keeps retry sleeps short in tests.
var fastPriority = Priority{Name: "user", Timeout: time.Second, MaxRetries: 2}

func TestGuardRetriesRetryableErrors(t *testing.T) {
	calls := 0
	inner := &fakeAdapter{
		name: "flaky",
		caps: movieCaps(models.AssetPoster),
		search: func(ctx context.Context, q Query) ([]SearchResult, error) {
			calls++
			if calls < 3 {
				return nil, newError("flaky", ErrServer, fmt.Errorf("boom"))
			}
			return []SearchResult{{ProviderResultID: "1"}}, nil
		},
	}
	g, _, _ := newGuarded(inner, fastPriority)

	out, err := g.Search(context.Background(), Query{Text: "x"})
	require.NoError(t, err)
	assert.Len(t, out, 1)
	assert.Equal(t, 3, calls)
}

func TestGuardDoesNotRetryNonRetryable(t *testing.T) {
	calls := 0
	inner := &fakeAdapter{
		name: "authfail",
		caps: movieCaps(),
		search: func(ctx context.Context, q Query) ([]SearchResult, error) {
			calls++
			return nil, newError("authfail", ErrAuth, fmt.Errorf("bad key"))
		},
	}
	g, _, _ := newGuarded(inner, fastPriority)

	_, err := g.Search(context.Background(), Query{Text: "x"})
	require.Error(t, err)
	assert.Equal(t, 1, calls)

	var pe *Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, ErrAuth, pe.Kind)
}

func TestGuardNotFoundDoesNotTripCircuit(t *testing.T) {
	inner := &fakeAdapter{
		name: "empty",
		caps: movieCaps(),
		search: func(ctx context.Context, q Query) ([]SearchResult, error) {
			return nil, newError("empty", ErrNotFound, fmt.Errorf("404"))
		},
	}
	g, _, brk := newGuarded(inner, fastPriority)

	for i := 0; i < 10; i++ {
		_, err := g.Search(context.Background(), Query{Text: "x"})
		require.True(t, IsNotFound(err))
	}
	// Circuit stays closed: 404s are answers, not failures.
	_, err := g.Search(context.Background(), Query{Text: "x"})
	require.True(t, IsNotFound(err))
	assert.NotEqual(t, ErrCircuitOpen, kindOf(err))
	_ = brk
}

func TestGuardCircuitOpenFastFail(t *testing.T) {
	calls := 0
	inner := &fakeAdapter{
		name: "down",
		caps: movieCaps(),
		search: func(ctx context.Context, q Query) ([]SearchResult, error) {
			calls++
			return nil, newError("down", ErrAuth, fmt.Errorf("hard failure"))
		},
	}
	lim := ratelimit.New()
	brk := breaker.NewWithSettings(2, time.Minute)
	g := NewGuard(inner, lim, brk, fastPriority, 0)

	// Two non-retryable hard failures trip the 2-failure circuit.
	g.Search(context.Background(), Query{Text: "x"})
	g.Search(context.Background(), Query{Text: "x"})

	before := calls
	_, err := g.Search(context.Background(), Query{Text: "x"})
	require.Error(t, err)
	assert.Equal(t, ErrCircuitOpen, kindOf(err))
	assert.Equal(t, before, calls, "open circuit must not reach the adapter")
}

func TestGuard429SuspendsLimiter(t *testing.T) {
	inner := &fakeAdapter{
		name: "limited",
		caps: movieCaps(),
		search: func(ctx context.Context, q Query) ([]SearchResult, error) {
			e := newError("limited", ErrRateLimit, fmt.Errorf("429"))
			e.RetryAfter = time.Hour
			return nil, e
		},
	}
	// Zero retries so the test returns after the first 429.
	g, lim, _ := newGuarded(inner, Priority{Name: "user", Timeout: time.Second, MaxRetries: 0})

	_, err := g.Search(context.Background(), Query{Text: "x"})
	require.Error(t, err)
	assert.Equal(t, ErrRateLimit, kindOf(err))
	assert.False(t, lim.SuspendedUntil("limited").IsZero())
}

func kindOf(err error) ErrorKind {
	var pe *Error
	if !errors.As(err, &pe) {
		return ""
	}
	return pe.Kind
}
