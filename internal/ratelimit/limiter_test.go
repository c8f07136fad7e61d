package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAcquireUnregisteredPassesThrough(t *testing.T) {
	l := New()
	require.NoError(t, l.Acquire(context.Background(), "nobody", PriorityUser))
}

func TestAcquireRespectsDeclaredLimit(t *testing.T) {
	l := New()
	// 2 requests per second, no reserve.
	l.Register("tmdb", 2, time.Second, 0)

	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, l.Acquire(ctx, "tmdb", PriorityUser))
	}
	// Third acquire must have waited for a refill (~500ms at 2 rps).
	require.GreaterOrEqual(t, time.Since(start), 300*time.Millisecond)
}

func TestAcquireCancellation(t *testing.T) {
	l := New()
	l.Register("tmdb", 1, time.Hour, 0)

	ctx := context.Background()
	require.NoError(t, l.Acquire(ctx, "tmdb", PriorityUser))

	cctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	err := l.Acquire(cctx, "tmdb", PriorityUser)
	require.Error(t, err)
}

func TestBackgroundHonorsReserve(t *testing.T) {
	l := New()
	// Bucket of 2 with 1 reserved: background may only take the unreserved token.
	l.Register("tmdb", 2, time.Hour, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	require.NoError(t, l.Acquire(ctx, "tmdb", PriorityBackground))
	// Second background acquire must block on the reserve and time out.
	err := l.Acquire(ctx, "tmdb", PriorityBackground)
	require.Error(t, err)

	// User priority can still take the reserved token immediately.
	require.NoError(t, l.Acquire(context.Background(), "tmdb", PriorityUser))
}

func TestRegisterSameLimitKeepsBucket(t *testing.T) {
	l := New()
	l.Register("tmdb", 2, time.Hour, 0)

	// Drain one token, then re-register as a guard rebuild would.
	require.NoError(t, l.Acquire(context.Background(), "tmdb", PriorityUser))
	before := l.get("tmdb")
	l.Register("tmdb", 2, time.Hour, 0)
	require.Same(t, before, l.get("tmdb"), "unchanged limit must keep the live bucket")

	// A changed limit does replace it.
	l.Register("tmdb", 5, time.Hour, 0)
	require.NotSame(t, before, l.get("tmdb"))
}

func TestRegisterSameLimitKeepsBackoff(t *testing.T) {
	l := New()
	l.Register("tmdb", 100, time.Second, 0)
	l.Report429("tmdb", time.Minute)

	l.Register("tmdb", 100, time.Second, 0)
	require.False(t, l.SuspendedUntil("tmdb").IsZero(),
		"re-registration must not clear an active suspension")
}

func TestReactiveBackoff(t *testing.T) {
	l := New()
	l.Register("tmdb", 100, time.Second, 0)

	l.Report429("tmdb", 0)
	until := l.SuspendedUntil("tmdb")
	require.False(t, until.IsZero())
	// First 429: base penalty.
	require.InDelta(t, backoffBase.Seconds(), time.Until(until).Seconds(), 1.0)

	// Second consecutive 429 doubles the penalty.
	l.Report429("tmdb", 0)
	until = l.SuspendedUntil("tmdb")
	require.InDelta(t, (2 * backoffBase).Seconds(), time.Until(until).Seconds(), 1.0)

	// Retry-After longer than the computed penalty wins.
	l.ReportSuccess("tmdb")
	l.Report429("tmdb", time.Minute)
	until = l.SuspendedUntil("tmdb")
	require.InDelta(t, time.Minute.Seconds(), time.Until(until).Seconds(), 1.0)
}

func TestSuccessResetsExponent(t *testing.T) {
	l := New()
	l.Register("tmdb", 100, time.Second, 0)

	l.Report429("tmdb", 0)
	l.Report429("tmdb", 0)
	l.ReportSuccess("tmdb")
	pl := l.get("tmdb")
	pl.mu.Lock()
	defer pl.mu.Unlock()
	require.Equal(t, 0, pl.consecutive429)
}
