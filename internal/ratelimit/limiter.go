package ratelimit

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Priority classes for token acquisition. Webhook-priority callers may dip
// into the reserved fraction of capacity; background callers may not.
const (
	PriorityUser       = "user"
	PriorityBackground = "background"
)

const (
	// backoffBase is the starting penalty after a remote 429.
	backoffBase = 5 * time.Second
	// backoffCeiling caps reactive backoff growth.
	backoffCeiling = 10 * time.Minute
	// reserveCheckInterval is how often background callers re-check the
	// reserved token headroom.
	reserveCheckInterval = 250 * time.Millisecond
)

// providerLimiter is a token bucket plus reactive-backoff state for one provider.
type providerLimiter struct {
	mu             sync.Mutex
	lim            *rate.Limiter
	requests       int
	window         time.Duration
	reserved       int
	suspendedUntil time.Time
	consecutive429 int
}

// Limiter holds one token bucket per provider.
type Limiter struct {
	mu        sync.Mutex
	providers map[string]*providerLimiter
}

func New() *Limiter {
	return &Limiter{providers: make(map[string]*providerLimiter)}
}

// Register creates the bucket for a provider from its declared limit of
// requests per window. reserved tokens are held back for webhook/user-priority
// callers. Registering the same limit again is a no-op so a live bucket keeps
// its consumed tokens; only a changed limit replaces it.
func (l *Limiter) Register(provider string, requests int, window time.Duration, reserved int) {
	if requests <= 0 || window <= 0 {
		return
	}
	if reserved >= requests {
		reserved = 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if pl, ok := l.providers[provider]; ok &&
		pl.requests == requests && pl.window == window && pl.reserved == reserved {
		return
	}
	l.providers[provider] = &providerLimiter{
		lim:      rate.NewLimiter(rate.Limit(float64(requests)/window.Seconds()), requests),
		requests: requests,
		window:   window,
		reserved: reserved,
	}
}

func (l *Limiter) get(provider string) *providerLimiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.providers[provider]
}

// Acquire blocks until a token is available for the provider, or the context
// is cancelled. Background callers additionally wait while only the reserved
// headroom remains. Providers without a registered bucket pass through.
func (l *Limiter) Acquire(ctx context.Context, provider, priority string) error {
	pl := l.get(provider)
	if pl == nil {
		return nil
	}

	// Honor a reactive-backoff suspension first.
	if until := pl.suspension(); !until.IsZero() {
		wait := time.Until(until)
		if wait > 0 {
			timer := time.NewTimer(wait)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	if priority == PriorityBackground && pl.reserved > 0 {
		for pl.lim.Tokens() <= float64(pl.reserved) {
			timer := time.NewTimer(reserveCheckInterval)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			}
			timer.Stop()
		}
	}

	return pl.lim.Wait(ctx)
}

func (pl *providerLimiter) suspension() time.Time {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	if time.Now().Before(pl.suspendedUntil) {
		return pl.suspendedUntil
	}
	return time.Time{}
}

// Report429 suspends the provider's bucket for
// max(retryAfter, base * 2^consecutive) capped at the ceiling.
func (l *Limiter) Report429(provider string, retryAfter time.Duration) {
	pl := l.get(provider)
	if pl == nil {
		return
	}
	pl.mu.Lock()
	defer pl.mu.Unlock()

	penalty := backoffBase << pl.consecutive429
	if penalty > backoffCeiling || penalty <= 0 {
		penalty = backoffCeiling
	}
	if retryAfter > penalty {
		penalty = retryAfter
	}
	if penalty > backoffCeiling {
		penalty = backoffCeiling
	}
	pl.consecutive429++
	pl.suspendedUntil = time.Now().Add(penalty)
	log.Printf("RateLimit: provider %s suspended for %s (429 streak %d)", provider, penalty, pl.consecutive429)
}

// ReportSuccess resets the 429 exponent after any successful response.
func (l *Limiter) ReportSuccess(provider string) {
	pl := l.get(provider)
	if pl == nil {
		return
	}
	pl.mu.Lock()
	pl.consecutive429 = 0
	pl.mu.Unlock()
}

// SuspendedUntil reports the current suspension deadline, zero when active.
func (l *Limiter) SuspendedUntil(provider string) time.Time {
	pl := l.get(provider)
	if pl == nil {
		return time.Time{}
	}
	return pl.suspension()
}
