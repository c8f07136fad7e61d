package providers

import (
	"context"
	"errors"
	"log"
	"math/rand"
	"time"

	"github.com/JustinTDCT/MediaForge/internal/breaker"
	"github.com/JustinTDCT/MediaForge/internal/models"
	"github.com/JustinTDCT/MediaForge/internal/ratelimit"
)

// retryBaseDelay seeds the exponential backoff between attempts.
const retryBaseDelay = 500 * time.Millisecond

// Guard wraps a raw adapter with the call discipline every provider call
// gets: token acquisition, circuit check, retry with backoff + jitter, and
// error translation into the typed taxonomy.
type Guard struct {
	inner    Adapter
	limiter  *ratelimit.Limiter
	breakers *breaker.Breakers
	priority Priority
}

// NewGuard wraps adapter for the given priority class and registers its
// declared rate limit with the shared limiter.
func NewGuard(adapter Adapter, limiter *ratelimit.Limiter, breakers *breaker.Breakers, priority Priority, webhookReserved int) *Guard {
	caps := adapter.Capabilities()
	if caps.RateLimit.Requests > 0 {
		limiter.Register(adapter.Name(), caps.RateLimit.Requests, caps.RateLimit.Window, webhookReserved)
	}
	return &Guard{inner: adapter, limiter: limiter, breakers: breakers, priority: priority}
}

func (g *Guard) Name() string               { return g.inner.Name() }
func (g *Guard) Capabilities() Capabilities { return g.inner.Capabilities() }

func (g *Guard) Search(ctx context.Context, q Query) ([]SearchResult, error) {
	var out []SearchResult
	err := g.do(ctx, func(ctx context.Context) error {
		var err error
		out, err = g.inner.Search(ctx, q)
		return err
	})
	return out, err
}

func (g *Guard) GetMetadata(ctx context.Context, id string, entityType models.MediaType) (*Metadata, error) {
	var out *Metadata
	err := g.do(ctx, func(ctx context.Context) error {
		var err error
		out, err = g.inner.GetMetadata(ctx, id, entityType)
		return err
	})
	return out, err
}

func (g *Guard) GetAssets(ctx context.Context, id string, entityType models.MediaType, assetTypes []models.AssetType) ([]*models.AssetCandidate, error) {
	var out []*models.AssetCandidate
	err := g.do(ctx, func(ctx context.Context) error {
		var err error
		out, err = g.inner.GetAssets(ctx, id, entityType, assetTypes)
		return err
	})
	return out, err
}

func (g *Guard) TestConnection(ctx context.Context) error {
	return g.do(ctx, g.inner.TestConnection)
}

// do runs one guarded call: limiter token, circuit, per-attempt timeout,
// retries on retryable kinds.
func (g *Guard) do(ctx context.Context, fn func(ctx context.Context) error) error {
	name := g.inner.Name()
	limiterPriority := ratelimit.PriorityBackground
	if g.priority.Name == PriorityUser.Name {
		limiterPriority = ratelimit.PriorityUser
	}

	var lastErr error
	for attempt := 0; attempt <= g.priority.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := backoffWithJitter(attempt)
			log.Printf("Provider %s: retry %d/%d in %s", name, attempt, g.priority.MaxRetries, delay)
			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return translate(name, ctx.Err())
			}
			timer.Stop()
		}

		if err := g.limiter.Acquire(ctx, name, limiterPriority); err != nil {
			return translate(name, err)
		}

		var callErr error
		err := g.breakers.Execute(name, func() error {
			attemptCtx, cancel := context.WithTimeout(ctx, g.priority.Timeout)
			defer cancel()
			callErr = translate(name, fn(attemptCtx))
			var pe *Error
			if errors.As(callErr, &pe) && (pe.Kind == ErrNotFound || pe.Kind == ErrValidation) {
				// The provider answered; an empty or rejected request is
				// not a health failure and must not trip the circuit.
				return nil
			}
			return callErr
		})
		if err == nil && callErr != nil {
			return callErr
		}
		if err == nil {
			g.limiter.ReportSuccess(name)
			return nil
		}
		err = translate(name, err)

		var pe *Error
		if errors.As(err, &pe) && pe.Kind == ErrRateLimit {
			g.limiter.Report429(name, pe.RetryAfter)
		}
		if !IsRetryable(err) {
			return err
		}
		lastErr = err
	}
	return lastErr
}

// backoffWithJitter: base * 2^(attempt-1) plus up to 50% random jitter.
func backoffWithJitter(attempt int) time.Duration {
	d := retryBaseDelay << uint(attempt-1)
	if d > 30*time.Second {
		d = 30 * time.Second
	}
	return d + time.Duration(rand.Int63n(int64(d)/2+1))
}
