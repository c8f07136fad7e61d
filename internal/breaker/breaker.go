package breaker

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// ErrCircuitOpen is returned while a provider's circuit is open; callers
// fail fast instead of hitting an unhealthy remote.
var ErrCircuitOpen = errors.New("circuit open")

const (
	// defaultFailureThreshold is the consecutive-failure count that trips
	// the circuit.
	defaultFailureThreshold = 5
	// defaultResetTimeout is how long the circuit stays open before a
	// single half-open probe is allowed.
	defaultResetTimeout = 5 * time.Minute
)

// Breakers holds one circuit breaker per provider.
type Breakers struct {
	mu        sync.Mutex
	threshold uint32
	timeout   time.Duration
	breakers  map[string]*gobreaker.CircuitBreaker
}

func New() *Breakers {
	return NewWithSettings(defaultFailureThreshold, defaultResetTimeout)
}

func NewWithSettings(threshold uint32, timeout time.Duration) *Breakers {
	return &Breakers{
		threshold: threshold,
		timeout:   timeout,
		breakers:  make(map[string]*gobreaker.CircuitBreaker),
	}
}

func (b *Breakers) forProvider(provider string) *gobreaker.CircuitBreaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cb, ok := b.breakers[provider]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        provider,
		MaxRequests: 1, // one probe in half-open
		Timeout:     b.timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= b.threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("Breaker: provider %s %s -> %s", name, from, to)
		},
	})
	b.breakers[provider] = cb
	return cb
}

// Execute runs fn behind the provider's circuit. While open (or while the
// half-open probe slot is taken) it returns ErrCircuitOpen without calling fn.
func (b *Breakers) Execute(provider string, fn func() error) error {
	_, err := b.forProvider(provider).Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrCircuitOpen
	}
	return err
}

// State reports the provider's current circuit state.
func (b *Breakers) State(provider string) gobreaker.State {
	return b.forProvider(provider).State()
}
