package providers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/JustinTDCT/MediaForge/internal/breaker"
)

// ErrorKind classifies provider failures so callers can decide on retry and
// recovery without inspecting transport details.
type ErrorKind string

const (
	ErrRateLimit   ErrorKind = "rate_limit"  // HTTP 429
	ErrServer      ErrorKind = "server"      // HTTP 5xx
	ErrNetwork     ErrorKind = "network"     // timeout, reset, DNS
	ErrAuth        ErrorKind = "auth"        // HTTP 401/403
	ErrNotFound    ErrorKind = "not_found"   // HTTP 404; treated as empty result
	ErrValidation  ErrorKind = "validation"  // bad input, missing key
	ErrCircuitOpen ErrorKind = "circuit_open"
	ErrCancelled   ErrorKind = "cancelled"
)

// Error is the typed error every adapter returns across the contract.
type Error struct {
	Provider   string
	Kind       ErrorKind
	RetryAfter time.Duration // only set for rate-limit errors
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Provider, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the failure is worth retrying.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case ErrRateLimit, ErrServer, ErrNetwork:
		return true
	}
	return false
}

func newError(provider string, kind ErrorKind, err error) *Error {
	return &Error{Provider: provider, Kind: kind, Err: err}
}

// IsRetryable reports whether err is a retryable provider error.
func IsRetryable(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Retryable()
	}
	return false
}

// IsNotFound reports whether err means "no data", which the pipeline treats
// as an empty result rather than a failure.
func IsNotFound(err error) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Kind == ErrNotFound
}

// statusError maps an HTTP status code plus Retry-After header to the taxonomy.
func statusError(provider string, status int, retryAfter string) *Error {
	switch {
	case status == 429:
		e := newError(provider, ErrRateLimit, fmt.Errorf("HTTP 429"))
		if secs, err := strconv.Atoi(retryAfter); err == nil && secs > 0 {
			e.RetryAfter = time.Duration(secs) * time.Second
		}
		return e
	case status == 401 || status == 403:
		return newError(provider, ErrAuth, fmt.Errorf("HTTP %d", status))
	case status == 404:
		return newError(provider, ErrNotFound, fmt.Errorf("HTTP 404"))
	case status >= 500:
		return newError(provider, ErrServer, fmt.Errorf("HTTP %d", status))
	default:
		return newError(provider, ErrValidation, fmt.Errorf("HTTP %d", status))
	}
}

// translate wraps any error into the typed taxonomy. Already-typed errors
// pass through untouched.
func translate(provider string, err error) error {
	if err == nil {
		return nil
	}
	var pe *Error
	if errors.As(err, &pe) {
		return err
	}
	if errors.Is(err, breaker.ErrCircuitOpen) {
		return newError(provider, ErrCircuitOpen, err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return newError(provider, ErrCancelled, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return newError(provider, ErrNetwork, err)
	}
	// Transport-level failures from http.Client surface as *url.Error; treat
	// anything unrecognized from the wire as a network failure.
	return newError(provider, ErrNetwork, err)
}
