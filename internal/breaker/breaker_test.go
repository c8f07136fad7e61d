package breaker

import (
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/require"
)

var errRemote = errors.New("remote down")

func TestOpensAfterConsecutiveFailures(t *testing.T) {
	b := NewWithSettings(5, 100*time.Millisecond)

	fail := func() error { return errRemote }
	for i := 0; i < 5; i++ {
		err := b.Execute("tmdb", fail)
		require.ErrorIs(t, err, errRemote)
	}

	// Circuit is now open: fn must not run.
	called := false
	err := b.Execute("tmdb", func() error { called = true; return nil })
	require.ErrorIs(t, err, ErrCircuitOpen)
	require.False(t, called)
	require.Equal(t, gobreaker.StateOpen, b.State("tmdb"))
}

func TestHalfOpenProbeRecovers(t *testing.T) {
	b := NewWithSettings(2, 50*time.Millisecond)

	for i := 0; i < 2; i++ {
		b.Execute("tvdb", func() error { return errRemote })
	}
	require.Equal(t, gobreaker.StateOpen, b.State("tvdb"))

	time.Sleep(80 * time.Millisecond)

	// Single probe allowed; success closes the circuit.
	require.NoError(t, b.Execute("tvdb", func() error { return nil }))
	require.Equal(t, gobreaker.StateClosed, b.State("tvdb"))
}

func TestHalfOpenProbeFailureReopens(t *testing.T) {
	b := NewWithSettings(2, 50*time.Millisecond)

	for i := 0; i < 2; i++ {
		b.Execute("omdb", func() error { return errRemote })
	}
	time.Sleep(80 * time.Millisecond)

	require.ErrorIs(t, b.Execute("omdb", func() error { return errRemote }), errRemote)
	require.Equal(t, gobreaker.StateOpen, b.State("omdb"))
}

func TestSuccessResetsCounter(t *testing.T) {
	b := NewWithSettings(3, time.Minute)

	b.Execute("fanarttv", func() error { return errRemote })
	b.Execute("fanarttv", func() error { return errRemote })
	require.NoError(t, b.Execute("fanarttv", func() error { return nil }))

	// Two more failures must not trip (streak was broken).
	b.Execute("fanarttv", func() error { return errRemote })
	b.Execute("fanarttv", func() error { return errRemote })
	require.Equal(t, gobreaker.StateClosed, b.State("fanarttv"))
}

func TestBreakersAreIndependent(t *testing.T) {
	b := NewWithSettings(1, time.Minute)

	b.Execute("tmdb", func() error { return errRemote })
	require.Equal(t, gobreaker.StateOpen, b.State("tmdb"))
	require.Equal(t, gobreaker.StateClosed, b.State("tvdb"))
}
