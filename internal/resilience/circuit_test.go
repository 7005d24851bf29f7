package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b := NewBreaker(BreakerConfig{FailureThreshold: 3, ResetTimeout: time.Minute})
	fail := func(ctx context.Context) error { return eris.New("down") }

	for i := 0; i < 3; i++ {
		require.Error(t, b.Execute(context.Background(), fail))
	}
	assert.Equal(t, CircuitOpen, b.State())

	calls := 0
	err := b.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Zero(t, calls, "open circuit rejects without calling through")
}

func TestBreaker_HalfOpenProbeCloses(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b := NewBreaker(BreakerConfig{FailureThreshold: 1, ResetTimeout: 30 * time.Second}).
		WithNow(func() time.Time { return now })

	require.Error(t, b.Execute(context.Background(), func(ctx context.Context) error {
		return eris.New("down")
	}))
	assert.Equal(t, CircuitOpen, b.State())

	now = now.Add(31 * time.Second)
	assert.Equal(t, CircuitHalfOpen, b.State())

	require.NoError(t, b.Execute(context.Background(), func(ctx context.Context) error { return nil }))
	assert.Equal(t, CircuitClosed, b.State())
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b := NewBreaker(BreakerConfig{FailureThreshold: 1, ResetTimeout: 30 * time.Second}).
		WithNow(func() time.Time { return now })

	require.Error(t, b.Execute(context.Background(), func(ctx context.Context) error {
		return eris.New("down")
	}))
	now = now.Add(31 * time.Second)

	require.Error(t, b.Execute(context.Background(), func(ctx context.Context) error {
		return eris.New("still down")
	}))
	assert.Equal(t, CircuitOpen, b.State())

	err := b.Execute(context.Background(), func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestBreaker_SuccessResetsCounter(t *testing.T) {
	b := NewBreaker(BreakerConfig{FailureThreshold: 2, ResetTimeout: time.Minute})

	require.Error(t, b.Execute(context.Background(), func(ctx context.Context) error {
		return eris.New("blip")
	}))
	require.NoError(t, b.Execute(context.Background(), func(ctx context.Context) error { return nil }))
	require.Error(t, b.Execute(context.Background(), func(ctx context.Context) error {
		return eris.New("blip")
	}))
	assert.Equal(t, CircuitClosed, b.State(), "non-consecutive failures do not open")
}

func TestExecuteVal(t *testing.T) {
	b := NewBreaker(BreakerConfig{})
	val, err := ExecuteVal(context.Background(), b, func(ctx context.Context) (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, val)
}

func TestProviderBreakers_PerProviderIsolation(t *testing.T) {
	pb := NewProviderBreakers(BreakerConfig{FailureThreshold: 1, ResetTimeout: time.Minute})

	require.Error(t, pb.Get("courts-tjsp").Execute(context.Background(), func(ctx context.Context) error {
		return eris.New("down")
	}))

	assert.Equal(t, CircuitOpen, pb.Get("courts-tjsp").State())
	assert.Equal(t, CircuitClosed, pb.Get("cadastral").State())

	states := pb.States()
	assert.Equal(t, CircuitOpen, states["courts-tjsp"])
}
