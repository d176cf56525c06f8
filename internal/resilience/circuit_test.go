package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDetectorDown = eris.New("detector down")

// breakerAt returns a breaker with an adjustable clock.
func breakerAt(cfg CircuitBreakerConfig) (*CircuitBreaker, func(time.Duration)) {
	cb := NewCircuitBreaker(cfg)
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	cb.clock = func() time.Time { return now }
	return cb, func(d time.Duration) { now = now.Add(d) }
}

func fail(context.Context) error    { return errDetectorDown }
func succeed(context.Context) error { return nil }

func TestCircuit_StartsClosed(t *testing.T) {
	cb := NewCircuitBreaker(DefaultCircuitBreakerConfig())
	assert.Equal(t, CircuitClosed, cb.State())

	err := cb.Execute(context.Background(), succeed)
	assert.NoError(t, err)
}

func TestCircuit_OpensAtThreshold(t *testing.T) {
	cb, _ := breakerAt(CircuitBreakerConfig{FailureThreshold: 3, ResetTimeout: time.Minute})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		require.Error(t, cb.Execute(ctx, fail))
		assert.Equal(t, CircuitClosed, cb.State())
	}

	require.Error(t, cb.Execute(ctx, fail))
	assert.Equal(t, CircuitOpen, cb.State())

	// Open circuit rejects without calling through.
	called := false
	err := cb.Execute(ctx, func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestCircuit_SuccessResetsFailureStreak(t *testing.T) {
	cb, _ := breakerAt(CircuitBreakerConfig{FailureThreshold: 3, ResetTimeout: time.Minute})
	ctx := context.Background()

	require.Error(t, cb.Execute(ctx, fail))
	require.Error(t, cb.Execute(ctx, fail))
	require.NoError(t, cb.Execute(ctx, succeed))

	failures, state := cb.Counters()
	assert.Equal(t, 0, failures)
	assert.Equal(t, CircuitClosed, state)
}

func TestCircuit_HalfOpenAfterResetTimeout(t *testing.T) {
	cb, advance := breakerAt(CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: 30 * time.Second})
	ctx := context.Background()

	require.Error(t, cb.Execute(ctx, fail))
	assert.Equal(t, CircuitOpen, cb.State())

	advance(29 * time.Second)
	assert.ErrorIs(t, cb.Execute(ctx, succeed), ErrCircuitOpen)

	advance(2 * time.Second)
	assert.Equal(t, CircuitHalfOpen, cb.State())

	// The probe succeeds and the circuit closes.
	require.NoError(t, cb.Execute(ctx, succeed))
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuit_FailedProbeReopens(t *testing.T) {
	cb, advance := breakerAt(CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: 30 * time.Second})
	ctx := context.Background()

	require.Error(t, cb.Execute(ctx, fail))
	advance(31 * time.Second)

	require.Error(t, cb.Execute(ctx, fail))
	assert.Equal(t, CircuitOpen, cb.State())

	// And it stays open for another full reset window.
	advance(29 * time.Second)
	assert.ErrorIs(t, cb.Execute(ctx, succeed), ErrCircuitOpen)
}

func TestCircuit_MultipleProbesBeforeClosing(t *testing.T) {
	cb, advance := breakerAt(CircuitBreakerConfig{
		FailureThreshold:  1,
		ResetTimeout:      time.Second,
		HalfOpenMaxProbes: 2,
	})
	ctx := context.Background()

	require.Error(t, cb.Execute(ctx, fail))
	advance(2 * time.Second)

	require.NoError(t, cb.Execute(ctx, succeed))
	assert.Equal(t, CircuitHalfOpen, cb.State(), "one probe is not enough")

	require.NoError(t, cb.Execute(ctx, succeed))
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuit_ShouldTripFiltersErrors(t *testing.T) {
	cb, _ := breakerAt(CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     time.Minute,
		ShouldTrip:       IsTransient,
	})
	ctx := context.Background()

	// A permanent error passes through without tripping the breaker.
	require.Error(t, cb.Execute(ctx, func(context.Context) error {
		return eris.New("no website to analyze")
	}))
	assert.Equal(t, CircuitClosed, cb.State())

	require.Error(t, cb.Execute(ctx, func(context.Context) error {
		return Transient(eris.New("gateway timeout"), 504)
	}))
	assert.Equal(t, CircuitOpen, cb.State())
}

func TestCircuit_Reset(t *testing.T) {
	cb, _ := breakerAt(CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: time.Hour})
	ctx := context.Background()

	require.Error(t, cb.Execute(ctx, fail))
	assert.Equal(t, CircuitOpen, cb.State())

	cb.Reset()
	assert.Equal(t, CircuitClosed, cb.State())
	require.NoError(t, cb.Execute(ctx, succeed))
}

func TestCircuit_StateChangesObserved(t *testing.T) {
	var transitions []string
	cb, advance := breakerAt(CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     time.Second,
		OnStateChange: func(from, to CircuitState) {
			transitions = append(transitions, from.String()+">"+to.String())
		},
	})
	ctx := context.Background()

	require.Error(t, cb.Execute(ctx, fail))
	advance(2 * time.Second)
	require.NoError(t, cb.Execute(ctx, succeed))

	assert.Equal(t, []string{"closed>open", "open>half-open", "half-open>closed"}, transitions)
}

func TestFromCircuitConfig(t *testing.T) {
	cfg := FromCircuitConfig(7, 45)
	assert.Equal(t, 7, cfg.FailureThreshold)
	assert.Equal(t, 45*time.Second, cfg.ResetTimeout)

	def := FromCircuitConfig(0, 0)
	assert.Equal(t, 5, def.FailureThreshold)
	assert.Equal(t, 30*time.Second, def.ResetTimeout)
}
