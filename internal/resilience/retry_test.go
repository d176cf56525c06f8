package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fastRetry keeps backoff out of the test clock.
func fastRetry(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:    attempts,
		InitialBackoff: time.Microsecond,
		MaxBackoff:     time.Millisecond,
		Multiplier:     2,
		JitterFraction: 0,
	}
}

func TestDo_SucceedsFirstTry(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastRetry(3), func(context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesTransientUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastRetry(5), func(context.Context) error {
		calls++
		if calls < 3 {
			return Transient(eris.New("detector overloaded"), 503)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_StopsOnPermanentError(t *testing.T) {
	calls := 0
	permanent := eris.New("website does not exist")
	err := Do(context.Background(), fastRetry(5), func(context.Context) error {
		calls++
		return permanent
	})
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls, "permanent errors get no second attempt")
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastRetry(3), func(context.Context) error {
		calls++
		return Transient(eris.New("still down"), 502)
	})
	assert.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_CustomShouldRetry(t *testing.T) {
	cfg := fastRetry(4)
	cfg.ShouldRetry = func(err error) bool { return err.Error() == "again" }

	calls := 0
	err := Do(context.Background(), cfg, func(context.Context) error {
		calls++
		if calls < 2 {
			return eris.New("again")
		}
		return eris.New("done")
	})
	assert.EqualError(t, err, "done")
	assert.Equal(t, 2, calls)
}

func TestDo_ContextCancelStopsRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := Do(ctx, fastRetry(10), func(context.Context) error {
		calls++
		cancel()
		return Transient(eris.New("interrupted"), 0)
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_OnRetryObservesAttempts(t *testing.T) {
	var attempts []int
	cfg := fastRetry(3)
	cfg.OnRetry = func(attempt int, _ error) { attempts = append(attempts, attempt) }

	_ = Do(context.Background(), cfg, func(context.Context) error {
		return Transient(eris.New("flaky"), 500)
	})
	assert.Equal(t, []int{1, 2}, attempts, "no callback after the final attempt")
}

func TestDoVal_ReturnsValueFromSuccessfulAttempt(t *testing.T) {
	calls := 0
	val, err := DoVal(context.Background(), fastRetry(3), func(context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", Transient(eris.New("blip"), 503)
		}
		return "analyzed", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "analyzed", val)
}

func TestDoVal_ZeroValueOnFailure(t *testing.T) {
	val, err := DoVal(context.Background(), fastRetry(2), func(context.Context) (int, error) {
		return 42, eris.New("bad input")
	})
	assert.Error(t, err)
	assert.Zero(t, val)
}

func TestRetryConfig_Defaults(t *testing.T) {
	cfg := RetryConfig{}.withDefaults()
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.InitialBackoff)
	assert.Equal(t, 30*time.Second, cfg.MaxBackoff)
	assert.Equal(t, 2.0, cfg.Multiplier)
}

func TestRetryConfig_BackoffGrowsAndCaps(t *testing.T) {
	cfg := RetryConfig{
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     time.Second,
		Multiplier:     2,
		JitterFraction: 0,
		MaxAttempts:    10,
	}.withDefaults()

	assert.Equal(t, 100*time.Millisecond, cfg.backoff(0))
	assert.Equal(t, 200*time.Millisecond, cfg.backoff(1))
	assert.Equal(t, 400*time.Millisecond, cfg.backoff(2))
	assert.Equal(t, time.Second, cfg.backoff(5), "capped at MaxBackoff")
}

func TestRetryConfig_JitterStaysInBounds(t *testing.T) {
	cfg := RetryConfig{
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     time.Second,
		Multiplier:     2,
		JitterFraction: 0.25,
		MaxAttempts:    3,
	}.withDefaults()

	for i := 0; i < 100; i++ {
		d := cfg.backoff(0)
		assert.GreaterOrEqual(t, d, 75*time.Millisecond)
		assert.LessOrEqual(t, d, 125*time.Millisecond)
	}
}

func TestFromRetryConfig(t *testing.T) {
	cfg := FromRetryConfig(5, 250, 10000, 1.5, 0.1)
	assert.Equal(t, 5, cfg.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.InitialBackoff)
	assert.Equal(t, 10*time.Second, cfg.MaxBackoff)
	assert.Equal(t, 1.5, cfg.Multiplier)
	assert.Equal(t, 0.1, cfg.JitterFraction)

	// Zero values fall back to defaults.
	def := FromRetryConfig(0, 0, 0, 0, -1)
	assert.Equal(t, 3, def.MaxAttempts)
	assert.Equal(t, 0.25, def.JitterFraction)
}
