package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cyberprint/internal/config"
)

func newTestRetrier(cfg Config) (*Retrier, *[]time.Duration) {
	r := New(cfg, nil)
	var slept []time.Duration
	r.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return r, &slept
}

func TestDo_SucceedsAfterRetries(t *testing.T) {
	r, slept := newTestRetrier(Config{MaxAttempts: 3, BaseDelay: 10 * time.Millisecond, MaxDelay: time.Second})

	calls := 0
	err := r.Do(context.Background(), "put", func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("connection reset")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}, *slept)
}

func TestDo_Exhausted(t *testing.T) {
	r, _ := newTestRetrier(Config{MaxAttempts: 2, BaseDelay: time.Millisecond})
	cause := errors.New("unavailable")

	calls := 0
	err := r.Do(context.Background(), "publish", func(context.Context) error {
		calls++
		return cause
	})

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "publish failed after 2 attempts")
	assert.Equal(t, 2, calls)
}

func TestDo_PermanentStopsImmediately(t *testing.T) {
	r, slept := newTestRetrier(DefaultConfig())
	cause := errors.New("bad request")

	calls := 0
	err := r.Do(context.Background(), "get", func(context.Context) error {
		calls++
		return Permanent(cause)
	})

	assert.Equal(t, cause, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, *slept)
}

func TestDo_NotRetryable(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Retryable = func(error) bool { return false }
	r, _ := newTestRetrier(cfg)

	calls := 0
	_ = r.Do(context.Background(), "get", func(context.Context) error {
		calls++
		return errors.New("nope")
	})
	assert.Equal(t, 1, calls)
}

func TestDo_ContextCancelled(t *testing.T) {
	r := New(Config{MaxAttempts: 5, BaseDelay: time.Hour}, nil)
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := r.Do(ctx, "get", func(context.Context) error {
		calls++
		cancel()
		return errors.New("timeout")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDelay_Capped(t *testing.T) {
	r := New(Config{MaxAttempts: 10, BaseDelay: time.Second, MaxDelay: 3 * time.Second}, nil)
	assert.Equal(t, time.Second, r.delay(1))
	assert.Equal(t, 2*time.Second, r.delay(2))
	assert.Equal(t, 3*time.Second, r.delay(5))
}

func TestFromConfig(t *testing.T) {
	cfg := FromConfig(config.RetryConfig{MaxAttempts: 7})
	assert.Equal(t, 7, cfg.MaxAttempts)
	assert.Equal(t, 100*time.Millisecond, cfg.BaseDelay)
	assert.True(t, cfg.Jitter)
}
