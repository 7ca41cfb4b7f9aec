// Package retry runs transient operations with bounded exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"cyberprint/internal/config"
)

// Func is an operation that may be retried.
type Func func(ctx context.Context) error

// Config holds retry configuration.
type Config struct {
	MaxAttempts int           // total attempts including the first
	BaseDelay   time.Duration // delay before the second attempt
	MaxDelay    time.Duration
	Multiplier  float64
	Jitter      bool
	// Retryable decides whether an error is worth another attempt.
	// Errors wrapped with Permanent are never retried.
	Retryable func(error) bool
}

// FromConfig maps the environment settings onto a Config.
func FromConfig(c config.RetryConfig) Config {
	cfg := DefaultConfig()
	if c.MaxAttempts > 0 {
		cfg.MaxAttempts = c.MaxAttempts
	}
	if c.BaseDelay > 0 {
		cfg.BaseDelay = c.BaseDelay
	}
	if c.MaxDelay > 0 {
		cfg.MaxDelay = c.MaxDelay
	}
	return cfg
}

// DefaultConfig returns three attempts starting at 100ms.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    2 * time.Second,
		Multiplier:  2.0,
		Jitter:      true,
		Retryable:   IsRetryable,
	}
}

// IsRetryable rejects context cancellation and deadline errors.
func IsRetryable(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

type permanentError struct{ err error }

func (p permanentError) Error() string { return p.err.Error() }
func (p permanentError) Unwrap() error { return p.err }

// Permanent marks err so that Do returns it without further attempts.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

// Retrier executes functions under a Config.
type Retrier struct {
	config Config
	logger *zap.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// New creates a retrier. A nil logger discards retry logs.
func New(cfg Config, l *zap.Logger) *Retrier {
	if l == nil {
		l = zap.NewNop()
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.Multiplier < 1 {
		cfg.Multiplier = 2.0
	}
	if cfg.Retryable == nil {
		cfg.Retryable = IsRetryable
	}
	return &Retrier{config: cfg, logger: l, sleep: sleepCtx}
}

// Do runs fn until it succeeds, returns a non-retryable error, or attempts run out.
// The last error is returned wrapped so callers can still match it with errors.Is.
func (r *Retrier) Do(ctx context.Context, op string, fn Func) error {
	var lastErr error
	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(ctx)
		if err == nil {
			if attempt > 1 {
				r.logger.Info("retry_succeeded", zap.String("op", op), zap.Int("attempt", attempt))
			}
			return nil
		}
		lastErr = err

		var perm permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		if !r.config.Retryable(err) {
			return err
		}
		if attempt == r.config.MaxAttempts {
			break
		}

		delay := r.delay(attempt)
		r.logger.Debug("retry_scheduled",
			zap.String("op", op),
			zap.Error(err),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay))
		if err := r.sleep(ctx, delay); err != nil {
			return err
		}
	}

	r.logger.Warn("retry_exhausted",
		zap.String("op", op),
		zap.Error(lastErr),
		zap.Int("attempts", r.config.MaxAttempts))
	return fmt.Errorf("%s failed after %d attempts: %w", op, r.config.MaxAttempts, lastErr)
}

// delay for the wait following the given 1-based attempt.
func (r *Retrier) delay(attempt int) time.Duration {
	d := float64(r.config.BaseDelay) * math.Pow(r.config.Multiplier, float64(attempt-1))
	if limit := float64(r.config.MaxDelay); limit > 0 && d > limit {
		d = limit
	}
	if r.config.Jitter {
		d += d * 0.1 * rand.Float64()
	}
	return time.Duration(d)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
