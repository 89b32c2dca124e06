// Package retry runs an operation again with exponential backoff while the
// error it returns is classified as retryable.
package retry

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

type Config struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	Jitter        bool
	// Retryable decides whether an error is worth another attempt. A nil
	// predicate retries nothing.
	Retryable func(error) bool
}

var DefaultConfig = Config{
	MaxAttempts:   5,
	InitialDelay:  20 * time.Millisecond,
	MaxDelay:      1 * time.Second,
	BackoffFactor: 2.0,
	Jitter:        true,
}

// Backoff returns the delay to wait after the given failed attempt (1-based).
func Backoff(attempt int, cfg Config) time.Duration {
	if attempt <= 0 || cfg.InitialDelay <= 0 {
		return 0
	}
	factor := cfg.BackoffFactor
	if factor < 1 {
		factor = 1
	}
	delay := float64(cfg.InitialDelay) * math.Pow(factor, float64(attempt-1))
	if cfg.MaxDelay > 0 && delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	if cfg.Jitter {
		delay *= 0.8 + rand.Float64()*0.4
	}
	return time.Duration(delay)
}

// Do calls fn until it succeeds, returns a non-retryable error, runs out of
// attempts or ctx is done. The last error is returned.
func Do(ctx context.Context, cfg Config, fn func(ctx context.Context) error) error {
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if cfg.Retryable == nil || !cfg.Retryable(lastErr) || attempt == attempts {
			break
		}

		if delay := Backoff(attempt, cfg); delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			}
		}
	}
	return lastErr
}
