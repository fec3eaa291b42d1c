// Package retry provides a generic retry-with-backoff executor and the jitter
// helper used for pacing delays.
package retry

import (
	"context"
	"math/rand"
	"time"
)

// Config controls the behaviour of Do. All failures are treated as retryable at
// this layer; classifying fatal errors is the caller's responsibility.
type Config struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// InitialDelay is the suspension before the second attempt.
	InitialDelay time.Duration

	// Multiplier scales the delay after every failed attempt, capped at MaxDelay.
	Multiplier float64

	// MaxDelay caps the backoff delay. Zero means no cap.
	MaxDelay time.Duration

	// Jitter, when non-zero, perturbs each backoff delay by up to that fraction.
	Jitter float64

	// OnRetry, if set, is invoked after each failed attempt that will be retried,
	// with the error and the 1-based attempt number that failed.
	OnRetry func(err error, attempt int)
}

// Do executes op, retrying with exponential backoff until it succeeds, the
// attempts are exhausted, or ctx is cancelled. It returns the last error on
// exhaustion and ctx.Err() on cancellation mid-wait.
func Do(ctx context.Context, cfg Config, op func() error) error {
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	delay := cfg.InitialDelay
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}

		if attempt == attempts {
			break
		}

		if cfg.OnRetry != nil {
			cfg.OnRetry(lastErr, attempt)
		}

		wait := delay
		if cfg.Jitter > 0 {
			wait = Jitter(wait, cfg.Jitter)
		}
		if err := Sleep(ctx, wait); err != nil {
			return err
		}

		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	return lastErr
}

// Jitter perturbs d by a symmetric random fraction, e.g. fraction 0.2 yields a
// duration in [0.8d, 1.2d]. Non-positive inputs are returned unchanged.
func Jitter(d time.Duration, fraction float64) time.Duration {
	if d <= 0 || fraction <= 0 {
		return d
	}
	// rand.Float64()*2-1 is uniform in [-1, 1).
	offset := (rand.Float64()*2 - 1) * fraction * float64(d)
	return d + time.Duration(offset)
}

// Sleep suspends for d or until ctx is cancelled, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
