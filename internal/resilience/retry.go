package resilience

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/MrWong99/dubctl/internal/observe"
)

// RetryConfig holds tuning knobs for [Retry].
type RetryConfig struct {
	// Name is a human-readable label used in log messages.
	Name string

	// MaxAttempts is the total number of attempts, including the first.
	// Default: 3.
	MaxAttempts int

	// BaseDelay is the delay before the second attempt; each subsequent
	// attempt doubles it up to MaxDelay. Default: 500ms.
	BaseDelay time.Duration

	// MaxDelay caps the computed backoff delay. Default: 10s.
	MaxDelay time.Duration

	// Retryable decides whether err should trigger another attempt. When
	// nil, every non-nil error is retried. Use this to exclude
	// [dubctlerr.Permanent] or [dubctlerr.Config] errors from retry.
	Retryable func(error) bool
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = 500 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 10 * time.Second
	}
	return c
}

// Retry calls fn until it succeeds, the retry budget is exhausted, or ctx is
// canceled, waiting a jittered exponential backoff between attempts.
// Returns the last error on exhaustion, or ctx.Err() joined with the last
// error if canceled while waiting.
func Retry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	cfg = cfg.withDefaults()

	var lastErr error
	delay := cfg.BaseDelay
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if cfg.Retryable != nil && !cfg.Retryable(lastErr) {
			return lastErr
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		slog.Warn("resilience: retrying after failure",
			"name", cfg.Name, "attempt", attempt, "max_attempts", cfg.MaxAttempts,
			"delay", delay, "err", lastErr)
		observe.DefaultMetrics().RecordProviderRetry(ctx, cfg.Name, "retry")

		jittered := delay/2 + time.Duration(rand.Int64N(int64(delay)+1))
		timer := time.NewTimer(jittered)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Join(ctx.Err(), lastErr)
		case <-timer.C:
		}

		delay *= 2
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}
	return lastErr
}
