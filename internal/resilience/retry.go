// Package resilience provides bounded retry with deterministic backoff.
package resilience

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"
)

// Backoff strategies.
const (
	// BackoffLinear waits Backoff * attempt before each retry.
	BackoffLinear = "linear"
	// BackoffExponential waits Backoff * Multiplier^(attempt-1) before each retry.
	BackoffExponential = "exponential"
)

// SleepFunc waits for d or until ctx is done, returning ctx.Err() in the
// latter case. Tests inject a no-op to keep retries instantaneous.
type SleepFunc func(ctx context.Context, d time.Duration) error

// RetryConfig controls bounded retry behavior.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts (including the first try).
	// A value of 1 means no retries. Default: 3.
	MaxAttempts int

	// Backoff is the base delay unit. Default: 2s.
	Backoff time.Duration

	// Strategy is BackoffLinear (default) or BackoffExponential.
	Strategy string

	// Multiplier scales exponential backoff. Default: 2.0.
	Multiplier float64

	// MaxBackoff caps a single delay. Zero means uncapped.
	MaxBackoff time.Duration

	// ShouldRetry optionally filters which errors are retried. If nil, every
	// error is retried until attempts run out.
	ShouldRetry func(err error) bool

	// OnRetry is called before each retry sleep with attempt number and error.
	OnRetry func(attempt int, err error)

	// Sleep waits between attempts. Defaults to a context-aware timer.
	Sleep SleepFunc
}

// DefaultRetryConfig returns three attempts with 2s linear backoff.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		Backoff:     2 * time.Second,
		Strategy:    BackoffLinear,
		Multiplier:  2.0,
	}
}

// Do executes fn until it succeeds or MaxAttempts is exhausted, returning
// the last error. Context cancellation stops retries immediately.
func Do(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context, attempt int) error) error {
	cfg = applyDefaults(cfg)

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		lastErr = fn(ctx, attempt)
		if lastErr == nil {
			return nil
		}

		if ctx.Err() != nil {
			return lastErr
		}

		if cfg.ShouldRetry != nil && !cfg.ShouldRetry(lastErr) {
			return lastErr
		}

		// Don't sleep after the last attempt.
		if attempt == cfg.MaxAttempts {
			break
		}

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, lastErr)
		}

		if err := cfg.Sleep(ctx, BackoffFor(cfg, attempt)); err != nil {
			return lastErr
		}
	}

	return lastErr
}

// BackoffFor returns the delay to wait after the given failed attempt
// (1-based).
func BackoffFor(cfg RetryConfig, attempt int) time.Duration {
	cfg = applyDefaults(cfg)

	var delay float64
	switch cfg.Strategy {
	case BackoffExponential:
		delay = float64(cfg.Backoff) * math.Pow(cfg.Multiplier, float64(attempt-1))
	default:
		delay = float64(cfg.Backoff) * float64(attempt)
	}
	if cfg.MaxBackoff > 0 && delay > float64(cfg.MaxBackoff) {
		delay = float64(cfg.MaxBackoff)
	}
	return time.Duration(delay)
}

// TimerSleep waits for d using a timer, honoring context cancellation.
func TimerSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func applyDefaults(cfg RetryConfig) RetryConfig {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Backoff < 0 {
		cfg.Backoff = 0
	}
	if cfg.Strategy == "" {
		cfg.Strategy = BackoffLinear
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = 2.0
	}
	if cfg.Sleep == nil {
		cfg.Sleep = TimerSleep
	}
	return cfg
}

// RetryLogger returns an OnRetry callback that logs each retry attempt.
func RetryLogger(operation, target string) func(int, error) {
	return func(attempt int, err error) {
		zap.L().Warn("resilience: retrying",
			zap.String("operation", operation),
			zap.String("target", target),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
}
