package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

// recordSleep returns a SleepFunc that records requested delays without
// waiting.
func recordSleep(delays *[]time.Duration) SleepFunc {
	return func(ctx context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return ctx.Err()
	}
}

func TestDo_SuccessOnFirstAttempt(t *testing.T) {
	var calls int
	var delays []time.Duration
	cfg := DefaultRetryConfig()
	cfg.Sleep = recordSleep(&delays)

	err := Do(context.Background(), cfg, func(_ context.Context, _ int) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
	if len(delays) != 0 {
		t.Errorf("expected no sleeps, got %v", delays)
	}
}

func TestDo_SuccessAfterRetry(t *testing.T) {
	var attempts []int
	var delays []time.Duration
	cfg := DefaultRetryConfig()
	cfg.Sleep = recordSleep(&delays)

	err := Do(context.Background(), cfg, func(_ context.Context, attempt int) error {
		attempts = append(attempts, attempt)
		if attempt < 3 {
			return errors.New("temporary")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(attempts) != 3 || attempts[0] != 1 || attempts[2] != 3 {
		t.Errorf("expected attempts [1 2 3], got %v", attempts)
	}
}

func TestDo_LinearBackoffExhaustsAttempts(t *testing.T) {
	var calls int
	var delays []time.Duration
	cfg := RetryConfig{MaxAttempts: 3, Backoff: 2 * time.Second, Sleep: recordSleep(&delays)}

	err := Do(context.Background(), cfg, func(_ context.Context, _ int) error {
		calls++
		return errors.New("always fails")
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
	// Linear: backoff * attempt, no sleep after the final attempt.
	want := []time.Duration{2 * time.Second, 4 * time.Second}
	if len(delays) != len(want) {
		t.Fatalf("expected delays %v, got %v", want, delays)
	}
	for i := range want {
		if delays[i] != want[i] {
			t.Errorf("delay %d: expected %v, got %v", i, want[i], delays[i])
		}
	}
}

func TestBackoffFor_Exponential(t *testing.T) {
	cfg := RetryConfig{Backoff: 100 * time.Millisecond, Strategy: BackoffExponential, Multiplier: 2, MaxBackoff: 300 * time.Millisecond}

	if got := BackoffFor(cfg, 1); got != 100*time.Millisecond {
		t.Errorf("attempt 1: got %v", got)
	}
	if got := BackoffFor(cfg, 2); got != 200*time.Millisecond {
		t.Errorf("attempt 2: got %v", got)
	}
	if got := BackoffFor(cfg, 3); got != 300*time.Millisecond {
		t.Errorf("attempt 3 should be capped: got %v", got)
	}
}

func TestDo_ContextCancelled_StopsRetry(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int
	var delays []time.Duration
	cfg := RetryConfig{MaxAttempts: 5, Backoff: time.Second, Sleep: recordSleep(&delays)}

	err := Do(ctx, cfg, func(_ context.Context, _ int) error {
		calls++
		if calls == 2 {
			cancel()
		}
		return errors.New("fail")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 2 {
		t.Errorf("expected 2 calls after cancel, got %d", calls)
	}
}

func TestDo_ShouldRetryFilter(t *testing.T) {
	var calls int
	var delays []time.Duration
	permanent := errors.New("permanent")
	cfg := RetryConfig{
		MaxAttempts: 3,
		Sleep:       recordSleep(&delays),
		ShouldRetry: func(err error) bool { return !errors.Is(err, permanent) },
	}

	err := Do(context.Background(), cfg, func(_ context.Context, _ int) error {
		calls++
		return permanent
	})
	if !errors.Is(err, permanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDo_OnRetryCallback(t *testing.T) {
	var retryAttempts []int
	var delays []time.Duration
	cfg := RetryConfig{
		MaxAttempts: 3,
		Sleep:       recordSleep(&delays),
		OnRetry: func(attempt int, _ error) {
			retryAttempts = append(retryAttempts, attempt)
		},
	}

	_ = Do(context.Background(), cfg, func(_ context.Context, _ int) error {
		return errors.New("fail")
	})

	if len(retryAttempts) != 2 {
		t.Fatalf("expected 2 OnRetry calls, got %d", len(retryAttempts))
	}
	if retryAttempts[0] != 1 || retryAttempts[1] != 2 {
		t.Errorf("expected attempts [1, 2], got %v", retryAttempts)
	}
}

func TestTimerSleep_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := TimerSleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
