package scrape

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/brand-seo/internal/browser"
	"github.com/sells-group/brand-seo/internal/resilience"
)

// Navigator loads pages with bounded attempts and linear backoff.
type Navigator struct {
	// Attempts is the total number of navigation attempts. Default: 3.
	Attempts int
	// Backoff is multiplied by the attempt number between attempts. Default: 2s.
	Backoff time.Duration
	// Timeout bounds each individual attempt. Default: 60s.
	Timeout time.Duration
	// Sleep waits between attempts. Nil uses a real timer.
	Sleep resilience.SleepFunc
}

// NewNavigator returns a Navigator with the standard limits.
func NewNavigator() *Navigator {
	return &Navigator{
		Attempts: 3,
		Backoff:  2 * time.Second,
		Timeout:  60 * time.Second,
	}
}

// Navigate loads target into page. It never returns an error: every failure
// is logged and the result collapses to false once attempts are exhausted.
// After a false result the page content is indeterminate.
func (n *Navigator) Navigate(ctx context.Context, page browser.Page, target string) bool {
	log := zap.L().With(zap.String("url", target))

	timeout := n.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	cfg := resilience.RetryConfig{
		MaxAttempts: n.Attempts,
		Backoff:     n.Backoff,
		Strategy:    resilience.BackoffLinear,
		Sleep:       n.Sleep,
		OnRetry:     resilience.RetryLogger("navigate", target),
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 2 * time.Second
	}

	err := resilience.Do(ctx, cfg, func(ctx context.Context, attempt int) error {
		log.Info("scrape: navigating", zap.Int("attempt", attempt))

		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		return page.Navigate(attemptCtx, target)
	})
	if err != nil {
		log.Error("scrape: giving up on url", zap.Int("attempts", cfg.MaxAttempts), zap.Error(err))
		return false
	}
	return true
}
