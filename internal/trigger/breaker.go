package trigger

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrBreakerOpen is returned by [Breaker.Fire] while the automation backend
// is considered down and the retry timeout has not yet elapsed.
var ErrBreakerOpen = errors.New("trigger: backend unavailable, call skipped")

// BreakerConfig tunes a [Breaker].
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failed Fire calls before the
	// breaker opens. Default: 3.
	MaxFailures int

	// RetryAfter is how long Fire calls are skipped once the breaker has
	// opened. Default: 30s.
	RetryAfter time.Duration
}

// Breaker wraps a [Trigger] so that a dead automation backend does not add
// its full timeout to every classification. After MaxFailures consecutive
// failures, Fire returns [ErrBreakerOpen] immediately until RetryAfter has
// passed; the next call is then let through as a probe.
type Breaker struct {
	next        Trigger
	maxFailures int
	retryAfter  time.Duration

	mu       sync.Mutex
	failures int
	openedAt time.Time
}

var _ Trigger = (*Breaker)(nil)

// NewBreaker wraps next with failure-skipping. Zero-value config fields get
// defaults.
func NewBreaker(next Trigger, cfg BreakerConfig) *Breaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}
	if cfg.RetryAfter <= 0 {
		cfg.RetryAfter = 30 * time.Second
	}
	return &Breaker{
		next:        next,
		maxFailures: cfg.MaxFailures,
		retryAfter:  cfg.RetryAfter,
	}
}

// Fire forwards to the wrapped trigger unless the breaker is open.
func (b *Breaker) Fire(ctx context.Context, user, label, actionID string) error {
	b.mu.Lock()
	if b.failures >= b.maxFailures && time.Since(b.openedAt) < b.retryAfter {
		b.mu.Unlock()
		return ErrBreakerOpen
	}
	b.mu.Unlock()

	err := b.next.Fire(ctx, user, label, actionID)

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.failures++
		if b.failures == b.maxFailures {
			b.openedAt = time.Now()
			slog.Warn("trigger backend failing, skipping calls",
				"failures", b.failures, "retry_after", b.retryAfter)
		} else if b.failures > b.maxFailures {
			// A failed probe keeps the breaker open for another window.
			b.openedAt = time.Now()
		}
		return err
	}
	if b.failures >= b.maxFailures {
		slog.Info("trigger backend recovered")
	}
	b.failures = 0
	return nil
}
