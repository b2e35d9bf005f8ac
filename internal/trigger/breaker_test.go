package trigger

import (
	"context"
	"errors"
	"testing"
	"time"
)

// flakyTrigger fails until unbroken.
type flakyTrigger struct {
	failing bool
	calls   int
}

func (f *flakyTrigger) Fire(context.Context, string, string, string) error {
	f.calls++
	if f.failing {
		return errors.New("connection refused")
	}
	return nil
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	inner := &flakyTrigger{failing: true}
	b := NewBreaker(inner, BreakerConfig{MaxFailures: 3, RetryAfter: time.Hour})

	for i := range 3 {
		if err := b.Fire(ctx, "u", "l", "a"); err == nil {
			t.Fatalf("call %d: expected failure", i)
		}
	}
	// Breaker is now open: the backend must not be called again.
	if err := b.Fire(ctx, "u", "l", "a"); !errors.Is(err, ErrBreakerOpen) {
		t.Fatalf("got %v, want ErrBreakerOpen", err)
	}
	if inner.calls != 3 {
		t.Errorf("backend calls = %d, want 3", inner.calls)
	}
}

func TestBreakerProbesAndRecovers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	inner := &flakyTrigger{failing: true}
	b := NewBreaker(inner, BreakerConfig{MaxFailures: 2, RetryAfter: time.Nanosecond})

	for range 2 {
		_ = b.Fire(ctx, "u", "l", "a")
	}
	time.Sleep(time.Millisecond)

	// Backend comes back; the probe succeeds and the breaker closes.
	inner.failing = false
	if err := b.Fire(ctx, "u", "l", "a"); err != nil {
		t.Fatalf("probe: %v", err)
	}
	if err := b.Fire(ctx, "u", "l", "a"); err != nil {
		t.Fatalf("after recovery: %v", err)
	}
}

func TestBreakerSuccessResetsCounter(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	inner := &flakyTrigger{}
	b := NewBreaker(inner, BreakerConfig{MaxFailures: 2, RetryAfter: time.Hour})

	inner.failing = true
	_ = b.Fire(ctx, "u", "l", "a")
	inner.failing = false
	if err := b.Fire(ctx, "u", "l", "a"); err != nil {
		t.Fatalf("Fire: %v", err)
	}
	inner.failing = true
	// One prior failure was wiped by the success, so this single failure
	// must not open the breaker.
	_ = b.Fire(ctx, "u", "l", "a")
	if err := b.Fire(ctx, "u", "l", "a"); errors.Is(err, ErrBreakerOpen) {
		t.Fatal("breaker opened too early")
	}
}
