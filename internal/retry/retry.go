// Package retry implements bounded retries with exponential backoff for
// network-bound dependency calls. Callers classify which errors are
// transient; non-transient errors abort immediately.
package retry

import (
	"context"
	"time"
)

// Policy bounds retry behavior for one call site.
type Policy struct {
	MaxRetries int           // additional attempts after the first
	BaseDelay  time.Duration // delay before the first retry, doubled each attempt
	MaxDelay   time.Duration // cap on a single delay
}

// DefaultPolicy matches the dependency budget: at most 2 retries.
func DefaultPolicy() Policy {
	return Policy{MaxRetries: 2, BaseDelay: 100 * time.Millisecond, MaxDelay: 2 * time.Second}
}

// Do runs fn, retrying per policy while retryable(err) is true.
// Context cancellation aborts between attempts and is returned as-is.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error, retryable func(error) bool) error {
	delay := p.BaseDelay
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}

	var err error
	for attempt := 0; ; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= p.MaxRetries || !retryable(err) {
			return err
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
}
