package chat

import (
	"context"
	"fmt"
	"time"
)

// RetryPolicy is the single retry policy for message delivery. Transports
// make one attempt each; only the caller holding a RetryPolicy retries.
type RetryPolicy struct {
	MaxRetries int           // retries after the first attempt (0 = no retries)
	BaseDelay  time.Duration // delay before the first retry
	MaxDelay   time.Duration // cap; 0 = uncapped
}

// DefaultRetryPolicy returns 3 retries starting at one second.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, BaseDelay: time.Second, MaxDelay: 30 * time.Second}
}

// Delay returns BaseDelay * 2^retry, capped at MaxDelay.
func (p RetryPolicy) Delay(retry int) time.Duration {
	if retry < 0 {
		retry = 0
	}
	d := p.BaseDelay
	for i := 0; i < retry; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// Retry calls fn until it succeeds, fails with an error retryable rejects,
// or MaxRetries retries have been spent. onRetry, when set, runs before
// each wait with the 1-based retry number.
func Retry[T any](
	ctx context.Context,
	policy RetryPolicy,
	fn func(ctx context.Context) (T, error),
	retryable func(error) bool,
	onRetry func(retry int, delay time.Duration, err error),
) (T, error) {
	var zero T

	for retry := 0; ; retry++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		if ctx.Err() != nil {
			return zero, fmt.Errorf("delivery cancelled: %w", err)
		}
		if !retryable(err) {
			return zero, err
		}
		if retry >= policy.MaxRetries {
			return zero, &RetryExhaustedError{Err: err, Attempts: retry + 1}
		}

		delay := policy.Delay(retry)
		if onRetry != nil {
			onRetry(retry+1, delay, err)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, fmt.Errorf("delivery cancelled during retry: %w", ctx.Err())
		case <-timer.C:
		}
	}
}
