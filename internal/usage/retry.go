package usage

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// ErrMaxRetriesExceeded is returned when a retryable operation never
// succeeds within the configured retry budget.
var ErrMaxRetriesExceeded = errors.New("usage: maximum number of retries exceeded")

// RetryPolicy configures RetryWithBackoff. The delay before attempt N is
// base * exponentialBase^N * (1 + jitter*rand()), matching the original
// async_retry_with_exponential_backoff: the multiplier applies starting at
// the first retry, not the first attempt.
type RetryPolicy struct {
	BaseDelay        time.Duration
	ExponentialBase  float64
	Jitter           bool
	MaxRetries       int
	// IsRetryable reports whether err should trigger another attempt. A
	// nil IsRetryable treats every non-nil error as retryable.
	IsRetryable func(err error) bool
}

// DefaultRetryPolicy mirrors the original's defaults (base_delay=1,
// exponential_base=4, jitter=True, max_retries=3).
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		BaseDelay:       time.Second,
		ExponentialBase: 4,
		Jitter:          true,
		MaxRetries:      3,
	}
}

// RetryWithBackoff calls fn until it succeeds, fn's error is not retryable,
// or the retry budget is exhausted. ctx cancellation aborts the wait
// immediately.
func RetryWithBackoff(ctx context.Context, p RetryPolicy, fn func(ctx context.Context) error) error {
	delay := p.BaseDelay
	if delay <= 0 {
		delay = time.Second
	}
	base := p.ExponentialBase
	if base <= 0 {
		base = 4
	}
	retries := 0
	for {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if p.IsRetryable != nil && !p.IsRetryable(err) {
			return err
		}
		retries++
		if retries > p.MaxRetries {
			return fmt.Errorf("%w: %v", ErrMaxRetriesExceeded, err)
		}
		jitter := 0.0
		if p.Jitter {
			jitter = rand.Float64()
		}
		delay = time.Duration(float64(delay) * base)
		wait := time.Duration(float64(delay) * (1 + jitter))
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
