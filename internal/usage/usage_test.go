package usage

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestTimeBoundedTracker_AddAndTotal(t *testing.T) {
	tr := NewTimeBoundedTracker(time.Hour)
	tr.Add(10)
	tr.Add(5)
	if got := tr.Total(); got != 15 {
		t.Errorf("Total() = %v, want 15", got)
	}
}

func TestTimeBoundedTracker_DiscardsOld(t *testing.T) {
	tr := NewTimeBoundedTracker(20 * time.Millisecond)
	tr.Add(10)
	time.Sleep(30 * time.Millisecond)
	tr.Add(5)
	if got := tr.Total(); got != 5 {
		t.Errorf("Total() = %v, want 5 after old entry expires", got)
	}
}

func TestRetryWithBackoff_SucceedsWithoutRetry(t *testing.T) {
	calls := 0
	err := RetryWithBackoff(context.Background(), RetryPolicy{BaseDelay: time.Millisecond, ExponentialBase: 2, MaxRetries: 3}, func(ctx context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("RetryWithBackoff() error = %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetryWithBackoff_RetriesThenSucceeds(t *testing.T) {
	calls := 0
	err := RetryWithBackoff(context.Background(), RetryPolicy{BaseDelay: time.Millisecond, ExponentialBase: 2, MaxRetries: 3}, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("RetryWithBackoff() error = %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetryWithBackoff_ExhaustsRetries(t *testing.T) {
	err := RetryWithBackoff(context.Background(), RetryPolicy{BaseDelay: time.Millisecond, ExponentialBase: 2, MaxRetries: 2}, func(ctx context.Context) error {
		return errors.New("always fails")
	})
	if !errors.Is(err, ErrMaxRetriesExceeded) {
		t.Errorf("err = %v, want ErrMaxRetriesExceeded", err)
	}
}

func TestRetryWithBackoff_NonRetryableFailsFast(t *testing.T) {
	calls := 0
	sentinel := errors.New("bad request")
	err := RetryWithBackoff(context.Background(), RetryPolicy{
		BaseDelay:       time.Millisecond,
		ExponentialBase: 2,
		MaxRetries:      3,
		IsRetryable:     func(err error) bool { return !errors.Is(err, sentinel) },
	}, func(ctx context.Context) error {
		calls++
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Errorf("err = %v, want sentinel", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (non-retryable should not retry)", calls)
	}
}

func TestRetryWithBackoff_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := RetryWithBackoff(ctx, RetryPolicy{BaseDelay: time.Second, ExponentialBase: 2, MaxRetries: 3}, func(ctx context.Context) error {
		return errors.New("fail")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
