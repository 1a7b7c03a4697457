package utils

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetrySucceedsAfterFailures(t *testing.T) {
	r := &RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, Logger: NewNopLogger()}

	calls := 0
	err := r.Do(context.Background(), "flaky", func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("boom")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls: got %d, want 3", calls)
	}
}

func TestRetryStopsOnNonRetryable(t *testing.T) {
	fatal := errors.New("fatal")
	r := &RetryConfig{
		MaxAttempts: 5,
		BaseDelay:   time.Millisecond,
		Logger:      NewNopLogger(),
		Retryable:   func(err error) bool { return !errors.Is(err, fatal) },
	}

	calls := 0
	err := r.Do(context.Background(), "fatal", func(context.Context) error {
		calls++
		return fatal
	})
	if !errors.Is(err, fatal) {
		t.Fatalf("Do: got %v, want fatal", err)
	}
	if calls != 1 {
		t.Errorf("calls: got %d, want 1", calls)
	}
}

func TestRetryGivesUp(t *testing.T) {
	r := &RetryConfig{MaxAttempts: 2, BaseDelay: time.Millisecond, Logger: NewNopLogger()}

	calls := 0
	err := r.Do(context.Background(), "always", func(context.Context) error {
		calls++
		return errors.New("nope")
	})
	if err == nil {
		t.Fatal("expected an error after exhausting attempts")
	}
	if calls != 2 {
		t.Errorf("calls: got %d, want 2", calls)
	}
}
