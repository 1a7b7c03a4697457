package utils

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
)

// RetryConfig holds the parameters for the retry strategy.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Logger      *Logger
	// Retryable decides whether an error is worth another attempt.
	// Nil means every error is retried.
	Retryable func(error) bool
}

// Do executes fn with exponential back-off retry logic. It gives up early
// when ctx is done or when Retryable rejects the error.
func (r *RetryConfig) Do(ctx context.Context, operationName string, fn func(ctx context.Context) error) error {
	attempts := r.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	delay := r.BaseDelay

	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil || (r.Retryable != nil && !r.Retryable(lastErr)) {
			return lastErr
		}

		if attempt < attempts {
			if r.Logger != nil {
				r.Logger.Warn("[retry] %s failed (attempt %d/%d): %v, retrying in %v",
					operationName, attempt, attempts, lastErr, delay)
			}
			if err := Sleep(ctx, delay); err != nil {
				return lastErr
			}
			delay *= 2
		}
	}

	if attempts == 1 {
		return lastErr
	}
	return eris.Wrapf(lastErr, "%s failed after %d attempts", operationName, attempts)
}

// Sleep pauses for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
