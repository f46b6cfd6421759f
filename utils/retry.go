package utils

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrRetryExhausted is wrapped by the error returned once every attempt has failed.
var ErrRetryExhausted = errors.New("retry attempts exhausted")

// ErrNoResult is also wrapped when the final attempt succeeded but produced an empty result.
var ErrNoResult = errors.New("no result")

const defaultMaxAttempts = 3

// RetryConfig holds the parameters for the retry strategy.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Logger      *Logger

	// Abort reports errors that must not be retried; they are returned as-is.
	Abort func(error) bool
	// Sleep waits between attempts. Defaults to SleepContext.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Retry runs fn until it returns a nil error and a result that empty does not reject.
// Between attempts it waits BaseDelay * 2^(attempt-1); there is no wait after the last attempt.
func Retry[T any](ctx context.Context, r *RetryConfig, operationName string,
	fn func(ctx context.Context) (T, error), empty func(T) bool) (T, error) {
	var zero T
	attempts := r.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}
	sleep := r.Sleep
	if sleep == nil {
		sleep = SleepContext
	}

	var lastErr error
	delay := r.BaseDelay
	for attempt := 1; attempt <= attempts; attempt++ {
		result, err := fn(ctx)
		switch {
		case err != nil:
			if r.Abort != nil && r.Abort(err) {
				return zero, err
			}
			lastErr = err
		case empty != nil && empty(result):
			lastErr = nil
		default:
			return result, nil
		}

		if attempt == attempts {
			break
		}
		if r.Logger != nil {
			reason := "empty result"
			if lastErr != nil {
				reason = lastErr.Error()
			}
			r.Logger.Warn("[retry] %s failed (attempt %d/%d): %s, retrying in %v",
				operationName, attempt, attempts, reason, delay)
		}
		if err := sleep(ctx, delay); err != nil {
			return zero, fmt.Errorf("%s: %w", operationName, err)
		}
		delay *= 2
	}

	if lastErr != nil {
		return zero, fmt.Errorf("%s failed after %d attempts: %w: %w", operationName, attempts, ErrRetryExhausted, lastErr)
	}
	return zero, fmt.Errorf("%s returned no result after %d attempts: %w: %w", operationName, attempts, ErrRetryExhausted, ErrNoResult)
}
