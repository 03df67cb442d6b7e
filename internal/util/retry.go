package util

import (
	"context"
	"errors"
	"time"
)

// ErrRetriesExhausted is returned by Backoff.Sleep once the attempt budget is spent.
var ErrRetriesExhausted = errors.New("retries exhausted")

// Retry calls fn up to maxTries times until it returns nil error.
// If maxTries <= 0, it defaults to 1. Returns the last error if all attempts fail.
func Retry[T any](maxTries int, fn func() (T, error)) (T, error) {
	if maxTries <= 0 {
		maxTries = 1
	}
	var lastErr error
	var zero T
	for i := 0; i < maxTries; i++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err
	}
	return zero, lastErr
}

// RetryErr calls fn up to maxTries times until it returns nil error.
// If maxTries <= 0, it defaults to 1. Returns the last error if all attempts fail.
func RetryErr(maxTries int, fn func() error) error {
	if maxTries <= 0 {
		maxTries = 1
	}
	var lastErr error
	for i := 0; i < maxTries; i++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
	}
	return lastErr
}

// RetryWithContext calls fn up to maxTries times until it returns a result and nil
// error, or until ctx is done. If maxTries <= 0, it defaults to 1.
// Returns ctx.Err() if the context is canceled, otherwise returns the last error.
func RetryWithContext[T any](ctx context.Context, maxTries int, fn func(context.Context) (T, error)) (T, error) {
	if maxTries <= 0 {
		maxTries = 1
	}
	var lastErr error
	var zero T
	for i := 0; i < maxTries; i++ {
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return zero, err
		}
		lastErr = err
	}
	return zero, lastErr
}

// Backoff tracks state for a bounded retry loop with exponential delay.
// The zero value is not usable; set Initial and MaxTries.
type Backoff struct {
	Initial  time.Duration
	Max      time.Duration
	MaxTries int

	attempt int
}

// Sleep blocks for the next backoff delay, doubling it per attempt up to Max.
// It returns ErrRetriesExhausted once MaxTries delays have been consumed, or
// ctx.Err() if the context ends while waiting.
func (b *Backoff) Sleep(ctx context.Context) error {
	if b.attempt >= b.MaxTries {
		return ErrRetriesExhausted
	}
	delay := b.Initial << b.attempt
	if b.Max > 0 && delay > b.Max {
		delay = b.Max
	}
	b.attempt++

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Reset restores the full attempt budget.
func (b *Backoff) Reset() {
	b.attempt = 0
}
