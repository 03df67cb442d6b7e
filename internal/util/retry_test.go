package util

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetry(t *testing.T) {
	t.Run("succeeds after failures", func(t *testing.T) {
		calls := 0
		result, err := Retry(3, func() (int, error) {
			calls++
			if calls < 3 {
				return 0, errors.New("transient")
			}
			return 42, nil
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result != 42 {
			t.Fatalf("expected 42, got %d", result)
		}
		if calls != 3 {
			t.Fatalf("expected 3 calls, got %d", calls)
		}
	})

	t.Run("returns last error", func(t *testing.T) {
		wantErr := errors.New("permanent")
		calls := 0
		_, err := Retry(2, func() (string, error) {
			calls++
			return "", wantErr
		})
		if !errors.Is(err, wantErr) {
			t.Fatalf("expected %v, got %v", wantErr, err)
		}
		if calls != 2 {
			t.Fatalf("expected 2 calls, got %d", calls)
		}
	})

	t.Run("zero maxTries defaults to one", func(t *testing.T) {
		calls := 0
		_, _ = Retry(0, func() (int, error) {
			calls++
			return 0, errors.New("fail")
		})
		if calls != 1 {
			t.Fatalf("expected 1 call, got %d", calls)
		}
	})
}

func TestRetryWithContext(t *testing.T) {
	t.Run("stops on canceled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		calls := 0
		_, err := RetryWithContext(ctx, 5, func(context.Context) (int, error) {
			calls++
			return 0, errors.New("fail")
		})
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
		if calls != 0 {
			t.Fatalf("expected 0 calls, got %d", calls)
		}
	})
}

func TestBackoff(t *testing.T) {
	t.Run("exhausts after MaxTries", func(t *testing.T) {
		b := &Backoff{Initial: time.Millisecond, MaxTries: 2}
		ctx := context.Background()
		if err := b.Sleep(ctx); err != nil {
			t.Fatalf("first sleep failed: %v", err)
		}
		if err := b.Sleep(ctx); err != nil {
			t.Fatalf("second sleep failed: %v", err)
		}
		if err := b.Sleep(ctx); !errors.Is(err, ErrRetriesExhausted) {
			t.Fatalf("expected ErrRetriesExhausted, got %v", err)
		}
	})

	t.Run("reset restores budget", func(t *testing.T) {
		b := &Backoff{Initial: time.Millisecond, MaxTries: 1}
		ctx := context.Background()
		if err := b.Sleep(ctx); err != nil {
			t.Fatalf("sleep failed: %v", err)
		}
		b.Reset()
		if err := b.Sleep(ctx); err != nil {
			t.Fatalf("sleep after reset failed: %v", err)
		}
	})

	t.Run("honors context cancellation", func(t *testing.T) {
		b := &Backoff{Initial: time.Minute, MaxTries: 1}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		if err := b.Sleep(ctx); !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("expected deadline exceeded, got %v", err)
		}
	})
}
