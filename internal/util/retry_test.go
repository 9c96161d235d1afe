package util

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetryErrWithContext_SuccessAfterRetries(t *testing.T) {
	calls := 0
	err := RetryErrWithContext(context.Background(), 3, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestRetryErrWithContext_PersistentFailure(t *testing.T) {
	calls := 0
	err := RetryErrWithContext(context.Background(), 3, func(ctx context.Context) error {
		calls++
		return errors.New("persistent")
	})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if err.Error() != "persistent" {
		t.Fatalf("expected persistent error, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestRetryErrWithContext_MaxTriesZeroOrNegative(t *testing.T) {
	for _, maxTries := range []int{0, -2} {
		calls := 0
		err := RetryErrWithContext(context.Background(), maxTries, func(ctx context.Context) error {
			calls++
			return errors.New("fail")
		})
		if calls != 1 {
			t.Fatalf("expected 1 call for maxTries=%d, got %d", maxTries, calls)
		}
		if err == nil {
			t.Fatal("expected error, got nil")
		}
	}
}

func TestRetryErrWithContext_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := RetryErrWithContext(ctx, 3, func(ctx context.Context) error {
		calls++
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 0 {
		t.Fatalf("expected 0 calls due to immediate cancellation, got %d", calls)
	}
}

func TestRetryWithContext_SuccessImmediate(t *testing.T) {
	result, err := RetryWithContext(context.Background(), 3, func(ctx context.Context) (string, error) {
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if result != "ok" {
		t.Fatalf("expected ok, got %s", result)
	}
}

func TestRetryWithContext_ContextDeadlineExceeded(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	calls := 0
	_, err := RetryWithContext(ctx, 100, func(ctx context.Context) (int, error) {
		calls++
		time.Sleep(5 * time.Millisecond)
		return 0, errors.New("transient")
	})
	if !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
	if calls == 0 {
		t.Fatal("expected at least 1 call before deadline")
	}
}

func TestRetryWithContext_FunctionReturnsContextError(t *testing.T) {
	calls := 0
	_, err := RetryWithContext(context.Background(), 3, func(ctx context.Context) (int, error) {
		calls++
		if calls < 2 {
			return 0, errors.New("transient")
		}
		return 0, context.Canceled
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}
