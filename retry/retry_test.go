package retry

import (
	"context"
	"fmt"
	"testing"
	"time"

	syncErrors "github.com/dulcera/syncbridge/errors"
)

func fastConfig(cond Condition) Config {
	return Config{
		MaxRetries:     3,
		BaseDelay:      time.Millisecond,
		MaxDelay:       10 * time.Millisecond,
		BackoffFactor:  2.0,
		RetryCondition: cond,
	}
}

func TestExecuteSuccess(t *testing.T) {
	e := NewExecutor(fastConfig(nil), nil)

	calls := 0
	err := e.Execute(context.Background(), "op", func(ctx context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestExecuteRetriesUntilSuccess(t *testing.T) {
	e := NewExecutor(fastConfig(nil), nil)

	calls := 0
	err := e.Execute(context.Background(), "op", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return fmt.Errorf("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected recovery, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestExecuteExhaustsRetries(t *testing.T) {
	e := NewExecutor(fastConfig(nil), nil)

	calls := 0
	err := e.Execute(context.Background(), "op", func(ctx context.Context) error {
		calls++
		return fmt.Errorf("always failing")
	})
	if err == nil {
		t.Fatal("expected final error")
	}
	// initial attempt + 3 retries
	if calls != 4 {
		t.Fatalf("expected 4 calls, got %d", calls)
	}
}

func TestExecuteRejectsNonRetryableImmediately(t *testing.T) {
	cond := func(err error) bool { return syncErrors.IsRetryable(err) }
	e := NewExecutor(fastConfig(cond), nil)

	calls := 0
	permanent := syncErrors.NewValidationError(syncErrors.OpValidate, fmt.Errorf("bad input"))
	err := e.Execute(context.Background(), "op", func(ctx context.Context) error {
		calls++
		return permanent
	})
	if err != permanent {
		t.Fatalf("expected the permanent error back, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected exactly 1 call, got %d", calls)
	}
}

func TestExecuteHonorsContextCancellation(t *testing.T) {
	e := NewExecutor(Config{
		MaxRetries:    5,
		BaseDelay:     time.Hour, // would stall forever without cancellation
		MaxDelay:      time.Hour,
		BackoffFactor: 2.0,
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := e.Execute(ctx, "op", func(ctx context.Context) error {
		return fmt.Errorf("transient")
	})
	if err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestDelayCapping(t *testing.T) {
	e := NewExecutor(Config{
		MaxRetries:    10,
		BaseDelay:     100 * time.Millisecond,
		MaxDelay:      time.Second,
		BackoffFactor: 2.0,
	}, nil)

	if d := e.delayFor(0); d != 100*time.Millisecond {
		t.Errorf("attempt 0: %v", d)
	}
	if d := e.delayFor(2); d != 400*time.Millisecond {
		t.Errorf("attempt 2: %v", d)
	}
	if d := e.delayFor(8); d != time.Second {
		t.Errorf("attempt 8 should be capped: %v", d)
	}
}

func TestAPIConditionClassification(t *testing.T) {
	if !APICondition(syncErrors.FromHTTPStatus(syncErrors.OpConnectorSync, "c", 503, "")) {
		t.Error("503 should be retryable")
	}
	if !APICondition(syncErrors.FromHTTPStatus(syncErrors.OpConnectorSync, "c", 429, "")) {
		t.Error("429 should be retryable")
	}
	if APICondition(syncErrors.FromHTTPStatus(syncErrors.OpConnectorSync, "c", 404, "")) {
		t.Error("404 must not be retryable")
	}
	if !APICondition(fmt.Errorf("dial tcp: connection refused")) {
		t.Error("connection refused should be retryable")
	}
}
