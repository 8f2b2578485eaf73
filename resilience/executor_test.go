package resilience

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestExecutor_NoOptionsCallsThrough(t *testing.T) {
	calls := 0
	err := NewExecutor().Execute(context.Background(), func(context.Context) error {
		calls++
		return nil
	})
	if err != nil || calls != 1 {
		t.Errorf("err=%v calls=%d", err, calls)
	}
}

func TestExecutor_RetryInsideBreaker(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{MaxFailures: 2, ResetTimeout: time.Minute})
	e := NewExecutor(
		WithCircuitBreaker(cb),
		WithRetry(fastRetry(3)),
	)

	var calls atomic.Int32
	op := func(context.Context) error {
		calls.Add(1)
		return errors.New("down")
	}

	_ = e.Execute(context.Background(), op)
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3 attempts for one logical call", calls.Load())
	}
	if cb.State() != StateClosed {
		t.Errorf("one logical failure should not open a MaxFailures=2 breaker")
	}

	_ = e.Execute(context.Background(), op)
	if cb.State() != StateOpen {
		t.Errorf("state = %v, want open", cb.State())
	}
	if e.CircuitBreaker() != cb {
		t.Error("CircuitBreaker() should return the configured breaker")
	}
}

func TestExecutor_TimeoutPerAttempt(t *testing.T) {
	e := NewExecutor(
		WithRetry(fastRetry(2)),
		WithTimeout(5*time.Millisecond),
	)
	var calls atomic.Int32
	err := e.Execute(context.Background(), func(ctx context.Context) error {
		calls.Add(1)
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("err = %v, want ErrTimeout", err)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestExecutor_WithTimeoutZeroDisables(t *testing.T) {
	e := NewExecutor(WithTimeout(time.Second), WithTimeout(0))
	if e.timeout != nil {
		t.Error("WithTimeout(0) should clear the timeout")
	}
}

func TestDo_ReturnsValue(t *testing.T) {
	e := NewExecutor(WithRetry(fastRetry(3)))
	calls := 0
	v, err := Do(context.Background(), e, func(context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("transient")
		}
		return "sig-42", nil
	})
	if err != nil || v != "sig-42" {
		t.Errorf("Do() = %q, %v", v, err)
	}
}

func TestDo_NilExecutor(t *testing.T) {
	v, err := Do(context.Background(), nil, func(context.Context) (int, error) { return 7, nil })
	if err != nil || v != 7 {
		t.Errorf("Do() = %d, %v", v, err)
	}
}

func TestDo_ErrorLeavesZeroValue(t *testing.T) {
	v, err := Do(context.Background(), NewExecutor(), func(context.Context) (int, error) { return 7, errors.New("x") })
	if err == nil || v != 0 {
		t.Errorf("Do() = %d, %v", v, err)
	}
}
