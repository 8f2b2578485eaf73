package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewTimeout_Default(t *testing.T) {
	if d := NewTimeout(0).Duration(); d != 30*time.Second {
		t.Errorf("Duration() = %v, want 30s", d)
	}
}

func TestTimeout_CompletesInTime(t *testing.T) {
	err := NewTimeout(time.Second).Execute(context.Background(), func(context.Context) error { return nil })
	if err != nil {
		t.Errorf("Execute() error = %v", err)
	}
}

func TestTimeout_Expires(t *testing.T) {
	err := NewTimeout(10*time.Millisecond).Execute(context.Background(), func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("Execute() error = %v, want ErrTimeout", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Execute() error = %v, should keep the cause", err)
	}
}

func TestTimeout_ParentCancelNotTimeout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewTimeout(time.Second).Execute(ctx, func(ctx context.Context) error { return ctx.Err() })
	if errors.Is(err, ErrTimeout) {
		t.Error("parent cancellation should not be reported as ErrTimeout")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Execute() error = %v, want context.Canceled", err)
	}
}

func TestTimeout_PassesThroughErrors(t *testing.T) {
	base := errors.New("boom")
	err := NewTimeout(time.Second).Execute(context.Background(), func(context.Context) error { return base })
	if err != base {
		t.Errorf("Execute() error = %v, want %v", err, base)
	}
}
