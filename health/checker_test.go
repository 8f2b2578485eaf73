package health

import (
	"context"
	"errors"
	"testing"
)

func TestStatus_String(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusHealthy, "healthy"},
		{StatusDegraded, "degraded"},
		{StatusUnhealthy, "unhealthy"},
		{Status(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("Status(%d).String() = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestResultConstructors(t *testing.T) {
	err := errors.New("down")
	r := Unhealthy("broken", err).WithDetails(map[string]any{"k": 1})
	if r.Status != StatusUnhealthy || r.Message != "broken" || r.Error != err {
		t.Errorf("Unhealthy() = %+v", r)
	}
	if r.Details["k"] != 1 {
		t.Errorf("Details = %v", r.Details)
	}
	if Degraded("slow").Status != StatusDegraded {
		t.Error("Degraded() status wrong")
	}
	if Healthy("ok").Error != nil {
		t.Error("Healthy() should carry no error")
	}
}

func TestCheckerFunc(t *testing.T) {
	c := NewCheckerFunc("probe", func(context.Context) Result { return Healthy("ok") })
	if c.Name() != "probe" {
		t.Errorf("Name() = %q", c.Name())
	}
	if got := c.Check(context.Background()); got.Status != StatusHealthy {
		t.Errorf("Check() = %v", got.Status)
	}
}
