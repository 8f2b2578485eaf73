package resilience

import (
	"errors"
	"fmt"
	"testing"
)

func TestSentinelErrors(t *testing.T) {
	for _, err := range []error{ErrCircuitOpen, ErrMaxRetriesExceeded, ErrRateLimitExceeded, ErrTimeout} {
		if err == nil || err.Error() == "" {
			t.Errorf("sentinel %v has empty message", err)
		}
	}
}

func TestPermanent(t *testing.T) {
	if Permanent(nil) != nil {
		t.Error("Permanent(nil) should be nil")
	}

	base := errors.New("bad request")
	p := Permanent(base)
	if !IsPermanent(p) {
		t.Error("expected permanent")
	}
	if !errors.Is(p, base) {
		t.Error("permanent error should unwrap to its cause")
	}
	if p.Error() != "bad request" {
		t.Errorf("Error() = %q", p.Error())
	}
	if !IsPermanent(fmt.Errorf("wrapped: %w", p)) {
		t.Error("wrapping should keep the permanent mark")
	}
	if IsPermanent(base) {
		t.Error("plain error is not permanent")
	}
}
