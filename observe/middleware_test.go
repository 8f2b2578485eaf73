package observe

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/trace"
)

// TestMiddleware_SuccessPath verifies successful runs record telemetry.
func TestMiddleware_SuccessPath(t *testing.T) {
	tracer, recorder := newRecordingTracer()
	metrics, reader := newTestMetrics(t)
	var buf bytes.Buffer
	mw := NewMiddleware(tracer, metrics, NewLoggerWithWriter("info", &buf))

	meta := RunMeta{Tool: "diffusion", Revision: "1.0"}
	want := Outcome{Lookup: LookupMiss, Executed: true, Published: true}

	got, err := mw.Wrap(func(ctx context.Context, m RunMeta) (Outcome, error) {
		return want, nil
	})(context.Background(), meta)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if got != want {
		t.Errorf("outcome = %+v, want %+v", got, want)
	}

	if spans := recorder.Ended(); len(spans) != 1 || spans[0].Name() != "simtool.run.diffusion" {
		t.Fatalf("unexpected spans: %v", spans)
	}
	if v := sumValue(t, collect(t, reader), "simtool.run.total"); v != 1 {
		t.Errorf("simtool.run.total = %d", v)
	}
	if !strings.Contains(buf.String(), "simtool run completed") {
		t.Errorf("expected completion log, got %q", buf.String())
	}
}

// TestMiddleware_ErrorPath verifies failed runs record error telemetry.
func TestMiddleware_ErrorPath(t *testing.T) {
	tracer, recorder := newRecordingTracer()
	metrics, reader := newTestMetrics(t)
	var buf bytes.Buffer
	mw := NewMiddleware(tracer, metrics, NewLoggerWithWriter("info", &buf))

	runErr := errors.New("publish failed")
	_, err := mw.Wrap(func(context.Context, RunMeta) (Outcome, error) {
		return Outcome{Lookup: LookupMiss, Executed: true, PublishFailed: true}, runErr
	})(context.Background(), RunMeta{Tool: "diffusion"})
	if !errors.Is(err, runErr) {
		t.Fatalf("expected original error, got %v", err)
	}

	if recorder.Ended()[0].Status().Description != "publish failed" {
		t.Error("span should carry the error")
	}
	if v := sumValue(t, collect(t, reader), "simtool.run.errors"); v != 1 {
		t.Errorf("simtool.run.errors = %d", v)
	}
	if !strings.Contains(buf.String(), `"level":"error"`) {
		t.Errorf("expected error log, got %q", buf.String())
	}
}

// TestMiddleware_PropagatesContext verifies the run sees the span context.
func TestMiddleware_PropagatesContext(t *testing.T) {
	tracer, _ := newRecordingTracer()
	mw := NewMiddleware(tracer, nil, nil)

	var sawSpan bool
	_, _ = mw.Wrap(func(ctx context.Context, _ RunMeta) (Outcome, error) {
		sawSpan = trace.SpanContextFromContext(ctx).IsValid()
		return Outcome{}, nil
	})(context.Background(), RunMeta{Tool: "ctx"})

	if !sawSpan {
		t.Error("expected valid span context inside the run")
	}
}

// TestMiddleware_DisabledNoop verifies NopMiddleware passes through.
func TestMiddleware_DisabledNoop(t *testing.T) {
	calls := 0
	out, err := NopMiddleware().Wrap(func(context.Context, RunMeta) (Outcome, error) {
		calls++
		return Outcome{Lookup: LookupHit}, nil
	})(context.Background(), RunMeta{Tool: "noop"})
	if err != nil || calls != 1 || out.Lookup != LookupHit {
		t.Errorf("got %+v, %v after %d calls", out, err, calls)
	}
}
