package observe

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func newRecordingTracer() (*tracerImpl, *tracetest.SpanRecorder) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	return &tracerImpl{tracer: tp.Tracer("test")}, recorder
}

func attrMap(s sdktrace.ReadOnlySpan) map[string]attribute.Value {
	m := make(map[string]attribute.Value)
	for _, a := range s.Attributes() {
		m[string(a.Key)] = a.Value
	}
	return m
}

func TestRunMeta_SpanNameAndID(t *testing.T) {
	tests := []struct {
		meta     RunMeta
		wantSpan string
		wantID   string
	}{
		{RunMeta{Tool: "diffusion", Revision: "1.0"}, "simtool.run.diffusion", "diffusion@1.0"},
		{RunMeta{Tool: "diffusion"}, "simtool.run.diffusion", "diffusion"},
	}
	for _, tc := range tests {
		if got := tc.meta.SpanName(); got != tc.wantSpan {
			t.Errorf("SpanName() = %q, want %q", got, tc.wantSpan)
		}
		if got := tc.meta.ToolID(); got != tc.wantID {
			t.Errorf("ToolID() = %q, want %q", got, tc.wantID)
		}
	}
}

func TestRunMeta_Validate(t *testing.T) {
	if err := (RunMeta{}).Validate(); !errors.Is(err, ErrMissingToolName) {
		t.Errorf("Validate() = %v, want ErrMissingToolName", err)
	}
	if err := (RunMeta{Tool: "x"}).Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

// TestTracer_SpanAttributes verifies run metadata and outcome are recorded.
func TestTracer_SpanAttributes(t *testing.T) {
	tr, recorder := newRecordingTracer()
	meta := RunMeta{Tool: "diffusion", Revision: "1.0", Venue: "local", RunName: "r1"}

	_, span := tr.StartSpan(context.Background(), meta)
	tr.EndSpan(span, Outcome{Lookup: LookupMiss, Executed: true, ExitCode: 3}, nil)

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	s := spans[0]
	if s.Name() != "simtool.run.diffusion" {
		t.Errorf("span name = %q", s.Name())
	}

	attrs := attrMap(s)
	if attrs["tool.id"].AsString() != "diffusion@1.0" {
		t.Errorf("tool.id = %v", attrs["tool.id"])
	}
	if attrs["tool.revision"].AsString() != "1.0" {
		t.Errorf("tool.revision = %v", attrs["tool.revision"])
	}
	if attrs["run.venue"].AsString() != "local" {
		t.Errorf("run.venue = %v", attrs["run.venue"])
	}
	if attrs["cache.status"].AsString() != LookupMiss {
		t.Errorf("cache.status = %v", attrs["cache.status"])
	}
	if attrs["run.exit_code"].AsInt64() != 3 {
		t.Errorf("run.exit_code = %v", attrs["run.exit_code"])
	}
	if attrs["run.error"].AsBool() {
		t.Error("run.error should be false")
	}
	if s.Status().Code != codes.Ok {
		t.Errorf("status = %v, want Ok", s.Status().Code)
	}
	if s.SpanKind() != trace.SpanKindInternal {
		t.Errorf("span kind = %v", s.SpanKind())
	}
}

// TestTracer_SpanAttributesMinimal verifies optional attributes are omitted.
func TestTracer_SpanAttributesMinimal(t *testing.T) {
	tr, recorder := newRecordingTracer()

	_, span := tr.StartSpan(context.Background(), RunMeta{Tool: "diffusion"})
	tr.EndSpan(span, Outcome{Lookup: LookupHit}, nil)

	attrs := attrMap(recorder.Ended()[0])
	for _, k := range []string{"tool.revision", "run.venue", "run.name", "run.exit_code"} {
		if _, ok := attrs[k]; ok {
			t.Errorf("unexpected attribute %s", k)
		}
	}
}

// TestTracer_ContextPropagation verifies child spans attach to the run span.
func TestTracer_ContextPropagation(t *testing.T) {
	tr, recorder := newRecordingTracer()

	ctx, parent := tr.StartSpan(context.Background(), RunMeta{Tool: "parent"})
	_, child := tr.StartSpan(ctx, RunMeta{Tool: "child"})
	tr.EndSpan(child, Outcome{}, nil)
	tr.EndSpan(parent, Outcome{}, nil)

	spans := recorder.Ended()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	if spans[0].Parent().SpanID() != spans[1].SpanContext().SpanID() {
		t.Error("child span should have run span as parent")
	}
}

// TestTracer_ErrorRecording verifies errors set status and events.
func TestTracer_ErrorRecording(t *testing.T) {
	tr, recorder := newRecordingTracer()

	_, span := tr.StartSpan(context.Background(), RunMeta{Tool: "failing"})
	tr.EndSpan(span, Outcome{}, errors.New("publish failed"))

	s := recorder.Ended()[0]
	if s.Status().Code != codes.Error || s.Status().Description != "publish failed" {
		t.Errorf("status = %+v", s.Status())
	}
	if !attrMap(s)["run.error"].AsBool() {
		t.Error("run.error should be true")
	}
	if len(s.Events()) == 0 {
		t.Error("expected error event")
	}
}

func TestNoopTracer_NoPanic(t *testing.T) {
	tr := newNoopTracer()
	_, span := tr.StartSpan(context.Background(), RunMeta{Tool: "noop"})
	tr.EndSpan(span, Outcome{}, errors.New("ignored"))
}
