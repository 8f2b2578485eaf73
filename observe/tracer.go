package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// RunMeta describes one simtool run for telemetry purposes.
type RunMeta struct {
	Tool     string // simtool name (required)
	Revision string // empty for unversioned tools
	Venue    string // local, remote, trustedLocal, trustedRemote, noSubmit
	RunName  string // workspace directory name
}

// SpanName returns the deterministic span name for this run.
// Format: simtool.run.<tool>
func (m RunMeta) SpanName() string {
	return "simtool.run." + m.Tool
}

// ToolID returns tool@revision, or just the tool for unversioned tools.
func (m RunMeta) ToolID() string {
	if m.Revision == "" {
		return m.Tool
	}
	return m.Tool + "@" + m.Revision
}

// Validate checks that the metadata names a tool.
func (m RunMeta) Validate() error {
	if m.Tool == "" {
		return ErrMissingToolName
	}
	return nil
}

// Tracer wraps OpenTelemetry tracing with run-scoped span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a new span for a run.
	StartSpan(ctx context.Context, meta RunMeta) (context.Context, trace.Span)

	// EndSpan records the run outcome and any error, then ends the span.
	EndSpan(span trace.Span, outcome Outcome, err error)
}

// NewTracer wraps an OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	return &tracerImpl{tracer: t}
}

type tracerImpl struct {
	tracer trace.Tracer
}

// StartSpan starts a new span with run metadata as attributes.
func (t *tracerImpl) StartSpan(ctx context.Context, meta RunMeta) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("tool.id", meta.ToolID()),
		attribute.String("tool.name", meta.Tool),
		attribute.Bool("run.error", false), // Updated in EndSpan
	}
	if meta.Revision != "" {
		attrs = append(attrs, attribute.String("tool.revision", meta.Revision))
	}
	if meta.Venue != "" {
		attrs = append(attrs, attribute.String("run.venue", meta.Venue))
	}
	if meta.RunName != "" {
		attrs = append(attrs, attribute.String("run.name", meta.RunName))
	}

	return t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// EndSpan ends the span and records the outcome and error status.
func (t *tracerImpl) EndSpan(span trace.Span, outcome Outcome, err error) {
	span.SetAttributes(
		attribute.String("cache.status", outcome.lookup()),
		attribute.Bool("run.executed", outcome.Executed),
	)
	if outcome.Executed {
		span.SetAttributes(attribute.Int("run.exit_code", outcome.ExitCode))
	}
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.Bool("run.error", true))
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

type noopTracer struct {
	noop trace.Tracer
}

func newNoopTracer() Tracer {
	return &noopTracer{
		noop: tracenoop.NewTracerProvider().Tracer("noop"),
	}
}

func (t *noopTracer) StartSpan(ctx context.Context, meta RunMeta) (context.Context, trace.Span) {
	return t.noop.Start(ctx, meta.SpanName())
}

func (t *noopTracer) EndSpan(span trace.Span, _ Outcome, _ error) {
	span.End()
}
