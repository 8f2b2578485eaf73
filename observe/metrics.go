package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Cache lookup statuses reported in Outcome.Lookup.
const (
	LookupHit         = "hit"
	LookupMiss        = "miss"
	LookupUnavailable = "unavailable"
	LookupDisabled    = "disabled"
	LookupTrusted     = "trusted"
)

// Outcome summarizes what a run did.
type Outcome struct {
	Lookup        string // one of the Lookup* constants
	Executed      bool
	ExitCode      int
	Published     bool
	PublishFailed bool
}

func (o Outcome) lookup() string {
	if o.Lookup == "" {
		return LookupDisabled
	}
	return o.Lookup
}

// Metrics records run metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordRun records one finished run.
	RecordRun(ctx context.Context, meta RunMeta, outcome Outcome, duration time.Duration, err error)
}

type metricsImpl struct {
	runs         metric.Int64Counter
	runErrors    metric.Int64Counter
	lookups      metric.Int64Counter
	execFailures metric.Int64Counter
	publishes    metric.Int64Counter
	durationHist metric.Float64Histogram
}

// NewMetrics creates run instruments on meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	return newMetrics(meter)
}

func newMetrics(meter metric.Meter) (*metricsImpl, error) {
	runs, err := meter.Int64Counter(
		"simtool.run.total",
		metric.WithDescription("Total number of simtool runs"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, err
	}

	runErrors, err := meter.Int64Counter(
		"simtool.run.errors",
		metric.WithDescription("Runs that ended with an error"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	lookups, err := meter.Int64Counter(
		"simtool.cache.lookups",
		metric.WithDescription("Cache lookups by status"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, err
	}

	execFailures, err := meter.Int64Counter(
		"simtool.exec.failures",
		metric.WithDescription("Executions that returned a non-zero exit code"),
		metric.WithUnit("{execution}"),
	)
	if err != nil {
		return nil, err
	}

	publishes, err := meter.Int64Counter(
		"simtool.cache.publishes",
		metric.WithDescription("Cache publish attempts by result"),
		metric.WithUnit("{publish}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		"simtool.run.duration_ms",
		metric.WithDescription("Run duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		runs:         runs,
		runErrors:    runErrors,
		lookups:      lookups,
		execFailures: execFailures,
		publishes:    publishes,
		durationHist: durationHist,
	}, nil
}

// RecordRun records metrics for a finished run.
func (m *metricsImpl) RecordRun(ctx context.Context, meta RunMeta, outcome Outcome, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("tool.id", meta.ToolID()),
		attribute.String("tool.name", meta.Tool),
	}
	if meta.Venue != "" {
		attrs = append(attrs, attribute.String("run.venue", meta.Venue))
	}
	opt := metric.WithAttributes(attrs...)

	m.runs.Add(ctx, 1, opt)
	if err != nil {
		m.runErrors.Add(ctx, 1, opt)
	}

	m.lookups.Add(ctx, 1, metric.WithAttributes(
		append(attrs, attribute.String("cache.status", outcome.lookup()))...,
	))

	if outcome.Executed && outcome.ExitCode != 0 {
		m.execFailures.Add(ctx, 1, opt)
	}

	if outcome.Published || outcome.PublishFailed {
		m.publishes.Add(ctx, 1, metric.WithAttributes(
			append(attrs, attribute.Bool("publish.ok", outcome.Published))...,
		))
	}

	m.durationHist.Record(ctx, float64(duration.Milliseconds()), opt)
}

type noopMetrics struct{}

func (noopMetrics) RecordRun(context.Context, RunMeta, Outcome, time.Duration, error) {}
