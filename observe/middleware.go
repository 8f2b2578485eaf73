package observe

import (
	"context"
	"time"
)

// RunFunc is the signature of an instrumented run.
type RunFunc func(ctx context.Context, meta RunMeta) (Outcome, error)

// Middleware wraps a run with tracing, metrics and a completion log entry.
//
// Contract:
//   - Concurrency: Wrap() returns a thread-safe RunFunc.
//   - Context: the wrapped function receives the span's context.
//   - Errors: errors from the wrapped function are recorded and returned unchanged.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewMiddleware creates a new Middleware. Nil components are replaced by no-ops.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	if tracer == nil {
		tracer = newNoopTracer()
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if logger == nil {
		logger = NopLogger()
	}
	return &Middleware{
		tracer:  tracer,
		metrics: metrics,
		logger:  logger,
	}
}

// NopMiddleware returns a Middleware that records nothing.
func NopMiddleware() *Middleware {
	return NewMiddleware(nil, nil, nil)
}

// Wrap wraps fn with tracing, metrics and logging.
func (m *Middleware) Wrap(fn RunFunc) RunFunc {
	return func(ctx context.Context, meta RunMeta) (Outcome, error) {
		ctx, span := m.tracer.StartSpan(ctx, meta)
		start := time.Now()

		outcome, err := fn(ctx, meta)

		duration := time.Since(start)
		m.tracer.EndSpan(span, outcome, err)
		m.metrics.RecordRun(ctx, meta, outcome, duration, err)

		fields := []Field{
			{Key: "duration_ms", Value: float64(duration.Milliseconds())},
			{Key: "cache.status", Value: outcome.lookup()},
		}
		if outcome.Executed {
			fields = append(fields, Field{Key: "exit_code", Value: outcome.ExitCode})
		}

		runLogger := m.logger.WithRun(meta)
		if err != nil {
			fields = append(fields, Field{Key: "error", Value: err.Error()})
			runLogger.Error(ctx, "simtool run failed", fields...)
		} else {
			runLogger.Info(ctx, "simtool run completed", fields...)
		}

		return outcome, err
	}
}

// MiddlewareFromObserver creates a Middleware from an Observer.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}
	metrics, err := newMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}
	return NewMiddleware(NewTracer(obs.Tracer()), metrics, obs.Logger()), nil
}
