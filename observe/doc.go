// Package observe provides logging, tracing and metrics for simtool runs.
//
// The Logger is the reporting channel for run warnings (missing or extra
// outputs, failed executions, an unavailable cache). Tracer, Metrics and
// Middleware instrument a whole run: one span per run named
// simtool.run.<tool>, counters for runs, cache lookups by status, failed
// executions and publishes.
//
// Exporters are chosen by name (otlp, prometheus, stdout, none) through the
// exporters subpackage.
package observe
