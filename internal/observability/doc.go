// Package observability provides the metrics, tracing and audit exporters that
// plug into the applet service hooks: expvar and Prometheus metrics, JSON-line
// and OpenTelemetry tracers, and a slog-backed audit recorder.
package observability
