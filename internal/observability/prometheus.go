package observability

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"appletcore/internal/core"
)

var _ core.MetricsRecorder = (*PrometheusMetrics)(nil)

// PrometheusMetrics counts operations by outcome and observes their latency.
type PrometheusMetrics struct {
	total    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewPrometheusMetrics registers the applet operation collectors on reg.
func NewPrometheusMetrics(reg prometheus.Registerer) (*PrometheusMetrics, error) {
	m := &PrometheusMetrics{
		total: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "appletcore",
			Name:      "operations_total",
			Help:      "Applet service operations by outcome.",
		}, []string{"operation", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "appletcore",
			Name:      "operation_duration_seconds",
			Help:      "Latency of applet service operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
	for _, c := range []prometheus.Collector{m.total, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register applet metrics: %w", err)
		}
	}
	return m, nil
}

// Observe implements core.MetricsRecorder.
func (m *PrometheusMetrics) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	m.total.WithLabelValues(operation, statusLabel(success)).Inc()
	m.duration.WithLabelValues(operation).Observe(duration.Seconds())
}

// WriteText dumps everything g gathers in the Prometheus text format.
func WriteText(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("write metric %s: %w", mf.GetName(), err)
		}
	}
	return nil
}
