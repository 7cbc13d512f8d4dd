package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/trace"
)

func (m *Manager) initHTTPMetrics(f promauto.Factory, cfg Config) {
	m.httpRequests = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "API requests by route and status.",
	}, []string{"method", "path", "status"})

	m.httpDuration = f.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "API request latency.",
		Buckets:   cfg.HTTPDurationBuckets,
	}, []string{"method", "path"})

	m.httpConnections = f.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "active_connections",
		Help:      "Requests currently in flight.",
	})
}

// RecordHTTPRequest records a finished request.
func (m *Manager) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RecordHTTPRequestWithContext(context.Background(), method, path, status, duration)
}

// RecordHTTPRequestWithContext attaches the sampled span in ctx, if any, as
// a latency exemplar.
func (m *Manager) RecordHTTPRequestWithContext(ctx context.Context, method, path, status string, duration time.Duration) {
	if !m.enabled {
		return
	}
	m.httpRequests.WithLabelValues(method, path, status).Inc()
	observe(ctx, m.httpDuration.WithLabelValues(method, path), duration.Seconds())
}

func (m *Manager) IncActiveConnections() {
	if m.enabled {
		m.httpConnections.Inc()
	}
}

func (m *Manager) DecActiveConnections() {
	if m.enabled {
		m.httpConnections.Dec()
	}
}

func observe(ctx context.Context, obs prometheus.Observer, v float64) {
	if labels, ok := exemplar(ctx); ok {
		if eo, ok := obs.(prometheus.ExemplarObserver); ok {
			eo.ObserveWithExemplar(v, labels)
			return
		}
	}
	obs.Observe(v)
}

// exemplar links an observation to the sampled span in ctx.
func exemplar(ctx context.Context) (prometheus.Labels, bool) {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() || !sc.IsSampled() {
		return nil, false
	}
	return prometheus.Labels{
		"trace_id": sc.TraceID().String(),
		"span_id":  sc.SpanID().String(),
	}, true
}
