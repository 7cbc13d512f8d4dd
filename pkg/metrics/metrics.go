// Package metrics exposes Prometheus instruments for the HTTP API, the AI
// response generator and the process event bus. A disabled Manager accepts
// every call and records nothing.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "brilliox"

// Manager owns a private registry and every instrument registered in it.
type Manager struct {
	registry *prometheus.Registry
	enabled  bool

	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	httpConnections prometheus.Gauge

	aiCacheLookups     *prometheus.CounterVec
	aiProviderAttempts *prometheus.CounterVec
	aiProviderDuration *prometheus.HistogramVec
	aiGenerations      *prometheus.CounterVec
	aiDuration         *prometheus.HistogramVec

	eventsEmitted   *prometheus.CounterVec
	listenerErrors  *prometheus.CounterVec
	rulesTriggered  *prometheus.CounterVec
	ruleDepthSkips  *prometheus.CounterVec
	asyncOverflows  prometheus.Counter
	persistFailures prometheus.Counter
}

// Config holds metrics configuration.
type Config struct {
	Enabled bool
	Port    int
	Path    string

	HTTPDurationBuckets []float64
	// AIDurationBuckets cover slow upstream model calls.
	AIDurationBuckets []float64
}

// DefaultConfig returns default metrics configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:             true,
		Port:                9091,
		Path:                "/metrics",
		HTTPDurationBuckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		AIDurationBuckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 20, 30, 60},
	}
}

// NewManager builds the registry. Missing bucket layouts fall back to
// DefaultConfig.
func NewManager(cfg Config) *Manager {
	if !cfg.Enabled {
		return NoOpManager()
	}
	defaults := DefaultConfig()
	if len(cfg.HTTPDurationBuckets) == 0 {
		cfg.HTTPDurationBuckets = defaults.HTTPDurationBuckets
	}
	if len(cfg.AIDurationBuckets) == 0 {
		cfg.AIDurationBuckets = defaults.AIDurationBuckets
	}

	m := &Manager{registry: prometheus.NewRegistry(), enabled: true}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	factory := promauto.With(m.registry)
	m.initHTTPMetrics(factory, cfg)
	m.initAIMetrics(factory, cfg)
	m.initEventMetrics(factory)
	return m
}

// NoOpManager returns a Manager that records nothing.
func NoOpManager() *Manager {
	return &Manager{}
}

// Enabled reports whether instruments are registered.
func (m *Manager) Enabled() bool {
	return m.enabled
}

// Handler serves the registry in the Prometheus or OpenMetrics format.
// A disabled Manager answers 404.
func (m *Manager) Handler() http.Handler {
	if !m.enabled {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// StartServer serves Handler on a dedicated port until ctx is cancelled.
// A clean shutdown returns nil.
func (m *Manager) StartServer(ctx context.Context, port int, path string) error {
	if !m.enabled {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-stopped
	return nil
}
