package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (m *Manager) initAIMetrics(f promauto.Factory, cfg Config) {
	m.aiCacheLookups = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ai",
		Name:      "cache_lookups_total",
		Help:      "Response cache lookups by result.",
	}, []string{"result"})

	m.aiProviderAttempts = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ai",
		Name:      "provider_attempts_total",
		Help:      "Provider calls by outcome, including skipped providers.",
	}, []string{"provider", "outcome"})

	m.aiProviderDuration = f.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "ai",
		Name:      "provider_duration_seconds",
		Help:      "Latency of provider calls that reached the network.",
		Buckets:   cfg.AIDurationBuckets,
	}, []string{"provider"})

	m.aiGenerations = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ai",
		Name:      "generations_total",
		Help:      "Generations by variant and whether any provider answered.",
	}, []string{"variant", "success"})

	m.aiDuration = f.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "ai",
		Name:      "generation_duration_seconds",
		Help:      "End-to-end generation latency including fallbacks.",
		Buckets:   cfg.AIDurationBuckets,
	}, []string{"variant"})
}

// CacheLookup records a response cache hit or miss.
func (m *Manager) CacheLookup(hit bool) {
	if !m.enabled {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.aiCacheLookups.WithLabelValues(result).Inc()
}

// ProviderAttempt records one provider call. Skipped providers carry a zero
// duration and are not observed in the histogram.
func (m *Manager) ProviderAttempt(provider, outcome string, d time.Duration) {
	if !m.enabled {
		return
	}
	m.aiProviderAttempts.WithLabelValues(provider, outcome).Inc()
	if d > 0 {
		m.aiProviderDuration.WithLabelValues(provider).Observe(d.Seconds())
	}
}

// Generated records a finished generation.
func (m *Manager) Generated(variant string, success bool, d time.Duration) {
	if !m.enabled {
		return
	}
	m.aiGenerations.WithLabelValues(variant, strconv.FormatBool(success)).Inc()
	m.aiDuration.WithLabelValues(variant).Observe(d.Seconds())
}
