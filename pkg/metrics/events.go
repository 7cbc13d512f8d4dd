package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/brilliox/brilliox/pkg/events"
)

func (m *Manager) initEventMetrics(f promauto.Factory) {
	m.eventsEmitted = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "events",
		Name:      "emitted_total",
		Help:      "Accepted process events by kind.",
	}, []string{"kind"})

	m.listenerErrors = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "events",
		Name:      "listener_errors_total",
		Help:      "Subscribers that failed or panicked, by kind.",
	}, []string{"kind"})

	m.rulesTriggered = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "events",
		Name:      "rules_triggered_total",
		Help:      "Rule actions run after a matching condition.",
	}, []string{"rule", "action", "status"})

	m.ruleDepthSkips = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "events",
		Name:      "rule_depth_skips_total",
		Help:      "Emits whose rule pass was skipped because actions nested too deep.",
	}, []string{"kind"})

	m.asyncOverflows = f.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "events",
		Name:      "async_overflow_total",
		Help:      "Async listener tasks that found the worker queue full.",
	})

	m.persistFailures = f.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "events",
		Name:      "persist_failures_total",
		Help:      "Failed state snapshot writes.",
	})
}

// EventEmitted records an accepted event.
func (m *Manager) EventEmitted(kind events.Kind) {
	if !m.enabled {
		return
	}
	m.eventsEmitted.WithLabelValues(string(kind)).Inc()
}

// ListenerFailed records a subscriber that returned an error or panicked.
func (m *Manager) ListenerFailed(kind events.Kind) {
	if !m.enabled {
		return
	}
	m.listenerErrors.WithLabelValues(string(kind)).Inc()
}

// RuleTriggered records a rule whose condition matched.
func (m *Manager) RuleTriggered(ruleID, action string, err error) {
	if !m.enabled {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.rulesTriggered.WithLabelValues(ruleID, action, status).Inc()
}

// RuleDepthExceeded records an emit that skipped its rule pass.
func (m *Manager) RuleDepthExceeded(kind events.Kind) {
	if !m.enabled {
		return
	}
	m.ruleDepthSkips.WithLabelValues(string(kind)).Inc()
}

// AsyncOverflow records an async listener run outside the worker pool.
func (m *Manager) AsyncOverflow() {
	if !m.enabled {
		return
	}
	m.asyncOverflows.Inc()
}

// PersistFailed records a snapshot write failure.
func (m *Manager) PersistFailed() {
	if !m.enabled {
		return
	}
	m.persistFailures.Inc()
}
