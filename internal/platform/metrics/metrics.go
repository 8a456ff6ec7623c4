package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "focuskit"

// Metrics holds the engine counters. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	registry *prometheus.Registry

	transitions          *prometheus.CounterVec
	partialCredits       prometheus.Counter
	persistenceFailures  *prometheus.CounterVec
	syncSnapshots        *prometheus.CounterVec
	notificationFailures *prometheus.CounterVec
}

func New(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	factory := promauto.With(registry)
	return &Metrics{
		registry: registry,
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "transitions_total",
			Help:      "Session state transitions by operation",
		}, []string{"op"}),
		partialCredits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stats",
			Name:      "partial_credits_total",
			Help:      "Resets that earned partial focus credit",
		}),
		persistenceFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "persistence_failures_total",
			Help:      "Snapshot writes that failed",
		}, []string{"op"}),
		syncSnapshots: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "snapshots_total",
			Help:      "Sync snapshots by outcome",
		}, []string{"outcome"}),
		notificationFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "failures_total",
			Help:      "Notifier deliveries that failed",
		}, []string{"notifier"}),
	}
}

func (m *Metrics) Transition(op string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(op).Inc()
}

func (m *Metrics) PartialCredit() {
	if m == nil {
		return
	}
	m.partialCredits.Inc()
}

func (m *Metrics) PersistenceFailure(op string) {
	if m == nil {
		return
	}
	m.persistenceFailures.WithLabelValues(op).Inc()
}

// SyncSnapshot counts a snapshot as published, adopted or discarded.
func (m *Metrics) SyncSnapshot(outcome string) {
	if m == nil {
		return
	}
	m.syncSnapshots.WithLabelValues(outcome).Inc()
}

func (m *Metrics) NotificationFailure(notifier string) {
	if m == nil {
		return
	}
	m.notificationFailures.WithLabelValues(notifier).Inc()
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
