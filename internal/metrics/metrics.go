// Package metrics exposes the controller's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts event processing outcomes.
type Metrics struct {
	EventsObserved  *prometheus.CounterVec
	EventsProcessed prometheus.Counter
	EventsIgnored   prometheus.Counter
	EventsFailed    prometheus.Counter
	Retirements     prometheus.Counter
	LookupFailures  *prometheus.CounterVec
	ProcessSeconds  prometheus.Histogram
}

// New registers the controller metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		EventsObserved: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "provision_ledger_events_observed_total",
			Help: "Lifecycle events observed, by current state.",
		}, []string{"state"}),
		EventsProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "provision_ledger_events_processed_total",
			Help: "Lifecycle events fully mirrored into the reporting store.",
		}),
		EventsIgnored: factory.NewCounter(prometheus.CounterOpts{
			Name: "provision_ledger_events_ignored_total",
			Help: "Lifecycle events skipped by classification.",
		}),
		EventsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "provision_ledger_events_failed_total",
			Help: "Lifecycle events that could not be mirrored.",
		}),
		Retirements: factory.NewCounter(prometheus.CounterOpts{
			Name: "provision_ledger_retirements_total",
			Help: "Provisions marked retired.",
		}),
		LookupFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "provision_ledger_lookup_failures_total",
			Help: "Failed enrichment lookups, by backend.",
		}, []string{"backend"}),
		ProcessSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "provision_ledger_event_process_seconds",
			Help:    "Wall time spent mirroring one event.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
