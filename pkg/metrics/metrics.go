package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline counters shared by the three services. Label cardinality stays
// bounded: event types and severities are closed sets.
var (
	EventsConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kestrel_events_consumed_total",
		Help: "Messages consumed from the bus, by service and outcome.",
	}, []string{"service", "outcome"})

	EventsEnriched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kestrel_events_enriched_total",
		Help: "Events enriched and republished, by event type.",
	}, []string{"event_type"})

	LookupCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kestrel_lookup_cache_total",
		Help: "External lookup cache hits and misses, by provider.",
	}, []string{"provider", "result"})

	AlertsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kestrel_alerts_emitted_total",
		Help: "Alerts persisted and published, by severity.",
	}, []string{"severity"})

	DecisionsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kestrel_decisions_created_total",
		Help: "Decisions created, by recommended action.",
	}, []string{"action"})

	Executions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kestrel_executions_total",
		Help: "Playbook executions, by outcome (success, failed, rolled_back, refused).",
	}, []string{"outcome"})

	EnsembleScore = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kestrel_ensemble_score",
		Help:    "Ensemble score distribution, by event type.",
		Buckets: prometheus.LinearBuckets(0, 10, 11),
	}, []string{"event_type"})
)
