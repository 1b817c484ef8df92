package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Store outcomes recorded by NotificationsStored.
const (
	OutcomeCreated = "created"
	OutcomeMerged  = "merged"
	OutcomeDropped = "dropped"
)

var (
	NotificationsStored = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "whathappened",
			Name:      "notifications_stored_total",
			Help:      "Notifications passed to a storage session, by outcome.",
		},
		[]string{"outcome"},
	)

	BackendFallbacks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "whathappened",
			Name:      "backend_fallbacks_total",
			Help:      "Sessions served by the null backend because the sqlite backend was unavailable.",
		},
	)

	ValidationFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "whathappened",
			Name:      "backend_validation_failures_total",
			Help:      "Failed sqlite backend validations.",
		},
	)

	RetentionDeleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "whathappened",
			Name:      "retention_deleted_total",
			Help:      "Notifications removed by retention cleanup.",
		},
	)
)

func init() {
	prometheus.MustRegister(NotificationsStored, BackendFallbacks, ValidationFailures, RetentionDeleted)
}
