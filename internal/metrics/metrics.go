// Package metrics defines the Prometheus metrics exposed by the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Import metrics
var (
	// ImportObservationsTotal tracks reconciled observations by outcome
	ImportObservationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "import_observations_total",
			Help: "Total number of reconciled observations by outcome",
		},
		[]string{"outcome"},
	)

	// ImportRunDuration tracks reconciliation run duration
	ImportRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "import_run_duration_seconds",
			Help:    "Reconciliation run duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		},
	)
)

// Engine metrics
var (
	// RuleApplicationsTotal tracks rule engine passes that changed an observation
	RuleApplicationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rule_applications_total",
			Help: "Total number of rule engine passes that changed an observation",
		},
	)

	// VEXApplicationsTotal tracks VEX engine passes that changed an observation
	VEXApplicationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vex_applications_total",
			Help: "Total number of VEX engine passes that changed an observation",
		},
	)

	// RiskAcceptanceExpiriesTotal tracks expired risk acceptances reopened by the scheduler
	RiskAcceptanceExpiriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "risk_acceptance_expiries_total",
			Help: "Total number of expired risk acceptances reopened by the scheduler",
		},
	)
)

// Notification metrics
var (
	// NotificationsTotal tracks notifier deliveries by result
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Total number of notifier deliveries by result",
		},
		[]string{"result"},
	)
)
