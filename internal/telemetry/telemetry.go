// Package telemetry exposes Prometheus collectors for the orchestrator.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TransitionsTotal counts committed state transitions by entity and
	// resulting state.
	TransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "remedy",
		Name:      "state_transitions_total",
		Help:      "Committed state machine transitions.",
	}, []string{"entity", "to"})

	// TransitionConflicts counts optimistic concurrency losses.
	TransitionConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "remedy",
		Name:      "transition_conflicts_total",
		Help:      "State transitions rejected by optimistic version checks.",
	})

	// OutcomesCaptured counts learning outcomes merged into patterns.
	OutcomesCaptured = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "remedy",
		Name:      "outcomes_captured_total",
		Help:      "Outcome reports merged into the pattern store.",
	})

	// HypothesesGenerated counts hypotheses attached to incidents.
	HypothesesGenerated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "remedy",
		Name:      "hypotheses_generated_total",
		Help:      "Hypotheses attached to incidents.",
	})

	// NotificationsSent counts notification deliveries by channel and result.
	NotificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "remedy",
		Name:      "notifications_sent_total",
		Help:      "Notification delivery attempts.",
	}, []string{"channel", "result"})
)

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
