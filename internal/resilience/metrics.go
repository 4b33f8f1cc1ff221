package resilience

import "github.com/prometheus/client_golang/prometheus"

var (
	// BreakerState exposes the state per target: 0=closed, 1=open, 2=half-open.
	BreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "breaker_state",
			Help: "Current breaker state: 0=closed,1=open,2=half-open",
		},
		[]string{"target"},
	)
	BreakerTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "breaker_transition_total",
			Help: "Count of breaker state transitions",
		},
		[]string{"target", "from", "to"},
	)
	BreakerOpenedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "breaker_open_total",
			Help: "Number of times a breaker transitioned into open state",
		},
		[]string{"target"},
	)
	// HTTPAttempts counts outbound attempts by target and outcome.
	HTTPAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outbound_http_attempts_total",
			Help: "Outbound HTTP attempts by target and outcome (ok, client_error, server_error, transport_error, rejected)",
		},
		[]string{"target", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(BreakerState, BreakerTransitions, BreakerOpenedTotal, HTTPAttempts)
}
