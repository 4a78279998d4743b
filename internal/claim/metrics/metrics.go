package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the claim module.
type Metrics struct {
	ClaimsCreated      prometheus.Counter
	Transitions        *prometheus.CounterVec
	TransitionFailures *prometheus.CounterVec
}

// New creates a new Metrics instance with all claim module metrics registered.
func New() *Metrics {
	return &Metrics{
		ClaimsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "claimdesk_claims_created_total",
			Help: "Total number of claims registered",
		}),
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "claimdesk_claim_transitions_total",
			Help: "Claim transitions by target state",
		}, []string{"target"}),
		TransitionFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "claimdesk_claim_transition_failures_total",
			Help: "Rejected claim transitions by target state",
		}, []string{"target"}),
	}
}

// IncrementCreated records a successful claim registration.
func (m *Metrics) IncrementCreated() {
	m.ClaimsCreated.Inc()
}

// IncrementTransition records a successful transition to target.
func (m *Metrics) IncrementTransition(target string) {
	m.Transitions.WithLabelValues(target).Inc()
}

// IncrementTransitionFailure records a refused transition to target.
func (m *Metrics) IncrementTransitionFailure(target string) {
	m.TransitionFailures.WithLabelValues(target).Inc()
}
