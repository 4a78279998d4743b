package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the receipt module.
type Metrics struct {
	ReceiptsCreated    *prometheus.CounterVec
	BatchesRejected    prometheus.Counter
	Transitions        *prometheus.CounterVec
	TransitionFailures *prometheus.CounterVec
}

// New creates a new Metrics instance with all receipt module metrics registered.
func New() *Metrics {
	return &Metrics{
		ReceiptsCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "claimdesk_receipts_created_total",
			Help: "Receipts created, by kind",
		}, []string{"kind"}),
		BatchesRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "claimdesk_receipt_batches_rejected_total",
			Help: "Receipt batches refused whole (duplicate kind or validation)",
		}),
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "claimdesk_receipt_transitions_total",
			Help: "Receipt transitions by target state",
		}, []string{"target"}),
		TransitionFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "claimdesk_receipt_transition_failures_total",
			Help: "Rejected receipt transitions by target state",
		}, []string{"target"}),
	}
}

// IncrementCreated records one created receipt.
func (m *Metrics) IncrementCreated(kind string) {
	m.ReceiptsCreated.WithLabelValues(kind).Inc()
}

// IncrementBatchRejected records a refused batch.
func (m *Metrics) IncrementBatchRejected() {
	m.BatchesRejected.Inc()
}

// IncrementTransition records a successful transition to target.
func (m *Metrics) IncrementTransition(target string) {
	m.Transitions.WithLabelValues(target).Inc()
}

// IncrementTransitionFailure records a refused transition to target.
func (m *Metrics) IncrementTransitionFailure(target string) {
	m.TransitionFailures.WithLabelValues(target).Inc()
}
