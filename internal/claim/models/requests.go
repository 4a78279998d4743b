package models

import (
	"strings"
	"time"
)

// TransitionPayload carries the per-target arguments of a claim transition.
// Which fields are consulted depends on the target state: Approve reads
// Amount and Notes, Reject reads Reason, RecordPayment reads the payment
// fields, Close reads Reason and Confirm.
type TransitionPayload struct {
	Amount           int64     `json:"amount,omitempty"`
	Notes            string    `json:"notes,omitempty"`
	Reason           string    `json:"reason,omitempty"`
	PaymentMode      string    `json:"payment_mode,omitempty"`
	PaymentReference string    `json:"payment_reference,omitempty"`
	PaymentDate      time.Time `json:"payment_date,omitempty"`
	Confirm          bool      `json:"confirm,omitempty"`
}

// Normalize trims free-text fields in place.
func (p *TransitionPayload) Normalize() {
	p.Notes = strings.TrimSpace(p.Notes)
	p.Reason = strings.TrimSpace(p.Reason)
	p.PaymentMode = strings.TrimSpace(p.PaymentMode)
	p.PaymentReference = strings.TrimSpace(p.PaymentReference)
}
