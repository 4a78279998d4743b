package audit

import "time"

// Action names an auditable workflow event.
type Action string

const (
	ActionClaimCreated        Action = "claim.created"
	ActionClaimTransitioned   Action = "claim.transitioned"
	ActionReceiptBatchCreated Action = "receipt.batch_created"
	ActionReceiptCreated      Action = "receipt.created"
	ActionReceiptTransitioned Action = "receipt.transitioned"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Actor     string    `json:"actor"`
	Action    Action    `json:"action"`
	ClaimID   string    `json:"claim_id,omitempty"`
	ReceiptID string    `json:"receipt_id,omitempty"`
	From      string    `json:"from,omitempty"`
	To        string    `json:"to,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
}
