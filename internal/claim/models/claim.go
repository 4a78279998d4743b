package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	id "claimdesk/pkg/domain"
	dErrors "claimdesk/pkg/domain-errors"
)

// ClaimType identifies the insured event being claimed.
type ClaimType string

const (
	ClaimTypeDeath        ClaimType = "death"
	ClaimTypeDisability   ClaimType = "disability"
	ClaimTypeJobLoss      ClaimType = "job_loss"
	ClaimTypeBusinessLoss ClaimType = "business_loss"
)

func (t ClaimType) Valid() bool {
	switch t {
	case ClaimTypeDeath, ClaimTypeDisability, ClaimTypeJobLoss, ClaimTypeBusinessLoss:
		return true
	}
	return false
}

// PaymentDetails records how a paid claim was settled. Set iff the claim is
// Paid or Closed-after-Paid.
type PaymentDetails struct {
	Mode      string    `json:"mode"`
	Reference string    `json:"reference"`
	Date      time.Time `json:"date"`
}

// StatusChange is one entry of the claim's append-only audit history.
type StatusChange struct {
	At    time.Time   `json:"at"`
	Actor string      `json:"actor"`
	From  ClaimStatus `json:"from"`
	To    ClaimStatus `json:"to"`
	Notes string      `json:"notes,omitempty"`
}

// Claim is the aggregate root for an insurance claim raised against a
// micro-credit-linked contract.
//
// Invariants:
//   - GrantedAmount is nil until the claim reaches InPayment
//   - RejectionReason is non-empty iff Status is Rejected (or Closed after a
//     rejection)
//   - Payment is non-nil iff Status is Paid or Closed after payment
//   - History is append-only and records every transition
//   - A claim is never deleted, only closed
//
// All monetary amounts are in minor currency units.
type Claim struct {
	ID                 id.ClaimID      `json:"id"`
	Reference          string          `json:"reference"`
	ContractID         id.ContractID   `json:"contract_id"`
	Type               ClaimType       `json:"type"`
	DeclaredDate       time.Time       `json:"declared_date"`
	OutstandingCapital int64           `json:"outstanding_capital"`
	ClaimedAmount      int64           `json:"claimed_amount,omitempty"`
	GrantedAmount      *int64          `json:"granted_amount,omitempty"`
	Status             ClaimStatus     `json:"status"`
	RejectionReason    string          `json:"rejection_reason,omitempty"`
	Payment            *PaymentDetails `json:"payment,omitempty"`
	DocumentsReceived  bool            `json:"documents_received"`
	History            []StatusChange  `json:"history"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
	Version            int64           `json:"-"`
}

// NewClaim registers a claim in the Declared state.
func NewClaim(claimID id.ClaimID, contractID id.ContractID, claimType ClaimType, declaredDate time.Time, outstandingCapital, claimedAmount int64, now time.Time) (*Claim, error) {
	if contractID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "contract id is required")
	}
	if !claimType.Valid() {
		return nil, dErrors.Newf(dErrors.CodeValidation, "unknown claim type %q", claimType)
	}
	if declaredDate.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "declared date is required")
	}
	if outstandingCapital < 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "outstanding capital cannot be negative")
	}
	if claimedAmount < 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "claimed amount cannot be negative")
	}
	return &Claim{
		ID:                 claimID,
		Reference:          NewClaimReference(claimID, now),
		ContractID:         contractID,
		Type:               claimType,
		DeclaredDate:       declaredDate,
		OutstandingCapital: outstandingCapital,
		ClaimedAmount:      claimedAmount,
		Status:             StatusDeclared,
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}

// NewClaimReference derives the human-facing claim reference.
func NewClaimReference(claimID id.ClaimID, now time.Time) string {
	raw := strings.ReplaceAll(uuid.UUID(claimID).String(), "-", "")
	return fmt.Sprintf("CL-%d-%s", now.Year(), strings.ToUpper(raw[:8]))
}

// ElapsedDays is the number of whole days since declaration, derived on read.
func (c *Claim) ElapsedDays(now time.Time) int {
	if now.Before(c.DeclaredDate) {
		return 0
	}
	return int(now.Sub(c.DeclaredDate).Hours() / 24)
}

// DocumentsComplete reports whether the dossier can move forward.
func (c *Claim) DocumentsComplete() bool {
	return c.DocumentsReceived
}

// AcceptsReceipts reports whether receipts may still be raised against the
// claim. Rejected and closed claims take no new receipts.
func (c *Claim) AcceptsReceipts() bool {
	return c.Status != StatusRejected && c.Status != StatusClosed
}

// CanAcknowledgeDocuments checks the Declared → UnderInstruction transition.
func (c *Claim) CanAcknowledgeDocuments() error {
	if !c.Status.CanTransitionTo(StatusUnderInstruction) {
		return errInvalidTransition(c.Status, StatusUnderInstruction)
	}
	return nil
}

// ApplyAcknowledgeDocuments moves the claim to UnderInstruction.
// Call CanAcknowledgeDocuments first.
func (c *Claim) ApplyAcknowledgeDocuments(actor, notes string, now time.Time) {
	c.DocumentsReceived = true
	c.apply(StatusUnderInstruction, actor, notes, now)
}

// CanStartSettlement checks the UnderInstruction → InSettlement transition.
func (c *Claim) CanStartSettlement() error {
	if !c.Status.CanTransitionTo(StatusInSettlement) {
		return errInvalidTransition(c.Status, StatusInSettlement)
	}
	return nil
}

// ApplyStartSettlement moves the claim to InSettlement.
func (c *Claim) ApplyStartSettlement(actor, notes string, now time.Time) {
	c.apply(StatusInSettlement, actor, notes, now)
}

// CanApprove checks the transition to InPayment and the amount rule.
// Legal only from UnderInstruction or InSettlement.
func (c *Claim) CanApprove(amount int64) error {
	if !c.Status.CanTransitionTo(StatusInPayment) {
		return errInvalidTransition(c.Status, StatusInPayment)
	}
	if amount <= 0 {
		return dErrors.New(dErrors.CodeValidation, "granted amount must be positive")
	}
	return nil
}

// ApplyApprove records the granted indemnity and moves the claim to InPayment.
func (c *Claim) ApplyApprove(amount int64, actor, notes string, now time.Time) {
	c.GrantedAmount = &amount
	c.apply(StatusInPayment, actor, notes, now)
}

// CanRecordPayment checks the InPayment → Paid transition. A second payment
// on an already paid claim fails with already_paid rather than the generic
// transition error so callers can distinguish the double-submit case.
func (c *Claim) CanRecordPayment(mode, reference string, date time.Time) error {
	if c.Status == StatusPaid {
		return dErrors.New(dErrors.CodeAlreadyPaid, "claim payment already recorded")
	}
	if !c.Status.CanTransitionTo(StatusPaid) {
		return errInvalidTransition(c.Status, StatusPaid)
	}
	if strings.TrimSpace(mode) == "" {
		return dErrors.New(dErrors.CodeValidation, "payment mode is required")
	}
	if strings.TrimSpace(reference) == "" {
		return dErrors.New(dErrors.CodeValidation, "payment reference is required")
	}
	if date.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "payment date is required")
	}
	return nil
}

// ApplyRecordPayment stores the payment metadata and moves the claim to Paid.
func (c *Claim) ApplyRecordPayment(mode, reference string, date time.Time, actor string, now time.Time) {
	c.Payment = &PaymentDetails{Mode: mode, Reference: reference, Date: date}
	c.apply(StatusPaid, actor, "", now)
}

// CanReject checks the transition to Rejected and the mandatory reason.
func (c *Claim) CanReject(reason string) error {
	if !c.Status.CanTransitionTo(StatusRejected) {
		return errInvalidTransition(c.Status, StatusRejected)
	}
	if strings.TrimSpace(reason) == "" {
		return dErrors.New(dErrors.CodeValidation, "rejection reason is required")
	}
	return nil
}

// ApplyReject records the reason and moves the claim to Rejected.
func (c *Claim) ApplyReject(reason, actor string, now time.Time) {
	c.RejectionReason = reason
	c.apply(StatusRejected, actor, reason, now)
}

// CanClose checks the terminal transition. Closing is irreversible, so the
// caller has to confirm explicitly.
func (c *Claim) CanClose(confirmed bool) error {
	if !c.Status.CanTransitionTo(StatusClosed) {
		return errInvalidTransition(c.Status, StatusClosed)
	}
	if !confirmed {
		return dErrors.New(dErrors.CodeValidation, "closing a claim requires explicit confirmation")
	}
	return nil
}

// ApplyClose moves the claim to its terminal state.
func (c *Claim) ApplyClose(reason, actor string, now time.Time) {
	c.apply(StatusClosed, actor, reason, now)
}

// apply performs the bookkeeping every transition shares: the history entry,
// the status switch, and the timestamp bump.
func (c *Claim) apply(target ClaimStatus, actor, notes string, now time.Time) {
	c.History = append(c.History, StatusChange{
		At:    now,
		Actor: actor,
		From:  c.Status,
		To:    target,
		Notes: notes,
	})
	c.Status = target
	c.UpdatedAt = now
}
