package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	contractmodels "claimdesk/internal/contract/models"
	id "claimdesk/pkg/domain"
	dErrors "claimdesk/pkg/domain-errors"
)

// ReceiptKind distinguishes the two settlement flows of a claim.
type ReceiptKind string

const (
	// KindCapitalReimbursement pays the outstanding loan balance to the
	// lending partner.
	KindCapitalReimbursement ReceiptKind = "capital_reimbursement"
	// KindLumpSum pays a fixed indemnity to a designated beneficiary.
	KindLumpSum ReceiptKind = "lump_sum"
)

func (k ReceiptKind) Valid() bool {
	return k == KindCapitalReimbursement || k == KindLumpSum
}

// BeneficiaryClass drives the lump-sum default schedule.
type BeneficiaryClass string

const (
	BeneficiaryAdult BeneficiaryClass = "adult"
	BeneficiaryChild BeneficiaryClass = "child"
)

func (c BeneficiaryClass) Valid() bool {
	return c == BeneficiaryAdult || c == BeneficiaryChild
}

// ReceiptStatus is the receipt lifecycle state.
type ReceiptStatus string

const (
	ReceiptPending   ReceiptStatus = "pending"
	ReceiptValidated ReceiptStatus = "validated"
	ReceiptPaid      ReceiptStatus = "paid"
	ReceiptCancelled ReceiptStatus = "cancelled"
)

// receiptTransitions is the authoritative receipt transition table.
var receiptTransitions = map[ReceiptStatus][]ReceiptStatus{
	ReceiptPending:   {ReceiptValidated, ReceiptCancelled},
	ReceiptValidated: {ReceiptPaid, ReceiptCancelled, ReceiptPending},
	ReceiptPaid:      {},
	ReceiptCancelled: {ReceiptPending},
}

func (s ReceiptStatus) CanTransitionTo(target ReceiptStatus) bool {
	for _, allowed := range receiptTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible. Only Paid
// receipts are immutable; Cancelled ones can come back to Pending.
func (s ReceiptStatus) IsTerminal() bool {
	return len(receiptTransitions[s]) == 0
}

// lumpSumDefaults is the benefit schedule keyed by contract option and
// beneficiary class, in minor currency units.
var lumpSumDefaults = map[contractmodels.BenefitOption]map[BeneficiaryClass]int64{
	contractmodels.BenefitOptionA: {
		BeneficiaryAdult: 500_000,
		BeneficiaryChild: 250_000,
	},
	contractmodels.BenefitOptionB: {
		BeneficiaryAdult: 250_000,
		BeneficiaryChild: 125_000,
	},
}

// DefaultLumpSumAmount resolves the schedule for a lump-sum receipt whose
// amount was not supplied by the caller.
func DefaultLumpSumAmount(option contractmodels.BenefitOption, class BeneficiaryClass) (int64, error) {
	byClass, ok := lumpSumDefaults[option]
	if !ok {
		return 0, dErrors.Newf(dErrors.CodeValidation, "unknown benefit option %q", option)
	}
	amount, ok := byClass[class]
	if !ok {
		return 0, dErrors.Newf(dErrors.CodeValidation, "unknown beneficiary class %q", class)
	}
	return amount, nil
}

// Receipt authorizes payment of a specific amount to a specific beneficiary
// against a claim.
//
// Invariants:
//   - at most one non-cancelled receipt per (claim, kind), enforced at
//     creation by the service under the claim's lock
//   - a Paid receipt is immutable
//   - the record is never deleted; cancellation retains it for audit
//
// Amount is in minor currency units.
type Receipt struct {
	ID               id.ReceiptID     `json:"id"`
	Reference        string           `json:"reference"`
	ClaimID          id.ClaimID       `json:"claim_id"`
	Kind             ReceiptKind      `json:"kind"`
	Beneficiary      string           `json:"beneficiary"`
	BeneficiaryClass BeneficiaryClass `json:"beneficiary_class"`
	Amount           int64            `json:"amount"`
	Status           ReceiptStatus    `json:"status"`
	Note             string           `json:"note,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	ValidatedAt      *time.Time       `json:"validated_at,omitempty"`
	UpdatedAt        time.Time        `json:"updated_at"`
	Version          int64            `json:"-"`
}

// NewReceipt builds a Pending receipt with a generated reference.
func NewReceipt(receiptID id.ReceiptID, claimID id.ClaimID, kind ReceiptKind, beneficiary string, class BeneficiaryClass, amount int64, now time.Time) (*Receipt, error) {
	if !kind.Valid() {
		return nil, dErrors.Newf(dErrors.CodeValidation, "unknown receipt kind %q", kind)
	}
	if strings.TrimSpace(beneficiary) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "beneficiary is required")
	}
	if !class.Valid() {
		return nil, dErrors.Newf(dErrors.CodeValidation, "unknown beneficiary class %q", class)
	}
	if amount <= 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "receipt amount must be positive")
	}
	return &Receipt{
		ID:               receiptID,
		Reference:        NewReceiptReference(receiptID, now),
		ClaimID:          claimID,
		Kind:             kind,
		Beneficiary:      strings.TrimSpace(beneficiary),
		BeneficiaryClass: class,
		Amount:           amount,
		Status:           ReceiptPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// NewReceiptReference derives the human-facing receipt reference.
func NewReceiptReference(receiptID id.ReceiptID, now time.Time) string {
	raw := strings.ReplaceAll(uuid.UUID(receiptID).String(), "-", "")
	return fmt.Sprintf("RC-%d-%s", now.Year(), strings.ToUpper(raw[:8]))
}

// Active reports whether the receipt occupies its (claim, kind) slot.
// Cancelled receipts free the slot for a replacement.
func (r *Receipt) Active() bool {
	return r.Status != ReceiptCancelled
}

// CanValidate checks the Pending → Validated transition.
func (r *Receipt) CanValidate() error {
	if !r.Status.CanTransitionTo(ReceiptValidated) {
		return errInvalidState(r.Status)
	}
	return nil
}

// ApplyValidate stamps the validation moment.
func (r *Receipt) ApplyValidate(now time.Time) {
	validatedAt := now
	r.ValidatedAt = &validatedAt
	r.applyStatus(ReceiptValidated, now)
}

// CanPay checks the Validated → Paid transition.
func (r *Receipt) CanPay() error {
	if !r.Status.CanTransitionTo(ReceiptPaid) {
		return errInvalidState(r.Status)
	}
	return nil
}

// ApplyPay moves the receipt to its immutable terminal state.
func (r *Receipt) ApplyPay(now time.Time) {
	r.applyStatus(ReceiptPaid, now)
}

// CanCancel checks that the receipt is still Pending or Validated.
func (r *Receipt) CanCancel() error {
	if !r.Status.CanTransitionTo(ReceiptCancelled) {
		return errInvalidState(r.Status)
	}
	return nil
}

// ApplyCancel retains the record and frees the (claim, kind) slot.
func (r *Receipt) ApplyCancel(reason string, now time.Time) {
	r.Note = reason
	r.applyStatus(ReceiptCancelled, now)
}

// CanReactivate checks the Cancelled → Pending transition.
func (r *Receipt) CanReactivate() error {
	if r.Status != ReceiptCancelled {
		return errInvalidState(r.Status)
	}
	return nil
}

// ApplyReactivate returns the receipt to Pending. A previously validated
// receipt does not recover Validated: the conditions that justified the
// cancellation may have changed eligibility, so validation must be redone.
func (r *Receipt) ApplyReactivate(reason string, now time.Time) {
	r.Note = reason
	r.ValidatedAt = nil
	r.applyStatus(ReceiptPending, now)
}

// CanRevertToPending checks the Validated → Pending retraction.
func (r *Receipt) CanRevertToPending() error {
	if r.Status != ReceiptValidated {
		return errInvalidState(r.Status)
	}
	return nil
}

// ApplyRevertToPending retracts a validation before disbursement.
func (r *Receipt) ApplyRevertToPending(reason string, now time.Time) {
	r.Note = reason
	r.ValidatedAt = nil
	r.applyStatus(ReceiptPending, now)
}

func (r *Receipt) applyStatus(target ReceiptStatus, now time.Time) {
	r.Status = target
	r.UpdatedAt = now
}

// errInvalidState builds the uniform wrong-state failure.
func errInvalidState(current ReceiptStatus) error {
	return dErrors.Newf(dErrors.CodeInvalidState, "receipt is %s", current)
}
