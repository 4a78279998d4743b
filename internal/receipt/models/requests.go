package models

import "strings"

// CreateRequest is one entry of a receipt batch. Amount may be omitted for
// lump-sum receipts, in which case the contract's benefit schedule supplies
// the default.
type CreateRequest struct {
	Kind             ReceiptKind      `json:"kind"`
	Beneficiary      string           `json:"beneficiary"`
	BeneficiaryClass BeneficiaryClass `json:"beneficiary_class"`
	Amount           *int64           `json:"amount,omitempty"`
}

// Normalize trims free-text fields and defaults the beneficiary class.
func (r *CreateRequest) Normalize() {
	r.Beneficiary = strings.TrimSpace(r.Beneficiary)
	if r.BeneficiaryClass == "" {
		r.BeneficiaryClass = BeneficiaryAdult
	}
}

// BatchResult is the first-class outcome of receipt creation. Business-rule
// overrides (for example a capital amount that differs from the claim's
// outstanding capital) surface as warnings instead of interactive
// confirmations, so the decision is auditable and testable.
type BatchResult struct {
	Receipts []*Receipt `json:"receipts"`
	Warnings []string   `json:"warnings,omitempty"`
}
