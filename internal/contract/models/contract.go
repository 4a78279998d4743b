package models

import (
	"time"

	id "claimdesk/pkg/domain"
)

// BenefitOption selects the lump-sum benefit schedule attached to a contract.
type BenefitOption string

const (
	BenefitOptionA BenefitOption = "A"
	BenefitOptionB BenefitOption = "B"
)

// Valid reports whether the option is one of the known schedules.
func (o BenefitOption) Valid() bool {
	return o == BenefitOptionA || o == BenefitOptionB
}

// Contract is the immutable reference to a micro-credit-linked insurance
// contract. It is owned by the contract subsystem; this workflow only reads
// it to resolve benefit schedules and partner details.
//
// All monetary amounts are in minor currency units.
type Contract struct {
	ID                 id.ContractID `json:"id"`
	Reference          string        `json:"reference"`
	InsuredName        string        `json:"insured_name"`
	PartnerInstitution string        `json:"partner_institution"`
	LoanAmount         int64         `json:"loan_amount"`
	BenefitOption      BenefitOption `json:"benefit_option"`
	CapitalGuarantee   bool          `json:"capital_guarantee"`
	LumpSumGuarantee   bool          `json:"lump_sum_guarantee"`
	EffectiveDate      time.Time     `json:"effective_date"`
}
