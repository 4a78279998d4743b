package models

import dErrors "claimdesk/pkg/domain-errors"

// ClaimStatus is the claim lifecycle state.
type ClaimStatus string

const (
	// StatusDeclared is the initial state, on first registration against a contract.
	StatusDeclared ClaimStatus = "declared"
	// StatusUnderInstruction is entered once supporting documents are acknowledged received.
	StatusUnderInstruction ClaimStatus = "under_instruction"
	// StatusInSettlement is entered once the dossier is deemed complete and under analysis.
	StatusInSettlement ClaimStatus = "in_settlement"
	// StatusInPayment is entered on approval; the granted amount is recorded.
	StatusInPayment ClaimStatus = "in_payment"
	// StatusPaid is entered once payment execution is recorded.
	StatusPaid ClaimStatus = "paid"
	// StatusRejected means no further monetary transition is legal.
	StatusRejected ClaimStatus = "rejected"
	// StatusClosed is terminal and irreversible.
	StatusClosed ClaimStatus = "closed"
)

// transitions is the authoritative claim transition table. Anything not
// listed here fails with an invalid_transition error.
var transitions = map[ClaimStatus][]ClaimStatus{
	StatusDeclared:         {StatusUnderInstruction},
	StatusUnderInstruction: {StatusInSettlement, StatusInPayment, StatusRejected},
	StatusInSettlement:     {StatusInPayment, StatusRejected},
	StatusInPayment:        {StatusPaid, StatusRejected},
	StatusPaid:             {StatusClosed},
	StatusRejected:         {StatusClosed},
	StatusClosed:           {},
}

// CanTransitionTo consults the transition table.
func (s ClaimStatus) CanTransitionTo(target ClaimStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// Valid reports whether the status is a known lifecycle state.
func (s ClaimStatus) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// IsTerminal reports whether no further transition is possible.
func (s ClaimStatus) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// errInvalidTransition builds the uniform transition failure.
func errInvalidTransition(from, to ClaimStatus) error {
	return dErrors.Newf(dErrors.CodeInvalidTransition, "invalid transition from %s to %s", from, to)
}
