package models

// LegacyPrintStatus maps the canonical four-state machine onto the six-state
// vocabulary still used by the print/validation presentation layer. The
// mapping is one-way: the legacy vocabulary is a derived view pending
// migration, never a second source of truth.
type LegacyPrintStatus string

const (
	LegacyDraft                 LegacyPrintStatus = "draft"
	LegacySubmittedAccountant   LegacyPrintStatus = "submitted_accountant"
	LegacyValidatedAccountant   LegacyPrintStatus = "validated_accountant"
	LegacyValidatedGeneralMgr   LegacyPrintStatus = "validated_general_manager"
	LegacyPaid                  LegacyPrintStatus = "paid"
	LegacyCancelledPresentation LegacyPrintStatus = "cancelled"
)

// LegacyPrintStatus renders the receipt for the migration-era print view.
// The live workflow collapses the two accountant steps into Pending and the
// general-manager validation into Validated, so the reverse direction is
// ambiguous and deliberately not implemented.
func (r *Receipt) LegacyPrintStatus() LegacyPrintStatus {
	switch r.Status {
	case ReceiptPending:
		return LegacyDraft
	case ReceiptValidated:
		return LegacyValidatedGeneralMgr
	case ReceiptPaid:
		return LegacyPaid
	case ReceiptCancelled:
		return LegacyCancelledPresentation
	default:
		return LegacyDraft
	}
}
