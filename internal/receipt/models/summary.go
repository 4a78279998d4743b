package models

// Summary aggregates a claim's receipt set. It is a pure function of the
// current receipts, recomputed on every read; it is never stored as a
// separately mutable counter, which is what keeps it from drifting.
type Summary struct {
	CountTotal         int   `json:"count_total"`
	CountPending       int   `json:"count_pending"`
	CountValidated     int   `json:"count_validated"`
	CountPaid          int   `json:"count_paid"`
	CountCancelled     int   `json:"count_cancelled"`
	SumAllNonCancelled int64 `json:"sum_all_non_cancelled"`
	SumPending         int64 `json:"sum_pending"`
	SumValidated       int64 `json:"sum_validated"`
}

// Summarize computes the aggregate over the receipt set.
func Summarize(receipts []*Receipt) Summary {
	var s Summary
	s.CountTotal = len(receipts)
	for _, r := range receipts {
		switch r.Status {
		case ReceiptPending:
			s.CountPending++
			s.SumPending += r.Amount
		case ReceiptValidated:
			s.CountValidated++
			s.SumValidated += r.Amount
		case ReceiptPaid:
			s.CountPaid++
		case ReceiptCancelled:
			s.CountCancelled++
		}
		if r.Status != ReceiptCancelled {
			s.SumAllNonCancelled += r.Amount
		}
	}
	return s
}
