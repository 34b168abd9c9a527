// Package recon defines the shared vocabulary of the reconciliation
// engine: transaction and session statuses, duplicate classifications,
// and the terminal-status rule that gates every mutation.
package recon

// TransactionStatus is the lifecycle state of an imported transaction.
type TransactionStatus string

const (
	TxUnmatched     TransactionStatus = "unmatched"
	TxMatched       TransactionStatus = "matched"
	TxConfirmed     TransactionStatus = "confirmed"
	TxRejected      TransactionStatus = "rejected"
	TxAddedToLedger TransactionStatus = "added_to_ledger"
	TxReplaced      TransactionStatus = "replaced"
)

// IsTerminal reports whether the matching engine may never mutate the
// transaction again.
func (s TransactionStatus) IsTerminal() bool {
	switch s {
	case TxConfirmed, TxAddedToLedger, TxRejected, TxReplaced:
		return true
	}
	return false
}

// IsCompleted reports whether the transaction reached a terminal state
// that consumed a ledger entry (confirmed or added to the ledger).
func (s TransactionStatus) IsCompleted() bool {
	return s == TxConfirmed || s == TxAddedToLedger
}

// SessionStatus is the lifecycle state of an import session.
type SessionStatus string

const (
	SessionPending    SessionStatus = "pending"
	SessionProcessing SessionStatus = "processing"
	SessionCompleted  SessionStatus = "completed"
	SessionFailed     SessionStatus = "failed"
	SessionCancelled  SessionStatus = "cancelled"
	SessionReplaced   SessionStatus = "replaced"
)

// DuplicateType classifies a newly imported row relative to prior
// imports sharing identifying keys.
type DuplicateType string

const (
	DupNone                   DuplicateType = "none"
	DupExact                  DuplicateType = "exact_duplicate"
	DupDifferentInfoConfirmed DuplicateType = "different_info_confirmed"
	DupDifferentInfoPending   DuplicateType = "different_info_pending"
	DupOriginalRejected       DuplicateType = "original_rejected"
	DupNoInvoicePotential     DuplicateType = "no_invoice_potential"
	DupMultiplePotential      DuplicateType = "multiple_potential"
)

// MatchType is a coarse label derived from confidence bands. It is
// explanatory only and never affects candidate inclusion.
type MatchType string

const (
	MatchExact     MatchType = "exact"
	MatchFuzzy     MatchType = "fuzzy"
	MatchPartial   MatchType = "partial"
	MatchDateBased MatchType = "date_based"
	MatchWBSBased  MatchType = "wbs_based"
)
