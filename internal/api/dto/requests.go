package dto

import (
	"github.com/progbudget/import-recon-backend/internal/domain/rowparse"
)

// CreateProgramRequest registers a program for session scoping.
type CreateProgramRequest struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// CreateSessionRequest registers a pending import session.
type CreateSessionRequest struct {
	ProgramID string                 `json:"program_id"`
	Filename  string                 `json:"filename"`
	Mapping   rowparse.ColumnMapping `json:"mapping"`
}

// ProcessRowsRequest carries pre-extracted rows for synchronous
// processing. Clients that upload raw files use the multipart imports
// endpoint instead.
type ProcessRowsRequest struct {
	Rows []rowparse.Row `json:"rows"`
}

// ReplaceSessionRequest re-imports a corrected file over a session.
type ReplaceSessionRequest struct {
	Filename string                 `json:"filename"`
	Mapping  rowparse.ColumnMapping `json:"mapping"`
	Rows     []rowparse.Row         `json:"rows"`

	ForceReplace             bool `json:"force_replace"`
	PreserveAllMatches       bool `json:"preserve_all_matches"`
	PreserveConfirmedMatches bool `json:"preserve_confirmed_matches"`
}

// MatchActionRequest identifies the ledger entry side of a match
// operation (confirm, reject, undo-reject).
type MatchActionRequest struct {
	LedgerEntryID string `json:"ledger_entry_id"`
}

// AddToLedgerRequest creates a ledger entry from an unmatched
// transaction.
type AddToLedgerRequest struct {
	WBSCode string `json:"wbs_code"`
}

// CreateLedgerEntryRequest adds a planned budget line.
type CreateLedgerEntryRequest struct {
	WBSCode       string  `json:"wbs_code"`
	Vendor        string  `json:"vendor"`
	Description   string  `json:"description"`
	PlannedAmount float64 `json:"planned_amount"`
	PlannedDate   string  `json:"planned_date"` // YYYY-MM-DD
}
