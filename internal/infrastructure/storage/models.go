package storage

import (
	"time"

	"github.com/progbudget/import-recon-backend/internal/domain/recon"
	"github.com/progbudget/import-recon-backend/internal/domain/rowparse"
)

// Program is the external budgeting program a session imports into.
// Programs are owned by the surrounding budget application; this
// service only needs the id/code pair for session scoping.
type Program struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"` // e.g. "ABC.1234"
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// ImportSession is one file upload and its processing state.
type ImportSession struct {
	ID       string                 `json:"id"`
	ProgramID string                `json:"program_id"`
	Filename string                 `json:"filename"`
	Status   recon.SessionStatus    `json:"status"`
	Mapping  rowparse.ColumnMapping `json:"mapping"`

	TotalRecords       int `json:"total_records"`
	ProcessedRecords   int `json:"processed_records"`
	MatchedRecords     int `json:"matched_records"`
	UnmatchedRecords   int `json:"unmatched_records"`
	ErrorRecords       int `json:"error_records"`
	MismatchRecords    int `json:"mismatch_records"`     // wrong program code
	MissingCodeRecords int `json:"missing_code_records"` // no recognizable code
	SkippedDuplicates  int `json:"skipped_duplicates"`

	ReplacedBySessionID string     `json:"replaced_by_session_id,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	CompletedAt         *time.Time `json:"completed_at,omitempty"`
}

// ImportTransaction is one normalized row from an import file.
// Once it reaches a terminal status the matching engine never mutates
// it again.
type ImportTransaction struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	ProgramID   string    `json:"program_id"`
	Vendor      string    `json:"vendor"`
	Description string    `json:"description"`
	Amount      float64   `json:"amount"`
	Date        time.Time `json:"date"`
	Period      string    `json:"period,omitempty"` // YYYY-MM
	Category    string    `json:"category,omitempty"`
	Subcategory string    `json:"subcategory,omitempty"`
	Invoice     string    `json:"invoice,omitempty"`
	Reference   string    `json:"reference,omitempty"`
	ExternalID  string    `json:"external_id,omitempty"`
	RawJSON     string    `json:"-"` // original row payload

	Status          recon.TransactionStatus `json:"status"`
	DuplicateType   recon.DuplicateType     `json:"duplicate_type"`
	DuplicateOfID   string                  `json:"duplicate_of_id,omitempty"`
	MatchedEntryID  string                  `json:"matched_ledger_entry_id,omitempty"`
	MatchConfidence float64                 `json:"match_confidence"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LedgerEntry is one planned budget line, the match target. Owned by
// the budget application; this service reads all fields and writes only
// the actuals, invoice link and notes.
type LedgerEntry struct {
	ID            string    `json:"id"`
	ProgramID     string    `json:"program_id"`
	WBSCode       string    `json:"wbs_code,omitempty"`
	Vendor        string    `json:"vendor"`
	Description   string    `json:"description"`
	PlannedAmount float64   `json:"planned_amount"`
	PlannedDate   time.Time `json:"planned_date"`

	ActualAmount    *float64   `json:"actual_amount,omitempty"`
	ActualDate      *time.Time `json:"actual_date,omitempty"`
	InvoiceLinkURL  string     `json:"invoice_link_url,omitempty"`
	InvoiceLinkText string     `json:"invoice_link_text,omitempty"`
	Notes           string     `json:"notes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// HasActuals reports whether the entry already carries actuals and is
// therefore never offered as a match candidate.
func (e *LedgerEntry) HasActuals() bool {
	return e.ActualAmount != nil || e.ActualDate != nil
}

// PotentialMatch is a scored candidate link between a transaction and a
// ledger entry, unique per pair. It exists only while the transaction
// is in matched status.
type PotentialMatch struct {
	ID            int64           `json:"id"`
	TransactionID string          `json:"transaction_id"`
	LedgerEntryID string          `json:"ledger_entry_id"`
	Confidence    float64         `json:"confidence"`
	MatchType     recon.MatchType `json:"match_type"`
	Reasons       []string        `json:"reasons,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// RejectedMatch permanently records that an operator rejected a
// specific (transaction, ledger entry) pair. The pair is excluded from
// candidacy until the rejection is undone.
type RejectedMatch struct {
	ID            int64     `json:"id"`
	TransactionID string    `json:"transaction_id"`
	LedgerEntryID string    `json:"ledger_entry_id"`
	CreatedAt     time.Time `json:"created_at"`
}

// Stats contains aggregate reconciliation statistics.
type Stats struct {
	TotalSessions     int            `json:"total_sessions"`
	TotalTransactions int            `json:"total_transactions"`
	StatusCounts      map[string]int `json:"status_counts"`
	ConfirmedAmount   float64        `json:"confirmed_amount"`
}
