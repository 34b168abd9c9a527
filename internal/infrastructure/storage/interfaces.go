package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Repository defines the complete storage interface.
// This interface allows swapping implementations (SQLite, PostgreSQL, etc.)
// and makes testing with mocks straightforward.
type Repository interface {
	ProgramRepository
	SessionRepository
	TransactionRepository
	LedgerRepository
	MatchRepository

	// Transact runs fn against a repository view bound to a single
	// database transaction. If fn returns an error the transaction is
	// rolled back; otherwise it is committed. Nested calls reuse the
	// outer transaction.
	Transact(fn func(Repository) error) error

	// GetStats returns aggregate statistics
	GetStats() (*Stats, error)

	Close() error
}

// ProgramRepository handles program records (consumed collaborators).
type ProgramRepository interface {
	CreateProgram(p *Program) error
	GetProgram(id string) (*Program, error)
	ListPrograms() ([]*Program, error)
}

// SessionRepository handles import session lifecycle records.
type SessionRepository interface {
	CreateSession(s *ImportSession) error
	GetSession(id string) (*ImportSession, error)
	ListSessions(programID string, limit int) ([]*ImportSession, error)
	UpdateSession(s *ImportSession) error
	// DeleteSession removes a session and cascades to its transactions.
	DeleteSession(id string) error
}

// TransactionRepository handles imported transaction records.
type TransactionRepository interface {
	// SaveTransaction inserts or fully updates a transaction row.
	SaveTransaction(t *ImportTransaction) error
	GetTransaction(id string) (*ImportTransaction, error)
	ListSessionTransactions(sessionID string) ([]*ImportTransaction, error)
	// ListProgramTransactions returns every transaction for a program
	// across sessions, used for duplicate-history lookups.
	ListProgramTransactions(programID string) ([]*ImportTransaction, error)
	// BoundLedgerEntryIDs maps ledger entry id -> transaction id for
	// entries consumed by a confirmed/added transaction of the program.
	BoundLedgerEntryIDs(programID string) (map[string]string, error)
}

// LedgerRepository reads planned budget lines and writes their actuals.
type LedgerRepository interface {
	CreateLedgerEntry(e *LedgerEntry) error
	GetLedgerEntry(id string) (*LedgerEntry, error)
	ListLedgerEntries(programID string) ([]*LedgerEntry, error)
	// SetLedgerActuals writes actual amount/date and the invoice link.
	SetLedgerActuals(id string, amount float64, date time.Time, linkURL, linkText string) error
	// ClearLedgerActuals nulls the actuals and invoice link fields.
	ClearLedgerActuals(id string) error
	// AppendLedgerNote appends an audit note to the entry's notes.
	AppendLedgerNote(id string, note string) error
}

// MatchRepository owns potential and rejected match rows.
type MatchRepository interface {
	// UpsertPotentialMatch creates the row if the (transaction, entry)
	// pair is new, otherwise refreshes score and reasons. Idempotent.
	UpsertPotentialMatch(m *PotentialMatch) error
	ListPotentialMatches(transactionID string) ([]*PotentialMatch, error)
	DeletePotentialMatch(transactionID, ledgerEntryID string) error
	DeletePotentialMatchesByTransaction(transactionID string) error
	DeletePotentialMatchesByEntry(ledgerEntryID string) error

	CreateRejectedMatch(transactionID, ledgerEntryID string) error
	DeleteRejectedMatch(transactionID, ledgerEntryID string) error
	ListRejectedEntryIDs(transactionID string) ([]string, error)
}
