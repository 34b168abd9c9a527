package storage

import (
	"database/sql"
	"errors"
	"time"

	"github.com/progbudget/import-recon-backend/internal/domain/recon"
)

const transactionColumns = `id, session_id, program_id, vendor, description, amount,
	transaction_date, period, category, subcategory, invoice, reference, external_id,
	raw_json, status, duplicate_type, duplicate_of_id, matched_ledger_entry_id,
	match_confidence, created_at, updated_at`

// SaveTransaction inserts or fully updates a transaction row
func (s *Storage) SaveTransaction(t *ImportTransaction) error {
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now

	_, err := s.q.Exec(`
		INSERT OR REPLACE INTO import_transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		t.ID, t.SessionID, t.ProgramID, t.Vendor, t.Description, t.Amount,
		t.Date, t.Period, t.Category, t.Subcategory, t.Invoice, t.Reference, t.ExternalID,
		t.RawJSON, string(t.Status), string(t.DuplicateType),
		nullable(t.DuplicateOfID), nullable(t.MatchedEntryID),
		t.MatchConfidence, t.CreatedAt, t.UpdatedAt,
	)
	return err
}

// GetTransaction retrieves a transaction by ID
func (s *Storage) GetTransaction(id string) (*ImportTransaction, error) {
	row := s.q.QueryRow(`SELECT `+transactionColumns+` FROM import_transactions WHERE id = ?`, id)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return t, err
}

// ListSessionTransactions returns a session's transactions in insert order
func (s *Storage) ListSessionTransactions(sessionID string) ([]*ImportTransaction, error) {
	return s.listTransactions(`session_id = ?`, sessionID)
}

// ListProgramTransactions returns every transaction for a program
// across sessions, used for duplicate-history lookups.
func (s *Storage) ListProgramTransactions(programID string) ([]*ImportTransaction, error) {
	return s.listTransactions(`program_id = ?`, programID)
}

func (s *Storage) listTransactions(where string, arg any) ([]*ImportTransaction, error) {
	rows, err := s.q.Query(`
		SELECT `+transactionColumns+` FROM import_transactions
		WHERE `+where+` ORDER BY created_at ASC, id ASC
	`, arg)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var txs []*ImportTransaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

// BoundLedgerEntryIDs maps ledger entry id -> transaction id for
// entries consumed by a confirmed/added transaction of the program.
func (s *Storage) BoundLedgerEntryIDs(programID string) (map[string]string, error) {
	rows, err := s.q.Query(`
		SELECT matched_ledger_entry_id, id FROM import_transactions
		WHERE program_id = ?
		  AND status IN ('confirmed', 'added_to_ledger')
		  AND matched_ledger_entry_id IS NOT NULL
	`, programID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	bound := make(map[string]string)
	for rows.Next() {
		var entryID, txID string
		if err := rows.Scan(&entryID, &txID); err != nil {
			return nil, err
		}
		bound[entryID] = txID
	}
	return bound, rows.Err()
}

func scanTransaction(row scanner) (*ImportTransaction, error) {
	t := &ImportTransaction{}
	var status, duplicateType string
	var duplicateOf, matchedEntry sql.NullString

	err := row.Scan(
		&t.ID, &t.SessionID, &t.ProgramID, &t.Vendor, &t.Description, &t.Amount,
		&t.Date, &t.Period, &t.Category, &t.Subcategory, &t.Invoice, &t.Reference, &t.ExternalID,
		&t.RawJSON, &status, &duplicateType, &duplicateOf, &matchedEntry,
		&t.MatchConfidence, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Status = recon.TransactionStatus(status)
	t.DuplicateType = recon.DuplicateType(duplicateType)
	if duplicateOf.Valid {
		t.DuplicateOfID = duplicateOf.String
	}
	if matchedEntry.Valid {
		t.MatchedEntryID = matchedEntry.String
	}

	return t, nil
}
