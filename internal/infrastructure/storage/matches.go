package storage

import (
	"encoding/json"
	"time"

	"github.com/progbudget/import-recon-backend/internal/domain/recon"
)

// UpsertPotentialMatch creates the row if the (transaction, entry) pair
// is new, otherwise refreshes score and reasons. Repeated
// synchronization runs therefore never duplicate rows.
func (s *Storage) UpsertPotentialMatch(m *PotentialMatch) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	reasonsJSON, err := json.Marshal(m.Reasons)
	if err != nil {
		return err
	}

	_, err = s.q.Exec(`
		INSERT INTO potential_matches
			(transaction_id, ledger_entry_id, confidence, match_type, reasons_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (transaction_id, ledger_entry_id) DO UPDATE SET
			confidence = excluded.confidence,
			match_type = excluded.match_type,
			reasons_json = excluded.reasons_json
	`, m.TransactionID, m.LedgerEntryID, m.Confidence, string(m.MatchType), string(reasonsJSON), m.CreatedAt)
	return err
}

// ListPotentialMatches returns a transaction's candidates, best first
func (s *Storage) ListPotentialMatches(transactionID string) ([]*PotentialMatch, error) {
	rows, err := s.q.Query(`
		SELECT id, transaction_id, ledger_entry_id, confidence, match_type, reasons_json, created_at
		FROM potential_matches
		WHERE transaction_id = ?
		ORDER BY confidence DESC, id ASC
	`, transactionID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var matches []*PotentialMatch
	for rows.Next() {
		m := &PotentialMatch{}
		var matchType, reasonsJSON string
		if err := rows.Scan(&m.ID, &m.TransactionID, &m.LedgerEntryID, &m.Confidence, &matchType, &reasonsJSON, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.MatchType = recon.MatchType(matchType)
		if reasonsJSON != "" {
			_ = json.Unmarshal([]byte(reasonsJSON), &m.Reasons)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// DeletePotentialMatch removes one (transaction, entry) candidate
func (s *Storage) DeletePotentialMatch(transactionID, ledgerEntryID string) error {
	_, err := s.q.Exec(`
		DELETE FROM potential_matches WHERE transaction_id = ? AND ledger_entry_id = ?
	`, transactionID, ledgerEntryID)
	return err
}

// DeletePotentialMatchesByTransaction removes all of a transaction's candidates
func (s *Storage) DeletePotentialMatchesByTransaction(transactionID string) error {
	_, err := s.q.Exec(`DELETE FROM potential_matches WHERE transaction_id = ?`, transactionID)
	return err
}

// DeletePotentialMatchesByEntry removes every candidate referencing a
// ledger entry, across transactions. Used when an entry is consumed by
// a confirmation.
func (s *Storage) DeletePotentialMatchesByEntry(ledgerEntryID string) error {
	_, err := s.q.Exec(`DELETE FROM potential_matches WHERE ledger_entry_id = ?`, ledgerEntryID)
	return err
}

// CreateRejectedMatch records a permanent pair rejection
func (s *Storage) CreateRejectedMatch(transactionID, ledgerEntryID string) error {
	_, err := s.q.Exec(`
		INSERT INTO rejected_matches (transaction_id, ledger_entry_id)
		VALUES (?, ?)
		ON CONFLICT (transaction_id, ledger_entry_id) DO NOTHING
	`, transactionID, ledgerEntryID)
	return err
}

// DeleteRejectedMatch removes a pair rejection
func (s *Storage) DeleteRejectedMatch(transactionID, ledgerEntryID string) error {
	_, err := s.q.Exec(`
		DELETE FROM rejected_matches WHERE transaction_id = ? AND ledger_entry_id = ?
	`, transactionID, ledgerEntryID)
	return err
}

// ListRejectedEntryIDs returns the ledger entries rejected for a transaction
func (s *Storage) ListRejectedEntryIDs(transactionID string) ([]string, error) {
	rows, err := s.q.Query(`
		SELECT ledger_entry_id FROM rejected_matches WHERE transaction_id = ?
	`, transactionID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
