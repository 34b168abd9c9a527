package storage

import (
	"database/sql"
	"errors"
	"time"
)

const ledgerColumns = `id, program_id, wbs_code, vendor, description,
	planned_amount, planned_date, actual_amount, actual_date,
	invoice_link_url, invoice_link_text, notes, created_at`

// CreateLedgerEntry inserts a planned budget line
func (s *Storage) CreateLedgerEntry(e *LedgerEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := s.q.Exec(`
		INSERT INTO ledger_entries (`+ledgerColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.ID, e.ProgramID, e.WBSCode, e.Vendor, e.Description,
		e.PlannedAmount, e.PlannedDate, e.ActualAmount, e.ActualDate,
		e.InvoiceLinkURL, e.InvoiceLinkText, e.Notes, e.CreatedAt,
	)
	return err
}

// GetLedgerEntry retrieves a ledger entry by ID
func (s *Storage) GetLedgerEntry(id string) (*LedgerEntry, error) {
	row := s.q.QueryRow(`SELECT `+ledgerColumns+` FROM ledger_entries WHERE id = ?`, id)
	e, err := scanLedgerEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return e, err
}

// ListLedgerEntries returns all ledger entries for a program
func (s *Storage) ListLedgerEntries(programID string) ([]*LedgerEntry, error) {
	rows, err := s.q.Query(`
		SELECT `+ledgerColumns+` FROM ledger_entries
		WHERE program_id = ? ORDER BY planned_date ASC, id ASC
	`, programID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []*LedgerEntry
	for rows.Next() {
		e, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// SetLedgerActuals writes actual amount/date and the invoice link
func (s *Storage) SetLedgerActuals(id string, amount float64, date time.Time, linkURL, linkText string) error {
	result, err := s.q.Exec(`
		UPDATE ledger_entries
		SET actual_amount = ?, actual_date = ?, invoice_link_url = ?, invoice_link_text = ?
		WHERE id = ?
	`, amount, date, linkURL, linkText, id)
	if err != nil {
		return err
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearLedgerActuals nulls the actuals and invoice link fields
func (s *Storage) ClearLedgerActuals(id string) error {
	result, err := s.q.Exec(`
		UPDATE ledger_entries
		SET actual_amount = NULL, actual_date = NULL, invoice_link_url = '', invoice_link_text = ''
		WHERE id = ?
	`, id)
	if err != nil {
		return err
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendLedgerNote appends an audit note to the entry's notes field
func (s *Storage) AppendLedgerNote(id string, note string) error {
	result, err := s.q.Exec(`
		UPDATE ledger_entries
		SET notes = CASE WHEN notes = '' THEN ? ELSE notes || char(10) || ? END
		WHERE id = ?
	`, note, note, id)
	if err != nil {
		return err
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanLedgerEntry(row scanner) (*LedgerEntry, error) {
	e := &LedgerEntry{}
	var actualAmount sql.NullFloat64
	var actualDate sql.NullTime

	err := row.Scan(
		&e.ID, &e.ProgramID, &e.WBSCode, &e.Vendor, &e.Description,
		&e.PlannedAmount, &e.PlannedDate, &actualAmount, &actualDate,
		&e.InvoiceLinkURL, &e.InvoiceLinkText, &e.Notes, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if actualAmount.Valid {
		v := actualAmount.Float64
		e.ActualAmount = &v
	}
	if actualDate.Valid {
		t := actualDate.Time
		e.ActualDate = &t
	}

	return e, nil
}
