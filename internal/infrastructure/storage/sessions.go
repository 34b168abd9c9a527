package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/progbudget/import-recon-backend/internal/domain/recon"
	"github.com/progbudget/import-recon-backend/internal/domain/rowparse"
)

// CreateProgram inserts a program record
func (s *Storage) CreateProgram(p *Program) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	_, err := s.q.Exec(`
		INSERT INTO programs (id, code, name, created_at) VALUES (?, ?, ?, ?)
	`, p.ID, p.Code, p.Name, p.CreatedAt)
	return err
}

// GetProgram retrieves a program by ID
func (s *Storage) GetProgram(id string) (*Program, error) {
	p := &Program{}
	err := s.q.QueryRow(`
		SELECT id, code, name, created_at FROM programs WHERE id = ?
	`, id).Scan(&p.ID, &p.Code, &p.Name, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ListPrograms returns all programs
func (s *Storage) ListPrograms() ([]*Program, error) {
	rows, err := s.q.Query(`SELECT id, code, name, created_at FROM programs ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var programs []*Program
	for rows.Next() {
		p := &Program{}
		if err := rows.Scan(&p.ID, &p.Code, &p.Name, &p.CreatedAt); err != nil {
			return nil, err
		}
		programs = append(programs, p)
	}
	return programs, rows.Err()
}

const sessionColumns = `id, program_id, filename, status, mapping_json,
	total_records, processed_records, matched_records, unmatched_records,
	error_records, mismatch_records, missing_code_records, skipped_duplicates,
	replaced_by_session_id, created_at, completed_at`

// CreateSession inserts a new import session
func (s *Storage) CreateSession(sess *ImportSession) error {
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now().UTC()
	}
	mappingJSON, err := json.Marshal(sess.Mapping)
	if err != nil {
		return fmt.Errorf("failed to encode column mapping: %w", err)
	}

	_, err = s.q.Exec(`
		INSERT INTO import_sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		sess.ID, sess.ProgramID, sess.Filename, string(sess.Status), string(mappingJSON),
		sess.TotalRecords, sess.ProcessedRecords, sess.MatchedRecords, sess.UnmatchedRecords,
		sess.ErrorRecords, sess.MismatchRecords, sess.MissingCodeRecords, sess.SkippedDuplicates,
		nullable(sess.ReplacedBySessionID), sess.CreatedAt, sess.CompletedAt,
	)
	return err
}

// UpdateSession rewrites every mutable session field
func (s *Storage) UpdateSession(sess *ImportSession) error {
	mappingJSON, err := json.Marshal(sess.Mapping)
	if err != nil {
		return fmt.Errorf("failed to encode column mapping: %w", err)
	}

	result, err := s.q.Exec(`
		UPDATE import_sessions SET
			status = ?, mapping_json = ?,
			total_records = ?, processed_records = ?, matched_records = ?,
			unmatched_records = ?, error_records = ?, mismatch_records = ?,
			missing_code_records = ?, skipped_duplicates = ?,
			replaced_by_session_id = ?, completed_at = ?
		WHERE id = ?
	`,
		string(sess.Status), string(mappingJSON),
		sess.TotalRecords, sess.ProcessedRecords, sess.MatchedRecords,
		sess.UnmatchedRecords, sess.ErrorRecords, sess.MismatchRecords,
		sess.MissingCodeRecords, sess.SkippedDuplicates,
		nullable(sess.ReplacedBySessionID), sess.CompletedAt,
		sess.ID,
	)
	if err != nil {
		return err
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetSession retrieves a session by ID
func (s *Storage) GetSession(id string) (*ImportSession, error) {
	row := s.q.QueryRow(`SELECT `+sessionColumns+` FROM import_sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return sess, err
}

// ListSessions returns sessions for a program, newest first. An empty
// programID returns sessions across all programs.
func (s *Storage) ListSessions(programID string, limit int) ([]*ImportSession, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + sessionColumns + ` FROM import_sessions`
	args := []any{}
	if programID != "" {
		query += ` WHERE program_id = ?`
		args = append(args, programID)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.q.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var sessions []*ImportSession
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// DeleteSession removes a session; child transactions cascade.
func (s *Storage) DeleteSession(id string) error {
	result, err := s.q.Exec(`DELETE FROM import_sessions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// scanner abstracts *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*ImportSession, error) {
	sess := &ImportSession{}
	var status, mappingJSON string
	var replacedBy sql.NullString
	var completedAt sql.NullTime

	err := row.Scan(
		&sess.ID, &sess.ProgramID, &sess.Filename, &status, &mappingJSON,
		&sess.TotalRecords, &sess.ProcessedRecords, &sess.MatchedRecords, &sess.UnmatchedRecords,
		&sess.ErrorRecords, &sess.MismatchRecords, &sess.MissingCodeRecords, &sess.SkippedDuplicates,
		&replacedBy, &sess.CreatedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	sess.Status = recon.SessionStatus(status)
	if mappingJSON != "" {
		var mapping rowparse.ColumnMapping
		if err := json.Unmarshal([]byte(mappingJSON), &mapping); err == nil {
			sess.Mapping = mapping
		}
	}
	if replacedBy.Valid {
		sess.ReplacedBySessionID = replacedBy.String
	}
	if completedAt.Valid {
		t := completedAt.Time
		sess.CompletedAt = &t
	}

	return sess, nil
}

// nullable converts "" to NULL for optional foreign keys
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
