package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/progbudget/import-recon-backend/internal/application/matches"
	"github.com/progbudget/import-recon-backend/internal/domain/duplicate"
	"github.com/progbudget/import-recon-backend/internal/domain/matchengine"
	"github.com/progbudget/import-recon-backend/internal/domain/recon"
	"github.com/progbudget/import-recon-backend/internal/domain/rowparse"
	"github.com/progbudget/import-recon-backend/internal/infrastructure/storage"
)

// Pipeline orchestrates file imports: row parsing, duplicate
// classification, persistence, match scoring and session replacement.
// Rows are processed strictly in file order so each row's duplicate
// check observes every row committed before it.
type Pipeline struct {
	repo    storage.Repository
	matches *matches.Service
	logger  *slog.Logger
}

// NewPipeline creates an import pipeline
func NewPipeline(repo storage.Repository, matchSvc *matches.Service, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		repo:    repo,
		matches: matchSvc,
		logger:  logger,
	}
}

// CreateSession validates the column mapping and registers a pending
// import session for the program.
func (p *Pipeline) CreateSession(programID, filename string, mapping rowparse.ColumnMapping) (*storage.ImportSession, error) {
	if err := mapping.Validate(); err != nil {
		return nil, err
	}
	if _, err := p.repo.GetProgram(programID); err != nil {
		return nil, err
	}

	sess := &storage.ImportSession{
		ID:        uuid.NewString(),
		ProgramID: programID,
		Filename:  filename,
		Status:    recon.SessionPending,
		Mapping:   mapping,
	}
	if err := p.repo.CreateSession(sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// ProcessFile runs the full per-row pipeline for a pending session.
// Parse failures are counted, never fatal; a storage failure marks the
// session failed and aborts.
func (p *Pipeline) ProcessFile(ctx context.Context, sessionID string, rows []rowparse.Row) (*storage.ImportSession, error) {
	sess, err := p.repo.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status != recon.SessionPending {
		return nil, fmt.Errorf("session %s is %s, expected pending", sessionID, sess.Status)
	}

	program, err := p.repo.GetProgram(sess.ProgramID)
	if err != nil {
		return nil, err
	}

	matchSvc := p.matchServiceFor(sess.Mapping)

	sess.Status = recon.SessionProcessing
	sess.TotalRecords = len(rows)
	if err := p.repo.UpdateSession(sess); err != nil {
		return nil, err
	}

	p.logger.Info("processing import file",
		"session_id", sess.ID,
		"program_code", program.Code,
		"rows", len(rows))

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			sess.Status = recon.SessionCancelled
			p.finishSession(sess)
			return sess, err
		}

		err := p.repo.Transact(func(r storage.Repository) error {
			return p.processRow(r, matchSvc, sess, program.Code, row)
		})
		if err != nil {
			sess.Status = recon.SessionFailed
			p.finishSession(sess)
			return sess, fmt.Errorf("import failed at row %d: %w", sess.ProcessedRecords+1, err)
		}

		sess.ProcessedRecords++
		if err := p.repo.UpdateSession(sess); err != nil {
			return sess, err
		}
	}

	sess.Status = recon.SessionCompleted
	p.finishSession(sess)

	p.logger.Info("import completed",
		"session_id", sess.ID,
		"matched", sess.MatchedRecords,
		"unmatched", sess.UnmatchedRecords,
		"errors", sess.ErrorRecords,
		"skipped_duplicates", sess.SkippedDuplicates)

	return sess, nil
}

// processRow handles one row inside a transaction. Counter mutations on
// sess are persisted by the caller after commit.
func (p *Pipeline) processRow(r storage.Repository, matchSvc *matches.Service, sess *storage.ImportSession, programCode string, row rowparse.Row) error {
	draft, outcome := rowparse.Parse(row, sess.Mapping, programCode)
	switch outcome {
	case rowparse.OutcomeMissingField, rowparse.OutcomeBadDate:
		sess.ErrorRecords++
		return nil
	case rowparse.OutcomeNoProgramCode:
		sess.MissingCodeRecords++
		return nil
	case rowparse.OutcomeProgramMismatch:
		sess.MismatchRecords++
		return nil
	}

	priors, err := p.loadPriors(r, sess.ProgramID)
	if err != nil {
		return err
	}
	decision := duplicate.Classify(duplicate.Candidate{
		Vendor:  draft.Vendor,
		Invoice: draft.Invoice,
		Amount:  draft.Amount,
		Date:    draft.Date,
	}, priors)
	if decision.Skip {
		sess.SkippedDuplicates++
		return nil
	}

	rawJSON, err := json.Marshal(draft.Raw)
	if err != nil {
		return err
	}

	tx := &storage.ImportTransaction{
		ID:            uuid.NewString(),
		SessionID:     sess.ID,
		ProgramID:     sess.ProgramID,
		Vendor:        draft.Vendor,
		Description:   draft.Description,
		Amount:        draft.Amount,
		Date:          draft.Date,
		Period:        draft.Period,
		Category:      draft.Category,
		Subcategory:   draft.Subcategory,
		Invoice:       draft.Invoice,
		Reference:     draft.Reference,
		ExternalID:    draft.ExternalID,
		RawJSON:       string(rawJSON),
		Status:        recon.TxUnmatched,
		DuplicateType: decision.Type,
		DuplicateOfID: decision.DuplicateOfID,
	}
	if err := r.SaveTransaction(tx); err != nil {
		return err
	}

	matched, err := matchSvc.SynchronizeTransaction(r, tx)
	if err != nil {
		return err
	}
	if matched {
		sess.MatchedRecords++
	} else {
		sess.UnmatchedRecords++
	}
	return nil
}

func (p *Pipeline) loadPriors(r storage.Repository, programID string) ([]duplicate.Prior, error) {
	txs, err := r.ListProgramTransactions(programID)
	if err != nil {
		return nil, err
	}
	priors := make([]duplicate.Prior, 0, len(txs))
	for _, t := range txs {
		priors = append(priors, duplicate.Prior{
			ID:      t.ID,
			Vendor:  t.Vendor,
			Invoice: t.Invoice,
			Amount:  t.Amount,
			Date:    t.Date,
			Status:  t.Status,
		})
	}
	return priors, nil
}

// matchServiceFor applies per-session tolerance overrides from the
// column mapping, falling back to the globally configured engine.
func (p *Pipeline) matchServiceFor(mapping rowparse.ColumnMapping) *matches.Service {
	if mapping.AmountTolerance == 0 && mapping.MatchThreshold == 0 {
		return p.matches
	}
	cfg := p.matches.Engine().Config()
	if mapping.AmountTolerance != 0 {
		cfg.AmountTolerance = mapping.AmountTolerance
	}
	if mapping.MatchThreshold != 0 {
		cfg.MatchThreshold = mapping.MatchThreshold
	}
	return matches.NewService(p.repo, matchengine.NewEngine(cfg), p.logger)
}

func (p *Pipeline) finishSession(sess *storage.ImportSession) {
	now := time.Now().UTC()
	sess.CompletedAt = &now
	if err := p.repo.UpdateSession(sess); err != nil {
		p.logger.Error("failed to finalize session",
			"session_id", sess.ID,
			"error", err)
	}
}

// CancelSession stops an in-flight session. Only pending or processing
// sessions can transition; partially written transactions stay as-is.
func (p *Pipeline) CancelSession(sessionID string) (*storage.ImportSession, error) {
	sess, err := p.repo.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status != recon.SessionPending && sess.Status != recon.SessionProcessing {
		return nil, fmt.Errorf("session %s is %s and cannot be cancelled", sessionID, sess.Status)
	}
	sess.Status = recon.SessionCancelled
	now := time.Now().UTC()
	sess.CompletedAt = &now
	if err := p.repo.UpdateSession(sess); err != nil {
		return nil, err
	}
	return sess, nil
}
