package matches

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/progbudget/import-recon-backend/internal/domain/matchengine"
	"github.com/progbudget/import-recon-backend/internal/domain/recon"
	"github.com/progbudget/import-recon-backend/internal/infrastructure/storage"
)

// Service manages the potential-match lifecycle: candidate
// synchronization, operator confirm/reject decisions, and their undo
// paths. Every multi-step mutation runs inside one repository
// transaction.
type Service struct {
	repo   storage.Repository
	engine *matchengine.Engine
	logger *slog.Logger
}

// NewService creates a match lifecycle service
func NewService(repo storage.Repository, engine *matchengine.Engine, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		engine: engine,
		logger: logger,
	}
}

// Engine exposes the scoring engine, mainly so callers can derive
// per-session configuration overrides from its defaults.
func (s *Service) Engine() *matchengine.Engine {
	return s.engine
}

// Synchronize recomputes the candidate set for one transaction
func (s *Service) Synchronize(transactionID string) error {
	return s.repo.Transact(func(r storage.Repository) error {
		tx, err := r.GetTransaction(transactionID)
		if err != nil {
			return err
		}
		_, err = s.SynchronizeTransaction(r, tx)
		return err
	})
}

// SynchronizeTransaction scores the transaction against its program's
// ledger and reconciles stored candidates with the result: new
// candidates are upserted, stale ones deleted, and the transaction
// moves to matched or unmatched. Terminal transactions are never
// touched. Returns true when at least one candidate met the threshold.
func (s *Service) SynchronizeTransaction(r storage.Repository, tx *storage.ImportTransaction) (bool, error) {
	if tx.Status.IsTerminal() {
		return false, nil
	}

	candidates, err := s.scoreTransaction(r, tx)
	if err != nil {
		return false, err
	}

	existing, err := r.ListPotentialMatches(tx.ID)
	if err != nil {
		return false, err
	}
	wanted := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		wanted[c.Entry.ID] = true
	}
	for _, pm := range existing {
		if !wanted[pm.LedgerEntryID] {
			if err := r.DeletePotentialMatch(tx.ID, pm.LedgerEntryID); err != nil {
				return false, err
			}
		}
	}

	for _, c := range candidates {
		if err := r.UpsertPotentialMatch(&storage.PotentialMatch{
			TransactionID: tx.ID,
			LedgerEntryID: c.Entry.ID,
			Confidence:    c.Confidence,
			MatchType:     c.Type,
			Reasons:       c.Reasons,
		}); err != nil {
			return false, err
		}
	}

	if len(candidates) > 0 {
		tx.Status = recon.TxMatched
		tx.MatchConfidence = candidates[0].Confidence
	} else {
		tx.Status = recon.TxUnmatched
		tx.MatchConfidence = 0
	}
	if err := r.SaveTransaction(tx); err != nil {
		return false, err
	}

	return len(candidates) > 0, nil
}

// scoreTransaction builds the engine inputs from repository state
func (s *Service) scoreTransaction(r storage.Repository, tx *storage.ImportTransaction) ([]matchengine.Candidate, error) {
	entries, err := r.ListLedgerEntries(tx.ProgramID)
	if err != nil {
		return nil, err
	}

	bound, err := r.BoundLedgerEntryIDs(tx.ProgramID)
	if err != nil {
		return nil, err
	}
	boundElsewhere := make(map[string]bool, len(bound))
	for entryID, txID := range bound {
		if txID != tx.ID {
			boundElsewhere[entryID] = true
		}
	}

	rejectedIDs, err := r.ListRejectedEntryIDs(tx.ID)
	if err != nil {
		return nil, err
	}
	rejected := make(map[string]bool, len(rejectedIDs))
	for _, id := range rejectedIDs {
		rejected[id] = true
	}

	engineEntries := make([]matchengine.LedgerEntry, 0, len(entries))
	for _, e := range entries {
		engineEntries = append(engineEntries, matchengine.LedgerEntry{
			ID:            e.ID,
			WBSCode:       e.WBSCode,
			Vendor:        e.Vendor,
			Description:   e.Description,
			PlannedAmount: e.PlannedAmount,
			PlannedDate:   e.PlannedDate,
			HasActuals:    e.HasActuals(),
		})
	}

	return s.engine.Score(matchengine.Transaction{
		ID:          tx.ID,
		Vendor:      tx.Vendor,
		Description: tx.Description,
		Amount:      tx.Amount,
		Date:        tx.Date,
		Period:      tx.Period,
	}, engineEntries, matchengine.Exclusions{
		BoundEntryIDs:    boundElsewhere,
		RejectedEntryIDs: rejected,
	}), nil
}

// Confirm binds a transaction to a ledger entry. The entry's actuals
// are written from the transaction and every candidate touching either
// side is removed, since a ledger entry can bind to only one
// transaction.
func (s *Service) Confirm(transactionID, ledgerEntryID string) error {
	err := s.repo.Transact(func(r storage.Repository) error {
		tx, err := r.GetTransaction(transactionID)
		if err != nil {
			return err
		}
		if tx.Status.IsTerminal() {
			return fmt.Errorf("transaction %s is already %s", transactionID, tx.Status)
		}
		if _, err := r.GetLedgerEntry(ledgerEntryID); err != nil {
			return err
		}

		confidence := tx.MatchConfidence
		candidates, err := r.ListPotentialMatches(tx.ID)
		if err != nil {
			return err
		}
		for _, pm := range candidates {
			if pm.LedgerEntryID == ledgerEntryID {
				confidence = pm.Confidence
				break
			}
		}

		if err := r.DeletePotentialMatchesByTransaction(tx.ID); err != nil {
			return err
		}
		if err := r.DeletePotentialMatchesByEntry(ledgerEntryID); err != nil {
			return err
		}
		if err := r.SetLedgerActuals(ledgerEntryID, tx.Amount, tx.Date, tx.Reference, tx.Invoice); err != nil {
			return err
		}
		note := fmt.Sprintf("actuals set from transaction %s (%s)", tx.ID, tx.Date.Format("2006-01-02"))
		if err := r.AppendLedgerNote(ledgerEntryID, note); err != nil {
			return err
		}

		tx.Status = recon.TxConfirmed
		tx.MatchedEntryID = ledgerEntryID
		tx.MatchConfidence = confidence
		return r.SaveTransaction(tx)
	})
	if err != nil {
		return err
	}

	s.logger.Info("match confirmed",
		"transaction_id", transactionID,
		"ledger_entry_id", ledgerEntryID)
	return nil
}

// Reject records a permanent pair rejection. The transaction only
// drops to rejected when no other candidates remain.
func (s *Service) Reject(transactionID, ledgerEntryID string) error {
	return s.repo.Transact(func(r storage.Repository) error {
		tx, err := r.GetTransaction(transactionID)
		if err != nil {
			return err
		}
		if tx.Status.IsTerminal() {
			return fmt.Errorf("transaction %s is already %s", transactionID, tx.Status)
		}

		if err := r.DeletePotentialMatch(tx.ID, ledgerEntryID); err != nil {
			return err
		}
		if err := r.CreateRejectedMatch(tx.ID, ledgerEntryID); err != nil {
			return err
		}

		remaining, err := r.ListPotentialMatches(tx.ID)
		if err != nil {
			return err
		}
		if len(remaining) == 0 {
			tx.Status = recon.TxRejected
			tx.MatchConfidence = 0
		} else {
			tx.MatchConfidence = remaining[0].Confidence
		}
		return r.SaveTransaction(tx)
	})
}

// UndoReject removes a pair rejection and rescores the transaction.
// Status returns to matched if any candidate clears the threshold,
// rejected if other rejections remain, else unmatched.
func (s *Service) UndoReject(transactionID, ledgerEntryID string) error {
	return s.repo.Transact(func(r storage.Repository) error {
		tx, err := r.GetTransaction(transactionID)
		if err != nil {
			return err
		}
		// Rejected is the one terminal status this operation exists to
		// unwind. Anything else terminal stays untouched.
		if tx.Status.IsTerminal() && tx.Status != recon.TxRejected {
			return fmt.Errorf("transaction %s is already %s", transactionID, tx.Status)
		}

		if err := r.DeleteRejectedMatch(tx.ID, ledgerEntryID); err != nil {
			return err
		}

		tx.Status = recon.TxUnmatched
		matched, err := s.SynchronizeTransaction(r, tx)
		if err != nil {
			return err
		}
		if matched {
			return nil
		}

		otherRejections, err := r.ListRejectedEntryIDs(tx.ID)
		if err != nil {
			return err
		}
		if len(otherRejections) > 0 {
			tx.Status = recon.TxRejected
			return r.SaveTransaction(tx)
		}
		return nil
	})
}

// RemoveConfirmed unwinds a confirmation: the bound ledger entry's
// actuals are cleared, a stale rejection for the pair is dropped, and
// the candidate set is rebuilt from scratch.
func (s *Service) RemoveConfirmed(transactionID string) error {
	return s.repo.Transact(func(r storage.Repository) error {
		tx, err := r.GetTransaction(transactionID)
		if err != nil {
			return err
		}
		if tx.MatchedEntryID == "" {
			return fmt.Errorf("transaction %s has no confirmed match", transactionID)
		}

		entryID := tx.MatchedEntryID
		if err := r.ClearLedgerActuals(entryID); err != nil {
			return err
		}
		if err := r.DeleteRejectedMatch(tx.ID, entryID); err != nil {
			return err
		}

		tx.Status = recon.TxUnmatched
		tx.MatchedEntryID = ""
		tx.MatchConfidence = 0
		_, err = s.SynchronizeTransaction(r, tx)
		return err
	})
}

// AddToLedger creates a new ledger entry from an unmatched transaction,
// carrying the transaction's amount and date as both planned and actual
// values. Returns the created entry.
func (s *Service) AddToLedger(transactionID, wbsCode string) (*storage.LedgerEntry, error) {
	var entry *storage.LedgerEntry
	err := s.repo.Transact(func(r storage.Repository) error {
		tx, err := r.GetTransaction(transactionID)
		if err != nil {
			return err
		}
		if tx.Status.IsTerminal() {
			return fmt.Errorf("transaction %s is already %s", transactionID, tx.Status)
		}

		amount := tx.Amount
		date := tx.Date
		entry = &storage.LedgerEntry{
			ID:              uuid.NewString(),
			ProgramID:       tx.ProgramID,
			WBSCode:         wbsCode,
			Vendor:          tx.Vendor,
			Description:     tx.Description,
			PlannedAmount:   tx.Amount,
			PlannedDate:     tx.Date,
			ActualAmount:    &amount,
			ActualDate:      &date,
			InvoiceLinkURL:  tx.Reference,
			InvoiceLinkText: tx.Invoice,
		}
		if err := r.CreateLedgerEntry(entry); err != nil {
			return err
		}

		if err := r.DeletePotentialMatchesByTransaction(tx.ID); err != nil {
			return err
		}

		tx.Status = recon.TxAddedToLedger
		tx.MatchedEntryID = entry.ID
		return r.SaveTransaction(tx)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("transaction added to ledger",
		"transaction_id", transactionID,
		"ledger_entry_id", entry.ID)
	return entry, nil
}
