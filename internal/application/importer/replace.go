package importer

import (
	"context"
	"fmt"
	"time"

	"github.com/progbudget/import-recon-backend/internal/domain/recon"
	"github.com/progbudget/import-recon-backend/internal/domain/rowparse"
	"github.com/progbudget/import-recon-backend/internal/infrastructure/storage"
)

// ReplaceOptions controls which of the old session's transactions
// survive a replacement.
type ReplaceOptions struct {
	// ForceReplace reverses ledger actuals written by the old session
	// and marks every old transaction replaced regardless of status.
	ForceReplace bool
	// PreserveAllMatches keeps matched, confirmed and added transactions.
	PreserveAllMatches bool
	// PreserveConfirmedMatches keeps only confirmed and added transactions.
	PreserveConfirmedMatches bool
}

// ReplaceSession re-imports a corrected file over an existing session.
// The old session is only marked replaced after the new import
// succeeds; if the import fails the old session keeps its status and
// the caller may retry.
func (p *Pipeline) ReplaceSession(ctx context.Context, oldSessionID, filename string, mapping rowparse.ColumnMapping, rows []rowparse.Row, opts ReplaceOptions) (*storage.ImportSession, error) {
	oldSess, err := p.repo.GetSession(oldSessionID)
	if err != nil {
		return nil, err
	}
	if oldSess.Status == recon.SessionReplaced {
		return nil, fmt.Errorf("session %s was already replaced", oldSessionID)
	}

	newSess, err := p.CreateSession(oldSess.ProgramID, filename, mapping)
	if err != nil {
		return nil, err
	}

	if err := p.retireOldTransactions(oldSess, newSess.ID, opts); err != nil {
		return nil, err
	}

	if _, err := p.ProcessFile(ctx, newSess.ID, rows); err != nil {
		return newSess, err
	}

	if err := p.sealOldSession(oldSess, newSess.ID); err != nil {
		return newSess, err
	}

	p.logger.Info("session replaced",
		"old_session_id", oldSess.ID,
		"new_session_id", newSess.ID,
		"force", opts.ForceReplace)

	return newSess, nil
}

// retireOldTransactions applies the preserve-set rules before the new
// file is imported.
func (p *Pipeline) retireOldTransactions(oldSess *storage.ImportSession, newSessionID string, opts ReplaceOptions) error {
	return p.repo.Transact(func(r storage.Repository) error {
		txs, err := r.ListSessionTransactions(oldSess.ID)
		if err != nil {
			return err
		}

		for _, tx := range txs {
			if opts.ForceReplace {
				if tx.Status.IsCompleted() && tx.MatchedEntryID != "" {
					if err := r.ClearLedgerActuals(tx.MatchedEntryID); err != nil {
						return err
					}
					note := fmt.Sprintf("actuals reversed on %s: session replaced by %s",
						time.Now().UTC().Format("2006-01-02"), newSessionID)
					if err := r.AppendLedgerNote(tx.MatchedEntryID, note); err != nil {
						return err
					}
				}
				if err := p.markReplaced(r, tx); err != nil {
					return err
				}
				continue
			}

			if preserved(tx.Status, opts) {
				continue
			}
			if err := p.markReplaced(r, tx); err != nil {
				return err
			}
		}
		return nil
	})
}

func preserved(status recon.TransactionStatus, opts ReplaceOptions) bool {
	switch {
	case opts.PreserveAllMatches:
		return status == recon.TxMatched || status.IsCompleted()
	case opts.PreserveConfirmedMatches:
		return status.IsCompleted()
	}
	return false
}

// sealOldSession force-replaces any transaction still awaiting review,
// then marks the old session replaced. No transaction of a replaced
// session may stay non-terminal.
func (p *Pipeline) sealOldSession(oldSess *storage.ImportSession, newSessionID string) error {
	return p.repo.Transact(func(r storage.Repository) error {
		txs, err := r.ListSessionTransactions(oldSess.ID)
		if err != nil {
			return err
		}
		for _, tx := range txs {
			if tx.Status.IsTerminal() {
				continue
			}
			if err := p.markReplaced(r, tx); err != nil {
				return err
			}
		}

		oldSess.Status = recon.SessionReplaced
		oldSess.ReplacedBySessionID = newSessionID
		now := time.Now().UTC()
		oldSess.CompletedAt = &now
		return r.UpdateSession(oldSess)
	})
}

func (p *Pipeline) markReplaced(r storage.Repository, tx *storage.ImportTransaction) error {
	if err := r.DeletePotentialMatchesByTransaction(tx.ID); err != nil {
		return err
	}
	tx.Status = recon.TxReplaced
	return r.SaveTransaction(tx)
}
