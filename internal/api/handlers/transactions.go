package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/progbudget/import-recon-backend/internal/api/dto"
	"github.com/progbudget/import-recon-backend/internal/infrastructure/storage"
)

// TransactionsHandler handles transaction reads.
type TransactionsHandler struct {
	*Base
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(repo storage.Repository) *TransactionsHandler {
	return &TransactionsHandler{Base: NewBase(repo)}
}

// ListBySession handles GET /api/sessions/{id}/transactions.
func (h *TransactionsHandler) ListBySession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	if _, err := h.repo.GetSession(sessionID); err != nil {
		h.WriteStorageError(w, err, "session")
		return
	}

	txs, err := h.repo.ListSessionTransactions(sessionID)
	if err != nil {
		h.WriteStorageError(w, err, "transactions")
		return
	}
	if txs == nil {
		txs = []*storage.ImportTransaction{}
	}
	h.WriteJSON(w, http.StatusOK, dto.TransactionsResponse{Transactions: txs, Count: len(txs)})
}

// Get handles GET /api/transactions/{id}. The response includes the
// transaction's current match candidates for the review screen.
func (h *TransactionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	tx, err := h.repo.GetTransaction(chi.URLParam(r, "id"))
	if err != nil {
		h.WriteStorageError(w, err, "transaction")
		return
	}

	matches, err := h.repo.ListPotentialMatches(tx.ID)
	if err != nil {
		h.WriteStorageError(w, err, "matches")
		return
	}
	if matches == nil {
		matches = []*storage.PotentialMatch{}
	}

	h.WriteJSON(w, http.StatusOK, dto.TransactionWithMatches{
		Transaction: tx,
		Matches:     matches,
	})
}
