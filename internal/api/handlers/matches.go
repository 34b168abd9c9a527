package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/progbudget/import-recon-backend/internal/api/dto"
	"github.com/progbudget/import-recon-backend/internal/application/matches"
	"github.com/progbudget/import-recon-backend/internal/infrastructure/storage"
)

// MatchesHandler handles operator match decisions.
type MatchesHandler struct {
	*Base
	svc *matches.Service
}

// NewMatchesHandler creates a new matches handler.
func NewMatchesHandler(repo storage.Repository, svc *matches.Service) *MatchesHandler {
	return &MatchesHandler{
		Base: NewBase(repo),
		svc:  svc,
	}
}

func (h *MatchesHandler) decodeAction(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req dto.MatchActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid request body"))
		return "", false
	}
	if req.LedgerEntryID == "" {
		h.WriteError(w, http.StatusBadRequest, dto.ValidationError("ledger_entry_id is required"))
		return "", false
	}
	return req.LedgerEntryID, true
}

func (h *MatchesHandler) respondWithTransaction(w http.ResponseWriter, transactionID string) {
	tx, err := h.repo.GetTransaction(transactionID)
	if err != nil {
		h.WriteStorageError(w, err, "transaction")
		return
	}
	h.WriteJSON(w, http.StatusOK, tx)
}

// Confirm handles POST /api/transactions/{id}/confirm.
func (h *MatchesHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	entryID, ok := h.decodeAction(w, r)
	if !ok {
		return
	}
	txID := chi.URLParam(r, "id")

	if err := h.svc.Confirm(txID, entryID); err != nil {
		h.WriteStorageError(w, err, "transaction or ledger entry")
		return
	}
	h.respondWithTransaction(w, txID)
}

// Reject handles POST /api/transactions/{id}/reject.
func (h *MatchesHandler) Reject(w http.ResponseWriter, r *http.Request) {
	entryID, ok := h.decodeAction(w, r)
	if !ok {
		return
	}
	txID := chi.URLParam(r, "id")

	if err := h.svc.Reject(txID, entryID); err != nil {
		h.WriteStorageError(w, err, "transaction")
		return
	}
	h.respondWithTransaction(w, txID)
}

// UndoReject handles POST /api/transactions/{id}/undo-reject.
func (h *MatchesHandler) UndoReject(w http.ResponseWriter, r *http.Request) {
	entryID, ok := h.decodeAction(w, r)
	if !ok {
		return
	}
	txID := chi.URLParam(r, "id")

	if err := h.svc.UndoReject(txID, entryID); err != nil {
		h.WriteStorageError(w, err, "transaction")
		return
	}
	h.respondWithTransaction(w, txID)
}

// RemoveMatch handles POST /api/transactions/{id}/remove-match.
func (h *MatchesHandler) RemoveMatch(w http.ResponseWriter, r *http.Request) {
	txID := chi.URLParam(r, "id")

	if err := h.svc.RemoveConfirmed(txID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			h.WriteStorageError(w, err, "transaction")
			return
		}
		h.WriteError(w, http.StatusConflict, dto.ConflictError(err.Error()))
		return
	}
	h.respondWithTransaction(w, txID)
}

// AddToLedger handles POST /api/transactions/{id}/add-to-ledger.
func (h *MatchesHandler) AddToLedger(w http.ResponseWriter, r *http.Request) {
	var req dto.AddToLedgerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid request body"))
		return
	}
	txID := chi.URLParam(r, "id")

	entry, err := h.svc.AddToLedger(txID, req.WBSCode)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			h.WriteStorageError(w, err, "transaction")
			return
		}
		h.WriteError(w, http.StatusConflict, dto.ConflictError(err.Error()))
		return
	}
	h.WriteJSON(w, http.StatusCreated, entry)
}
