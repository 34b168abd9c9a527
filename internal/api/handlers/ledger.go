package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/progbudget/import-recon-backend/internal/api/dto"
	"github.com/progbudget/import-recon-backend/internal/infrastructure/storage"
)

// LedgerHandler handles planned budget ledger reads and writes.
type LedgerHandler struct {
	*Base
}

// NewLedgerHandler creates a new ledger handler.
func NewLedgerHandler(repo storage.Repository) *LedgerHandler {
	return &LedgerHandler{Base: NewBase(repo)}
}

// ListByProgram handles GET /api/programs/{id}/ledger.
func (h *LedgerHandler) ListByProgram(w http.ResponseWriter, r *http.Request) {
	programID := chi.URLParam(r, "id")
	if _, err := h.repo.GetProgram(programID); err != nil {
		h.WriteStorageError(w, err, "program")
		return
	}

	entries, err := h.repo.ListLedgerEntries(programID)
	if err != nil {
		h.WriteStorageError(w, err, "ledger entries")
		return
	}
	if entries == nil {
		entries = []*storage.LedgerEntry{}
	}
	h.WriteJSON(w, http.StatusOK, dto.LedgerEntriesResponse{Entries: entries, Count: len(entries)})
}

// Create handles POST /api/programs/{id}/ledger.
func (h *LedgerHandler) Create(w http.ResponseWriter, r *http.Request) {
	programID := chi.URLParam(r, "id")
	if _, err := h.repo.GetProgram(programID); err != nil {
		h.WriteStorageError(w, err, "program")
		return
	}

	var req dto.CreateLedgerEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid request body"))
		return
	}

	plannedDate, err := time.Parse("2006-01-02", req.PlannedDate)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.ValidationError("planned_date must be YYYY-MM-DD"))
		return
	}

	entry := &storage.LedgerEntry{
		ID:            uuid.NewString(),
		ProgramID:     programID,
		WBSCode:       req.WBSCode,
		Vendor:        req.Vendor,
		Description:   req.Description,
		PlannedAmount: req.PlannedAmount,
		PlannedDate:   plannedDate,
	}
	if err := h.repo.CreateLedgerEntry(entry); err != nil {
		h.WriteStorageError(w, err, "ledger entry")
		return
	}

	h.WriteJSON(w, http.StatusCreated, entry)
}
