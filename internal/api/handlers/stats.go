package handlers

import (
	"net/http"

	"github.com/progbudget/import-recon-backend/internal/infrastructure/storage"
)

// StatsHandler handles aggregate reconciliation statistics.
type StatsHandler struct {
	*Base
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(repo storage.Repository) *StatsHandler {
	return &StatsHandler{Base: NewBase(repo)}
}

// Get handles GET /api/stats.
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	stats, err := h.repo.GetStats()
	if err != nil {
		h.WriteStorageError(w, err, "stats")
		return
	}
	h.WriteJSON(w, http.StatusOK, stats)
}
