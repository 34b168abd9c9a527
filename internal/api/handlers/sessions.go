package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/progbudget/import-recon-backend/internal/api/dto"
	"github.com/progbudget/import-recon-backend/internal/application/importer"
	"github.com/progbudget/import-recon-backend/internal/domain/rowparse"
	"github.com/progbudget/import-recon-backend/internal/infrastructure/storage"
)

// SessionsHandler handles import session CRUD and processing.
type SessionsHandler struct {
	*Base
	pipeline *importer.Pipeline
}

// NewSessionsHandler creates a new sessions handler.
func NewSessionsHandler(repo storage.Repository, pipeline *importer.Pipeline) *SessionsHandler {
	return &SessionsHandler{
		Base:     NewBase(repo),
		pipeline: pipeline,
	}
}

// Create handles POST /api/sessions.
func (h *SessionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid request body"))
		return
	}
	if req.ProgramID == "" {
		h.WriteError(w, http.StatusBadRequest, dto.ValidationError("program_id is required"))
		return
	}

	sess, err := h.pipeline.CreateSession(req.ProgramID, req.Filename, req.Mapping)
	if err != nil {
		var missing *rowparse.MissingColumnsError
		if errors.As(err, &missing) {
			h.WriteError(w, http.StatusBadRequest, dto.ValidationError(err.Error()))
			return
		}
		h.WriteStorageError(w, err, "program")
		return
	}

	h.WriteJSON(w, http.StatusCreated, sess)
}

// List handles GET /api/sessions?program_id=&limit=.
func (h *SessionsHandler) List(w http.ResponseWriter, r *http.Request) {
	programID := r.URL.Query().Get("program_id")
	limit := ParseIntParam(r, "limit", 50)

	sessions, err := h.repo.ListSessions(programID, limit)
	if err != nil {
		h.WriteStorageError(w, err, "sessions")
		return
	}
	if sessions == nil {
		sessions = []*storage.ImportSession{}
	}
	h.WriteJSON(w, http.StatusOK, dto.SessionsResponse{Sessions: sessions, Count: len(sessions)})
}

// Get handles GET /api/sessions/{id}.
func (h *SessionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	sess, err := h.repo.GetSession(chi.URLParam(r, "id"))
	if err != nil {
		h.WriteStorageError(w, err, "session")
		return
	}
	h.WriteJSON(w, http.StatusOK, sess)
}

// Process handles POST /api/sessions/{id}/process. The rows arrive
// pre-extracted in the body and the import runs synchronously; large
// files go through the async imports endpoint instead.
func (h *SessionsHandler) Process(w http.ResponseWriter, r *http.Request) {
	var req dto.ProcessRowsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid request body"))
		return
	}

	sess, err := h.pipeline.ProcessFile(r.Context(), chi.URLParam(r, "id"), req.Rows)
	if err != nil {
		if sess != nil {
			// Session exists but processing failed; surface its state
			h.WriteError(w, http.StatusConflict, dto.ConflictError(err.Error()))
			return
		}
		h.WriteStorageError(w, err, "session")
		return
	}

	h.WriteJSON(w, http.StatusOK, sess)
}

// Cancel handles POST /api/sessions/{id}/cancel.
func (h *SessionsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	sess, err := h.pipeline.CancelSession(chi.URLParam(r, "id"))
	if errors.Is(err, storage.ErrNotFound) {
		h.WriteStorageError(w, err, "session")
		return
	}
	if err != nil {
		h.WriteError(w, http.StatusConflict, dto.ConflictError(err.Error()))
		return
	}
	h.WriteJSON(w, http.StatusOK, sess)
}

// Replace handles POST /api/sessions/{id}/replace.
func (h *SessionsHandler) Replace(w http.ResponseWriter, r *http.Request) {
	var req dto.ReplaceSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid request body"))
		return
	}

	newSess, err := h.pipeline.ReplaceSession(r.Context(), chi.URLParam(r, "id"),
		req.Filename, req.Mapping, req.Rows, importer.ReplaceOptions{
			ForceReplace:             req.ForceReplace,
			PreserveAllMatches:       req.PreserveAllMatches,
			PreserveConfirmedMatches: req.PreserveConfirmedMatches,
		})
	if err != nil {
		if newSess != nil {
			h.WriteError(w, http.StatusConflict, dto.ConflictError(err.Error()))
			return
		}
		h.WriteStorageError(w, err, "session")
		return
	}

	h.WriteJSON(w, http.StatusCreated, newSess)
}
