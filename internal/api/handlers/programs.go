package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/progbudget/import-recon-backend/internal/api/dto"
	"github.com/progbudget/import-recon-backend/internal/infrastructure/storage"
)

// ProgramsHandler handles program registration and listing.
type ProgramsHandler struct {
	*Base
}

// NewProgramsHandler creates a new programs handler.
func NewProgramsHandler(repo storage.Repository) *ProgramsHandler {
	return &ProgramsHandler{Base: NewBase(repo)}
}

// Create handles POST /api/programs.
func (h *ProgramsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateProgramRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid request body"))
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		h.WriteError(w, http.StatusBadRequest, dto.ValidationError("code is required"))
		return
	}

	program := &storage.Program{
		ID:   uuid.NewString(),
		Code: strings.ToUpper(strings.TrimSpace(req.Code)),
		Name: strings.TrimSpace(req.Name),
	}
	if err := h.repo.CreateProgram(program); err != nil {
		h.WriteStorageError(w, err, "program")
		return
	}

	h.WriteJSON(w, http.StatusCreated, program)
}

// List handles GET /api/programs.
func (h *ProgramsHandler) List(w http.ResponseWriter, r *http.Request) {
	programs, err := h.repo.ListPrograms()
	if err != nil {
		h.WriteStorageError(w, err, "programs")
		return
	}
	if programs == nil {
		programs = []*storage.Program{}
	}
	h.WriteJSON(w, http.StatusOK, dto.ProgramsResponse{Programs: programs, Count: len(programs)})
}
