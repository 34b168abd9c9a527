package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/progbudget/import-recon-backend/internal/adapters/rowsource"
	"github.com/progbudget/import-recon-backend/internal/api/dto"
	"github.com/progbudget/import-recon-backend/internal/application/importer"
	"github.com/progbudget/import-recon-backend/internal/application/service"
	"github.com/progbudget/import-recon-backend/internal/domain/rowparse"
	"github.com/progbudget/import-recon-backend/internal/infrastructure/storage"
)

// maxUploadBytes caps spreadsheet uploads at 32 MiB
const maxUploadBytes = 32 << 20

// ImportsHandler handles async import jobs over uploaded files.
type ImportsHandler struct {
	*Base
	pipeline *importer.Pipeline
	imports  *service.ImportService
}

// NewImportsHandler creates a new imports handler.
func NewImportsHandler(repo storage.Repository, pipeline *importer.Pipeline, imports *service.ImportService) *ImportsHandler {
	return &ImportsHandler{
		Base:     NewBase(repo),
		pipeline: pipeline,
		imports:  imports,
	}
}

// Start handles POST /api/imports. Multipart form with a "file" part
// and "program_id" and "mapping" (JSON) fields. Creates the session and
// launches a background job; poll the job for completion.
func (h *ImportsHandler) Start(w http.ResponseWriter, r *http.Request) {
	programID, mapping, rows, filename, ok := h.parseUpload(w, r)
	if !ok {
		return
	}

	sess, err := h.pipeline.CreateSession(programID, filename, mapping)
	if err != nil {
		var missing *rowparse.MissingColumnsError
		if errors.As(err, &missing) {
			h.WriteError(w, http.StatusBadRequest, dto.ValidationError(err.Error()))
			return
		}
		h.WriteStorageError(w, err, "program")
		return
	}

	job := h.imports.StartImport(programID, sess.ID, rows)
	h.WriteJSON(w, http.StatusAccepted, job)
}

// parseUpload extracts the common multipart fields of import requests
func (h *ImportsHandler) parseUpload(w http.ResponseWriter, r *http.Request) (programID string, mapping rowparse.ColumnMapping, rows []rowparse.Row, filename string, ok bool) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid multipart form"))
		return
	}

	programID = r.FormValue("program_id")
	if programID == "" {
		h.WriteError(w, http.StatusBadRequest, dto.ValidationError("program_id is required"))
		return
	}

	if raw := r.FormValue("mapping"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &mapping); err != nil {
			h.WriteError(w, http.StatusBadRequest, dto.ValidationError("mapping is not valid JSON"))
			return
		}
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.ValidationError("file is required"))
		return
	}
	defer func() { _ = file.Close() }()

	src, err := rowsource.FromReader(file, header.Filename)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.ValidationError(err.Error()))
		return
	}
	rows, err = src.Rows()
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.ValidationError(err.Error()))
		return
	}

	return programID, mapping, rows, header.Filename, true
}

// List handles GET /api/imports.
func (h *ImportsHandler) List(w http.ResponseWriter, r *http.Request) {
	jobs := h.imports.ListJobs()
	h.WriteJSON(w, http.StatusOK, map[string]any{
		"jobs":  jobs,
		"count": len(jobs),
	})
}

// Get handles GET /api/imports/{jobId}.
func (h *ImportsHandler) Get(w http.ResponseWriter, r *http.Request) {
	job := h.imports.GetJob(chi.URLParam(r, "jobId"))
	if job == nil {
		h.WriteError(w, http.StatusNotFound, dto.NotFoundError("import job"))
		return
	}
	h.WriteJSON(w, http.StatusOK, job)
}

// Cancel handles DELETE /api/imports/{jobId}.
func (h *ImportsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")
	if err := h.imports.CancelJob(jobID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			h.WriteError(w, http.StatusNotFound, dto.NotFoundError("import job"))
			return
		}
		h.WriteError(w, http.StatusConflict, dto.ConflictError(err.Error()))
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]string{"status": "cancelling"})
}
