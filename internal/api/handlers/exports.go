package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/dvloznov/txledger/internal/api/dto"
	"github.com/dvloznov/txledger/internal/api/middleware"
	"github.com/dvloznov/txledger/internal/apperr"
	"github.com/dvloznov/txledger/internal/export"
	"github.com/dvloznov/txledger/internal/jobs"
	"github.com/rs/zerolog"
)

// ExportsPath is the export job collection route.
const ExportsPath = "/api/v1/exports"

// ExportsHandler submits and reports background export jobs.
type ExportsHandler struct {
	publisher jobs.Publisher
	store     jobs.JobStore
	log       zerolog.Logger
}

// NewExportsHandler creates a new exports handler.
func NewExportsHandler(publisher jobs.Publisher, store jobs.JobStore, log zerolog.Logger) *ExportsHandler {
	return &ExportsHandler{publisher: publisher, store: store, log: log}
}

// Register mounts the export routes on mux.
func (h *ExportsHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc(ExportsPath, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			h.ListExports(w, r)
		case http.MethodPost:
			h.SubmitExport(w, r)
		default:
			methodNotAllowed(w)
		}
	})

	mux.HandleFunc(ExportsPath+"/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, ExportsPath+"/")
		if id == "" || strings.Contains(id, "/") {
			middleware.WriteError(w, http.StatusNotFound, apperr.NotFound.Code(), "Export job not found")
			return
		}
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		h.GetExport(w, r, id)
	})
}

// SubmitExport handles POST /api/v1/exports
func (h *ExportsHandler) SubmitExport(w http.ResponseWriter, r *http.Request) {
	var req dto.ExportRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := export.ValidateServerDest(req.Dest); err != nil {
		middleware.WriteValidationError(w, map[string]string{"dest": err.Error()})
		return
	}
	if req.PageSize < 0 {
		middleware.WriteValidationError(w, map[string]string{"pageSize": "must not be negative"})
		return
	}

	job := &jobs.ExportJob{Dest: req.Dest, PageSize: req.PageSize}
	if err := h.publisher.PublishExport(r.Context(), job); err != nil {
		writeServiceError(w, r, h.log, err, "Failed to submit export")
		return
	}

	w.Header().Set("Location", ExportsPath+"/"+job.JobID)
	middleware.WriteJSON(w, http.StatusAccepted, dto.OK(dto.ExportJobData{Job: dto.FromJob(job)}))
}

// GetExport handles GET /api/v1/exports/{jobId}
func (h *ExportsHandler) GetExport(w http.ResponseWriter, r *http.Request, id string) {
	job, err := h.store.GetJob(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.log, err, "Failed to get export job")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, dto.OK(dto.ExportJobData{Job: dto.FromJob(job)}))
}

// ListExports handles GET /api/v1/exports?status=&limit=
func (h *ExportsHandler) ListExports(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filter := jobs.JobFilter{Status: jobs.JobStatus(query.Get("status"))}
	if filter.Status != "" && !filter.Status.Valid() {
		middleware.WriteValidationError(w, map[string]string{"status": "unknown status"})
		return
	}
	if v := query.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			middleware.WriteValidationError(w, map[string]string{"limit": "must be a non-negative integer"})
			return
		}
		filter.Limit = n
	}

	list, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		writeServiceError(w, r, h.log, err, "Failed to list export jobs")
		return
	}

	out := dto.ExportJobList{Jobs: make([]dto.ExportJob, 0, len(list))}
	for _, job := range list {
		out.Jobs = append(out.Jobs, dto.FromJob(job))
	}
	middleware.WriteJSON(w, http.StatusOK, dto.OK(out))
}
