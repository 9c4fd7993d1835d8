package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"duck-connect/internal/service/query"
)

// CreateJobResponse is returned by POST /v1/jobs. Job is omitted when
// if_not_exists skipped the submission.
type CreateJobResponse struct {
	Created bool       `json:"created"`
	Job     *query.Job `json:"job,omitempty"`
}

// ListJobsResponse lists every known job.
type ListJobsResponse struct {
	Jobs []query.Job `json:"jobs"`
}

// CreateJob handles POST /v1/jobs.
func (h *Handler) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req query.CreateJobRequest
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	created, err := h.jobs.Submit(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !created {
		writeJSON(w, http.StatusOK, CreateJobResponse{})
		return
	}
	job, err := h.jobs.Get(strings.TrimSpace(req.Name))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, CreateJobResponse{Created: true, Job: job})
}

// ListJobs handles GET /v1/jobs.
func (h *Handler) ListJobs(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, ListJobsResponse{Jobs: h.jobs.List()})
}

// GetJob handles GET /v1/jobs/{name}.
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.jobs.Get(chi.URLParam(r, "name"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// DropJob handles DELETE /v1/jobs/{name}?if_exists=true.
func (h *Handler) DropJob(w http.ResponseWriter, r *http.Request) {
	ifExists, err := boolParam(r, "if_exists")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.jobs.Cancel(r.Context(), chi.URLParam(r, "name"), ifExists); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
