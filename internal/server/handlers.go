package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/parcelworks/entryagent/constants"
	"github.com/parcelworks/entryagent/internal/common"
	"github.com/parcelworks/entryagent/internal/jobs"
)

// maxUploadBytes bounds multipart memory buffering; larger files spill to disk.
const maxUploadBytes = 32 << 20

// jobView is a job snapshot augmented with the validation verdict and overall
// confidence once the persisted artifact exists.
type jobView struct {
	jobs.Job
	SchemaOK          *bool    `json:"schema_ok,omitempty"`
	OverallConfidence *float64 `json:"overall_confidence,omitempty"`
}

func (s *JobsService) view(job jobs.Job) jobView {
	v := jobView{Job: job}
	if job.Status != constants.JobStatusDone {
		return v
	}
	summary, err := s.persister.ReadSummary(job.ID)
	if err != nil {
		s.logger.Warn("server.summary_read_failed", "job_id", job.ID, "error", err)
		return v
	}
	v.SchemaOK = &summary.SchemaOK
	v.OverallConfidence = &summary.OverallConfidence
	return v
}

// handleCreate accepts a multipart document upload plus extraction params and
// returns the job handle immediately. Equivalent in-flight submissions are
// deduplicated to the existing job.
func (s *JobsService) handleCreate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.writeError(w, common.NewAppError("BAD_UPLOAD", "invalid multipart form", common.ErrInvalidInput))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, common.NewAppError("BAD_UPLOAD", "no file part in the request", common.ErrInvalidInput))
		return
	}
	defer file.Close()

	params, err := s.parseParams(r.FormValue)
	if err != nil {
		s.writeError(w, err)
		return
	}

	path, err := s.saveUpload(file, header)
	if err != nil {
		s.writeError(w, err)
		return
	}

	job, created, err := s.submit(r.Context(), path, header.Filename, params)
	if err != nil {
		s.writeError(w, err)
		return
	}

	status := http.StatusAccepted
	if !created {
		status = http.StatusOK
	}
	s.writeJSON(w, status, map[string]any{
		"job_id":       job.ID,
		"status":       job.Status,
		"deduplicated": !created,
	})
}

func (s *JobsService) handleGet(w http.ResponseWriter, r *http.Request) {
	job, err := s.store.Get(chi.URLParam(r, "jobID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.view(job))
}

func (s *JobsService) handleList(w http.ResponseWriter, _ *http.Request) {
	all := s.store.List()
	views := make([]jobView, 0, len(all))
	for _, job := range all {
		views = append(views, s.view(job))
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"jobs": views})
}

func (s *JobsService) handleCancel(w http.ResponseWriter, r *http.Request) {
	status, canceled, err := s.store.RequestCancel(chi.URLParam(r, "jobID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	code := http.StatusOK
	if !canceled {
		// already terminal; nothing to cancel
		code = http.StatusConflict
	}
	s.writeJSON(w, code, map[string]any{
		"canceled": canceled,
		"status":   status,
	})
}

func (s *JobsService) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Delete(chi.URLParam(r, "jobID")); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func (s *JobsService) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status": "healthy",
		"jobs":   len(s.store.List()),
	})
}

func (s *JobsService) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("server.encode_failed", "error", err)
	}
}

func (s *JobsService) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, common.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, common.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, common.ErrInvalidTransition):
		// Logic bug; fail loudly.
		s.logger.Error("server.invalid_transition", "error", err)
	}
	s.writeJSON(w, status, map[string]any{"error": err.Error()})
}
