package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/wraith/internal/interfaces"
	"github.com/ternarybob/wraith/internal/models"
	"github.com/ternarybob/wraith/internal/services/jobs"
)

// JobHandler serves job status and listing endpoints.
type JobHandler struct {
	jobs   *jobs.Service
	logger arbor.ILogger
}

// NewJobHandler creates the job endpoint handler.
func NewJobHandler(jobSvc *jobs.Service, logger arbor.ILogger) *JobHandler {
	return &JobHandler{jobs: jobSvc, logger: logger}
}

// GetJobHandler handles GET /api/jobs/{id}.
func (h *JobHandler) GetJobHandler(w http.ResponseWriter, r *http.Request, jobID string) {
	job, err := h.jobs.Get(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			WriteError(w, http.StatusNotFound, fmt.Sprintf("Job %s not found", jobID))
			return
		}
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, jobResponse(job))
}

// ListJobsHandler handles GET /api/jobs?status=&limit=.
func (h *JobHandler) ListJobsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	status := models.JobStatus(r.URL.Query().Get("status"))
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	list, err := h.jobs.List(r.Context(), status, limit)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	entries := make([]map[string]interface{}, len(list))
	for i, job := range list {
		entries[i] = jobResponse(job)
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"jobs":    entries,
		"count":   len(entries),
	})
}

// DeleteJobHandler handles DELETE /api/jobs/{id}. The record is marked
// deleted but retained; in-flight crawls are not interrupted.
func (h *JobHandler) DeleteJobHandler(w http.ResponseWriter, r *http.Request, jobID string) {
	job, err := h.jobs.MarkDeleted(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			WriteError(w, http.StatusNotFound, fmt.Sprintf("Job %s not found", jobID))
			return
		}
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"job_id":  job.JobID,
		"status":  job.Status,
	})
}

// jobResponse shapes one job for the API.
func jobResponse(job *models.Job) map[string]interface{} {
	response := map[string]interface{}{
		"job_id":     job.JobID,
		"job_type":   job.JobType,
		"status":     job.Status,
		"created_at": job.CreatedAt.Format(time.RFC3339),
		"updated_at": job.UpdatedAt.Format(time.RFC3339),
	}
	if len(job.Results) > 0 {
		response["results"] = job.Results
	}
	if job.Error != "" {
		response["error"] = job.Error
	}
	if job.ProcessingStartedAt != nil {
		response["processing_started_at"] = job.ProcessingStartedAt.Format(time.RFC3339)
	}
	if job.CompletedAt != nil {
		response["completed_at"] = job.CompletedAt.Format(time.RFC3339)
	}
	if job.FailedAt != nil {
		response["failed_at"] = job.FailedAt.Format(time.RFC3339)
	}
	return response
}
