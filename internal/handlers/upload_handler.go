package handlers

import (
	"io"
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/wraith/internal/common"
	"github.com/ternarybob/wraith/internal/interfaces"
	"github.com/ternarybob/wraith/internal/models"
	"github.com/ternarybob/wraith/internal/services/jobs"
	tasksvc "github.com/ternarybob/wraith/internal/services/tasks"
)

// maxUploadBytes bounds a single image upload.
const maxUploadBytes = 20 << 20 // 20 MB

// UploadHandler serves POST /api/upload-async: store the image, create an
// image-processing job, enqueue the process-image task.
type UploadHandler struct {
	jobs      *jobs.Service
	tasks     *tasksvc.Service
	artifacts interfaces.ArtifactStore
	logger    arbor.ILogger
}

// NewUploadHandler creates the upload endpoint handler.
func NewUploadHandler(jobSvc *jobs.Service, taskSvc *tasksvc.Service, artifacts interfaces.ArtifactStore, logger arbor.ILogger) *UploadHandler {
	return &UploadHandler{jobs: jobSvc, tasks: taskSvc, artifacts: artifacts, logger: logger}
}

// UploadAsyncHandler handles the multipart submission.
func (h *UploadHandler) UploadAsyncHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid multipart form: "+err.Error())
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "Missing image file")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "Failed to read image: "+err.Error())
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	// uploads keep random filenames - there is no input index to key on
	filename := common.NewUploadFilename(header.Filename)
	filePath, err := h.artifacts.Save(r.Context(), data, contentType, "uploads", filename)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "Failed to store upload: "+err.Error())
		return
	}

	metadata := map[string]interface{}{
		"file_path":    filePath,
		"content_type": contentType,
		"filename":     header.Filename,
	}
	if title := r.FormValue("title"); title != "" {
		metadata["title"] = title
	}

	job, err := h.jobs.Create(r.Context(), models.JobTypeImageProcessing, metadata)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "Failed to create job: "+err.Error())
		return
	}

	payload := map[string]interface{}{"file_path": filePath}
	if _, err := h.tasks.Enqueue(r.Context(), tasksvc.TypeProcessImage, payload, job.JobID, 0); err != nil {
		WriteError(w, http.StatusInternalServerError, "Failed to enqueue task: "+err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"job_id":  job.JobID,
		"status":  models.JobStatusPending,
	})
}
