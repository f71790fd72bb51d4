// -----------------------------------------------------------------------
// Markdown endpoint - POST /api/markdown accepts either the legacy
// single-URL shape (synchronous, full content in the body) or the batch
// shape (sync 200 or async 202 with predicted artifact paths).
// -----------------------------------------------------------------------

package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/wraith/internal/interfaces"
	"github.com/ternarybob/wraith/internal/models"
	"github.com/ternarybob/wraith/internal/services/batch"
)

// MarkdownHandler serves crawl submissions.
type MarkdownHandler struct {
	coordinator *batch.Coordinator
	crawler     interfaces.Crawler
	validate    *validator.Validate
	logger      arbor.ILogger
}

// NewMarkdownHandler creates the markdown endpoint handler.
func NewMarkdownHandler(coordinator *batch.Coordinator, crawler interfaces.Crawler, logger arbor.ILogger) *MarkdownHandler {
	return &MarkdownHandler{
		coordinator: coordinator,
		crawler:     crawler,
		validate:    validator.New(),
		logger:      logger,
	}
}

// SubmitHandler handles POST /api/markdown.
func (h *MarkdownHandler) SubmitHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req models.BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if !req.IsBatch() {
		h.handleLegacySingle(w, r, &req)
		return
	}

	if len(req.URLs) > models.MaxBatchURLs {
		WriteError(w, http.StatusBadRequest,
			fmt.Sprintf("too many urls: %d exceeds the maximum of %d per batch", len(req.URLs), models.MaxBatchURLs))
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	if req.IsAsync() {
		h.handleBatchAsync(w, r, &req)
		return
	}
	h.handleBatchSync(w, r, &req)
}

// handleLegacySingle keeps backward compatibility: one URL crawled inline,
// content returned directly, no job record.
func (h *MarkdownHandler) handleLegacySingle(w http.ResponseWriter, r *http.Request, req *models.BatchRequest) {
	if req.URL == "" {
		WriteError(w, http.StatusBadRequest, "Either url or urls is required")
		return
	}

	result, err := h.crawler.Crawl(r.Context(), req.URL, req.CrawlOptions)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "Crawl failed: "+err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"url":      req.URL,
		"title":    result.Title,
		"markdown": result.Markdown,
	})
}

func (h *MarkdownHandler) handleBatchSync(w http.ResponseWriter, r *http.Request, req *models.BatchRequest) {
	outcome, err := h.coordinator.ExecuteSync(r.Context(), req)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	response := map[string]interface{}{
		"success": true,
		"mode":    "batch_sync",
		"job_id":  outcome.JobID,
		"results": outcome.Results,
	}
	if outcome.CollatedURL != "" {
		response["collated_url"] = outcome.CollatedURL
	}
	WriteJSON(w, http.StatusOK, response)
}

func (h *MarkdownHandler) handleBatchAsync(w http.ResponseWriter, r *http.Request, req *models.BatchRequest) {
	jobID, results, err := h.coordinator.SubmitAsync(r.Context(), req)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	response := map[string]interface{}{
		"success":    true,
		"mode":       "batch_async",
		"job_id":     jobID,
		"status_url": "/api/jobs/" + jobID,
		"results":    results,
	}
	if req.Collate {
		response["collated_url"] = models.BatchCollatedPath(jobID)
	}
	WriteJSON(w, http.StatusAccepted, response)
}
