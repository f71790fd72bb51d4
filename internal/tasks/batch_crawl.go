package tasks

import (
	"context"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/wraith/internal/models"
	"github.com/ternarybob/wraith/internal/services/batch"
)

// BatchCrawlHandler executes a queued batch job by rebuilding the request
// from job metadata and handing it to the coordinator.
type BatchCrawlHandler struct {
	coordinator *batch.Coordinator
	logger      arbor.ILogger
}

// NewBatchCrawlHandler creates the batch-crawl handler.
func NewBatchCrawlHandler(coordinator *batch.Coordinator, logger arbor.ILogger) *BatchCrawlHandler {
	return &BatchCrawlHandler{coordinator: coordinator, logger: logger}
}

// Handle implements HandlerFunc for the batch-crawl task type. The
// coordinator marks the job completed itself (the batch succeeds even
// when individual URLs fail), so a nil result map is returned on success.
func (h *BatchCrawlHandler) Handle(ctx context.Context, job *models.Job, payload map[string]interface{}) (map[string]interface{}, error) {
	req, err := batch.RequestFromJob(job)
	if err != nil {
		return nil, err
	}
	if _, err := h.coordinator.Run(ctx, job.JobID, req); err != nil {
		return nil, err
	}
	return nil, nil
}
