package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/wraith/internal/interfaces"
	"github.com/ternarybob/wraith/internal/models"
	"github.com/ternarybob/wraith/internal/services/jobs"
)

// cleanupListLimit bounds one cleanup pass: only the newest this-many job
// records, of any status, are examined. Cleaned-up records stay in that
// listing, so older jobs outside the newest this-many are not examined.
const cleanupListLimit = 1000

// CleanupHandler removes artifacts of old jobs and marks the records
// cleaned_up. The job records themselves are retained for audit.
type CleanupHandler struct {
	jobs      *jobs.Service
	artifacts interfaces.ArtifactStore
	logger    arbor.ILogger
}

// NewCleanupHandler creates the cleanup-old-jobs handler.
func NewCleanupHandler(jobSvc *jobs.Service, artifacts interfaces.ArtifactStore, logger arbor.ILogger) *CleanupHandler {
	return &CleanupHandler{jobs: jobSvc, artifacts: artifacts, logger: logger}
}

// Handle implements HandlerFunc for the cleanup-old-jobs task type.
// days_to_keep=0 targets everything created before now.
func (h *CleanupHandler) Handle(ctx context.Context, job *models.Job, payload map[string]interface{}) (map[string]interface{}, error) {
	daysToKeep := 30
	switch v := payload["days_to_keep"].(type) {
	case float64:
		daysToKeep = int(v)
	case int:
		daysToKeep = v
	}
	if daysToKeep < 0 {
		return nil, fmt.Errorf("days_to_keep must be >= 0, got %d", daysToKeep)
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -daysToKeep)

	all, err := h.jobs.List(ctx, "", cleanupListLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	old := jobs.OlderThan(all, cutoff)

	cleaned := 0
	failed := 0
	for _, candidate := range old {
		if candidate.JobID == job.JobID || candidate.Status == models.JobStatusCleanedUp {
			continue
		}
		// in-flight jobs keep their artifacts
		if candidate.Status == models.JobStatusPending || candidate.Status == models.JobStatusProcessing {
			continue
		}

		filesDeleted := h.deleteArtifacts(ctx, candidate)
		_, err := h.jobs.Update(ctx, candidate.JobID, map[string]interface{}{
			"status": models.JobStatusCleanedUp,
			"results": map[string]interface{}{
				"files_deleted": filesDeleted,
			},
		})
		if err != nil {
			h.logger.Warn().Err(err).Str("job_id", candidate.JobID).Msg("Failed to mark job cleaned up")
			failed++
			continue
		}
		cleaned++
	}

	h.logger.Info().
		Int("cleaned", cleaned).
		Int("failed", failed).
		Int("days_to_keep", daysToKeep).
		Msg("Cleanup completed")
	return map[string]interface{}{
		"jobs_cleaned": cleaned,
		"jobs_failed":  failed,
		"days_to_keep": daysToKeep,
	}, nil
}

// deleteArtifacts removes every artifact path the job references: the
// uploaded input and any recorded result artifacts.
func (h *CleanupHandler) deleteArtifacts(ctx context.Context, job *models.Job) []interface{} {
	var deleted []interface{}

	remove := func(path string) {
		if path == "" {
			return
		}
		ok, err := h.artifacts.Delete(ctx, path)
		if err != nil {
			h.logger.Warn().Err(err).Str("path", path).Msg("Failed to delete artifact")
			return
		}
		if ok {
			deleted = append(deleted, path)
		}
	}

	if input, ok := job.MetadataString("file_path"); ok {
		remove(input)
	}
	for _, key := range []string{"report_path", "html_path", "collated_url"} {
		if path, ok := job.Results[key].(string); ok {
			remove(path)
		}
	}
	if perURL, ok := job.Results["per_url"].([]interface{}); ok {
		for _, entry := range perURL {
			m, ok := entry.(map[string]interface{})
			if !ok {
				continue
			}
			for _, key := range []string{"markdown_url", "json_url", "screenshot_url"} {
				if path, ok := m[key].(string); ok {
					remove(path)
				}
			}
		}
	}
	return deleted
}
