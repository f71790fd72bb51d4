// -----------------------------------------------------------------------
// Job service - business wrapper over the selected job store. Handlers
// and the batch coordinator mutate jobs only through this service.
// -----------------------------------------------------------------------

package jobs

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/wraith/internal/interfaces"
	"github.com/ternarybob/wraith/internal/models"
)

// Service provides job lifecycle operations.
type Service struct {
	store  interfaces.JobStore
	logger arbor.ILogger
}

// NewService creates a job service over the given store.
func NewService(store interfaces.JobStore, logger arbor.ILogger) *Service {
	return &Service{store: store, logger: logger}
}

// Create persists a new pending job.
func (s *Service) Create(ctx context.Context, jobType models.JobType, metadata map[string]interface{}) (*models.Job, error) {
	job, err := s.store.Create(ctx, jobType, metadata)
	if err != nil {
		s.logger.Error().Err(err).Str("job_type", string(jobType)).Msg("Failed to create job")
		return nil, err
	}
	s.logger.Info().
		Str("job_id", job.JobID).
		Str("job_type", string(jobType)).
		Msg("Job created")
	return job, nil
}

// Get returns a job by id, or interfaces.ErrNotFound.
func (s *Service) Get(ctx context.Context, jobID string) (*models.Job, error) {
	return s.store.Get(ctx, jobID)
}

// Update merges a partial patch into the job record. Patches that would
// move a job out of a terminal status are ignored by the store.
func (s *Service) Update(ctx context.Context, jobID string, patch map[string]interface{}) (*models.Job, error) {
	job, err := s.store.Update(ctx, jobID, patch)
	if err != nil {
		s.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to update job")
		return nil, err
	}
	return job, nil
}

// List returns jobs newest-first, optionally filtered by status.
func (s *Service) List(ctx context.Context, status models.JobStatus, limit int) ([]*models.Job, error) {
	return s.store.List(ctx, &interfaces.JobListOptions{Status: status, Limit: limit})
}

// MarkProcessing transitions a job to processing and stamps
// processing_started_at.
func (s *Service) MarkProcessing(ctx context.Context, jobID string) (*models.Job, error) {
	return s.Update(ctx, jobID, map[string]interface{}{
		"status": models.JobStatusProcessing,
	})
}

// MarkCompleted transitions a job to completed with its results.
func (s *Service) MarkCompleted(ctx context.Context, jobID string, results map[string]interface{}) (*models.Job, error) {
	job, err := s.Update(ctx, jobID, map[string]interface{}{
		"status":  models.JobStatusCompleted,
		"results": results,
	})
	if err == nil {
		s.logger.Info().Str("job_id", jobID).Msg("Job completed")
	}
	return job, err
}

// MarkFailed transitions a job to failed with its error text.
func (s *Service) MarkFailed(ctx context.Context, jobID string, errMsg string) (*models.Job, error) {
	job, err := s.Update(ctx, jobID, map[string]interface{}{
		"status": models.JobStatusFailed,
		"error":  errMsg,
	})
	if err == nil {
		s.logger.Warn().Str("job_id", jobID).Str("error", errMsg).Msg("Job failed")
	}
	return job, err
}

// MarkDeleted flags a job deleted. In-flight work is not interrupted; the
// record stays for audit.
func (s *Service) MarkDeleted(ctx context.Context, jobID string) (*models.Job, error) {
	return s.Update(ctx, jobID, map[string]interface{}{
		"status": models.JobStatusDeleted,
	})
}

// OlderThan filters a job list down to records created before the cutoff.
func OlderThan(jobs []*models.Job, cutoff time.Time) []*models.Job {
	var old []*models.Job
	for _, job := range jobs {
		if job.CreatedAt.Before(cutoff) {
			old = append(old, job)
		}
	}
	return old
}
