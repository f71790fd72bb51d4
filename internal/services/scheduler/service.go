// -----------------------------------------------------------------------
// Scheduler service - enqueues the periodic cleanup job on a cron
// schedule. Disabled when no schedule is configured.
// -----------------------------------------------------------------------

package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/wraith/internal/models"
	"github.com/ternarybob/wraith/internal/services/jobs"
	"github.com/ternarybob/wraith/internal/services/tasks"
)

// Service owns the cron runner.
type Service struct {
	cron       *cron.Cron
	jobs       *jobs.Service
	tasks      *tasks.Service
	schedule   string
	daysToKeep int
	logger     arbor.ILogger
}

// NewService creates the scheduler. An empty schedule disables it.
func NewService(jobSvc *jobs.Service, taskSvc *tasks.Service, schedule string, daysToKeep int, logger arbor.ILogger) *Service {
	return &Service{
		cron:       cron.New(),
		jobs:       jobSvc,
		tasks:      taskSvc,
		schedule:   schedule,
		daysToKeep: daysToKeep,
		logger:     logger,
	}
}

// Start registers the cleanup entry and starts the cron runner.
func (s *Service) Start(ctx context.Context) error {
	if s.schedule == "" {
		s.logger.Debug().Msg("Cleanup schedule not configured - scheduler disabled")
		return nil
	}

	_, err := s.cron.AddFunc(s.schedule, func() {
		s.enqueueCleanup(ctx)
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info().
		Str("schedule", s.schedule).
		Int("days_to_keep", s.daysToKeep).
		Msg("Cleanup scheduler started")
	return nil
}

// Stop halts the cron runner.
func (s *Service) Stop() {
	s.cron.Stop()
}

func (s *Service) enqueueCleanup(ctx context.Context) {
	job, err := s.jobs.Create(ctx, models.JobTypeCleanup, map[string]interface{}{
		"days_to_keep": s.daysToKeep,
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to create scheduled cleanup job")
		return
	}

	payload := map[string]interface{}{"days_to_keep": s.daysToKeep}
	if _, err := s.tasks.Enqueue(ctx, tasks.TypeCleanup, payload, job.JobID, 0); err != nil {
		s.logger.Error().Err(err).Str("job_id", job.JobID).Msg("Failed to enqueue scheduled cleanup task")
	}
}
