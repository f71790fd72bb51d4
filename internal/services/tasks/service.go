// -----------------------------------------------------------------------
// Task service - business wrapper over the selected task queue, carrying
// the retry policy: linear backoff 30s x retry_count up to MaxRetries.
// -----------------------------------------------------------------------

package tasks

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/wraith/internal/interfaces"
	"github.com/ternarybob/wraith/internal/models"
)

// Task type names routed to handlers at /tasks/<task_type>/<job_id>.
const (
	TypeProcessImage = "process-image"
	TypeBatchCrawl   = "batch-crawl"
	TypeCleanup      = "cleanup-old-jobs"
)

// Service provides task scheduling operations.
type Service struct {
	queue      interfaces.TaskQueue
	maxRetries int
	logger     arbor.ILogger
}

// NewService creates a task service over the given queue.
func NewService(queue interfaces.TaskQueue, maxRetries int, logger arbor.ILogger) *Service {
	if maxRetries <= 0 {
		maxRetries = models.DefaultMaxRetries
	}
	return &Service{queue: queue, maxRetries: maxRetries, logger: logger}
}

// MaxRetries returns the configured redelivery bound.
func (s *Service) MaxRetries() int {
	return s.maxRetries
}

// Enqueue schedules a task to run after the given delay.
func (s *Service) Enqueue(ctx context.Context, taskType string, payload map[string]interface{}, jobID string, delay time.Duration) (string, error) {
	taskID, err := s.queue.Enqueue(ctx, taskType, payload, jobID, delay)
	if err != nil {
		s.logger.Error().Err(err).
			Str("task_type", taskType).
			Str("job_id", jobID).
			Msg("Failed to enqueue task")
		return "", err
	}
	return taskID, nil
}

// DequeueReady returns tasks due for delivery (local mode).
func (s *Service) DequeueReady(ctx context.Context, taskType string, max int) ([]*models.Task, error) {
	return s.queue.DequeueReady(ctx, taskType, max)
}

// Remove drops a delivered task from the ready set (local mode).
func (s *Service) Remove(ctx context.Context, taskType, taskID string) error {
	return s.queue.Remove(ctx, taskType, taskID)
}

// TaskTypes enumerates task types with queued work (local mode).
func (s *Service) TaskTypes(ctx context.Context) ([]string, error) {
	return s.queue.TaskTypes(ctx)
}

// Retry applies the retry policy to a failed delivery: increments the
// retry count and either reschedules with linear backoff or, once
// MaxRetries is exhausted, marks the task failed and removes it from the
// ready set. Returns true when the task was rescheduled. The owning job
// is never mutated here - handlers surface job-level failure.
func (s *Service) Retry(ctx context.Context, task *models.Task, cause string) (bool, error) {
	task.RetryCount++
	if task.RetryCount <= s.maxRetries {
		executeAt := task.NextRetryAt(time.Now().UTC())
		if err := s.queue.Reschedule(ctx, task, executeAt); err != nil {
			return false, err
		}
		s.logger.Info().
			Str("task_id", task.TaskID).
			Str("task_type", task.TaskType).
			Int("retry_count", task.RetryCount).
			Str("execute_at", executeAt.Format(time.RFC3339)).
			Str("cause", cause).
			Msg("Task delivery failed - rescheduled")
		return true, nil
	}
	return false, s.queue.Fail(ctx, task, cause)
}
