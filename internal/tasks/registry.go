// -----------------------------------------------------------------------
// Task handler runtime - every handler runs the same protocol: load the
// job, transition pending -> processing, do the work, then mark the job
// completed or failed. Failures are conveyed in the result body, never as
// a transport error, so the queue's retry policy stays in control.
// -----------------------------------------------------------------------

package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/wraith/internal/interfaces"
	"github.com/ternarybob/wraith/internal/models"
	"github.com/ternarybob/wraith/internal/services/jobs"
)

// HandlerFunc performs the work for one task type. It receives the loaded
// job and the task payload and returns the results to store on success.
type HandlerFunc func(ctx context.Context, job *models.Job, payload map[string]interface{}) (map[string]interface{}, error)

// Result is the outcome the HTTP layer serializes back to the queue.
type Result struct {
	Success  bool                   `json:"success"`
	JobID    string                 `json:"job_id"`
	TaskType string                 `json:"task_type"`
	Error    string                 `json:"error,omitempty"`
	Results  map[string]interface{} `json:"results,omitempty"`
}

// ErrUnknownJob distinguishes "job not found" (a 404) from handler
// failures (which still answer 2xx).
var ErrUnknownJob = errors.New("unknown job")

// ErrUnknownTaskType is returned for unregistered task types.
var ErrUnknownTaskType = errors.New("unknown task type")

// Registry routes task types to handlers.
type Registry struct {
	handlers map[string]HandlerFunc
	jobs     *jobs.Service
	logger   arbor.ILogger
}

// NewRegistry creates an empty handler registry.
func NewRegistry(jobSvc *jobs.Service, logger arbor.ILogger) *Registry {
	return &Registry{
		handlers: make(map[string]HandlerFunc),
		jobs:     jobSvc,
		logger:   logger,
	}
}

// Register binds a task type to its handler.
func (r *Registry) Register(taskType string, handler HandlerFunc) {
	r.handlers[taskType] = handler
}

// Handle runs the common protocol for one delivery. Redelivery of an
// already-terminal job short-circuits to the stored outcome, which keeps
// at-least-once delivery idempotent at the job level.
func (r *Registry) Handle(ctx context.Context, taskType, jobID string, payload map[string]interface{}) (*Result, error) {
	handler, ok := r.handlers[taskType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTaskType, taskType)
	}

	job, err := r.jobs.Get(ctx, jobID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownJob, jobID)
		}
		return nil, err
	}

	result := &Result{JobID: jobID, TaskType: taskType}

	if job.Status.Terminal() {
		r.logger.Debug().
			Str("job_id", jobID).
			Str("status", string(job.Status)).
			Msg("Redelivery for terminal job - returning stored outcome")
		result.Success = job.Status == models.JobStatusCompleted || job.Status == models.JobStatusCleanedUp
		result.Error = job.Error
		result.Results = job.Results
		return result, nil
	}

	if job, err = r.jobs.MarkProcessing(ctx, jobID); err != nil {
		return nil, err
	}

	results, herr := handler(ctx, job, payload)
	if herr != nil {
		r.logger.Warn().Err(herr).
			Str("job_id", jobID).
			Str("task_type", taskType).
			Msg("Handler failed")
		if _, uerr := r.jobs.MarkFailed(ctx, jobID, herr.Error()); uerr != nil {
			r.logger.Error().Err(uerr).Str("job_id", jobID).Msg("Failed to record job failure")
		}
		result.Error = herr.Error()
		return result, nil
	}

	// batch-crawl completes the job itself inside the coordinator and
	// returns nil results; only finalize here when the handler returned results
	if results != nil {
		if _, uerr := r.jobs.MarkCompleted(ctx, jobID, results); uerr != nil {
			result.Error = uerr.Error()
			return result, nil
		}
		result.Results = results
	}
	result.Success = true
	return result, nil
}
