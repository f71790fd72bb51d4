// -----------------------------------------------------------------------
// Storage contracts - implemented by the firestore/redis/memory (jobs,
// tasks) and gcs/file (artifacts) backends. Selection happens once at
// startup in storage.NewManager and is fixed for the process lifetime.
// -----------------------------------------------------------------------

package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/wraith/internal/models"
)

// JobListOptions filters and bounds a job listing.
type JobListOptions struct {
	Status models.JobStatus // empty = all statuses
	Limit  int              // 0 = backend default
}

// JobStore persists job records through their lifecycle.
//
// Update is last-writer-wins at the field level: concurrent updates from
// handlers may interleave, and callers must treat fields they don't set as
// preserved. Create is atomic - either the full record exists or none does.
type JobStore interface {
	Create(ctx context.Context, jobType models.JobType, metadata map[string]interface{}) (*models.Job, error)
	Get(ctx context.Context, jobID string) (*models.Job, error)
	Update(ctx context.Context, jobID string, patch map[string]interface{}) (*models.Job, error)

	// List returns jobs ordered by created_at descending, tie-broken by job_id.
	List(ctx context.Context, opts *JobListOptions) ([]*models.Job, error)
}

// TaskQueue schedules task records for execution at or after their
// execute_at time. Delivery is at-least-once; handlers must be idempotent.
//
// DequeueReady, Remove, Reschedule, Fail, and TaskTypes are local-mode
// operations used by the dispatcher. The cloud backend delivers tasks
// itself and returns ErrLocalOnly for them.
type TaskQueue interface {
	Enqueue(ctx context.Context, taskType string, payload map[string]interface{}, jobID string, delay time.Duration) (string, error)

	// DequeueReady returns up to max tasks with execute_at <= now for the
	// given type, in execute_at order. Returned tasks stay in the ready set
	// until removed or rescheduled.
	DequeueReady(ctx context.Context, taskType string, max int) ([]*models.Task, error)

	// Remove deletes a task from the ready set after successful delivery.
	Remove(ctx context.Context, taskType, taskID string) error

	// Reschedule persists the task (typically with an incremented retry
	// count) and re-adds it to the ready set scored by executeAt.
	Reschedule(ctx context.Context, task *models.Task, executeAt time.Time) error

	// Fail marks the task record failed and removes it from the ready set.
	// The owning job is not touched here; handlers surface job-level failure.
	Fail(ctx context.Context, task *models.Task, errMsg string) error

	// TaskTypes enumerates task types that currently have queued tasks.
	TaskTypes(ctx context.Context) ([]string, error)
}

// ArtifactStore reads and writes opaque blobs by logical path
// (<namespace>/<filename>). Paths are stable: the same namespace and
// filename always produce the same logical path, so batch artifact URLs
// can be announced before the artifacts exist.
type ArtifactStore interface {
	Save(ctx context.Context, data []byte, contentType, namespace, filename string) (string, error)
	Get(ctx context.Context, logicalPath string) ([]byte, error)
	Delete(ctx context.Context, logicalPath string) (bool, error)
	Exists(ctx context.Context, logicalPath string) (bool, error)
}
