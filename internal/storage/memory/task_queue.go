package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/wraith/internal/interfaces"
	"github.com/ternarybob/wraith/internal/models"
)

// TaskQueue implements interfaces.TaskQueue on a mutex-guarded map.
// Dequeue scans for ready tasks; fine at fallback scale.
type TaskQueue struct {
	mu     sync.Mutex
	tasks  map[string]*models.Task // task_id -> task (pending only)
	logger arbor.ILogger
}

// NewTaskQueue creates an in-memory task queue.
func NewTaskQueue(logger arbor.ILogger) interfaces.TaskQueue {
	return &TaskQueue{
		tasks:  make(map[string]*models.Task),
		logger: logger,
	}
}

func (q *TaskQueue) Enqueue(ctx context.Context, taskType string, payload map[string]interface{}, jobID string, delay time.Duration) (string, error) {
	task := models.NewTask(taskType, jobID, payload, delay)

	q.mu.Lock()
	q.tasks[task.TaskID] = task
	q.mu.Unlock()

	q.logger.Debug().
		Str("task_id", task.TaskID).
		Str("task_type", taskType).
		Str("job_id", jobID).
		Msg("Task enqueued (in-memory)")
	return task.TaskID, nil
}

func (q *TaskQueue) DequeueReady(ctx context.Context, taskType string, max int) ([]*models.Task, error) {
	now := time.Now().UTC()

	q.mu.Lock()
	var ready []*models.Task
	for _, task := range q.tasks {
		if task.TaskType != taskType || task.Status != models.TaskStatusPending {
			continue
		}
		if task.ExecuteAt.After(now) {
			continue
		}
		clone := *task
		ready = append(ready, &clone)
	}
	q.mu.Unlock()

	// execute_at ascending, task_id tie-break for determinism
	sort.Slice(ready, func(i, j int) bool {
		if ready[i].ExecuteAt.Equal(ready[j].ExecuteAt) {
			return ready[i].TaskID < ready[j].TaskID
		}
		return ready[i].ExecuteAt.Before(ready[j].ExecuteAt)
	})

	if len(ready) > max {
		ready = ready[:max]
	}
	return ready, nil
}

func (q *TaskQueue) Remove(ctx context.Context, taskType, taskID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if task, ok := q.tasks[taskID]; ok {
		task.Status = models.TaskStatusCompleted
		delete(q.tasks, taskID)
	}
	return nil
}

func (q *TaskQueue) Reschedule(ctx context.Context, task *models.Task, executeAt time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	task.ExecuteAt = executeAt
	task.Status = models.TaskStatusPending
	clone := *task
	q.tasks[task.TaskID] = &clone
	return nil
}

func (q *TaskQueue) Fail(ctx context.Context, task *models.Task, errMsg string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	task.Status = models.TaskStatusFailed
	task.Error = errMsg
	delete(q.tasks, task.TaskID)

	q.logger.Warn().
		Str("task_id", task.TaskID).
		Int("retry_count", task.RetryCount).
		Str("error", errMsg).
		Msg("Task failed - retries exhausted")
	return nil
}

func (q *TaskQueue) TaskTypes(ctx context.Context) ([]string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	seen := make(map[string]bool)
	var types []string
	for _, task := range q.tasks {
		if !seen[task.TaskType] {
			seen[task.TaskType] = true
			types = append(types, task.TaskType)
		}
	}
	sort.Strings(types)
	return types, nil
}
