// -----------------------------------------------------------------------
// Redis-backed task queue - per task type an ordered set
// task_queue:<task_type> scored by execute_at as a Unix timestamp, plus
// task:<task_id> holding the serialized task record.
// -----------------------------------------------------------------------

package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/wraith/internal/interfaces"
	"github.com/ternarybob/wraith/internal/models"
)

const (
	taskKeyPrefix  = "task:"
	queueKeyPrefix = "task_queue:"
)

// TaskQueue implements interfaces.TaskQueue on a Redis connection.
type TaskQueue struct {
	client *goredis.Client
	logger arbor.ILogger
}

// NewTaskQueue creates a Redis task queue.
func NewTaskQueue(client *goredis.Client, logger arbor.ILogger) interfaces.TaskQueue {
	return &TaskQueue{client: client, logger: logger}
}

func taskKey(taskID string) string {
	return taskKeyPrefix + taskID
}

func queueKey(taskType string) string {
	return queueKeyPrefix + taskType
}

func (q *TaskQueue) Enqueue(ctx context.Context, taskType string, payload map[string]interface{}, jobID string, delay time.Duration) (string, error) {
	task := models.NewTask(taskType, jobID, payload, delay)

	if err := q.saveTask(ctx, task); err != nil {
		return "", err
	}
	if err := q.client.ZAdd(ctx, queueKey(taskType), goredis.Z{
		Score:  float64(task.ExecuteAt.Unix()),
		Member: task.TaskID,
	}).Err(); err != nil {
		return "", fmt.Errorf("failed to enqueue task: %w", err)
	}

	q.logger.Debug().
		Str("task_id", task.TaskID).
		Str("task_type", taskType).
		Str("job_id", jobID).
		Dur("delay", delay).
		Msg("Task enqueued")
	return task.TaskID, nil
}

func (q *TaskQueue) DequeueReady(ctx context.Context, taskType string, max int) ([]*models.Task, error) {
	now := time.Now().UTC().Unix()
	ids, err := q.client.ZRangeByScore(ctx, queueKey(taskType), &goredis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now, 10),
		Count: int64(max),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to range task queue %s: %w", taskType, err)
	}

	tasks := make([]*models.Task, 0, len(ids))
	for _, id := range ids {
		data, err := q.client.Get(ctx, taskKey(id)).Bytes()
		if err == goredis.Nil {
			// record gone but membership survived; drop the orphan
			q.client.ZRem(ctx, queueKey(taskType), id)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load task %s: %w", id, err)
		}
		task, err := models.TaskFromJSON(data)
		if err != nil {
			q.logger.Warn().Err(err).Str("task_id", id).Msg("Skipping undecodable task record")
			continue
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

func (q *TaskQueue) Remove(ctx context.Context, taskType, taskID string) error {
	if err := q.client.ZRem(ctx, queueKey(taskType), taskID).Err(); err != nil {
		return fmt.Errorf("failed to remove task %s: %w", taskID, err)
	}
	// keep the task record with completed status for inspection
	data, err := q.client.Get(ctx, taskKey(taskID)).Bytes()
	if err == nil {
		if task, derr := models.TaskFromJSON(data); derr == nil {
			task.Status = models.TaskStatusCompleted
			q.saveTask(ctx, task)
		}
	}
	return nil
}

func (q *TaskQueue) Reschedule(ctx context.Context, task *models.Task, executeAt time.Time) error {
	task.ExecuteAt = executeAt
	task.Status = models.TaskStatusPending

	if err := q.saveTask(ctx, task); err != nil {
		return err
	}
	if err := q.client.ZAdd(ctx, queueKey(task.TaskType), goredis.Z{
		Score:  float64(executeAt.Unix()),
		Member: task.TaskID,
	}).Err(); err != nil {
		return fmt.Errorf("failed to reschedule task %s: %w", task.TaskID, err)
	}

	q.logger.Debug().
		Str("task_id", task.TaskID).
		Int("retry_count", task.RetryCount).
		Str("execute_at", executeAt.Format(time.RFC3339)).
		Msg("Task rescheduled")
	return nil
}

func (q *TaskQueue) Fail(ctx context.Context, task *models.Task, errMsg string) error {
	task.Status = models.TaskStatusFailed
	task.Error = errMsg

	if err := q.saveTask(ctx, task); err != nil {
		return err
	}
	if err := q.client.ZRem(ctx, queueKey(task.TaskType), task.TaskID).Err(); err != nil {
		return fmt.Errorf("failed to remove failed task %s: %w", task.TaskID, err)
	}

	q.logger.Warn().
		Str("task_id", task.TaskID).
		Str("task_type", task.TaskType).
		Int("retry_count", task.RetryCount).
		Str("error", errMsg).
		Msg("Task failed - retries exhausted")
	return nil
}

func (q *TaskQueue) TaskTypes(ctx context.Context) ([]string, error) {
	keys, err := q.client.Keys(ctx, queueKeyPrefix+"*").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to scan queue namespace: %w", err)
	}
	types := make([]string, 0, len(keys))
	for _, key := range keys {
		types = append(types, strings.TrimPrefix(key, queueKeyPrefix))
	}
	return types, nil
}

func (q *TaskQueue) saveTask(ctx context.Context, task *models.Task) error {
	data, err := task.ToJSON()
	if err != nil {
		return err
	}
	if err := q.client.Set(ctx, taskKey(task.TaskID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save task %s: %w", task.TaskID, err)
	}
	return nil
}
