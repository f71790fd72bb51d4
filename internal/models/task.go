package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxRetries bounds redelivery attempts before a task is failed.
// Overridable via MAX_RETRIES.
const DefaultMaxRetries = 3

// RetryBackoff is the linear backoff unit between redeliveries:
// execute_at = now + RetryBackoff * retry_count.
const RetryBackoff = 30 * time.Second

// TaskStatus tracks a task through the local queue. The cloud queue keeps
// its own delivery state, so status is only meaningful in local mode.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Task is one scheduled delivery of work against a job.
type Task struct {
	TaskID   string                 `json:"task_id"`
	TaskType string                 `json:"task_type"`
	JobID    string                 `json:"job_id"`
	Payload  map[string]interface{} `json:"payload"`

	CreatedAt  time.Time  `json:"created_at"`
	ExecuteAt  time.Time  `json:"execute_at"`
	RetryCount int        `json:"retry_count"`
	Status     TaskStatus `json:"status"`
	Error      string     `json:"error,omitempty"`
}

// NewTask creates a task scheduled to run after the given delay.
func NewTask(taskType, jobID string, payload map[string]interface{}, delay time.Duration) *Task {
	if payload == nil {
		payload = make(map[string]interface{})
	}
	now := time.Now().UTC()
	return &Task{
		TaskID:    "task_" + uuid.New().String(),
		TaskType:  taskType,
		JobID:     jobID,
		Payload:   payload,
		CreatedAt: now,
		ExecuteAt: now.Add(delay),
		Status:    TaskStatusPending,
	}
}

// NextRetryAt computes the linear-backoff schedule for the current retry
// count. Call after incrementing RetryCount so successive attempts are
// spaced 30s, 60s, 90s apart.
func (t *Task) NextRetryAt(now time.Time) time.Time {
	return now.Add(time.Duration(t.RetryCount) * RetryBackoff)
}

// ToJSON serializes the task for key/value storage.
func (t *Task) ToJSON() ([]byte, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal task: %w", err)
	}
	return data, nil
}

// TaskFromJSON deserializes a task from key/value storage.
func TaskFromJSON(data []byte) (*Task, error) {
	var task Task
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task: %w", err)
	}
	return &task, nil
}
