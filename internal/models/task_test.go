package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTaskScheduling(t *testing.T) {
	task := NewTask("batch-crawl", "job_1", nil, 10*time.Second)

	assert.Equal(t, TaskStatusPending, task.Status)
	assert.Equal(t, 0, task.RetryCount)
	assert.False(t, task.ExecuteAt.Before(task.CreatedAt), "execute_at must be >= created_at")
	assert.InDelta(t, 10, task.ExecuteAt.Sub(task.CreatedAt).Seconds(), 1)
}

func TestNextRetryAtStrictlyIncreasing(t *testing.T) {
	task := NewTask("process-image", "job_1", nil, 0)
	now := time.Now().UTC()

	var schedule []time.Time
	for i := 0; i < DefaultMaxRetries; i++ {
		task.RetryCount++
		schedule = append(schedule, task.NextRetryAt(now))
	}

	require.Len(t, schedule, 3)
	assert.Equal(t, now.Add(30*time.Second), schedule[0])
	assert.Equal(t, now.Add(60*time.Second), schedule[1])
	assert.Equal(t, now.Add(90*time.Second), schedule[2])
	for i := 1; i < len(schedule); i++ {
		assert.True(t, schedule[i].After(schedule[i-1]), "retry schedule must be strictly increasing")
	}
}

func TestTaskJSONRoundTrip(t *testing.T) {
	task := NewTask("cleanup-old-jobs", "job_9", map[string]interface{}{"days_to_keep": 7}, 0)

	data, err := task.ToJSON()
	require.NoError(t, err)

	decoded, err := TaskFromJSON(data)
	require.NoError(t, err)
	assert.Equal(t, task.TaskID, decoded.TaskID)
	assert.Equal(t, "cleanup-old-jobs", decoded.TaskType)
	assert.Equal(t, float64(7), decoded.Payload["days_to_keep"])
}
