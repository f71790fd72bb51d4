package tasks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/wraith/internal/storage/memory"
)

func TestRetryPolicyExhaustion(t *testing.T) {
	queue := memory.NewTaskQueue(arbor.NewLogger())
	svc := NewService(queue, 3, arbor.NewLogger())
	ctx := context.Background()

	_, err := svc.Enqueue(ctx, TypeBatchCrawl, nil, "job_1", 0)
	require.NoError(t, err)

	ready, err := svc.DequeueReady(ctx, TypeBatchCrawl, 5)
	require.NoError(t, err)
	require.Len(t, ready, 1)
	task := ready[0]

	// three failures reschedule with growing backoff
	for attempt := 1; attempt <= 3; attempt++ {
		rescheduled, err := svc.Retry(ctx, task, "handler returned status 500")
		require.NoError(t, err)
		assert.True(t, rescheduled, "attempt %d should reschedule", attempt)
		assert.Equal(t, attempt, task.RetryCount)
	}

	// the fourth failure exhausts the policy and removes the task
	rescheduled, err := svc.Retry(ctx, task, "handler returned status 500")
	require.NoError(t, err)
	assert.False(t, rescheduled)

	ready, err = svc.DequeueReady(ctx, TypeBatchCrawl, 5)
	require.NoError(t, err)
	assert.Empty(t, ready, "failed task must leave the ready set")
}

func TestRetryBackoffSpacing(t *testing.T) {
	queue := memory.NewTaskQueue(arbor.NewLogger())
	svc := NewService(queue, 3, arbor.NewLogger())
	ctx := context.Background()

	_, err := svc.Enqueue(ctx, TypeProcessImage, nil, "job_1", 0)
	require.NoError(t, err)
	ready, err := svc.DequeueReady(ctx, TypeProcessImage, 5)
	require.NoError(t, err)
	require.Len(t, ready, 1)
	task := ready[0]

	var prev = task.ExecuteAt
	for attempt := 1; attempt <= 3; attempt++ {
		_, err := svc.Retry(ctx, task, "transient")
		require.NoError(t, err)
		assert.True(t, task.ExecuteAt.After(prev), "execute_at must strictly increase across retries")
		prev = task.ExecuteAt
	}
}

func TestMaxRetriesDefault(t *testing.T) {
	svc := NewService(memory.NewTaskQueue(arbor.NewLogger()), 0, arbor.NewLogger())
	assert.Equal(t, 3, svc.MaxRetries())
}
