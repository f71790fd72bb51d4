package tasks

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/wraith/internal/storage/memory"
)

// iterate is exercised directly so tests stay independent of the loop's
// process-wide running guard.

func TestDispatcherRemovesDeliveredTask(t *testing.T) {
	var delivered atomic.Int32
	handler := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		delivered.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer handler.Close()

	svc := NewService(memory.NewTaskQueue(arbor.NewLogger()), 3, arbor.NewLogger())
	d := NewDispatcher(svc, handler.URL, 0, 0, 0, arbor.NewLogger())
	ctx := context.Background()

	_, err := svc.Enqueue(ctx, TypeBatchCrawl, map[string]interface{}{"k": "v"}, "job_1", 0)
	require.NoError(t, err)

	require.NoError(t, d.iterate(ctx))
	assert.Equal(t, int32(1), delivered.Load())

	ready, err := svc.DequeueReady(ctx, TypeBatchCrawl, 5)
	require.NoError(t, err)
	assert.Empty(t, ready, "delivered task must be removed from the ready set")
}

func TestDispatcherReschedulesOnHandlerError(t *testing.T) {
	handler := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer handler.Close()

	svc := NewService(memory.NewTaskQueue(arbor.NewLogger()), 3, arbor.NewLogger())
	d := NewDispatcher(svc, handler.URL, 0, 0, 0, arbor.NewLogger())
	ctx := context.Background()

	taskID, err := svc.Enqueue(ctx, TypeProcessImage, nil, "job_1", 0)
	require.NoError(t, err)

	require.NoError(t, d.iterate(ctx))

	// task was rescheduled 30s out, so it is no longer immediately ready
	ready, err := svc.DequeueReady(ctx, TypeProcessImage, 5)
	require.NoError(t, err)
	assert.Empty(t, ready)

	types, err := svc.TaskTypes(ctx)
	require.NoError(t, err)
	assert.Contains(t, types, TypeProcessImage, "task %s still queued for retry", taskID)
}

func TestDispatcherFailsTaskAfterMaxRetries(t *testing.T) {
	handler := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer handler.Close()

	svc := NewService(memory.NewTaskQueue(arbor.NewLogger()), 3, arbor.NewLogger())
	d := NewDispatcher(svc, handler.URL, 0, 0, 0, arbor.NewLogger())
	ctx := context.Background()

	_, err := svc.Enqueue(ctx, TypeBatchCrawl, nil, "job_1", 0)
	require.NoError(t, err)

	// exhaust the retry budget by redelivering the ready task directly
	for attempt := 0; attempt < 4; attempt++ {
		ready, err := svc.DequeueReady(ctx, TypeBatchCrawl, 5)
		require.NoError(t, err)
		if len(ready) == 0 {
			break
		}
		d.dispatch(ctx, ready[0])
		// pull the task back to "now" so the next attempt is ready
		if attempt < 3 {
			types, _ := svc.TaskTypes(ctx)
			if len(types) > 0 {
				ready[0].ExecuteAt = ready[0].CreatedAt
				require.NoError(t, svc.queue.Reschedule(ctx, ready[0], ready[0].CreatedAt))
			}
		}
	}

	types, err := svc.TaskTypes(ctx)
	require.NoError(t, err)
	assert.Empty(t, types, "exhausted task must leave the queue entirely")
}

func TestDispatcherStartGuard(t *testing.T) {
	svc := NewService(memory.NewTaskQueue(arbor.NewLogger()), 3, arbor.NewLogger())
	d := NewDispatcher(svc, "http://localhost:0", 0, 0, 0, arbor.NewLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.True(t, d.Start(ctx))
	assert.False(t, d.Start(ctx), "second start must be a no-op")
	d.Stop()

	// after a clean stop the guard is released
	require.True(t, d.Start(ctx))
	d.Stop()
}
