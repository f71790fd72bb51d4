package tasks

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/wraith/internal/models"
	"github.com/ternarybob/wraith/internal/services/jobs"
	"github.com/ternarybob/wraith/internal/storage/memory"
)

func newTestRegistry() (*Registry, *jobs.Service) {
	logger := arbor.NewLogger()
	jobSvc := jobs.NewService(memory.NewJobStore(logger), logger)
	return NewRegistry(jobSvc, logger), jobSvc
}

func TestHandleUnknownJob(t *testing.T) {
	registry, _ := newTestRegistry()
	registry.Register("noop", func(ctx context.Context, job *models.Job, payload map[string]interface{}) (map[string]interface{}, error) {
		return map[string]interface{}{}, nil
	})

	_, err := registry.Handle(context.Background(), "noop", "job_missing", nil)
	assert.ErrorIs(t, err, ErrUnknownJob)
}

func TestHandleUnknownTaskType(t *testing.T) {
	registry, _ := newTestRegistry()
	_, err := registry.Handle(context.Background(), "nonexistent", "job_1", nil)
	assert.ErrorIs(t, err, ErrUnknownTaskType)
}

func TestHandleSuccessCompletesJob(t *testing.T) {
	registry, jobSvc := newTestRegistry()
	ctx := context.Background()

	var sawStatus models.JobStatus
	registry.Register("work", func(ctx context.Context, job *models.Job, payload map[string]interface{}) (map[string]interface{}, error) {
		sawStatus = job.Status
		return map[string]interface{}{"report_path": "reports/r.md"}, nil
	})

	job, err := jobSvc.Create(ctx, models.JobTypeImageProcessing, nil)
	require.NoError(t, err)

	result, err := registry.Handle(ctx, "work", job.JobID, map[string]interface{}{})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, models.JobStatusProcessing, sawStatus, "handler runs after the pending->processing transition")

	stored, err := jobSvc.Get(ctx, job.JobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, stored.Status)
	assert.Equal(t, "reports/r.md", stored.Results["report_path"])
}

func TestHandleFailureMarksJobFailedButAnswersSuccessFalse(t *testing.T) {
	registry, jobSvc := newTestRegistry()
	ctx := context.Background()

	registry.Register("work", func(ctx context.Context, job *models.Job, payload map[string]interface{}) (map[string]interface{}, error) {
		return nil, fmt.Errorf("ocr extraction failed")
	})

	job, err := jobSvc.Create(ctx, models.JobTypeImageProcessing, nil)
	require.NoError(t, err)

	result, err := registry.Handle(ctx, "work", job.JobID, nil)
	require.NoError(t, err, "handler failures are conveyed in the body, not as transport errors")
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "ocr extraction failed")

	stored, err := jobSvc.Get(ctx, job.JobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, stored.Status)
	assert.NotNil(t, stored.FailedAt)
}

func TestHandleRedeliveryIsIdempotent(t *testing.T) {
	registry, jobSvc := newTestRegistry()
	ctx := context.Background()

	invocations := 0
	registry.Register("work", func(ctx context.Context, job *models.Job, payload map[string]interface{}) (map[string]interface{}, error) {
		invocations++
		return map[string]interface{}{"n": invocations}, nil
	})

	job, err := jobSvc.Create(ctx, models.JobTypeImageProcessing, nil)
	require.NoError(t, err)

	first, err := registry.Handle(ctx, "work", job.JobID, nil)
	require.NoError(t, err)
	second, err := registry.Handle(ctx, "work", job.JobID, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, invocations, "redelivery must not rerun the work")
	assert.True(t, first.Success)
	assert.True(t, second.Success)

	stored, err := jobSvc.Get(ctx, job.JobID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Results["n"], "redelivery yields the same final job state")
}
