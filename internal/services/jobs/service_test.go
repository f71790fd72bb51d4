package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/wraith/internal/models"
	"github.com/ternarybob/wraith/internal/storage/memory"
)

func newTestService() *Service {
	return NewService(memory.NewJobStore(arbor.NewLogger()), arbor.NewLogger())
}

func TestServiceLifecycleTransitions(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	job, err := svc.Create(ctx, models.JobTypeBatchCrawl, map[string]interface{}{"urls": []string{"https://a"}})
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, job.Status)

	job, err = svc.MarkProcessing(ctx, job.JobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusProcessing, job.Status)
	require.NotNil(t, job.ProcessingStartedAt)

	job, err = svc.MarkCompleted(ctx, job.JobID, map[string]interface{}{"collated_url": "batch/x/collated.md"})
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, job.Status)
	assert.NotNil(t, job.CompletedAt)
	assert.NotEmpty(t, job.Results)
}

func TestServiceFailedRequiresError(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	job, err := svc.Create(ctx, models.JobTypeImageProcessing, nil)
	require.NoError(t, err)

	job, err = svc.MarkFailed(ctx, job.JobID, "ocr engine unreachable")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, job.Status)
	assert.Equal(t, "ocr engine unreachable", job.Error)
	assert.NotNil(t, job.FailedAt)
}

func TestServiceDeleteDoesNotResurrect(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	job, err := svc.Create(ctx, models.JobTypeBatchCrawl, nil)
	require.NoError(t, err)

	job, err = svc.MarkDeleted(ctx, job.JobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusDeleted, job.Status)

	job, err = svc.MarkCompleted(ctx, job.JobID, map[string]interface{}{"x": 1})
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusDeleted, job.Status, "terminal status must not change")
}

func TestOlderThan(t *testing.T) {
	now := time.Now().UTC()
	old := &models.Job{JobID: "job_old", CreatedAt: now.Add(-48 * time.Hour)}
	fresh := &models.Job{JobID: "job_new", CreatedAt: now}

	result := OlderThan([]*models.Job{old, fresh}, now.Add(-24*time.Hour))
	require.Len(t, result, 1)
	assert.Equal(t, "job_old", result[0].JobID)
}
