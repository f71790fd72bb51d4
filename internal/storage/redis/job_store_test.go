package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/wraith/internal/interfaces"
	"github.com/ternarybob/wraith/internal/models"
)

func newTestClient(t *testing.T) *goredis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
}

func TestJobStoreCreateGetRoundTrip(t *testing.T) {
	store := NewJobStore(newTestClient(t), arbor.NewLogger())
	ctx := context.Background()

	metadata := map[string]interface{}{"title": "test"}
	created, err := store.Create(ctx, models.JobTypeImageProcessing, metadata)
	require.NoError(t, err)

	got, err := store.Get(ctx, created.JobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobTypeImageProcessing, got.JobType)
	assert.Equal(t, models.JobStatusPending, got.Status)
	assert.Equal(t, "test", got.Metadata["title"])
}

func TestJobStoreGetMissing(t *testing.T) {
	store := NewJobStore(newTestClient(t), arbor.NewLogger())

	_, err := store.Get(context.Background(), "job_missing")
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
}

func TestJobStoreUpdateMergesFields(t *testing.T) {
	store := NewJobStore(newTestClient(t), arbor.NewLogger())
	ctx := context.Background()

	job, err := store.Create(ctx, models.JobTypeBatchCrawl, map[string]interface{}{"urls": []string{"https://a"}})
	require.NoError(t, err)

	updated, err := store.Update(ctx, job.JobID, map[string]interface{}{
		"status": models.JobStatusProcessing,
	})
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusProcessing, updated.Status)
	assert.NotNil(t, updated.ProcessingStartedAt)

	// fields not in the patch are preserved
	urls, ok := updated.MetadataStringSlice("urls")
	require.True(t, ok)
	assert.Equal(t, []string{"https://a"}, urls)
}

func TestJobStoreTerminalStatusSticks(t *testing.T) {
	store := NewJobStore(newTestClient(t), arbor.NewLogger())
	ctx := context.Background()

	job, err := store.Create(ctx, models.JobTypeBatchCrawl, nil)
	require.NoError(t, err)

	_, err = store.Update(ctx, job.JobID, map[string]interface{}{"status": models.JobStatusFailed, "error": "boom"})
	require.NoError(t, err)

	after, err := store.Update(ctx, job.JobID, map[string]interface{}{"status": models.JobStatusProcessing})
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, after.Status)
	assert.Equal(t, "boom", after.Error)
	assert.NotNil(t, after.FailedAt)
}

func TestJobStoreListOrderAndFilter(t *testing.T) {
	store := NewJobStore(newTestClient(t), arbor.NewLogger())
	ctx := context.Background()

	first, err := store.Create(ctx, models.JobTypeBatchCrawl, nil)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	second, err := store.Create(ctx, models.JobTypeBatchCrawl, nil)
	require.NoError(t, err)

	_, err = store.Update(ctx, second.JobID, map[string]interface{}{"status": models.JobStatusCompleted})
	require.NoError(t, err)

	all, err := store.List(ctx, &interfaces.JobListOptions{Limit: 10})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second.JobID, all[0].JobID, "newest first")
	assert.Equal(t, first.JobID, all[1].JobID)

	completed, err := store.List(ctx, &interfaces.JobListOptions{Status: models.JobStatusCompleted, Limit: 10})
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, second.JobID, completed[0].JobID)

	limited, err := store.List(ctx, &interfaces.JobListOptions{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSortJobsTieBreak(t *testing.T) {
	ts := time.Now().UTC()
	a := &models.Job{JobID: "job_a", CreatedAt: ts}
	b := &models.Job{JobID: "job_b", CreatedAt: ts}

	jobs := []*models.Job{b, a}
	SortJobs(jobs)
	assert.Equal(t, "job_a", jobs[0].JobID, "equal timestamps tie-break by job_id")
}
