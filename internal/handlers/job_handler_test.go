package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/wraith/internal/models"
	"github.com/ternarybob/wraith/internal/services/jobs"
	"github.com/ternarybob/wraith/internal/storage/memory"
)

func newJobHandlerEnv() (*JobHandler, *jobs.Service) {
	logger := arbor.NewLogger()
	jobSvc := jobs.NewService(memory.NewJobStore(logger), logger)
	return NewJobHandler(jobSvc, logger), jobSvc
}

func TestGetJobStatus(t *testing.T) {
	handler, jobSvc := newJobHandlerEnv()
	ctx := context.Background()

	job, err := jobSvc.Create(ctx, models.JobTypeBatchCrawl, map[string]interface{}{"urls": []string{"https://a"}})
	require.NoError(t, err)
	_, err = jobSvc.MarkProcessing(ctx, job.JobID)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/"+job.JobID, nil)
	rec := httptest.NewRecorder()
	handler.GetJobHandler(rec, req, job.JobID)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, job.JobID, body["job_id"])
	assert.Equal(t, "processing", body["status"])
	assert.Equal(t, "batch-crawl", body["job_type"])
	assert.NotEmpty(t, body["created_at"])
	assert.NotEmpty(t, body["processing_started_at"])
}

func TestGetJobNotFound(t *testing.T) {
	handler, _ := newJobHandlerEnv()

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/job_nope", nil)
	rec := httptest.NewRecorder()
	handler.GetJobHandler(rec, req, "job_nope")
	require.Equal(t, http.StatusNotFound, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["error"], "Job job_nope not found")
}

func TestListJobsFilterAndLimit(t *testing.T) {
	handler, jobSvc := newJobHandlerEnv()
	ctx := context.Background()

	a, err := jobSvc.Create(ctx, models.JobTypeBatchCrawl, nil)
	require.NoError(t, err)
	_, err = jobSvc.Create(ctx, models.JobTypeBatchCrawl, nil)
	require.NoError(t, err)
	_, err = jobSvc.MarkCompleted(ctx, a.JobID, map[string]interface{}{"x": 1})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/jobs?status=completed", nil)
	rec := httptest.NewRecorder()
	handler.ListJobsHandler(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, float64(1), body["count"])

	req = httptest.NewRequest(http.MethodGet, "/api/jobs?limit=1", nil)
	rec = httptest.NewRecorder()
	handler.ListJobsHandler(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	body = decodeBody(t, rec)
	assert.Equal(t, float64(1), body["count"])
}

func TestDeleteJobMarksDeleted(t *testing.T) {
	handler, jobSvc := newJobHandlerEnv()
	ctx := context.Background()

	job, err := jobSvc.Create(ctx, models.JobTypeBatchCrawl, nil)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodDelete, "/api/jobs/"+job.JobID, nil)
	rec := httptest.NewRecorder()
	handler.DeleteJobHandler(rec, req, job.JobID)
	require.Equal(t, http.StatusOK, rec.Code)

	stored, err := jobSvc.Get(ctx, job.JobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusDeleted, stored.Status)
	assert.NotNil(t, stored.DeletedAt)
}
