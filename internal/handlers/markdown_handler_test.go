package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/wraith/internal/models"
	"github.com/ternarybob/wraith/internal/services/batch"
	"github.com/ternarybob/wraith/internal/services/jobs"
	"github.com/ternarybob/wraith/internal/services/tasks"
	"github.com/ternarybob/wraith/internal/storage/file"
	"github.com/ternarybob/wraith/internal/storage/memory"
)

type stubCrawler struct{}

func (stubCrawler) Crawl(ctx context.Context, url string, opts models.CrawlOptions) (*models.CrawlResult, error) {
	return &models.CrawlResult{
		URL:       url,
		Title:     "Example",
		Markdown:  "# Example\n\nrendered content",
		FetchedAt: time.Now().UTC(),
	}, nil
}

func newMarkdownHandler(t *testing.T) *MarkdownHandler {
	t.Helper()
	logger := arbor.NewLogger()

	artifacts, err := file.NewArtifactStore(t.TempDir(), logger)
	require.NoError(t, err)
	t.Cleanup(func() { artifacts.Close() })

	jobSvc := jobs.NewService(memory.NewJobStore(logger), logger)
	taskSvc := tasks.NewService(memory.NewTaskQueue(logger), 3, logger)
	emitter := batch.NewEmitter("", time.Second, logger)
	coordinator := batch.NewCoordinator(jobSvc, taskSvc, artifacts, stubCrawler{}, emitter, 5, logger)

	return NewMarkdownHandler(coordinator, stubCrawler{}, logger)
}

func postJSON(t *testing.T, handler http.HandlerFunc, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	encoded, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/markdown", bytes.NewReader(encoded))
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestLegacySingleURL(t *testing.T) {
	handler := newMarkdownHandler(t)

	rec := postJSON(t, handler.SubmitHandler, map[string]interface{}{"url": "https://example.com"})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "https://example.com", body["url"])
	assert.NotEmpty(t, body["markdown"])
	assert.NotContains(t, body, "job_id", "legacy shape carries no job")
}

func TestBatchSyncOfTwo(t *testing.T) {
	handler := newMarkdownHandler(t)

	rec := postJSON(t, handler.SubmitHandler, map[string]interface{}{
		"urls":  []string{"https://a", "https://b"},
		"async": false,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "batch_sync", body["mode"])

	results := body["results"].([]interface{})
	require.Len(t, results, 2)

	jobID := body["job_id"].(string)
	first := results[0].(map[string]interface{})
	assert.Equal(t, fmt.Sprintf("batch/%s/report_0.md", jobID), first["markdown_url"])
	assert.Equal(t, "completed", first["status"])
}

func TestBatchAsyncWithCollation(t *testing.T) {
	handler := newMarkdownHandler(t)

	rec := postJSON(t, handler.SubmitHandler, map[string]interface{}{
		"urls":            []string{"https://u0", "https://u1", "https://u2", "https://u3"},
		"async":           true,
		"collate":         true,
		"collate_options": map[string]interface{}{"title": "Docs"},
	})
	require.Equal(t, http.StatusAccepted, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "batch_async", body["mode"])

	jobID := body["job_id"].(string)
	require.NotEmpty(t, jobID)
	assert.Equal(t, "/api/jobs/"+jobID, body["status_url"])
	assert.Equal(t, fmt.Sprintf("batch/%s/collated.md", jobID), body["collated_url"])

	results := body["results"].([]interface{})
	require.Len(t, results, 4)
	for i, entry := range results {
		r := entry.(map[string]interface{})
		assert.Equal(t, "processing", r["status"])
		assert.Equal(t, fmt.Sprintf("batch/%s/report_%d.md", jobID, i), r["markdown_url"])
		assert.Equal(t, fmt.Sprintf("batch/%s/data_%d.json", jobID, i), r["json_url"])
	}
}

func TestBatchCapViolation(t *testing.T) {
	handler := newMarkdownHandler(t)

	urls := make([]string, 51)
	for i := range urls {
		urls[i] = fmt.Sprintf("https://example.com/%d", i)
	}
	rec := postJSON(t, handler.SubmitHandler, map[string]interface{}{"urls": urls})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["error"], "50")
}

func TestMalformedBody(t *testing.T) {
	handler := newMarkdownHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/markdown", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	handler.SubmitHandler(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMissingURLAndURLs(t *testing.T) {
	handler := newMarkdownHandler(t)

	rec := postJSON(t, handler.SubmitHandler, map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
