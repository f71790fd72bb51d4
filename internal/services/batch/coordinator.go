// -----------------------------------------------------------------------
// Batch coordinator - fans a URL list out to a bounded worker pool,
// aggregates per-URL outcomes, persists artifacts at predicted paths,
// and fires the completion webhook.
// -----------------------------------------------------------------------

package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/wraith/internal/interfaces"
	"github.com/ternarybob/wraith/internal/models"
	"github.com/ternarybob/wraith/internal/services/jobs"
	"github.com/ternarybob/wraith/internal/services/tasks"
	"golang.org/x/sync/semaphore"
)

// Coordinator orchestrates batch crawls end to end.
type Coordinator struct {
	jobs      *jobs.Service
	tasks     *tasks.Service
	artifacts interfaces.ArtifactStore
	crawler   interfaces.Crawler
	webhook   *Emitter
	workers   int
	logger    arbor.ILogger
}

// NewCoordinator creates a batch coordinator. workers bounds the per-batch
// pool: each batch runs W = min(len(urls), workers) crawls concurrently.
func NewCoordinator(jobSvc *jobs.Service, taskSvc *tasks.Service, artifacts interfaces.ArtifactStore, crawler interfaces.Crawler, webhook *Emitter, workers int, logger arbor.ILogger) *Coordinator {
	if workers <= 0 {
		workers = 5
	}
	return &Coordinator{
		jobs:      jobSvc,
		tasks:     taskSvc,
		artifacts: artifacts,
		crawler:   crawler,
		webhook:   webhook,
		workers:   workers,
		logger:    logger,
	}
}

// Validate rejects batch shapes the coordinator will not accept.
func Validate(req *models.BatchRequest) error {
	if len(req.URLs) == 0 {
		return fmt.Errorf("urls list is required")
	}
	if len(req.URLs) > models.MaxBatchURLs {
		return fmt.Errorf("too many urls: %d exceeds the maximum of %d per batch", len(req.URLs), models.MaxBatchURLs)
	}
	return nil
}

// PredictedResults builds the per-URL result stubs announced before any
// crawl runs. Artifact paths derive from (job_id, input index) and are
// authoritative: a failed URL's report path holds a stub report.
func PredictedResults(jobID string, urls []string, screenshot bool) []models.URLResult {
	results := make([]models.URLResult, len(urls))
	for i, url := range urls {
		results[i] = models.URLResult{
			URL:         url,
			Status:      models.URLStatusProcessing,
			MarkdownURL: models.BatchReportPath(jobID, i),
			JSONURL:     models.BatchDataPath(jobID, i),
		}
		if screenshot {
			results[i].ScreenshotURL = models.BatchScreenshotPath(jobID, i)
		}
	}
	return results
}

// jobMetadata snapshots the request into job metadata so the async handler
// can rebuild it on delivery.
func jobMetadata(req *models.BatchRequest) map[string]interface{} {
	metadata := map[string]interface{}{
		"urls":    req.URLs,
		"collate": req.Collate,
	}
	if req.CollateOptions != nil {
		metadata["collate_options"] = map[string]interface{}{
			"title":              req.CollateOptions.Title,
			"add_toc":            req.CollateOptions.AddTOC,
			"add_source_headers": req.CollateOptions.AddSourceHeaders,
		}
	}
	if req.Webhook != nil {
		headers := make(map[string]interface{}, len(req.Webhook.Headers))
		for k, v := range req.Webhook.Headers {
			headers[k] = v
		}
		metadata["webhook"] = map[string]interface{}{
			"url":     req.Webhook.URL,
			"headers": headers,
		}
	}
	options, _ := json.Marshal(req.CrawlOptions)
	metadata["crawl_options"] = string(options)
	return metadata
}

// RequestFromJob rebuilds the batch request from job metadata.
func RequestFromJob(job *models.Job) (*models.BatchRequest, error) {
	urls, ok := job.MetadataStringSlice("urls")
	if !ok || len(urls) == 0 {
		return nil, fmt.Errorf("job %s has no url list", job.JobID)
	}

	req := &models.BatchRequest{URLs: urls}
	req.Collate, _ = job.MetadataBool("collate")

	if raw, ok := job.Metadata["collate_options"].(map[string]interface{}); ok {
		opts := &models.CollateOptions{}
		opts.Title, _ = raw["title"].(string)
		opts.AddTOC, _ = raw["add_toc"].(bool)
		opts.AddSourceHeaders, _ = raw["add_source_headers"].(bool)
		req.CollateOptions = opts
	}
	if raw, ok := job.Metadata["webhook"].(map[string]interface{}); ok {
		hook := &models.WebhookConfig{Headers: make(map[string]string)}
		hook.URL, _ = raw["url"].(string)
		if headers, ok := raw["headers"].(map[string]interface{}); ok {
			for k, v := range headers {
				if s, ok := v.(string); ok {
					hook.Headers[k] = s
				}
			}
		}
		req.Webhook = hook
	}
	if raw, ok := job.MetadataString("crawl_options"); ok && raw != "" {
		json.Unmarshal([]byte(raw), &req.CrawlOptions)
	}
	return req, nil
}

// ExecuteSync runs a batch inline: create the job already processing, run
// it, and return the aggregate.
func (c *Coordinator) ExecuteSync(ctx context.Context, req *models.BatchRequest) (*models.BatchOutcome, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}

	job, err := c.jobs.Create(ctx, models.JobTypeBatchCrawl, jobMetadata(req))
	if err != nil {
		return nil, err
	}
	if _, err := c.jobs.MarkProcessing(ctx, job.JobID); err != nil {
		return nil, err
	}

	outcome, err := c.Run(ctx, job.JobID, req)
	if err != nil {
		if _, ferr := c.jobs.MarkFailed(ctx, job.JobID, err.Error()); ferr != nil {
			c.logger.Error().Err(ferr).Str("job_id", job.JobID).Msg("Failed to record batch failure")
		}
		return nil, err
	}
	return outcome, nil
}

// SubmitAsync creates a pending job, announces the predicted paths, and
// enqueues a single batch-crawl task referencing it.
func (c *Coordinator) SubmitAsync(ctx context.Context, req *models.BatchRequest) (string, []models.URLResult, error) {
	if err := Validate(req); err != nil {
		return "", nil, err
	}

	job, err := c.jobs.Create(ctx, models.JobTypeBatchCrawl, jobMetadata(req))
	if err != nil {
		return "", nil, err
	}

	if _, err := c.tasks.Enqueue(ctx, tasks.TypeBatchCrawl, map[string]interface{}{}, job.JobID, 0); err != nil {
		return "", nil, err
	}

	results := PredictedResults(job.JobID, req.URLs, req.WantScreenshot())
	c.logger.Info().
		Str("job_id", job.JobID).
		Int("urls", len(req.URLs)).
		Msg("Batch submitted")
	return job.JobID, results, nil
}

// Run executes the crawls for a batch job: bounded fan-out, per-URL
// artifact writes, optional collation, job completion, webhook. The job
// completes even when individual URLs fail; per-URL status carries the
// per-item outcome. Run only fails when the coordinator itself cannot
// finish, and then the caller marks the job failed.
func (c *Coordinator) Run(ctx context.Context, jobID string, req *models.BatchRequest) (*models.BatchOutcome, error) {
	n := len(req.URLs)
	results := PredictedResults(jobID, req.URLs, req.WantScreenshot())
	reports := make([][]byte, n) // successful markdown kept for collation, input order

	workers := c.workers
	if n < workers {
		workers = n
	}
	sem := semaphore.NewWeighted(int64(workers))
	var wg sync.WaitGroup

	started := time.Now()
	c.logger.Info().
		Str("job_id", jobID).
		Int("urls", n).
		Int("workers", workers).
		Msg("Batch crawl starting")

	for i, url := range req.URLs {
		if err := sem.Acquire(ctx, 1); err != nil {
			return nil, fmt.Errorf("batch cancelled: %w", err)
		}
		wg.Add(1)
		go func(i int, url string) {
			defer wg.Done()
			defer sem.Release(1)
			// indexes pre-assign artifact paths, so writers never race on
			// path selection; a failure here stays local to this URL
			c.crawlOne(ctx, jobID, i, url, req, &results[i], &reports[i])
		}(i, url)
	}
	wg.Wait()

	stats := models.BatchStats{TotalURLs: n}
	for i := range results {
		if results[i].Status == models.URLStatusCompleted {
			stats.Successful++
		} else {
			stats.Failed++
		}
	}

	outcome := &models.BatchOutcome{JobID: jobID, Results: results, Stats: stats}

	if req.Collate {
		collatedURL, err := c.writeCollated(ctx, jobID, req, results, reports)
		if err != nil {
			return nil, err
		}
		outcome.CollatedURL = collatedURL
	}

	jobResults := map[string]interface{}{
		"per_url": resultsToMaps(results),
		"stats": map[string]interface{}{
			"total_urls": stats.TotalURLs,
			"successful": stats.Successful,
			"failed":     stats.Failed,
		},
		"duration_ms": time.Since(started).Milliseconds(),
	}
	if outcome.CollatedURL != "" {
		jobResults["collated_url"] = outcome.CollatedURL
	}

	if _, err := c.jobs.MarkCompleted(ctx, jobID, jobResults); err != nil {
		return nil, err
	}

	// best-effort: a webhook failure never fails the job
	if req.Webhook != nil {
		c.webhook.Send(ctx, req.Webhook, &models.WebhookPayload{
			JobID:   jobID,
			Status:  string(models.JobStatusCompleted),
			Stats:   stats,
			Results: results,
		})
	}

	c.logger.Info().
		Str("job_id", jobID).
		Int("successful", stats.Successful).
		Int("failed", stats.Failed).
		Dur("duration", time.Since(started)).
		Msg("Batch crawl completed")
	return outcome, nil
}

// crawlOne processes one URL: crawl, write the report and data artifacts,
// record the outcome. On crawler error the report path receives a stub
// explaining the failure so the predicted path still materializes.
func (c *Coordinator) crawlOne(ctx context.Context, jobID string, i int, url string, req *models.BatchRequest, result *models.URLResult, report *[]byte) {
	namespace := fmt.Sprintf("batch/%s", jobID)

	crawled, err := c.crawler.Crawl(ctx, url, req.CrawlOptions)
	if err != nil {
		result.Status = models.URLStatusFailed
		result.Error = err.Error()
		stub := fmt.Sprintf("# Crawl failed\n\nURL: %s\n\nError: %s\n", url, err.Error())
		if _, werr := c.artifacts.Save(ctx, []byte(stub), "text/markdown", namespace, fmt.Sprintf("report_%d.md", i)); werr != nil {
			c.logger.Error().Err(werr).Str("url", url).Msg("Failed to write stub report")
		}
		return
	}

	if _, err := c.artifacts.Save(ctx, []byte(crawled.Markdown), "text/markdown", namespace, fmt.Sprintf("report_%d.md", i)); err != nil {
		result.Status = models.URLStatusFailed
		result.Error = fmt.Sprintf("failed to persist report: %s", err)
		return
	}

	data := map[string]interface{}{
		"url":                url,
		"title":              crawled.Title,
		"markdown":           crawled.Markdown,
		"links":              crawled.Links,
		"fetched_at":         crawled.FetchedAt.Format(time.RFC3339),
		"processing_time_ms": crawled.Duration.Milliseconds(),
	}
	encoded, _ := json.Marshal(data)
	if _, err := c.artifacts.Save(ctx, encoded, "application/json", namespace, fmt.Sprintf("data_%d.json", i)); err != nil {
		result.Status = models.URLStatusFailed
		result.Error = fmt.Sprintf("failed to persist crawl data: %s", err)
		return
	}

	if req.WantScreenshot() && len(crawled.Screenshot) > 0 {
		if _, err := c.artifacts.Save(ctx, crawled.Screenshot, "image/png", namespace, fmt.Sprintf("screenshot_%d.png", i)); err != nil {
			c.logger.Warn().Err(err).Str("url", url).Msg("Failed to persist screenshot")
		}
	}

	*report = []byte(crawled.Markdown)
	result.Status = models.URLStatusCompleted
}

func resultsToMaps(results []models.URLResult) []interface{} {
	out := make([]interface{}, len(results))
	for i, r := range results {
		entry := map[string]interface{}{
			"url":          r.URL,
			"status":       r.Status,
			"markdown_url": r.MarkdownURL,
			"json_url":     r.JSONURL,
		}
		if r.ScreenshotURL != "" {
			entry["screenshot_url"] = r.ScreenshotURL
		}
		if r.Error != "" {
			entry["error"] = r.Error
		}
		out[i] = entry
	}
	return out
}
