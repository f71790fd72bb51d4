// -----------------------------------------------------------------------
// Batch request/response shapes for the /api/markdown endpoint
// -----------------------------------------------------------------------

package models

import (
	"fmt"
	"time"
)

// MaxBatchURLs caps the URL list of a single batch submission.
const MaxBatchURLs = 50

// CrawlOptions are per-crawl settings forwarded from the request to the
// crawler. Unknown request fields are dropped, known ones travel typed.
type CrawlOptions struct {
	JavascriptEnabled bool   `json:"javascript_enabled"`
	ScreenshotMode    string `json:"screenshot_mode,omitempty"` // "off" (default), "top", "full"
	TimeoutSeconds    int    `json:"timeout,omitempty"`
	WaitSeconds       int    `json:"wait,omitempty"` // post-render settle time for JS pages
	OnlyMainContent   bool   `json:"only_main_content,omitempty"`
}

// Timeout returns the per-crawl deadline, or the fallback when unset.
func (o CrawlOptions) Timeout(fallback time.Duration) time.Duration {
	if o.TimeoutSeconds > 0 {
		return time.Duration(o.TimeoutSeconds) * time.Second
	}
	return fallback
}

// WantScreenshot reports whether a screenshot artifact should be captured.
func (o CrawlOptions) WantScreenshot() bool {
	return o.ScreenshotMode != "" && o.ScreenshotMode != "off"
}

// CollateOptions shape the optional collated.md artifact.
type CollateOptions struct {
	Title            string `json:"title,omitempty"`
	AddTOC           bool   `json:"add_toc,omitempty"`
	AddSourceHeaders bool   `json:"add_source_headers,omitempty"`
}

// WebhookConfig is the caller-supplied completion callback.
type WebhookConfig struct {
	URL     string            `json:"url" validate:"required,url"`
	Headers map[string]string `json:"headers,omitempty"`
}

// BatchRequest is the body of POST /api/markdown. Either URL (legacy
// single-crawl shape) or URLs (batch shape) must be set.
type BatchRequest struct {
	URL  string   `json:"url,omitempty"`
	URLs []string `json:"urls,omitempty" validate:"omitempty,min=1,max=50,dive,required"`

	// Async defaults to true for the batch shape.
	Async          *bool           `json:"async,omitempty"`
	Collate        bool            `json:"collate,omitempty"`
	CollateOptions *CollateOptions `json:"collate_options,omitempty"`
	Webhook        *WebhookConfig  `json:"webhook,omitempty"`

	CrawlOptions
}

// IsAsync resolves the async flag with its default.
func (r *BatchRequest) IsAsync() bool {
	if r.Async == nil {
		return true
	}
	return *r.Async
}

// IsBatch reports whether the request uses the batch shape.
func (r *BatchRequest) IsBatch() bool {
	return len(r.URLs) > 0
}

// URLResultStatus values for per-URL outcomes.
const (
	URLStatusProcessing = "processing"
	URLStatusCompleted  = "completed"
	URLStatusFailed     = "failed"
)

// URLResult is the per-URL outcome of a batch. The artifact paths are
// predicted from (job_id, index) before the crawl runs and never change.
type URLResult struct {
	URL           string `json:"url"`
	Status        string `json:"status"`
	MarkdownURL   string `json:"markdown_url"`
	JSONURL       string `json:"json_url"`
	ScreenshotURL string `json:"screenshot_url,omitempty"`
	Error         string `json:"error,omitempty"`
}

// BatchStats aggregates per-URL outcomes for job results and webhooks.
type BatchStats struct {
	TotalURLs  int `json:"total_urls"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

// BatchOutcome is what a completed batch run yields.
type BatchOutcome struct {
	JobID       string      `json:"job_id"`
	Results     []URLResult `json:"results"`
	Stats       BatchStats  `json:"stats"`
	CollatedURL string      `json:"collated_url,omitempty"`
}

// Predicted artifact paths. Filenames derive from the job id and the URL's
// input-order index, never from random ids, so batch URLs can be announced
// before any crawl finishes.

// BatchReportPath is the markdown artifact path for URL index i.
func BatchReportPath(jobID string, i int) string {
	return fmt.Sprintf("batch/%s/report_%d.md", jobID, i)
}

// BatchDataPath is the JSON artifact path for URL index i.
func BatchDataPath(jobID string, i int) string {
	return fmt.Sprintf("batch/%s/data_%d.json", jobID, i)
}

// BatchScreenshotPath is the screenshot artifact path for URL index i.
func BatchScreenshotPath(jobID string, i int) string {
	return fmt.Sprintf("batch/%s/screenshot_%d.png", jobID, i)
}

// BatchCollatedPath is the collated markdown artifact path.
func BatchCollatedPath(jobID string) string {
	return fmt.Sprintf("batch/%s/collated.md", jobID)
}
