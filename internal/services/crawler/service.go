// -----------------------------------------------------------------------
// Crawler service - renders a URL (chromedp for JavaScript pages, plain
// HTTP otherwise), extracts title and links, converts the HTML to
// Markdown, and optionally captures a screenshot.
// -----------------------------------------------------------------------

package crawler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/wraith/internal/common"
	"github.com/ternarybob/wraith/internal/models"
)

// Service implements interfaces.Crawler.
type Service struct {
	config    common.CrawlerConfig
	client    *http.Client
	converter *md.Converter
	limiter   *RateLimiter
	logger    arbor.ILogger
}

// NewService creates a crawler with a per-domain rate limiter.
func NewService(config common.CrawlerConfig, logger arbor.ILogger) *Service {
	return &Service{
		config:    config,
		client:    &http.Client{Timeout: config.RequestTimeout},
		converter: md.NewConverter("", true, nil),
		limiter:   NewRateLimiter(config.RequestDelay),
		logger:    logger,
	}
}

// Crawl fetches one URL and extracts its content. A per-URL error is
// returned to the caller; peers in a batch are unaffected.
func (s *Service) Crawl(ctx context.Context, url string, opts models.CrawlOptions) (*models.CrawlResult, error) {
	start := time.Now()

	if err := s.limiter.Wait(ctx, url); err != nil {
		return nil, err
	}

	timeout := opts.Timeout(s.config.RequestTimeout)
	crawlCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var html string
	var screenshot []byte
	var err error

	useJS := opts.JavascriptEnabled && s.config.EnableJavaScript
	if useJS || opts.WantScreenshot() {
		html, screenshot, err = s.renderWithBrowser(crawlCtx, url, opts)
	} else {
		html, err = s.fetchHTML(crawlCtx, url)
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("url", url).Msg("Crawl failed")
		return nil, err
	}

	result := &models.CrawlResult{
		URL:        url,
		HTML:       html,
		Screenshot: screenshot,
		FetchedAt:  time.Now().UTC(),
	}

	doc, derr := goquery.NewDocumentFromReader(strings.NewReader(html))
	if derr == nil {
		result.Title = strings.TrimSpace(doc.Find("title").First().Text())
		result.Links = extractLinks(doc)
	}

	markdown, cerr := s.converter.ConvertString(html)
	if cerr != nil {
		return nil, fmt.Errorf("failed to convert content to markdown: %w", cerr)
	}
	result.Markdown = markdown
	result.Duration = time.Since(start)

	s.logger.Debug().
		Str("url", url).
		Str("title", result.Title).
		Int("links", len(result.Links)).
		Dur("duration", result.Duration).
		Msg("Crawl completed")
	return result, nil
}

// fetchHTML performs a plain HTTP GET for pages that don't need rendering.
func (s *Service) fetchHTML(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", s.config.UserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}
	return string(body), nil
}

func extractLinks(doc *goquery.Document) []string {
	seen := make(map[string]bool)
	var links []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
			return
		}
		if !seen[href] {
			seen[href] = true
			links = append(links, href)
		}
	})
	return links
}
