package crawler

// browser.go drives headless Chrome for JavaScript rendering and
// screenshot capture.

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/wraith/internal/models"
)

// renderWithBrowser loads the URL in headless Chrome, waits for JavaScript
// to settle, and returns the rendered HTML plus an optional screenshot.
func (s *Service) renderWithBrowser(ctx context.Context, url string, opts models.CrawlOptions) (string, []byte, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx,
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.UserAgent(s.config.UserAgent),
		)...,
	)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	wait := s.config.JavaScriptWaitTime
	if opts.WaitSeconds > 0 {
		wait = time.Duration(opts.WaitSeconds) * time.Second
	}

	actions := []chromedp.Action{
		emulation.SetDeviceMetricsOverride(1280, 1024, 1.0, false),
		chromedp.Navigate(url),
		chromedp.Sleep(wait),
	}

	var html string
	actions = append(actions, chromedp.OuterHTML("html", &html))

	var screenshot []byte
	if opts.WantScreenshot() {
		if opts.ScreenshotMode == "full" {
			actions = append(actions, chromedp.FullScreenshot(&screenshot, 90))
		} else {
			actions = append(actions, chromedp.CaptureScreenshot(&screenshot))
		}
	}

	if err := chromedp.Run(browserCtx, actions...); err != nil {
		return "", nil, fmt.Errorf("browser render failed: %w", err)
	}
	return html, screenshot, nil
}
