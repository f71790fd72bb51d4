package interfaces

import (
	"context"

	"github.com/ternarybob/wraith/internal/models"
)

// Crawler renders a URL and extracts its content. The chromedp-backed
// implementation lives in internal/services/crawler.
type Crawler interface {
	Crawl(ctx context.Context, url string, opts models.CrawlOptions) (*models.CrawlResult, error)
}

// OCREngine extracts text from an image. The engine itself is an external
// collaborator; only its contract is owned here.
type OCREngine interface {
	ExtractText(ctx context.Context, image []byte, contentType string) (string, error)
}
