package crawler

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractLinks(t *testing.T) {
	html := `<html><body>
		<a href="https://a.example/page">A</a>
		<a href="/relative">R</a>
		<a href="#fragment">skip</a>
		<a href="javascript:void(0)">skip</a>
		<a href="https://a.example/page">duplicate</a>
	</body></html>`

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)

	links := extractLinks(doc)
	assert.Equal(t, []string{"https://a.example/page", "/relative"}, links)
}

func TestRateLimiterEnforcesDelay(t *testing.T) {
	limiter := NewRateLimiter(50 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, limiter.Wait(ctx, "https://example.com/a"))
	require.NoError(t, limiter.Wait(ctx, "https://example.com/b"))
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond, "same-domain requests are spaced")

	// a different domain is not throttled by the first
	start = time.Now()
	require.NoError(t, limiter.Wait(ctx, "https://other.example/a"))
	assert.Less(t, time.Since(start), 40*time.Millisecond)
}

func TestRateLimiterCancellation(t *testing.T) {
	limiter := NewRateLimiter(time.Hour)
	ctx := context.Background()

	require.NoError(t, limiter.Wait(ctx, "https://slow.example"))

	cancelled, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	err := limiter.Wait(cancelled, "https://slow.example")
	assert.Error(t, err, "wait must respect context cancellation")
}
