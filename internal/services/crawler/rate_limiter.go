package crawler

import (
	"context"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter enforces a minimum delay between requests to the same
// domain. Different domains proceed independently.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	delay    time.Duration
}

// NewRateLimiter creates a limiter with the given per-domain delay.
func NewRateLimiter(delay time.Duration) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		delay:    delay,
	}
}

// Wait blocks until the domain's rate limit permits a request, or the
// context is cancelled.
func (rl *RateLimiter) Wait(ctx context.Context, rawURL string) error {
	if rl.delay <= 0 {
		return nil
	}
	domain := extractDomain(rawURL)
	if domain == "" {
		return nil
	}

	rl.mu.Lock()
	limiter, ok := rl.limiters[domain]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(rl.delay), 1)
		rl.limiters[domain] = limiter
	}
	rl.mu.Unlock()

	return limiter.Wait(ctx)
}

func extractDomain(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return parsed.Hostname()
}
