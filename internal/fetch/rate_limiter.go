package fetch

import (
	"context"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter paces requests per host. A zero delay disables pacing.
type RateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
	delay    time.Duration
}

// NewRateLimiter creates a new per-host rate limiter
func NewRateLimiter(defaultDelay time.Duration) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		delay:    defaultDelay,
	}
}

// Wait waits for permission to send a request to the host of urlStr
func (r *RateLimiter) Wait(ctx context.Context, urlStr string) error {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return err
	}

	limiter := r.getLimiter(parsedURL.Host)
	if limiter == nil {
		return ctx.Err()
	}
	return limiter.Wait(ctx)
}

// SetHostDelay sets a custom delay for a specific host
func (r *RateLimiter) SetHostDelay(host string, delay time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if delay <= 0 {
		delay = r.delay
	}
	if delay <= 0 {
		delete(r.limiters, host)
		return
	}
	r.limiters[host] = rate.NewLimiter(rate.Every(delay), 1)
}

// getLimiter gets or creates a rate limiter for a host
func (r *RateLimiter) getLimiter(host string) *rate.Limiter {
	r.mu.RLock()
	limiter, exists := r.limiters[host]
	r.mu.RUnlock()

	if exists {
		return limiter
	}
	if r.delay <= 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Check again in case another goroutine created it
	if limiter, exists := r.limiters[host]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(rate.Every(r.delay), 1)
	r.limiters[host] = limiter

	return limiter
}
