package fetch

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"time"
)

// Prober sends liveness probes. Redirects are not followed and TLS
// certificates are not verified.
type Prober struct {
	client    *http.Client
	userAgent string
	limiter   *RateLimiter
}

// NewProber creates a prober whose connect and total timeout are both
// timeout. limiter may be nil.
func NewProber(userAgent string, timeout time.Duration, limiter *RateLimiter) *Prober {
	dialer := &net.Dialer{Timeout: timeout}
	transport := &http.Transport{
		DialContext:         dialer.DialContext,
		TLSHandshakeTimeout: timeout,
		TLSClientConfig:     &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // probes check reachability only
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,
	}

	return &Prober{
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		userAgent: userAgent,
		limiter:   limiter,
	}
}

// Head sends a HEAD request to url and returns the response status code.
// Waiting for the host limiter does not count against the request timeout:
// a paced request is delayed, never cut short and reported as a failure.
func (p *Prober) Head(ctx context.Context, url string) (int, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx, url); err != nil {
			return 0, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("probe failed: %w", err)
	}
	_ = resp.Body.Close()

	return resp.StatusCode, nil
}

// Close closes idle connections
func (p *Prober) Close() {
	p.client.CloseIdleConnections()
}
