// Package fetch downloads pages for indexing and probes indexed URLs for
// liveness.
package fetch

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/http/httptrace"
	"time"

	"golang.org/x/net/html/charset"
)

// maxPageSize bounds a downloaded page. Longer bodies are cut and the page
// is marked Truncated.
const maxPageSize = 10 << 20

const maxRedirects = 10

// ErrNotHTML is returned for successful responses that declare a non-HTML
// content type.
var ErrNotHTML = errors.New("not an HTML document")

// Client downloads pages for the indexer.
type Client struct {
	client    *http.Client
	userAgent string
	username  string
	password  string
	headers   map[string]string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBasicAuth sends basic auth credentials with every download. Empty
// credentials are ignored.
func WithBasicAuth(username, password string) ClientOption {
	return func(c *Client) {
		c.username = username
		c.password = password
	}
}

// WithHeaders adds request headers. Later options override earlier ones.
func WithHeaders(headers map[string]string) ClientOption {
	return func(c *Client) {
		for k, v := range headers {
			c.headers[k] = v
		}
	}
}

// Timing breaks down how long a download took.
type Timing struct {
	DNSLookup    time.Duration
	Connect      time.Duration
	TLSHandshake time.Duration
	FirstByte    time.Duration
	Total        time.Duration
}

// Page is a downloaded document. HTML is always UTF-8.
type Page struct {
	URL         string // after redirects
	StatusCode  int
	ContentType string
	HTML        string
	Truncated   bool
	Timing      Timing
}

// NewClient creates a download client. timeout bounds the whole download
// including redirects.
func NewClient(userAgent string, timeout time.Duration, opts ...ClientOption) *Client {
	c := &Client{
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     90 * time.Second,
			},
			Timeout: timeout,
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
		userAgent: userAgent,
		headers:   make(map[string]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Download fetches url and converts the body to UTF-8 using the declared or
// sniffed charset. Non-2xx responses are returned without error and without
// content-type checks.
func (c *Client) Download(ctx context.Context, url string) (*Page, error) {
	var timing Timing
	var dnsStart, connectStart, tlsStart time.Time
	start := time.Now()

	trace := &httptrace.ClientTrace{
		DNSStart:             func(httptrace.DNSStartInfo) { dnsStart = time.Now() },
		DNSDone:              func(httptrace.DNSDoneInfo) { timing.DNSLookup = time.Since(dnsStart) },
		ConnectStart:         func(_, _ string) { connectStart = time.Now() },
		ConnectDone:          func(_, _ string, _ error) { timing.Connect = time.Since(connectStart) },
		TLSHandshakeStart:    func() { tlsStart = time.Now() },
		TLSHandshakeDone:     func(tls.ConnectionState, error) { timing.TLSHandshake = time.Since(tlsStart) },
		GotFirstResponseByte: func() { timing.FirstByte = time.Since(start) },
	}

	req, err := http.NewRequestWithContext(httptrace.WithClientTrace(ctx, trace), http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	if c.username != "" && c.password != "" {
		req.SetBasicAuth(c.username, c.password)
	}
	for name, value := range c.headers {
		req.Header.Set(name, value)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	page := &Page{
		URL:         resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 && !isHTML(page.ContentType) {
		return page, fmt.Errorf("%w: %s", ErrNotHTML, page.ContentType)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxPageSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if len(raw) > maxPageSize {
		raw = raw[:maxPageSize]
		page.Truncated = true
	}

	if len(raw) > 0 {
		decoded, err := charset.NewReader(bytes.NewReader(raw), page.ContentType)
		if err != nil {
			return nil, fmt.Errorf("failed to decode response body: %w", err)
		}
		body, err := io.ReadAll(decoded)
		if err != nil {
			return nil, fmt.Errorf("failed to decode response body: %w", err)
		}
		page.HTML = string(body)
	}
	timing.Total = time.Since(start)
	page.Timing = timing

	return page, nil
}

// Close closes idle connections
func (c *Client) Close() {
	c.client.CloseIdleConnections()
}

// isHTML reports whether contentType may hold an HTML document. A missing
// content type is accepted and left to sniffing.
func isHTML(contentType string) bool {
	if contentType == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil && !errors.Is(err, mime.ErrInvalidMediaParameter) {
		return false
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}
