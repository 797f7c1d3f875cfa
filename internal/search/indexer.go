package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"

	"github.com/hnm/search/internal/htmlscan"
	"github.com/hnm/search/internal/metrics"
)

// Document is the explicit content of a page to index
type Document struct {
	URL         string
	Locale      string
	GroupKey    string
	Title       string
	Description string
	Keywords    string
	Text        string

	// AllowedQueryParams extends the indexer's allow-list for this call.
	AllowedQueryParams []string
}

// HTMLOptions controls which metadata AddFromHTML takes from the page
type HTMLOptions struct {
	GroupKey           string
	AllowedQueryParams []string
	AutoTitle          bool
	AutoDescription    bool
	AutoKeywords       bool
}

// DefaultHTMLOptions takes title, description and keywords from the page.
func DefaultHTMLOptions() HTMLOptions {
	return HTMLOptions{
		AutoTitle:       true,
		AutoDescription: true,
		AutoKeywords:    true,
	}
}

// Indexer creates, replaces and removes index entries.
type Indexer struct {
	store         Store
	allowedParams []string
	logger        *slog.Logger
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithAllowedQueryParams sets the query parameters kept in entry URLs.
func WithAllowedQueryParams(params ...string) IndexerOption {
	return func(ix *Indexer) {
		ix.allowedParams = append(ix.allowedParams, params...)
	}
}

// WithIndexerLogger sets a custom logger.
func WithIndexerLogger(logger *slog.Logger) IndexerOption {
	return func(ix *Indexer) {
		ix.logger = logger
	}
}

// NewIndexer creates an Indexer writing to store.
func NewIndexer(store Store, opts ...IndexerOption) *Indexer {
	ix := &Indexer{store: store}
	for _, opt := range opts {
		opt(ix)
	}
	if ix.logger == nil {
		ix.logger = slog.Default()
	}
	return ix
}

// Add stores doc, replacing any entry with the same normalized URL.
func (ix *Indexer) Add(ctx context.Context, doc Document) (*Entry, error) {
	rawURL, err := NormalizeURL(doc.URL, ix.allowed(doc.AllowedQueryParams))
	if err != nil {
		return nil, err
	}
	locale, err := CanonicalLocale(doc.Locale)
	if err != nil {
		return nil, err
	}

	entry := &Entry{
		URL:            rawURL,
		Title:          strings.TrimSpace(doc.Title),
		Description:    strings.TrimSpace(doc.Description),
		KeywordsStr:    strings.TrimSpace(doc.Keywords),
		SearchableText: normalizeText(doc.Text),
		Locale:         locale,
		GroupKey:       strings.TrimSpace(doc.GroupKey),
	}
	if err := ix.store.SaveEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("save entry %s: %w", rawURL, err)
	}
	metrics.ObserveIndexOperation("add")

	ix.logger.Debug("indexed entry", "id", entry.ID, "url", entry.URL, "locale", entry.Locale)
	return entry, nil
}

// AddFromHTML scans document and stores the result for rawURL.
func (ix *Indexer) AddFromHTML(ctx context.Context, rawURL, document, locale string, opts HTMLOptions) (*Entry, error) {
	scan := htmlscan.Scan(document)

	doc := Document{
		URL:                rawURL,
		Locale:             locale,
		GroupKey:           opts.GroupKey,
		Text:               scan.SearchableStr,
		AllowedQueryParams: opts.AllowedQueryParams,
	}
	// Tag text is already decoded; attribute values are not.
	if opts.AutoTitle && scan.Title != nil {
		doc.Title = *scan.Title
	}
	if opts.AutoDescription && scan.Description != nil {
		doc.Description = html.UnescapeString(*scan.Description)
	}
	if opts.AutoKeywords && scan.KeywordsStr != nil {
		doc.Keywords = html.UnescapeString(*scan.KeywordsStr)
	}

	return ix.Add(ctx, doc)
}

// Remove deletes the entry for rawURL. An entry stored under exactly rawURL
// is removed first; otherwise rawURL is normalized with the configured
// allow-list plus allowedParams, as Add does. It reports whether an entry
// existed.
func (ix *Indexer) Remove(ctx context.Context, rawURL string, allowedParams ...string) (bool, error) {
	normalized, err := NormalizeURL(rawURL, ix.allowed(allowedParams))
	if err != nil {
		return false, err
	}

	if exact := strings.TrimSpace(rawURL); exact != normalized {
		removed, err := ix.RemoveExact(ctx, exact)
		if err != nil || removed {
			return removed, err
		}
	}
	return ix.RemoveExact(ctx, normalized)
}

// RemoveExact deletes the entry stored under exactly pageURL. No query
// parameters are dropped, so a URL that differs from the stored one in any
// way removes nothing.
func (ix *Indexer) RemoveExact(ctx context.Context, pageURL string) (bool, error) {
	removed, err := ix.store.RemoveEntryByURL(ctx, pageURL)
	if err != nil {
		return false, fmt.Errorf("remove entry %s: %w", pageURL, err)
	}
	if removed {
		metrics.ObserveIndexOperation("remove")
		ix.logger.Debug("removed entry", "url", pageURL)
	}
	return removed, nil
}

// Truncate deletes every entry.
func (ix *Indexer) Truncate(ctx context.Context) (int64, error) {
	n, err := ix.store.Truncate(ctx)
	if err != nil {
		return 0, fmt.Errorf("truncate index: %w", err)
	}
	metrics.ObserveIndexOperation("truncate")
	ix.logger.Info("truncated index", "removed", n)
	return n, nil
}

// TruncateGroups deletes every entry belonging to one of keys.
func (ix *Indexer) TruncateGroups(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	for _, key := range keys {
		if strings.TrimSpace(key) == "" {
			return 0, ErrEmptyGroupKey
		}
	}

	n, err := ix.store.TruncateGroups(ctx, keys)
	if err != nil {
		return 0, fmt.Errorf("truncate groups: %w", err)
	}
	metrics.ObserveIndexOperation("truncate")
	ix.logger.Info("truncated groups", "groups", keys, "removed", n)
	return n, nil
}

// SetGroupLabel sets how a group is presented in one locale.
func (ix *Indexer) SetGroupLabel(ctx context.Context, label GroupLabel) error {
	if strings.TrimSpace(label.GroupKey) == "" {
		return ErrEmptyGroupKey
	}
	locale, err := CanonicalLocale(label.Locale)
	if err != nil {
		return err
	}
	label.Locale = locale

	if err := ix.store.SetGroupLabel(ctx, label); err != nil {
		return fmt.Errorf("set group label: %w", err)
	}
	return nil
}

func (ix *Indexer) allowed(extra []string) []string {
	if len(extra) == 0 {
		return ix.allowedParams
	}
	allowed := make([]string, 0, len(ix.allowedParams)+len(extra))
	allowed = append(allowed, ix.allowedParams...)
	return append(allowed, extra...)
}

// normalizeText composes Unicode and collapses whitespace.
func normalizeText(text string) string {
	return strings.Join(strings.Fields(norm.NFC.String(text)), " ")
}
