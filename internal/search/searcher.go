package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hnm/search/internal/metrics"
)

// DefaultResultLimit is the number of hits returned when a query sets none.
const DefaultResultLimit = 10

// Query is a search request
type Query struct {
	Text       string
	Locale     string
	GroupKeys  []string
	Limit      int
	RecordStat bool
}

// Searcher answers queries against a Store.
type Searcher struct {
	store  Store
	limit  int
	logger *slog.Logger
}

// SearcherOption configures a Searcher.
type SearcherOption func(*Searcher)

// WithResultLimit sets the default number of hits.
func WithResultLimit(n int) SearcherOption {
	return func(s *Searcher) {
		if n > 0 {
			s.limit = n
		}
	}
}

// WithSearcherLogger sets a custom logger.
func WithSearcherLogger(logger *slog.Logger) SearcherOption {
	return func(s *Searcher) {
		s.logger = logger
	}
}

// NewSearcher creates a Searcher reading from store.
func NewSearcher(store Store, opts ...SearcherOption) *Searcher {
	s := &Searcher{
		store: store,
		limit: DefaultResultLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Search returns the entries in q.Locale matching every term of q.Text,
// entries with keyword matches first. Blank text yields no hits and is not
// recorded.
func (s *Searcher) Search(ctx context.Context, q Query) ([]Hit, error) {
	locale, err := CanonicalLocale(q.Locale)
	if err != nil {
		return nil, err
	}

	text := strings.TrimSpace(q.Text)
	if text == "" {
		return []Hit{}, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = s.limit
	}

	hits, err := s.store.Search(ctx, Criteria{
		Terms:     strings.Fields(text),
		Locale:    locale,
		GroupKeys: q.GroupKeys,
		Limit:     limit,
	})
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", text, err)
	}
	metrics.ObserveSearch(len(hits) > 0)

	if q.RecordStat {
		if err := s.store.RecordSearch(ctx, TruncateStatText(text), len(hits)); err != nil {
			s.logger.Warn("failed to record search statistics", "text", text, "error", err)
		}
	}

	s.logger.Debug("search", "text", text, "locale", locale, "hits", len(hits))
	return hits, nil
}

// TopSearches returns the most frequent search texts.
func (s *Searcher) TopSearches(ctx context.Context, limit int) ([]Stat, error) {
	if limit <= 0 {
		limit = s.limit
	}
	stats, err := s.store.TopSearches(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("load search statistics: %w", err)
	}
	return stats, nil
}
