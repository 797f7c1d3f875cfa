// Package search builds index entries from pages and answers search queries
// against them.
package search

import "context"

// Store handles index persistence
type Store interface {
	// SaveEntry inserts or replaces the entry with the same URL and sets
	// entry.ID. A missing group is created.
	SaveEntry(ctx context.Context, entry *Entry) error
	EntryByURL(ctx context.Context, url string) (*Entry, error)
	RemoveEntryByURL(ctx context.Context, url string) (bool, error)
	Truncate(ctx context.Context) (int64, error)
	TruncateGroups(ctx context.Context, keys []string) (int64, error)
	SetGroupLabel(ctx context.Context, label GroupLabel) error

	Search(ctx context.Context, criteria Criteria) ([]Hit, error)
	RecordSearch(ctx context.Context, text string, results int) error
	TopSearches(ctx context.Context, limit int) ([]Stat, error)
}
