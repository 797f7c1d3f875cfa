package search

import (
	"time"
	"unicode/utf8"
)

// MaxStatTextLength is the longest search text kept in statistics, in bytes.
const MaxStatTextLength = 255

// Entry represents one indexed page
type Entry struct {
	ID             int64
	URL            string
	Title          string
	Description    string
	KeywordsStr    string
	SearchableText string
	Locale         string
	GroupKey       string
	LastChecked    *time.Time // nil until the first successful health check
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// GroupLabel is the per-locale presentation of a group
type GroupLabel struct {
	GroupKey string
	Locale   string
	Label    string
	URL      string
}

// Hit is one search result
type Hit struct {
	Entry
	KeywordHits int
	TextHits    int
	GroupLabel  *GroupLabel // nil when the entry has no group or no label in the query locale
}

// Criteria is a normalized search as handed to the store
type Criteria struct {
	Terms     []string
	Locale    string
	GroupKeys []string
	Limit     int
}

// Stat counts how often a search text was used and what it last returned
type Stat struct {
	ID           int64
	Text         string
	SearchAmount int
	ResultAmount int
	LastSearched time.Time
}

// TruncateStatText shortens text to MaxStatTextLength bytes, ending in
// "..." when cut. It never splits a UTF-8 sequence.
func TruncateStatText(text string) string {
	if len(text) <= MaxStatTextLength {
		return text
	}

	cut := MaxStatTextLength - 3
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "..."
}
