package search

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
)

// memStore is an in-memory Store for tests.
type memStore struct {
	mu        sync.Mutex
	entries   map[string]*Entry
	nextID    int64
	labels    map[string]GroupLabel
	stats     map[string]*Stat
	criteria  []Criteria
	searchErr error
	statErr   error
}

func newMemStore() *memStore {
	return &memStore{
		entries: make(map[string]*Entry),
		labels:  make(map[string]GroupLabel),
		stats:   make(map[string]*Stat),
	}
}

func (m *memStore) SaveEntry(_ context.Context, entry *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.entries[entry.URL]; ok {
		entry.ID = existing.ID
	} else {
		m.nextID++
		entry.ID = m.nextID
	}
	stored := *entry
	m.entries[entry.URL] = &stored
	return nil
}

func (m *memStore) EntryByURL(_ context.Context, url string) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[url]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *entry
	return &cp, nil
}

func (m *memStore) RemoveEntryByURL(_ context.Context, url string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.entries[url]
	delete(m.entries, url)
	return ok, nil
}

func (m *memStore) Truncate(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := int64(len(m.entries))
	m.entries = make(map[string]*Entry)
	return n, nil
}

func (m *memStore) TruncateGroups(_ context.Context, keys []string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for url, entry := range m.entries {
		if slices.Contains(keys, entry.GroupKey) {
			delete(m.entries, url)
			n++
		}
	}
	return n, nil
}

func (m *memStore) SetGroupLabel(_ context.Context, label GroupLabel) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.labels[label.GroupKey+"/"+label.Locale] = label
	return nil
}

func (m *memStore) Search(_ context.Context, criteria Criteria) ([]Hit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.criteria = append(m.criteria, criteria)
	if m.searchErr != nil {
		return nil, m.searchErr
	}

	var hits []Hit
	for _, entry := range m.entries {
		if entry.Locale != criteria.Locale {
			continue
		}
		if len(criteria.GroupKeys) > 0 && !slices.Contains(criteria.GroupKeys, entry.GroupKey) {
			continue
		}
		matched := true
		for _, term := range criteria.Terms {
			term = strings.ToLower(term)
			if !strings.Contains(strings.ToLower(entry.Title+" "+entry.KeywordsStr+" "+entry.SearchableText), term) {
				matched = false
				break
			}
		}
		if matched {
			hits = append(hits, Hit{Entry: *entry})
		}
	}
	if len(hits) > criteria.Limit {
		hits = hits[:criteria.Limit]
	}
	return hits, nil
}

func (m *memStore) RecordSearch(_ context.Context, text string, results int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.statErr != nil {
		return m.statErr
	}
	stat, ok := m.stats[text]
	if !ok {
		stat = &Stat{Text: text}
		m.stats[text] = stat
	}
	stat.SearchAmount++
	stat.ResultAmount = results
	return nil
}

func (m *memStore) TopSearches(_ context.Context, limit int) ([]Stat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var stats []Stat
	for _, stat := range m.stats {
		stats = append(stats, *stat)
	}
	slices.SortFunc(stats, func(a, b Stat) int { return b.SearchAmount - a.SearchAmount })
	if len(stats) > limit {
		stats = stats[:limit]
	}
	return stats, nil
}

var errStoreDown = errors.New("store unavailable")
