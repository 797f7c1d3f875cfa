// Package storage provides data persistence for the search index.
// It implements SQLite-based storage for entries, groups, statistics and
// health-check bookkeeping.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hnm/search/internal/healthcheck"
	"github.com/hnm/search/internal/search"
	// SQLite database driver (CGO-free)
	_ "modernc.org/sqlite"
)

// SQLiteStorage implements search.Store and healthcheck.Store using SQLite
type SQLiteStorage struct {
	db  *sql.DB
	now func() time.Time
}

var (
	_ search.Store      = (*SQLiteStorage)(nil)
	_ healthcheck.Store = (*SQLiteStorage)(nil)
)

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool - single connection prevents lock conflicts
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)

	storage := &SQLiteStorage{db: db, now: time.Now}

	if err := storage.InitSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

// InitSchema creates the database schema
func (s *SQLiteStorage) InitSchema() error {
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -64000", // 64MB cache
		"PRAGMA temp_store = MEMORY",
		"PRAGMA busy_timeout = 30000", // 30 second timeout for locks
	}

	for _, pragma := range pragmas {
		if _, err := s.db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute pragma %s: %w", pragma, err)
		}
	}

	if _, err := s.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable
func (s *SQLiteStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// SaveEntry inserts the entry or replaces the one with the same URL.
// The last-checked time of a replaced entry is kept.
func (s *SQLiteStorage) SaveEntry(ctx context.Context, entry *search.Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if entry.GroupKey != "" {
		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO search_group (key) VALUES (?)", entry.GroupKey,
		); err != nil {
			return fmt.Errorf("failed to create group %s: %w", entry.GroupKey, err)
		}
	}

	now := s.now().UTC()
	err = tx.QueryRowContext(ctx, `
		INSERT INTO search_entry (
			url_str, title, description, keywords_str, searchable_text,
			locale, group_key, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(url_str) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			keywords_str = excluded.keywords_str,
			searchable_text = excluded.searchable_text,
			locale = excluded.locale,
			group_key = excluded.group_key,
			updated_at = excluded.updated_at
		RETURNING id`,
		entry.URL,
		nullString(entry.Title),
		nullString(entry.Description),
		nullString(entry.KeywordsStr),
		entry.SearchableText,
		entry.Locale,
		nullString(entry.GroupKey),
		now,
		now,
	).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("failed to save entry %s: %w", entry.URL, err)
	}

	if err := tx.QueryRowContext(ctx,
		"SELECT created_at FROM search_entry WHERE id = ?", entry.ID,
	).Scan(&entry.CreatedAt); err != nil {
		return fmt.Errorf("failed to read entry %d: %w", entry.ID, err)
	}
	entry.UpdatedAt = now

	return tx.Commit()
}

const entryColumns = `
	e.id, e.url_str, e.title, e.description, e.keywords_str, e.searchable_text,
	e.locale, e.group_key, e.last_checked, e.created_at, e.updated_at`

// EntryByURL returns the entry for url or search.ErrNotFound
func (s *SQLiteStorage) EntryByURL(ctx context.Context, url string) (*search.Entry, error) {
	row := s.db.QueryRowContext(ctx, "SELECT"+entryColumns+" FROM search_entry e WHERE e.url_str = ?", url)
	return scanEntry(row)
}

// EntryByID returns the entry with id or search.ErrNotFound
func (s *SQLiteStorage) EntryByID(ctx context.Context, id int64) (*search.Entry, error) {
	row := s.db.QueryRowContext(ctx, "SELECT"+entryColumns+" FROM search_entry e WHERE e.id = ?", id)
	return scanEntry(row)
}

// RemoveEntry deletes the entry with id and reports whether it existed
func (s *SQLiteStorage) RemoveEntry(ctx context.Context, id int64) (bool, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM search_entry WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("failed to remove entry %d: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return n > 0, nil
}

// RemoveEntryByURL deletes the entry for url and reports whether it existed
func (s *SQLiteStorage) RemoveEntryByURL(ctx context.Context, url string) (bool, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM search_entry WHERE url_str = ?", url)
	if err != nil {
		return false, fmt.Errorf("failed to remove entry %s: %w", url, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return n > 0, nil
}

// Truncate deletes all entries
func (s *SQLiteStorage) Truncate(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM search_entry")
	if err != nil {
		return 0, fmt.Errorf("failed to truncate entries: %w", err)
	}
	return result.RowsAffected()
}

// TruncateGroups deletes all entries belonging to one of keys
func (s *SQLiteStorage) TruncateGroups(ctx context.Context, keys []string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}

	args := make([]any, len(keys))
	for i, key := range keys {
		args[i] = key
	}
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM search_entry WHERE group_key IN ("+placeholders(len(keys))+")", args...)
	if err != nil {
		return 0, fmt.Errorf("failed to truncate groups: %w", err)
	}
	return result.RowsAffected()
}

// SetGroupLabel creates the group if needed and sets its label for a locale
func (s *SQLiteStorage) SetGroupLabel(ctx context.Context, label search.GroupLabel) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		"INSERT OR IGNORE INTO search_group (key) VALUES (?)", label.GroupKey,
	); err != nil {
		return fmt.Errorf("failed to create group %s: %w", label.GroupKey, err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO search_group_t (group_key, locale, label, url_str)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(group_key, locale) DO UPDATE SET
			label = excluded.label,
			url_str = excluded.url_str`,
		label.GroupKey, label.Locale, nullString(label.Label), nullString(label.URL),
	); err != nil {
		return fmt.Errorf("failed to save group label %s/%s: %w", label.GroupKey, label.Locale, err)
	}

	return tx.Commit()
}

// GroupLabel returns the label of a group in locale or search.ErrNotFound
func (s *SQLiteStorage) GroupLabel(ctx context.Context, groupKey, locale string) (*search.GroupLabel, error) {
	label := search.GroupLabel{GroupKey: groupKey, Locale: locale}
	var text, url sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT label, url_str FROM search_group_t WHERE group_key = ? AND locale = ?", groupKey, locale,
	).Scan(&text, &url)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, search.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group label: %w", err)
	}
	label.Label = text.String
	label.URL = url.String
	return &label, nil
}

// Search returns entries matching every term, keyword matches first
func (s *SQLiteStorage) Search(ctx context.Context, criteria search.Criteria) ([]search.Hit, error) {
	if len(criteria.Terms) == 0 {
		return []search.Hit{}, nil
	}

	patterns := make([]any, len(criteria.Terms))
	for i, term := range criteria.Terms {
		patterns[i] = "%" + escapeLike(term) + "%"
	}

	var keywordScore, textScore, where []string
	var args []any
	for _, p := range patterns {
		keywordScore = append(keywordScore, `(COALESCE(e.keywords_str, '') LIKE ? ESCAPE '\')`)
		args = append(args, p)
	}
	for _, p := range patterns {
		textScore = append(textScore, `(COALESCE(e.title, '') LIKE ? ESCAPE '\') + (e.searchable_text LIKE ? ESCAPE '\')`)
		args = append(args, p, p)
	}

	where = append(where, "e.locale = ?")
	args = append(args, criteria.Locale)
	if len(criteria.GroupKeys) > 0 {
		where = append(where, "e.group_key IN ("+placeholders(len(criteria.GroupKeys))+")")
		for _, key := range criteria.GroupKeys {
			args = append(args, key)
		}
	}
	for _, p := range patterns {
		where = append(where, `(e.keywords_str LIKE ? ESCAPE '\' OR e.title LIKE ? ESCAPE '\' OR e.searchable_text LIKE ? ESCAPE '\')`)
		args = append(args, p, p, p)
	}
	args = append(args, criteria.Limit)

	query := "SELECT" + entryColumns + `,
			` + strings.Join(keywordScore, " + ") + ` AS keyword_hits,
			` + strings.Join(textScore, " + ") + ` AS text_hits,
			gt.label, gt.url_str
		FROM search_entry e
		LEFT JOIN search_group_t gt ON gt.group_key = e.group_key AND gt.locale = e.locale
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY keyword_hits DESC, text_hits DESC, e.id ASC
		LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	hits := []search.Hit{}
	for rows.Next() {
		var hit search.Hit
		var label, labelURL sql.NullString
		sc := newEntryScanner(&hit.Entry)
		dest := append(sc.dest, &hit.KeywordHits, &hit.TextHits, &label, &labelURL)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		sc.finish()
		if label.Valid || labelURL.Valid {
			hit.GroupLabel = &search.GroupLabel{
				GroupKey: hit.GroupKey,
				Locale:   hit.Locale,
				Label:    label.String,
				URL:      labelURL.String,
			}
		}
		hits = append(hits, hit)
	}

	return hits, rows.Err()
}

// RecordSearch counts one search for text
func (s *SQLiteStorage) RecordSearch(ctx context.Context, text string, results int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO search_stat (text, search_amount, result_amount, last_searched)
		VALUES (?, 1, ?, ?)
		ON CONFLICT(text) DO UPDATE SET
			search_amount = search_amount + 1,
			result_amount = excluded.result_amount,
			last_searched = excluded.last_searched`,
		text, results, s.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record search: %w", err)
	}
	return nil
}

// SearchStatByText returns the statistics of text or search.ErrNotFound
func (s *SQLiteStorage) SearchStatByText(ctx context.Context, text string) (*search.Stat, error) {
	var stat search.Stat
	err := s.db.QueryRowContext(ctx,
		"SELECT id, text, search_amount, result_amount, last_searched FROM search_stat WHERE text = ?", text,
	).Scan(&stat.ID, &stat.Text, &stat.SearchAmount, &stat.ResultAmount, &stat.LastSearched)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, search.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get search stat: %w", err)
	}
	return &stat, nil
}

// TopSearches returns the most frequent search texts
func (s *SQLiteStorage) TopSearches(ctx context.Context, limit int) ([]search.Stat, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, text, search_amount, result_amount, last_searched
		FROM search_stat
		ORDER BY search_amount DESC, text ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query search stats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var stats []search.Stat
	for rows.Next() {
		var stat search.Stat
		if err := rows.Scan(&stat.ID, &stat.Text, &stat.SearchAmount, &stat.ResultAmount, &stat.LastSearched); err != nil {
			return nil, fmt.Errorf("failed to scan search stat: %w", err)
		}
		stats = append(stats, stat)
	}
	return stats, rows.Err()
}

// CountEntries returns the number of indexed entries
func (s *SQLiteStorage) CountEntries(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM search_entry").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return n, nil
}

// EntriesByLastChecked returns up to limit entries, never-checked first,
// then by oldest check
func (s *SQLiteStorage) EntriesByLastChecked(ctx context.Context, limit int) ([]healthcheck.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, url_str FROM search_entry
		ORDER BY last_checked IS NOT NULL, last_checked ASC, id ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []healthcheck.Record
	for rows.Next() {
		var record healthcheck.Record
		if err := rows.Scan(&record.ID, &record.URL); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// InTx runs fn in a single transaction, committing only when fn succeeds
func (s *SQLiteStorage) InTx(ctx context.Context, fn func(healthcheck.Mutator) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&txMutator{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// txMutator applies health-check results within a transaction
type txMutator struct {
	tx *sql.Tx
}

func (m *txMutator) TouchLastChecked(ctx context.Context, id int64, checkedAt time.Time) error {
	_, err := m.tx.ExecContext(ctx, "UPDATE search_entry SET last_checked = ? WHERE id = ?", checkedAt.UTC(), id)
	return err
}

func (m *txMutator) Delete(ctx context.Context, id int64) error {
	_, err := m.tx.ExecContext(ctx, "DELETE FROM search_entry WHERE id = ?", id)
	return err
}

// GetMeta retrieves a metadata value by key
func (s *SQLiteStorage) GetMeta(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM search_meta WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get meta %s: %w", key, err)
	}
	return value, nil
}

// SetMeta stores a metadata value
func (s *SQLiteStorage) SetMeta(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, "INSERT OR REPLACE INTO search_meta (key, value) VALUES (?, ?)", key, value)
	if err != nil {
		return fmt.Errorf("failed to set meta %s: %w", key, err)
	}
	return nil
}

func scanEntry(row *sql.Row) (*search.Entry, error) {
	var entry search.Entry
	sc := newEntryScanner(&entry)
	if err := row.Scan(sc.dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, search.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan entry: %w", err)
	}
	sc.finish()
	return &entry, nil
}

// entryScanner holds the scan targets of one entry row, including the
// nullable columns.
type entryScanner struct {
	entry                               *search.Entry
	title, description, keywords, group sql.NullString
	lastChecked                         sql.NullTime
	dest                                []any
}

func newEntryScanner(entry *search.Entry) *entryScanner {
	sc := &entryScanner{entry: entry}
	sc.dest = []any{
		&entry.ID, &entry.URL, &sc.title, &sc.description, &sc.keywords, &entry.SearchableText,
		&entry.Locale, &sc.group, &sc.lastChecked, &entry.CreatedAt, &entry.UpdatedAt,
	}
	return sc
}

func (sc *entryScanner) finish() {
	sc.entry.Title = sc.title.String
	sc.entry.Description = sc.description.String
	sc.entry.KeywordsStr = sc.keywords.String
	sc.entry.GroupKey = sc.group.String
	if sc.lastChecked.Valid {
		t := sc.lastChecked.Time
		sc.entry.LastChecked = &t
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// escapeLike escapes LIKE wildcards so terms match literally.
func escapeLike(term string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(term)
}
