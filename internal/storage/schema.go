package storage

const schemaSQL = `
-- Groups bundle entries, e.g. per site section
CREATE TABLE IF NOT EXISTS search_group (
    key TEXT PRIMARY KEY NOT NULL
);

-- Per-locale label and landing page of a group
CREATE TABLE IF NOT EXISTS search_group_t (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    group_key TEXT NOT NULL REFERENCES search_group(key) ON DELETE CASCADE,
    locale TEXT NOT NULL,
    label TEXT,
    url_str TEXT,
    UNIQUE(group_key, locale)
);

-- One row per indexed page
CREATE TABLE IF NOT EXISTS search_entry (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    url_str TEXT UNIQUE NOT NULL,
    title TEXT,
    description TEXT,
    keywords_str TEXT,
    searchable_text TEXT NOT NULL DEFAULT '',
    locale TEXT NOT NULL,
    group_key TEXT REFERENCES search_group(key) ON DELETE SET NULL,

    -- NULL until the first successful health check
    last_checked DATETIME,

    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_search_entry_locale ON search_entry(locale);
CREATE INDEX IF NOT EXISTS idx_search_entry_group ON search_entry(group_key) WHERE group_key IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_search_entry_last_checked ON search_entry(last_checked);

-- What people search for and how much they found
CREATE TABLE IF NOT EXISTS search_stat (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    text TEXT UNIQUE NOT NULL,
    search_amount INTEGER NOT NULL DEFAULT 1,
    result_amount INTEGER NOT NULL DEFAULT 0,
    last_searched DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_search_stat_amount ON search_stat(search_amount);

-- Key-value metadata such as the last health-check run
CREATE TABLE IF NOT EXISTS search_meta (
    key TEXT PRIMARY KEY NOT NULL,
    value TEXT NOT NULL
);
`
