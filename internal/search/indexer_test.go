package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePage = `<!DOCTYPE html>
<html>
<head>
	<title>Fish &amp; Chips</title>
	<meta name="description" content="Best fish &amp; chips in town">
	<meta name="keywords" content="fish, chips">
</head>
<body>
	<nav data-search="excluded"><a href="/">Home</a></nav>
	<h1>Fish and chips</h1>
	<p>Crispy   and
	fresh.</p>
</body>
</html>`

func TestIndexerAddFromHTML(t *testing.T) {
	store := newMemStore()
	ix := NewIndexer(store)

	entry, err := ix.AddFromHTML(context.Background(), "https://example.com/menu?utm_source=x", samplePage, "de_CH", DefaultHTMLOptions())
	require.NoError(t, err)

	assert.Equal(t, int64(1), entry.ID)
	assert.Equal(t, "https://example.com/menu", entry.URL)
	assert.Equal(t, "de-CH", entry.Locale)
	assert.Equal(t, "Fish & Chips", entry.Title)
	assert.Equal(t, "Best fish & chips in town", entry.Description)
	assert.Equal(t, "fish, chips", entry.KeywordsStr)
	assert.Equal(t, "Fish & Chips Fish and chips Crispy and fresh.", entry.SearchableText)
	assert.NotContains(t, entry.SearchableText, "Home")

	stored, err := store.EntryByURL(context.Background(), "https://example.com/menu")
	require.NoError(t, err)
	assert.Equal(t, entry.Title, stored.Title)
}

func TestIndexerAddFromHTMLWithoutAutoMetadata(t *testing.T) {
	ix := NewIndexer(newMemStore())

	entry, err := ix.AddFromHTML(context.Background(), "https://example.com/", samplePage, "en",
		HTMLOptions{GroupKey: "news", AutoTitle: true})
	require.NoError(t, err)

	assert.Equal(t, "Fish & Chips", entry.Title)
	assert.Empty(t, entry.Description)
	assert.Empty(t, entry.KeywordsStr)
	assert.Equal(t, "news", entry.GroupKey)
}

func TestIndexerAddReplacesByURL(t *testing.T) {
	store := newMemStore()
	ix := NewIndexer(store, WithAllowedQueryParams("page"))
	ctx := context.Background()

	first, err := ix.Add(ctx, Document{URL: "https://example.com/list?page=2&session=abc", Locale: "en", Text: "old"})
	require.NoError(t, err)
	second, err := ix.Add(ctx, Document{URL: "https://example.com/list?session=def&page=2", Locale: "en", Text: "new"})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "https://example.com/list?page=2", second.URL)
	require.Len(t, store.entries, 1)
	assert.Equal(t, "new", store.entries[second.URL].SearchableText)
}

func TestIndexerAddPerCallQueryParams(t *testing.T) {
	ix := NewIndexer(newMemStore(), WithAllowedQueryParams("page"))

	entry, err := ix.Add(context.Background(), Document{
		URL:                "https://example.com/p?id=7&page=1&x=y",
		Locale:             "en",
		AllowedQueryParams: []string{"id"},
	})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/p?id=7&page=1", entry.URL)
}

func TestIndexerAddNormalizesText(t *testing.T) {
	ix := NewIndexer(newMemStore())

	// "e" followed by a combining acute accent composes to "é".
	entry, err := ix.Add(context.Background(), Document{
		URL:    "https://example.com/",
		Locale: "fr",
		Text:   "cafe\u0301  \n au lait",
	})
	require.NoError(t, err)
	assert.Equal(t, "caf\u00e9 au lait", entry.SearchableText)
}

func TestIndexerAddValidation(t *testing.T) {
	ix := NewIndexer(newMemStore())
	ctx := context.Background()

	_, err := ix.Add(ctx, Document{URL: "/relative", Locale: "en"})
	assert.ErrorIs(t, err, ErrInvalidURL)

	_, err = ix.Add(ctx, Document{URL: "https://example.com/", Locale: ""})
	assert.ErrorIs(t, err, ErrInvalidLocale)

	_, err = ix.Add(ctx, Document{URL: "https://example.com/", Locale: "not a locale!"})
	assert.ErrorIs(t, err, ErrInvalidLocale)
}

func TestIndexerRemove(t *testing.T) {
	store := newMemStore()
	ix := NewIndexer(store)
	ctx := context.Background()

	_, err := ix.Add(ctx, Document{URL: "https://example.com/a", Locale: "en"})
	require.NoError(t, err)

	removed, err := ix.Remove(ctx, "https://example.com/a?ref=mail")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = ix.Remove(ctx, "https://example.com/a")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestIndexerRemoveWithQueryParams(t *testing.T) {
	store := newMemStore()
	ix := NewIndexer(store)
	ctx := context.Background()

	entry, err := ix.Add(ctx, Document{URL: "https://example.com/list?page=2&utm=x", Locale: "en", AllowedQueryParams: []string{"page"}})
	require.NoError(t, err)
	require.Equal(t, "https://example.com/list?page=2", entry.URL)

	removed, err := ix.Remove(ctx, "https://example.com/list?page=2")
	require.NoError(t, err)
	assert.True(t, removed, "exact stored URL")

	_, err = ix.Add(ctx, Document{URL: "https://example.com/list?page=3", Locale: "en", AllowedQueryParams: []string{"page"}})
	require.NoError(t, err)

	removed, err = ix.Remove(ctx, "https://example.com/list?page=3&utm=y")
	require.NoError(t, err)
	assert.False(t, removed, "page is not in the configured allow-list")

	removed, err = ix.Remove(ctx, "https://example.com/list?page=3&utm=y", "page")
	require.NoError(t, err)
	assert.True(t, removed, "per-call allow-list")
	assert.Empty(t, store.entries)
}

func TestIndexerRemoveExact(t *testing.T) {
	store := newMemStore()
	ix := NewIndexer(store)
	ctx := context.Background()

	_, err := ix.Add(ctx, Document{URL: "http://example.com/products", Locale: "en"})
	require.NoError(t, err)

	removed, err := ix.RemoveExact(ctx, "http://example.com/products?id=999")
	require.NoError(t, err)
	assert.False(t, removed)
	_, err = store.EntryByURL(ctx, "http://example.com/products")
	require.NoError(t, err)

	removed, err = ix.RemoveExact(ctx, "http://example.com/products")
	require.NoError(t, err)
	assert.True(t, removed)
}

func TestIndexerTruncate(t *testing.T) {
	store := newMemStore()
	ix := NewIndexer(store)
	ctx := context.Background()

	for _, doc := range []Document{
		{URL: "https://example.com/1", Locale: "en", GroupKey: "news"},
		{URL: "https://example.com/2", Locale: "en", GroupKey: "blog"},
		{URL: "https://example.com/3", Locale: "en"},
	} {
		_, err := ix.Add(ctx, doc)
		require.NoError(t, err)
	}

	n, err := ix.TruncateGroups(ctx, "news")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = ix.TruncateGroups(ctx, " ")
	assert.ErrorIs(t, err, ErrEmptyGroupKey)

	n, err = ix.Truncate(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Empty(t, store.entries)
}

func TestIndexerSetGroupLabel(t *testing.T) {
	store := newMemStore()
	ix := NewIndexer(store)

	err := ix.SetGroupLabel(context.Background(), GroupLabel{GroupKey: "news", Locale: "de_CH", Label: "News", URL: "https://example.com/news"})
	require.NoError(t, err)
	assert.Equal(t, "News", store.labels["news/de-CH"].Label)

	err = ix.SetGroupLabel(context.Background(), GroupLabel{Locale: "en"})
	assert.ErrorIs(t, err, ErrEmptyGroupKey)
}
