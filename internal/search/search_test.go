package search

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fsearchd/fsearchd/internal/schema"
	"github.com/fsearchd/fsearchd/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func upsert(t *testing.T, s *store.Store, doc schema.Document) {
	t.Helper()
	require.NoError(t, s.Upsert(doc.Path, doc))
}

type stubExtractor struct {
	keywords []string
}

func (s stubExtractor) ExtractKeywords(text string, k int) []string {
	if len(s.keywords) > k {
		return s.keywords[:k]
	}
	return s.keywords
}

func TestSearchMatchesBodyText(t *testing.T) {
	s := openTestStore(t)
	upsert(t, s, schema.Document{
		Path: "/docs/a.txt", Filename: "a.txt", ParentPath: "/docs",
		FileType: "txt", Body: "the quick brown fox", FileSize: 20,
		ModifiedTime: 1000, CreatedTime: 1000, IndexedTime: 1000,
	})
	upsert(t, s, schema.Document{
		Path: "/docs/b.txt", Filename: "b.txt", ParentPath: "/docs",
		FileType: "txt", Body: "something unrelated", FileSize: 10,
		ModifiedTime: 1000, CreatedTime: 1000, IndexedTime: 1000,
	})

	e := New(s, nil)
	resp, err := e.Search(DefaultRequest("fox"))
	require.NoError(t, err)

	require.Len(t, resp.Results, 1)
	assert.Equal(t, "/docs/a.txt", resp.Results[0].Path)
	assert.Equal(t, "fox", resp.Query.SearchText)
}

func TestSearchEmptyQueryMatchesAll(t *testing.T) {
	s := openTestStore(t)
	upsert(t, s, schema.Document{Path: "/a.txt", Body: "one", FileType: "txt"})
	upsert(t, s, schema.Document{Path: "/b.txt", Body: "two", FileType: "txt"})

	e := New(s, nil)
	resp, err := e.Search(DefaultRequest(""))
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Total)
}

func TestSearchAppliesFileTypeFilter(t *testing.T) {
	s := openTestStore(t)
	upsert(t, s, schema.Document{Path: "/a.txt", Body: "report", FileType: "txt"})
	upsert(t, s, schema.Document{Path: "/a.md", Body: "report", FileType: "md"})

	e := New(s, nil)
	resp, err := e.Search(DefaultRequest("report --type=md"))
	require.NoError(t, err)

	require.Len(t, resp.Results, 1)
	assert.Equal(t, "/a.md", resp.Results[0].Path)
}

func TestSearchPathFilterIsPostFiltered(t *testing.T) {
	s := openTestStore(t)
	upsert(t, s, schema.Document{Path: "/src/a.txt", Body: "widget", FileType: "txt"})
	upsert(t, s, schema.Document{Path: "/vendor/a.txt", Body: "widget", FileType: "txt"})

	e := New(s, nil)
	resp, err := e.Search(DefaultRequest("widget --path=/src/**"))
	require.NoError(t, err)

	require.Len(t, resp.Results, 1)
	assert.Equal(t, "/src/a.txt", resp.Results[0].Path)
}

func TestSearchPaginationHasMore(t *testing.T) {
	s := openTestStore(t)
	for _, p := range []string{"/a.txt", "/b.txt", "/c.txt"} {
		upsert(t, s, schema.Document{Path: p, Body: "widget", FileType: "txt"})
	}

	e := New(s, nil)
	req := DefaultRequest("widget")
	req.Limit = 2
	resp, err := e.Search(req)
	require.NoError(t, err)

	assert.Len(t, resp.Results, 2)
	assert.True(t, resp.Pagination.HasMore)
}

func TestSearchShortQuerySkipsKeywordExpansion(t *testing.T) {
	s := openTestStore(t)
	upsert(t, s, schema.Document{Path: "/a.txt", Body: "go", FileType: "txt"})

	e := New(s, stubExtractor{keywords: []string{"golang"}})
	req := DefaultRequest("go")
	resp, err := e.Search(req)
	require.NoError(t, err)
	assert.Empty(t, resp.Query.Keywords, "raw text below the 4-rune threshold must not trigger expansion")
}

func TestSearchLongQueryExpandsKeywords(t *testing.T) {
	s := openTestStore(t)
	upsert(t, s, schema.Document{Path: "/a.txt", Body: "golang concurrency patterns", FileType: "txt"})

	e := New(s, stubExtractor{keywords: []string{"golang"}})
	req := DefaultRequest("concurrency patterns")
	resp, err := e.Search(req)
	require.NoError(t, err)
	assert.Equal(t, []string{"golang"}, resp.Query.Keywords)
}

func TestSearchAggregationsCountFileTypes(t *testing.T) {
	s := openTestStore(t)
	upsert(t, s, schema.Document{Path: "/a.txt", Body: "widget", FileType: "txt"})
	upsert(t, s, schema.Document{Path: "/b.md", Body: "widget", FileType: "md"})

	e := New(s, nil)
	req := DefaultRequest("widget")
	req.IncludeAggregations = true
	resp, err := e.Search(req)
	require.NoError(t, err)

	require.NotNil(t, resp.Aggregations)
	assert.Equal(t, 1, resp.Aggregations.ByType["txt"])
	assert.Equal(t, 1, resp.Aggregations.ByType["md"])
}

func TestSearchHighlightIncludesTruncatedBody(t *testing.T) {
	s := openTestStore(t)
	upsert(t, s, schema.Document{Path: "/a.txt", Body: "a short body.", FileType: "txt"})

	e := New(s, nil)
	req := DefaultRequest("short")
	req.SnippetLength = 5
	resp, err := e.Search(req)
	require.NoError(t, err)

	require.Len(t, resp.Results, 1)
	require.Len(t, resp.Results[0].Highlights, 1)
	assert.NotEmpty(t, resp.Results[0].Highlights[0].Text)
}

func TestTruncatePreviewPrefersSentenceBoundary(t *testing.T) {
	body := "First sentence. Second sentence continues for a while longer."
	out := truncatePreview(body, 20)
	assert.Equal(t, "First sentence.", out)
}

func TestTruncatePreviewFallsBackToWhitespace(t *testing.T) {
	body := "no punctuation here at all just words separated by spaces"
	out := truncatePreview(body, 10)
	assert.Equal(t, "no...", out) // cut at the last space inside "no punctua"
}

func TestTruncatePreviewShorterThanMaxIsUnchanged(t *testing.T) {
	body := "short"
	assert.Equal(t, body, truncatePreview(body, 100))
}

func TestSearchResultMetadataHasHumanReadableSize(t *testing.T) {
	s := openTestStore(t)
	now := uint64(time.Now().Unix())
	upsert(t, s, schema.Document{
		Path: "/a.txt", Body: "widget", FileType: "txt", FileSize: 2048,
		ModifiedTime: now, CreatedTime: now, IndexedTime: now,
	})

	e := New(s, nil)
	resp, err := e.Search(DefaultRequest("widget"))
	require.NoError(t, err)

	require.Len(t, resp.Results, 1)
	assert.Equal(t, "2.00 KB", resp.Results[0].Metadata.FileSizeDisplay)
	assert.Equal(t, "just now", *resp.Results[0].Metadata.ModifiedTimeDisplay)
}
