package store

import (
	"testing"

	"github.com/blevesearch/bleve/v2"
	bleveQuery "github.com/blevesearch/bleve/v2/search/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fsearchd/fsearchd/internal/schema"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenCreatesFreshIndex(t *testing.T) {
	s := openTestStore(t)

	count, err := s.DocCount()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestSecondOpenOnSamePathFailsWhileLockHeld(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	require.NoError(t, err)
	defer s1.Close()

	_, err = Open(dir)
	require.Error(t, err)
}

func TestUpsertThenSearchFindsDocument(t *testing.T) {
	s := openTestStore(t)

	doc := schema.Document{
		Title: "Quarterly Report",
		Body:  "revenue figures for the quarter",
		Path:  "/docs/q1.txt",
	}
	require.NoError(t, s.Upsert("/docs/q1.txt", doc))

	q := bleveMatchQuery("revenue")
	result, err := s.Search(q, 10, 0, false)
	require.NoError(t, err)
	require.Len(t, result.Hits, 1)
	assert.Equal(t, "/docs/q1.txt", result.Hits[0].ID)
}

func TestUpsertOverwritesPreviousVersion(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Upsert("/a.txt", schema.Document{Body: "alpha content", Path: "/a.txt"}))
	require.NoError(t, s.Upsert("/a.txt", schema.Document{Body: "beta content", Path: "/a.txt"}))

	count, err := s.DocCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)

	result, err := s.Search(bleveMatchQuery("alpha"), 10, 0, false)
	require.NoError(t, err)
	assert.Empty(t, result.Hits)
}

func TestDeleteRemovesDocument(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Upsert("/a.txt", schema.Document{Body: "alpha", Path: "/a.txt"}))
	require.NoError(t, s.Delete("/a.txt"))

	exists, err := s.Exists("/a.txt")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestDeleteOfMissingDocumentIsNoop(t *testing.T) {
	s := openTestStore(t)
	assert.NoError(t, s.Delete("/never/indexed.txt"))
}

func TestAllIDsListsEveryDocument(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Upsert("/a.txt", schema.Document{Body: "a", Path: "/a.txt"}))
	require.NoError(t, s.Upsert("/b.txt", schema.Document{Body: "b", Path: "/b.txt"}))

	ids, err := s.AllIDs()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"/a.txt", "/b.txt"}, ids)
}

func TestOperationsFailAfterClose(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = s.DocCount()
	assert.Error(t, err)
}

func bleveMatchQuery(text string) bleveQuery.Query {
	return bleve.NewMatchQuery(text)
}
