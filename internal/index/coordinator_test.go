package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fsearchd/fsearchd/internal/extract"
	"github.com/fsearchd/fsearchd/internal/indexer"
	"github.com/fsearchd/fsearchd/internal/keywords"
	"github.com/fsearchd/fsearchd/internal/registry"
	"github.com/fsearchd/fsearchd/internal/store"
	"github.com/fsearchd/fsearchd/internal/tagcache"
	"github.com/fsearchd/fsearchd/internal/watcher"
)

func newTestCoordinator(t *testing.T, debounce time.Duration) (*Coordinator, *store.Store, string) {
	t.Helper()

	root := t.TempDir()
	storageDir := t.TempDir()
	cacheDir := t.TempDir()

	s, err := store.Open(storageDir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	cache, err := tagcache.Open(cacheDir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })

	ix := indexer.New(s, cache, extract.New([]string{"txt"}), keywords.New(), 3)
	reg := registry.New()

	c := NewCoordinator(CoordinatorConfig{
		RootPath:            root,
		Registry:            reg,
		Indexer:             ix,
		SupportedExtensions: []string{"txt"},
		Debounce:            debounce,
	})

	return c, s, root
}

func TestHandleEventsBuffersDuringScan(t *testing.T) {
	c, s, root := newTestCoordinator(t, time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello"), 0o644))

	c.HandleEvents(context.Background(), []watcher.FileEvent{
		{Path: "a.txt", Operation: watcher.OpCreate, Timestamp: time.Now()},
	})

	// Scan hasn't completed yet, so the event must not have been indexed.
	time.Sleep(10 * time.Millisecond)
	count, err := s.DocCount()
	require.NoError(t, err)
	assert.Zero(t, count)

	tracked, _ := c.reg.Stats()
	assert.Zero(t, tracked, "registry should only hold the pending queue, not a processing claim")
}

func TestDrainPendingScanEventsIndexesBufferedFiles(t *testing.T) {
	c, s, root := newTestCoordinator(t, time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello"), 0o644))

	c.HandleEvents(context.Background(), []watcher.FileEvent{
		{Path: "a.txt", Operation: watcher.OpCreate, Timestamp: time.Now()},
	})

	c.DrainPendingScanEvents(context.Background())
	time.Sleep(20 * time.Millisecond)

	count, err := s.DocCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

func TestHandleEventsDispatchesLiveEventsAfterScan(t *testing.T) {
	c, s, root := newTestCoordinator(t, time.Millisecond)
	c.DrainPendingScanEvents(context.Background())

	require.NoError(t, os.WriteFile(filepath.Join(root, "b.txt"), []byte("content"), 0o644))
	c.HandleEvents(context.Background(), []watcher.FileEvent{
		{Path: "b.txt", Operation: watcher.OpCreate, Timestamp: time.Now()},
	})
	time.Sleep(20 * time.Millisecond)

	count, err := s.DocCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

func TestHandleEventsTreatsMissingPathAsDeleteRegardlessOfReportedKind(t *testing.T) {
	c, s, root := newTestCoordinator(t, time.Millisecond)
	path := filepath.Join(root, "c.txt")
	require.NoError(t, os.WriteFile(path, []byte("content"), 0o644))

	c.DrainPendingScanEvents(context.Background())
	c.HandleEvents(context.Background(), []watcher.FileEvent{
		{Path: "c.txt", Operation: watcher.OpCreate, Timestamp: time.Now()},
	})
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, os.Remove(path))

	// Reported as Modify, but the file is gone: must be handled as Delete.
	c.HandleEvents(context.Background(), []watcher.FileEvent{
		{Path: "c.txt", Operation: watcher.OpModify, Timestamp: time.Now()},
	})
	time.Sleep(20 * time.Millisecond)

	count, err := s.DocCount()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestHandleEventsSkipsUnsupportedExtensions(t *testing.T) {
	c, s, root := newTestCoordinator(t, time.Millisecond)
	c.DrainPendingScanEvents(context.Background())

	require.NoError(t, os.WriteFile(filepath.Join(root, "image.png"), []byte("\x89PNG"), 0o644))
	c.HandleEvents(context.Background(), []watcher.FileEvent{
		{Path: "image.png", Operation: watcher.OpCreate, Timestamp: time.Now()},
	})
	time.Sleep(20 * time.Millisecond)

	count, err := s.DocCount()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestHandleEventsSkipsDirectories(t *testing.T) {
	c, s, _ := newTestCoordinator(t, time.Millisecond)
	c.DrainPendingScanEvents(context.Background())

	c.HandleEvents(context.Background(), []watcher.FileEvent{
		{Path: "subdir", Operation: watcher.OpCreate, IsDir: true, Timestamp: time.Now()},
	})
	time.Sleep(20 * time.Millisecond)

	count, err := s.DocCount()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestDeleteEventRemovesDocument(t *testing.T) {
	c, s, root := newTestCoordinator(t, time.Millisecond)
	path := filepath.Join(root, "d.txt")
	require.NoError(t, os.WriteFile(path, []byte("content"), 0o644))

	c.DrainPendingScanEvents(context.Background())
	c.HandleEvents(context.Background(), []watcher.FileEvent{
		{Path: "d.txt", Operation: watcher.OpCreate, Timestamp: time.Now()},
	})
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, os.Remove(path))
	c.HandleEvents(context.Background(), []watcher.FileEvent{
		{Path: "d.txt", Operation: watcher.OpDelete, Timestamp: time.Now()},
	})
	time.Sleep(20 * time.Millisecond)

	count, err := s.DocCount()
	require.NoError(t, err)
	assert.Zero(t, count)
}
