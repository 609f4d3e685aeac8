// Package store implements the Index Store: an exclusively-owned,
// crash-consistent full-text index directory backed by bleve, guarded
// by a process-level file lock so only one fsearchd instance ever
// writes to a given storage path at a time.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	bleveQuery "github.com/blevesearch/bleve/v2/search/query"
	"github.com/gofrs/flock"

	"github.com/fsearchd/fsearchd/internal/ferrors"
	"github.com/fsearchd/fsearchd/internal/schema"
)

const indexDirName = "index.bleve"
const lockFileName = ".fsearchd.lock"

// validateIndexIntegrity checks a bleve index directory for the
// telltale signs of a half-written index before opening it.
func validateIndexIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	metaPath := filepath.Join(path, "index_meta.json")
	info, err := os.Stat(metaPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("index_meta.json missing (corrupted index)")
	}
	if err != nil {
		return fmt.Errorf("cannot stat index_meta.json: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("index_meta.json is empty (corrupted)")
	}

	data, err := os.ReadFile(metaPath)
	if err != nil {
		return fmt.Errorf("cannot read index_meta.json: %w", err)
	}
	var meta map[string]interface{}
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("index_meta.json is corrupt: %w", err)
	}
	return nil
}

// isCorruptionError reports whether err is one of the failure modes
// bleve surfaces when a segment file or the bolt meta store is
// truncated or unreadable.
func isCorruptionError(err error) bool {
	if err == nil {
		return false
	}
	if err == bleve.ErrorIndexMetaCorrupt {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "unexpected end of JSON") ||
		strings.Contains(errStr, "error parsing mapping JSON") ||
		strings.Contains(errStr, "failed to load segment") ||
		strings.Contains(errStr, "error opening bolt")
}

// Store wraps a bleve index together with the process-level lock that
// enforces the single-writer invariant across restarts.
type Store struct {
	mu     sync.RWMutex
	index  bleve.Index
	lock   *flock.Flock
	path   string
	closed bool
}

// Open acquires the storage directory's exclusive lock, auto-recovers
// from a corrupted index by rebuilding an empty one, and opens (or
// creates) the bleve index at <storagePath>/index.bleve.
//
// Returns ferrors with Code=Directory when the storage directory
// cannot be created and Code=Index on any other failure; a lock that is
// already held by another process surfaces as a fatal error, since
// fsearchd enforces one writer per storage directory for the lifetime
// of the process.
func Open(storagePath string) (*Store, error) {
	if err := os.MkdirAll(storagePath, 0o755); err != nil {
		return nil, ferrors.Wrap(ferrors.Directory, "create storage directory", err)
	}

	lock := flock.New(filepath.Join(storagePath, lockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, ferrors.Wrap(ferrors.Index, "acquire storage lock", err)
	}
	if !locked {
		return nil, ferrors.New(ferrors.Index, "storage directory is locked by another process").
			WithDetail("path", storagePath)
	}

	indexPath := filepath.Join(storagePath, indexDirName)

	idx, err := openOrRecover(indexPath)
	if err != nil {
		_ = lock.Unlock()
		return nil, err
	}

	return &Store{index: idx, lock: lock, path: indexPath}, nil
}

func openOrRecover(indexPath string) (bleve.Index, error) {
	if validErr := validateIndexIntegrity(indexPath); validErr != nil {
		if err := os.RemoveAll(indexPath); err != nil {
			return nil, ferrors.Wrap(ferrors.Index, "remove corrupted index", err)
		}
	}

	idx, err := bleve.Open(indexPath)
	switch {
	case err == bleve.ErrorIndexPathDoesNotExist:
		idx, err = bleve.New(indexPath, schema.New())
	case isCorruptionError(err):
		if rmErr := os.RemoveAll(indexPath); rmErr != nil {
			return nil, ferrors.Wrap(ferrors.Index, "remove corrupted index after open failure", rmErr)
		}
		idx, err = bleve.New(indexPath, schema.New())
	}
	if err != nil {
		return nil, ferrors.Wrap(ferrors.Index, "open or create index", err)
	}
	return idx, nil
}

// Close closes the bleve index and releases the storage lock.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	closeErr := s.index.Close()
	unlockErr := s.lock.Unlock()
	if closeErr != nil {
		return ferrors.Wrap(ferrors.Index, "close index", closeErr)
	}
	if unlockErr != nil {
		return ferrors.Wrap(ferrors.Index, "release storage lock", unlockErr)
	}
	return nil
}

// Upsert deletes any existing document at id and indexes doc in the
// same batch, so a reader never observes a half-updated document (the
// delete-then-add appears atomically at the next generation).
func (s *Store) Upsert(id string, doc schema.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ferrors.New(ferrors.Index, "store is closed")
	}

	batch := s.index.NewBatch()
	batch.Delete(id)
	if err := batch.Index(id, doc); err != nil {
		return ferrors.Wrap(ferrors.Index, "stage document", err)
	}
	if err := s.index.Batch(batch); err != nil {
		return ferrors.Wrap(ferrors.Index, "commit batch", err)
	}
	return nil
}

// Delete removes the document at id, tolerating a no-op when it
// doesn't exist.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ferrors.New(ferrors.Index, "store is closed")
	}
	if err := s.index.Delete(id); err != nil {
		return ferrors.Wrap(ferrors.Index, "delete document", err)
	}
	return nil
}

// DeleteBatch removes every document in ids in a single batch commit,
// so sweeping N orphans produces one generation bump, not N.
func (s *Store) DeleteBatch(ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ferrors.New(ferrors.Index, "store is closed")
	}
	if len(ids) == 0 {
		return nil
	}

	batch := s.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}
	if err := s.index.Batch(batch); err != nil {
		return ferrors.Wrap(ferrors.Index, "commit batch delete", err)
	}
	return nil
}

// Exists reports whether a document is currently indexed at id.
func (s *Store) Exists(id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false, ferrors.New(ferrors.Index, "store is closed")
	}
	doc, err := s.index.Document(id)
	if err != nil {
		return false, ferrors.Wrap(ferrors.Index, "lookup document", err)
	}
	return doc != nil, nil
}

// AllIDs returns every document ID currently in the index, used for
// the orphan sweep at startup.
func (s *Store) AllIDs() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ferrors.New(ferrors.Index, "store is closed")
	}

	docCount, err := s.index.DocCount()
	if err != nil {
		return nil, ferrors.Wrap(ferrors.Index, "count documents", err)
	}

	req := bleve.NewSearchRequest(bleve.NewMatchAllQuery())
	req.Size = int(docCount)
	req.Fields = nil

	result, err := s.index.Search(req)
	if err != nil {
		return nil, ferrors.Wrap(ferrors.Index, "list document ids", err)
	}

	ids := make([]string, len(result.Hits))
	for i, hit := range result.Hits {
		ids[i] = hit.ID
	}
	return ids, nil
}

// Search runs q against the index. Because bleve's batch commit
// establishes the new generation synchronously, a Search call issued
// after Upsert/Delete returns in the same goroutine chain always sees
// the update — no separate auto-refresh polling loop is needed.
func (s *Store) Search(q bleveQuery.Query, size, from int, highlight bool, sortFields ...string) (*bleve.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ferrors.New(ferrors.Index, "store is closed")
	}

	req := bleve.NewSearchRequestOptions(q, size, from, false)
	req.Fields = []string{"*"}
	if highlight {
		req.Highlight = bleve.NewHighlight()
	}
	if len(sortFields) > 0 {
		req.SortBy(sortFields)
	}

	result, err := s.index.SearchInContext(context.Background(), req)
	if err != nil {
		return nil, ferrors.Wrap(ferrors.Index, "search", err)
	}
	return result, nil
}

// DocCount reports the number of documents currently indexed.
func (s *Store) DocCount() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, ferrors.New(ferrors.Index, "store is closed")
	}
	count, err := s.index.DocCount()
	if err != nil {
		return 0, ferrors.Wrap(ferrors.Index, "count documents", err)
	}
	return count, nil
}
