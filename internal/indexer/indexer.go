// Package indexer implements the Indexer (C9): the single entry point
// that turns a filesystem path into an indexed document, keeping the
// Tag Cache, the Index Store, and path canonicalization in lock step.
package indexer

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/fsearchd/fsearchd/internal/extract"
	"github.com/fsearchd/fsearchd/internal/ferrors"
	"github.com/fsearchd/fsearchd/internal/keywords"
	"github.com/fsearchd/fsearchd/internal/schema"
	"github.com/fsearchd/fsearchd/internal/store"
	"github.com/fsearchd/fsearchd/internal/tagcache"
)

// Indexer orchestrates extract -> tag -> build doc -> upsert -> commit
// for one path at a time, plus delete and orphan-sweep operations.
type Indexer struct {
	store      *store.Store
	cache      *tagcache.Cache
	extractor  extract.Extractor
	keywordExt keywords.Extractor // nil means tags are always empty
	keywordK   int

	// inflight collapses duplicate concurrent IndexFile calls for the
	// same path down to a single extract+index pass, complementing the
	// Registry's own mutual exclusion at the call-entry layer.
	inflight singleflight.Group
}

// New builds an Indexer. keywordExt may be nil, meaning no tagging
// collaborator is configured — tags are computed as an empty list.
func New(s *store.Store, cache *tagcache.Cache, extractor extract.Extractor, keywordExt keywords.Extractor, keywordK int) *Indexer {
	return &Indexer{
		store:      s,
		cache:      cache,
		extractor:  extractor,
		keywordExt: keywordExt,
		keywordK:   keywordK,
	}
}

// IndexFile runs the six-step orchestration for path: existence check,
// extraction, metadata build, tag resolution, document upsert, and
// cache metadata update.
func (ix *Indexer) IndexFile(path string) error {
	_, err, _ := ix.inflight.Do(path, func() (interface{}, error) {
		return nil, ix.indexFileOnce(path)
	})
	return err
}

func (ix *Indexer) indexFileOnce(path string) error {
	canonical, info, err := canonicalize(path)
	if err != nil {
		return ferrors.Wrap(ferrors.FileNotFound, "path does not exist", err).
			WithDetail("path", path)
	}

	content, err := ix.extractor.Extract(canonical)
	if err != nil {
		return err // already a ferrors.Extraction error; abort without mutating state
	}

	tags := ix.resolveTags(canonical, content)

	doc := schema.Document{
		Title:        strings.TrimSuffix(filepath.Base(canonical), filepath.Ext(canonical)),
		Body:         content,
		Tags:         tags,
		Path:         canonical,
		ParentPath:   filepath.Dir(canonical),
		Filename:     filepath.Base(canonical),
		FileType:     strings.TrimPrefix(strings.ToLower(filepath.Ext(canonical)), "."),
		FileSize:     uint64(info.Size()),
		ModifiedTime: uint64(info.ModTime().Unix()),
		CreatedTime:  uint64(info.ModTime().Unix()), // stdlib exposes no creation time portably
		IndexedTime:  uint64(time.Now().Unix()),
	}

	if err := ix.store.Upsert(canonical, doc); err != nil {
		return err
	}

	return ix.cache.SaveFileMeta(canonical)
}

// resolveTags looks the (path, content) pair up in the Tag Cache; on a
// miss it computes fresh tags (empty when no keyword extractor is
// configured) and writes them back.
func (ix *Indexer) resolveTags(canonical, content string) []string {
	if cached, ok := ix.cache.GetKeywords(canonical, content); ok {
		return cached
	}

	var tags []string
	if ix.keywordExt != nil {
		tags = ix.keywordExt.ExtractKeywords(content, ix.keywordK)
	}
	_ = ix.cache.SetKeywords(canonical, content, tags)
	return tags
}

// DeleteFile removes path's document and cache entries.
func (ix *Indexer) DeleteFile(path string) error {
	canonical := canonicalizeBestEffort(path)

	if err := ix.store.Delete(canonical); err != nil {
		return err
	}
	_ = ix.cache.Remove(canonical)
	return ix.cache.RemoveFileMeta(canonical)
}

// IsIndexed reports whether path currently has a live document.
func (ix *Indexer) IsIndexed(path string) (bool, error) {
	canonical := canonicalizeBestEffort(path)
	return ix.store.Exists(canonical)
}

// CleanupOrphanIndexes removes every document whose filesystem entry
// no longer exists, pruning the matching cache entries too, in one
// batched pass.
func (ix *Indexer) CleanupOrphanIndexes() (int, error) {
	ids, err := ix.store.AllIDs()
	if err != nil {
		return 0, err
	}

	var orphans []string
	for _, id := range ids {
		if _, statErr := os.Stat(id); os.IsNotExist(statErr) {
			orphans = append(orphans, id)
		}
	}
	if len(orphans) == 0 {
		return 0, nil
	}

	if err := ix.store.DeleteBatch(orphans); err != nil {
		return 0, err
	}
	for _, id := range orphans {
		_ = ix.cache.Remove(id)
		_ = ix.cache.RemoveFileMeta(id)
	}
	return len(orphans), nil
}

// canonicalize resolves path to its canonical absolute form and stats
// it, returning a FileNotFound-shaped error when it doesn't exist.
func canonicalize(path string) (string, os.FileInfo, error) {
	resolved, err := filepath.Abs(path)
	if err != nil {
		return "", nil, err
	}
	resolved, err = filepath.EvalSymlinks(resolved)
	if err != nil {
		return "", nil, err
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return "", nil, err
	}
	return resolved, info, nil
}

// canonicalizeBestEffort resolves path the same way canonicalize does
// but falls back to the absolute (non-symlink-resolved) form when the
// file is already gone, matching the original's "file deleted before
// canonicalize" fallback.
func canonicalizeBestEffort(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}
