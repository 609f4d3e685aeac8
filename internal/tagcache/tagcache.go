// Package tagcache implements the Tag Cache: a content-addressed
// store of (path -> content-hash, tags) and (path -> file-meta),
// backed by an embedded ordered key-value store with crash-consistent
// writes.
//
// Two disjoint key namespaces live as two bbolt buckets in one file:
// tags entries keyed by canonical path, and file-meta entries keyed
// by canonical path in a separate bucket (rather than a shared bucket
// with a "meta:" prefix — real bucket separation is a closer match to
// "disjoint key namespaces" and avoids any prefix-collision edge
// case). Any decode failure on either bucket is treated as a cache
// miss, never as fatal, per the cache error-handling design.
package tagcache

import (
	"bytes"
	"encoding/gob"
	"os"
	"path/filepath"
	"time"

	"github.com/cespare/xxhash/v2"
	bolt "go.etcd.io/bbolt"

	"github.com/fsearchd/fsearchd/internal/ferrors"
)

var (
	tagsBucket = []byte("tags")
	metaBucket = []byte("meta")
)

// FileStatus is the result of comparing filesystem state against a
// cached FileMetaEntry.
type FileStatus int

const (
	// StatusNew means no meta entry exists yet, or the comparison
	// itself failed — treated the same as a fresh file.
	StatusNew FileStatus = iota
	// StatusModified means the cached size differs from the file's
	// current size, or the file's mtime is newer than the cached one.
	StatusModified
	// StatusUnchanged means the cached meta entry still matches.
	StatusUnchanged
)

// tagEntry is the gob-encoded value behind the tags bucket.
type tagEntry struct {
	ContentHash uint64
	Tags        []string
}

// metaEntry is the gob-encoded value behind the meta bucket.
type metaEntry struct {
	FileSize uint64
	Mtime    int64 // unix seconds
	Indexed  bool
}

// Cache wraps a bbolt database providing the Tag Cache operations.
type Cache struct {
	db *bolt.DB
}

// Open creates or opens the cache file at <cache_path>/tags.db,
// creating the two buckets if they don't already exist.
func Open(cachePath string) (*Cache, error) {
	if err := os.MkdirAll(cachePath, 0o755); err != nil {
		return nil, ferrors.Wrap(ferrors.Directory, "create cache directory", err)
	}

	dbPath := filepath.Join(cachePath, "tags.db")
	db, err := bolt.Open(dbPath, 0o644, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, ferrors.Wrap(ferrors.Directory, "open tag cache", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(tagsBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(metaBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, ferrors.Wrap(ferrors.Directory, "initialize tag cache buckets", err)
	}

	return &Cache{db: db}, nil
}

// Close closes the underlying store.
func (c *Cache) Close() error {
	return c.db.Close()
}

// HashContent computes the deterministic 64-bit digest used to key
// tag-cache validity. Stable within one process build, per the data
// model's content_hash requirement.
func HashContent(content string) uint64 {
	return xxhash.Sum64String(content)
}

// GetKeywords returns the cached tag list iff hash(content) equals
// the stored content hash for path.
func (c *Cache) GetKeywords(path string, content string) ([]string, bool) {
	hash := HashContent(content)

	var entry tagEntry
	found := false
	err := c.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(tagsBucket).Get([]byte(path))
		if raw == nil {
			return nil
		}
		dec := gob.NewDecoder(bytes.NewReader(raw))
		if decErr := dec.Decode(&entry); decErr != nil {
			// Corrupt or format-mismatched entry: treat as a miss, never fatal.
			return nil
		}
		found = true
		return nil
	})
	if err != nil || !found || entry.ContentHash != hash {
		return nil, false
	}
	return entry.Tags, true
}

// SetKeywords overwrites the cached tag entry for path and flushes.
func (c *Cache) SetKeywords(path string, content string, tags []string) error {
	entry := tagEntry{ContentHash: HashContent(content), Tags: tags}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(entry); err != nil {
		return ferrors.Wrap(ferrors.Cache, "encode tag entry", err)
	}

	err := c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(tagsBucket).Put([]byte(path), buf.Bytes())
	})
	if err != nil {
		return ferrors.Wrap(ferrors.Cache, "write tag entry", err)
	}
	return nil
}

// Remove erases the tag entry for path and flushes.
func (c *Cache) Remove(path string) error {
	err := c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(tagsBucket).Delete([]byte(path))
	})
	if err != nil {
		return ferrors.Wrap(ferrors.Cache, "remove tag entry", err)
	}
	return nil
}

// CheckFileStatus compares the filesystem's current size/mtime for
// path against the cached FileMetaEntry.
func (c *Cache) CheckFileStatus(path string) FileStatus {
	info, statErr := os.Stat(path)
	if statErr != nil {
		return StatusNew
	}

	var entry metaEntry
	found := false
	err := c.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(metaBucket).Get([]byte(path))
		if raw == nil {
			return nil
		}
		dec := gob.NewDecoder(bytes.NewReader(raw))
		if decErr := dec.Decode(&entry); decErr != nil {
			return nil
		}
		found = true
		return nil
	})
	if err != nil || !found {
		return StatusNew
	}

	if uint64(info.Size()) != entry.FileSize || info.ModTime().Unix() > entry.Mtime {
		return StatusModified
	}
	return StatusUnchanged
}

// SaveFileMeta writes the current filesystem size/mtime for path as
// an indexed FileMetaEntry.
func (c *Cache) SaveFileMeta(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return ferrors.Wrap(ferrors.FileNotFound, "stat file for meta save", err)
	}

	entry := metaEntry{
		FileSize: uint64(info.Size()),
		Mtime:    info.ModTime().Unix(),
		Indexed:  true,
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(entry); err != nil {
		return ferrors.Wrap(ferrors.Cache, "encode meta entry", err)
	}

	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(metaBucket).Put([]byte(path), buf.Bytes())
	})
}

// RemoveFileMeta erases the meta entry for path.
func (c *Cache) RemoveFileMeta(path string) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(metaBucket).Delete([]byte(path))
	})
}

// AllMetaPaths iterates every path with a stored FileMetaEntry, for
// orphan sweep at startup.
func (c *Cache) AllMetaPaths() ([]string, error) {
	var paths []string
	err := c.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(metaBucket).ForEach(func(k, _ []byte) error {
			paths = append(paths, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, ferrors.Wrap(ferrors.Cache, "iterate meta paths", err)
	}
	return paths, nil
}
