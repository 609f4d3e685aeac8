// Package scanner implements the Scanner (C10): a tree walk that
// consults the Tag Cache's staleness check and the File Registry
// before dispatching eligible files to the Indexer, with two selectable
// traversal modes and a startup orphan sweep.
package scanner

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/fsearchd/fsearchd/internal/config"
	"github.com/fsearchd/fsearchd/internal/gitignore"
	"github.com/fsearchd/fsearchd/internal/indexer"
	"github.com/fsearchd/fsearchd/internal/registry"
	"github.com/fsearchd/fsearchd/internal/tagcache"
)

// gitignoreCacheSize bounds the number of parsed gitignore matchers
// kept in memory per directory, preventing unbounded growth on deep
// trees with many nested .gitignore files.
const gitignoreCacheSize = 1000

// Stats summarizes one completed scan.
type Stats struct {
	FilesIndexed int
	FilesSkipped int
	Errors       int
	OrphansSwept int
}

// Scanner walks a root directory and dispatches eligible files to an
// Indexer, gated by a Registry and a Tag Cache staleness check.
type Scanner struct {
	cfg       *config.WalkerConfig
	reg       *registry.Registry
	cache     *tagcache.Cache
	idx       *indexer.Indexer
	gicache   *lru.Cache[string, *gitignore.Matcher]
	cacheMu   sync.RWMutex
	supported map[string]struct{}
}

// New builds a Scanner. cfg selects the traversal mode and ignore
// behavior; the collaborators are shared with the Watcher via the
// same Registry and Indexer instances.
func New(cfg *config.WalkerConfig, reg *registry.Registry, cache *tagcache.Cache, idx *indexer.Indexer) (*Scanner, error) {
	gicache, err := lru.New[string, *gitignore.Matcher](gitignoreCacheSize)
	if err != nil {
		return nil, err
	}

	supported := make(map[string]struct{}, len(cfg.SupportedExtensions))
	for _, ext := range cfg.SupportedExtensions {
		supported[strings.ToLower(ext)] = struct{}{}
	}

	return &Scanner{
		cfg:       cfg,
		reg:       reg,
		cache:     cache,
		idx:       idx,
		gicache:   gicache,
		supported: supported,
	}, nil
}

// Scan walks root, dispatching eligible files to the Indexer. It
// sweeps orphaned index entries before traversal begins.
func (s *Scanner) Scan(ctx context.Context, root string) (Stats, error) {
	var stats Stats

	removed, err := s.idx.CleanupOrphanIndexes()
	if err != nil {
		return stats, err
	}
	stats.OrphansSwept = removed

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return stats, err
	}

	if s.cfg.UseRipgrepWalker {
		err = s.walkGitAware(ctx, absRoot, &stats)
	} else {
		err = s.walkPlain(ctx, absRoot, &stats)
	}
	return stats, err
}

// walkPlain performs an unfiltered recursive walk, honoring only
// SkipHidden/FollowSymlinks/MaxDepth/CustomIgnorePatterns.
func (s *Scanner) walkPlain(ctx context.Context, absRoot string, stats *Stats) error {
	return filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if d.IsDir() {
			if s.shouldSkipDir(absRoot, path, d) {
				return filepath.SkipDir
			}
			return nil
		}
		return s.visitFile(path, d, stats)
	})
}

// walkGitAware additionally consults .gitignore files along the
// traversed path, mirroring a repository-style ignore walker.
func (s *Scanner) walkGitAware(ctx context.Context, absRoot string, stats *Stats) error {
	return filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if d.IsDir() {
			if s.shouldSkipDir(absRoot, path, d) {
				return filepath.SkipDir
			}
			if s.cfg.RespectGitignore && path != absRoot && s.isGitignored(absRoot, path) {
				return filepath.SkipDir
			}
			return nil
		}

		if s.cfg.RespectGitignore && s.isGitignored(absRoot, path) {
			stats.FilesSkipped++
			return nil
		}
		return s.visitFile(path, d, stats)
	})
}

func (s *Scanner) shouldSkipDir(absRoot, path string, d fs.DirEntry) bool {
	if path == absRoot {
		return false
	}
	name := d.Name()

	if s.cfg.SkipHidden && strings.HasPrefix(name, ".") {
		return true
	}
	if s.cfg.MaxDepth > 0 {
		rel, err := filepath.Rel(absRoot, path)
		if err == nil {
			depth := len(strings.Split(rel, string(filepath.Separator)))
			if depth > s.cfg.MaxDepth {
				return true
			}
		}
	}

	rel, err := filepath.Rel(absRoot, path)
	if err == nil {
		for _, pat := range s.cfg.CustomIgnorePatterns {
			if ok, _ := doublestar.Match(pat, filepath.ToSlash(rel)); ok {
				return true
			}
		}
	}
	return false
}

// visitFile runs the supported-extension check, the Registry gate,
// and the staleness check, dispatching to the Indexer when eligible.
func (s *Scanner) visitFile(path string, d fs.DirEntry, stats *Stats) error {
	if d.Type()&fs.ModeSymlink != 0 && !s.cfg.FollowSymlinks {
		stats.FilesSkipped++
		return nil
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if _, ok := s.supported[ext]; !ok {
		stats.FilesSkipped++
		return nil
	}

	info, err := d.Info()
	if err != nil {
		stats.FilesSkipped++
		return nil
	}

	if !s.reg.TryStartProcessing(path, info.ModTime()) {
		stats.FilesSkipped++
		return nil
	}
	defer s.reg.FinishProcessing(path)

	if !s.isStale(path, info.ModTime()) {
		stats.FilesSkipped++
		return nil
	}

	if err := s.idx.IndexFile(path); err != nil {
		stats.Errors++
		return nil
	}
	stats.FilesIndexed++
	return nil
}

// isStale compares the Tag Cache's stored file metadata against the
// filesystem's current mtime, standing in for a point query against
// the Index Store — the Tag Cache's meta bucket already tracks
// exactly this per-path (size, mtime) comparison, so no separate
// round trip to the index is needed.
func (s *Scanner) isStale(path string, fsMtime time.Time) bool {
	switch s.cache.CheckFileStatus(path) {
	case tagcache.StatusUnchanged:
		return false
	default:
		return true
	}
}

// isGitignored walks from absRoot down to path's parent directory,
// consulting (and caching) each level's .gitignore file.
func (s *Scanner) isGitignored(absRoot, path string) bool {
	rel, err := filepath.Rel(absRoot, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)

	dir := absRoot
	parts := strings.Split(filepath.Dir(rel), "/")
	if parts[0] == "." {
		parts = nil
	}

	for _, part := range append([]string{""}, parts...) {
		if part != "" {
			dir = filepath.Join(dir, part)
		}
		matcher := s.gitignoreMatcher(dir)
		// Rules carry their .gitignore's absolute directory as base, so
		// they are matched against the absolute path.
		if matcher != nil && matcher.Match(path, false) {
			return true
		}
	}
	return false
}

func (s *Scanner) gitignoreMatcher(dir string) *gitignore.Matcher {
	s.cacheMu.RLock()
	matcher, ok := s.gicache.Get(dir)
	s.cacheMu.RUnlock()
	if ok {
		return matcher
	}

	gitignorePath := filepath.Join(dir, ".gitignore")
	if _, err := os.Stat(gitignorePath); err != nil {
		return nil
	}

	m := gitignore.New()
	if err := m.AddFromFile(gitignorePath, dir); err != nil {
		return nil
	}

	s.cacheMu.Lock()
	s.gicache.Add(dir, m)
	s.cacheMu.Unlock()
	return m
}

// InvalidateGitignoreCache drops every cached matcher, for callers
// that observe a .gitignore file change mid-run.
func (s *Scanner) InvalidateGitignoreCache() {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.gicache.Purge()
}
