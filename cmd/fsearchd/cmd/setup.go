package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/fsearchd/fsearchd/internal/config"
	"github.com/fsearchd/fsearchd/internal/extract"
	"github.com/fsearchd/fsearchd/internal/indexer"
	"github.com/fsearchd/fsearchd/internal/keywords"
	"github.com/fsearchd/fsearchd/internal/registry"
	"github.com/fsearchd/fsearchd/internal/scanner"
	"github.com/fsearchd/fsearchd/internal/store"
	"github.com/fsearchd/fsearchd/internal/tagcache"
)

// coreStack bundles the collaborators every subcommand wires together:
// the bleve-backed Store, the bbolt-backed Tag Cache, the Registry
// arbiter, the Indexer, and a tree Scanner built from the same
// WalkerConfig the Watcher uses for its live-event filtering.
type coreStack struct {
	cfg     *config.Config
	store   *store.Store
	cache   *tagcache.Cache
	reg     *registry.Registry
	indexer *indexer.Indexer
	scanner *scanner.Scanner
}

func buildCoreStack(rootPath string) (*coreStack, error) {
	// FSEARCHD_WATCH_PATH is the config package's own override
	// mechanism for this field; routing the CLI argument through it
	// keeps Load's "file, then env, then validate" sequencing intact
	// instead of re-validating a second time here.
	if rootPath != "" {
		os.Setenv("FSEARCHD_WATCH_PATH", rootPath)
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if err := os.MkdirAll(cfg.Paths.StoragePath, 0755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	if err := os.MkdirAll(cfg.Paths.CachePath, 0755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	s, err := store.Open(cfg.Paths.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	cache, err := tagcache.Open(cfg.Paths.CachePath)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("open tag cache: %w", err)
	}

	extractor := extract.New(cfg.Walker.SupportedExtensions)
	keywordExt := keywords.New()

	ix := indexer.New(s, cache, extractor, keywordExt, cfg.AI.KeywordCount)

	reg := registry.New()

	sc, err := scanner.New(&cfg.Walker, reg, cache, ix)
	if err != nil {
		cache.Close()
		s.Close()
		return nil, fmt.Errorf("build scanner: %w", err)
	}

	return &coreStack{
		cfg:     cfg,
		store:   s,
		cache:   cache,
		reg:     reg,
		indexer: ix,
		scanner: sc,
	}, nil
}

func (cs *coreStack) Close() {
	if err := cs.cache.Close(); err != nil {
		slog.Warn("failed to close tag cache", slog.String("error", err.Error()))
	}
	if err := cs.store.Close(); err != nil {
		slog.Warn("failed to close store", slog.String("error", err.Error()))
	}
}
