// Package index implements the Coordinator: the glue between the
// Watcher (C11) and the Registry/Indexer pair, realizing the
// combined scanner+watcher state machine — events observed while the
// scan is still in flight are buffered in the Registry and replayed
// exactly once the scan completes; events observed afterward are
// dispatched directly.
package index

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsearchd/fsearchd/internal/indexer"
	"github.com/fsearchd/fsearchd/internal/registry"
	"github.com/fsearchd/fsearchd/internal/watcher"
)

// DebounceWindow is the short pause the Coordinator gives a writer to
// finish before dispatching a create/modify event to the Indexer.
// Most coalescing has already happened one layer up in the Watcher's
// own debouncer; this second wait, equal in length to the Watcher's
// default debounce window, absorbs the remaining write-in-progress race.
const DebounceWindow = 200 * time.Millisecond

// CoordinatorConfig configures a Coordinator.
type CoordinatorConfig struct {
	// RootPath is the absolute path the watcher is rooted at; event
	// paths arrive relative to it.
	RootPath string

	// Registry gates concurrent processing and buffers pre-scan events.
	Registry *registry.Registry

	// Indexer performs the actual (re)index/delete work.
	Indexer *indexer.Indexer

	// SupportedExtensions restricts eligible files, mirroring the
	// Scanner's own extension filter so the two traversals agree.
	SupportedExtensions []string

	// Debounce overrides DebounceWindow; zero means use the default.
	Debounce time.Duration
}

// Coordinator processes watcher events against the Registry/Indexer
// pair, implementing the scan-then-drain-then-live sequencing.
type Coordinator struct {
	rootPath  string
	reg       *registry.Registry
	idx       *indexer.Indexer
	supported map[string]struct{}
	debounce  time.Duration

	mu sync.Mutex
}

// NewCoordinator builds a Coordinator from cfg.
func NewCoordinator(cfg CoordinatorConfig) *Coordinator {
	supported := make(map[string]struct{}, len(cfg.SupportedExtensions))
	for _, ext := range cfg.SupportedExtensions {
		supported[strings.ToLower(ext)] = struct{}{}
	}

	debounce := cfg.Debounce
	if debounce == 0 {
		debounce = DebounceWindow
	}

	return &Coordinator{
		rootPath:  cfg.RootPath,
		reg:       cfg.Registry,
		idx:       cfg.Indexer,
		supported: supported,
		debounce:  debounce,
	}
}

// DrainPendingScanEvents flips the Registry's scan-completed flag and
// replays every event buffered while the scan was in flight, exactly
// once. Call this after the Scanner's initial traversal finishes and
// before live watcher events are allowed to flow through HandleEvents.
func (c *Coordinator) DrainPendingScanEvents(ctx context.Context) {
	drained := c.reg.CompleteScan()
	if len(drained) == 0 {
		return
	}

	slog.Info("draining buffered watcher events after scan completion",
		slog.Int("count", len(drained)))

	var wg sync.WaitGroup
	for _, pending := range drained {
		wg.Add(1)
		go func(pending registry.PendingEvent) {
			defer wg.Done()
			c.dispatch(ctx, pending.Path, eventKindOperation(pending.Kind))
		}(pending)
	}
	wg.Wait()
}

// HandleEvents processes one debounced batch from the Watcher. Events
// observed before the scan completes are buffered into the Registry
// instead of being processed immediately, so the initial scan and the
// live watcher never race on the same path.
func (c *Coordinator) HandleEvents(ctx context.Context, events []watcher.FileEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, event := range events {
		if event.IsDir {
			continue
		}
		if !c.isSupported(event.Path) {
			continue
		}

		if !c.reg.IsScanCompleted() {
			c.reg.AddPendingEvent(event.Path, operationEventKind(event.Operation))
			continue
		}

		go c.dispatch(ctx, event.Path, event.Operation)
	}
}

// dispatch runs the actual debounce-then-process logic for one path,
// used both for live events and for the post-scan replay.
func (c *Coordinator) dispatch(ctx context.Context, relPath string, op watcher.Operation) {
	absPath := filepath.Join(c.rootPath, relPath)

	// Some platforms misreport deletions as modifies; always trust the
	// filesystem over the reported operation kind.
	if _, err := os.Stat(absPath); os.IsNotExist(err) {
		op = watcher.OpDelete
	}

	switch op {
	case watcher.OpCreate, watcher.OpModify:
		c.indexWithDebounce(ctx, absPath)
	case watcher.OpDelete:
		if err := c.idx.DeleteFile(absPath); err != nil {
			slog.Warn("failed to delete file from index",
				slog.String("path", relPath), slog.String("error", err.Error()))
		}
		c.reg.MarkDeleted(absPath)
	}
}

// indexWithDebounce waits the configured debounce window to let a
// writer finish, then claims the path via the Registry and invokes
// the Indexer. A refused claim (concurrent duplicate event) is a
// silent skip, per the state machine's "drop (registry refuses)".
func (c *Coordinator) indexWithDebounce(ctx context.Context, absPath string) {
	select {
	case <-time.After(c.debounce):
	case <-ctx.Done():
		return
	}

	info, err := os.Stat(absPath)
	if err != nil {
		// Deleted during the debounce wait; treat as delete.
		if err := c.idx.DeleteFile(absPath); err != nil {
			slog.Warn("failed to delete file discovered gone mid-debounce",
				slog.String("path", absPath), slog.String("error", err.Error()))
		}
		c.reg.MarkDeleted(absPath)
		return
	}

	if !c.reg.TryStartProcessing(absPath, info.ModTime()) {
		return
	}
	defer c.reg.FinishProcessing(absPath)

	if err := c.idx.IndexFile(absPath); err != nil {
		slog.Warn("failed to index file from watcher event",
			slog.String("path", absPath), slog.String("error", err.Error()))
	}
}

func (c *Coordinator) isSupported(relPath string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(relPath)), ".")
	_, ok := c.supported[ext]
	return ok
}

func operationEventKind(op watcher.Operation) registry.EventKind {
	switch op {
	case watcher.OpCreate:
		return registry.EventCreate
	case watcher.OpDelete:
		return registry.EventDelete
	default:
		return registry.EventModify
	}
}

func eventKindOperation(kind registry.EventKind) watcher.Operation {
	switch kind {
	case registry.EventCreate:
		return watcher.OpCreate
	case registry.EventDelete:
		return watcher.OpDelete
	default:
		return watcher.OpModify
	}
}
