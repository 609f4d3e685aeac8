// Package registry implements the File Registry: the single atomic
// arbiter that coordinates the initial scan and the live watcher so
// that the same path is never indexed by two workers at once, and so
// that filesystem events observed mid-scan are buffered and drained
// exactly once when the scan completes.
package registry

import (
	"sync"
	"time"
)

// EventKind is the normalized kind of a buffered filesystem event.
type EventKind int

const (
	EventCreate EventKind = iota
	EventModify
	EventDelete
)

// PendingEvent is a filesystem event observed while the scan is still
// in flight, buffered for replay once the scan completes.
type PendingEvent struct {
	Path      string
	Kind      EventKind
	Timestamp time.Time
}

// fileState tracks what the registry currently knows about one path.
type fileState struct {
	observedMtime time.Time
	processing    bool
}

// Registry is the thread-safe owner of the path state map and the
// pending-event queue. A single RWMutex wraps both, matching the
// single-lock design the component is grounded on: all operations
// below are internally atomic.
type Registry struct {
	mu            sync.RWMutex
	files         map[string]*fileState
	scanCompleted bool
	pendingEvents []PendingEvent
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		files: make(map[string]*fileState),
	}
}

// TryStartProcessing attempts to claim path for processing.
//
// Returns false if the entry exists and is already processing, or if
// the entry exists and its observed mtime is already at or past
// fsMtime (an idempotent skip — nothing changed since the last
// observation). Otherwise claims the path and returns true.
func (r *Registry) TryStartProcessing(path string, fsMtime time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.files[path]
	if !ok {
		r.files[path] = &fileState{observedMtime: fsMtime, processing: true}
		return true
	}

	if state.processing {
		return false
	}
	if !state.observedMtime.Before(fsMtime) {
		return false
	}

	state.processing = true
	state.observedMtime = fsMtime
	return true
}

// FinishProcessing clears the in-flight flag for path. Safe to call
// even if path was never registered.
func (r *Registry) FinishProcessing(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if state, ok := r.files[path]; ok {
		state.processing = false
	}
}

// MarkDeleted removes path from the registry entirely.
func (r *Registry) MarkDeleted(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.files, path)
}

// AddPendingEvent appends an event to the buffered queue, but only
// while the scan is still in flight; once scanCompleted is true the
// caller is expected to handle the event as a live event instead.
func (r *Registry) AddPendingEvent(path string, kind EventKind) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.scanCompleted {
		return
	}
	r.pendingEvents = append(r.pendingEvents, PendingEvent{
		Path:      path,
		Kind:      kind,
		Timestamp: time.Now(),
	})
}

// CompleteScan flips scanCompleted to true and returns (and clears)
// the buffered queue. Subsequent AddPendingEvent calls are no-ops.
func (r *Registry) CompleteScan() []PendingEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.scanCompleted = true
	drained := r.pendingEvents
	r.pendingEvents = nil
	return drained
}

// IsScanCompleted reports whether CompleteScan has been called.
func (r *Registry) IsScanCompleted() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.scanCompleted
}

// IsFileProcessed reports whether the registry's observed mtime for
// path is already at or past fsMtime — used to deduplicate scan vs.
// watcher discovery of the same file.
func (r *Registry) IsFileProcessed(path string, fsMtime time.Time) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	state, ok := r.files[path]
	if !ok {
		return false
	}
	return !state.observedMtime.Before(fsMtime)
}

// Stats returns (tracked path count, in-flight count).
func (r *Registry) Stats() (tracked int, inFlight int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tracked = len(r.files)
	for _, state := range r.files {
		if state.processing {
			inFlight++
		}
	}
	return tracked, inFlight
}
