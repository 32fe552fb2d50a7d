package report

import (
	"context"
	"fmt"
	"sync"
)

// MemoryWriter collects snapshots in memory. Used by tests and as the
// destination of last resort when no sheet is configured.
type MemoryWriter struct {
	mu        sync.Mutex
	snapshots []Snapshot
}

var _ SnapshotWriter = (*MemoryWriter)(nil)

func NewMemoryWriter() *MemoryWriter {
	return &MemoryWriter{}
}

func (w *MemoryWriter) AppendSnapshot(_ context.Context, snap Snapshot) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.snapshots = append(w.snapshots, snap)
	return fmt.Sprintf("memory:%d", len(w.snapshots)), nil
}

// Snapshots returns a copy of everything appended so far.
func (w *MemoryWriter) Snapshots() []Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]Snapshot, len(w.snapshots))
	copy(out, w.snapshots)
	return out
}
