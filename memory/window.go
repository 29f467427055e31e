package memory

import (
	"sync"

	loom "github.com/loomrun/loom"
)

// Window is the simplest strategy: retrieval returns the last N records
// (optionally role/step filtered); eviction drops everything older than N.
type Window struct {
	size int

	mu      sync.Mutex
	records []loom.MemoryRecord
}

// NewWindow returns a Window retaining at most size records. size <= 0
// means unbounded (Evict becomes a no-op).
func NewWindow(size int) *Window {
	return &Window{size: size}
}

func (w *Window) Append(record loom.MemoryRecord) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.records = append(w.records, record)
}

func (w *Window) Retrieve(query loom.MemoryQuery) []loom.MemoryRecord {
	w.mu.Lock()
	records := append([]loom.MemoryRecord(nil), w.records...)
	w.mu.Unlock()

	n := query.MaxItems
	if n <= 0 {
		n = w.size
	}
	if n > 0 && len(records) > n {
		records = records[len(records)-n:]
	}
	records = filterAndFormat(records, query)
	if query.Format == loom.FormatMessages {
		return asMessages(records, sameRole, sameContent)
	}
	return records
}

func (w *Window) Evict() {
	if w.size <= 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.records) > w.size {
		w.records = w.records[len(w.records)-w.size:]
	}
}

var _ loom.MemoryStore = (*Window)(nil)
