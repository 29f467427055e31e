// Package resultstore provides a fast membership index over a batch
// run's (trial, task_index) completion keys. The batch runner adds the
// output JSONL's keys to it with Mark at the start of every Execute;
// opening an Index loads nothing. The JSONL file remains the source of truth; an Index is
// a cache in front of it, never a second ledger.
package resultstore

import "fmt"

// Key identifies one completed job.
type Key struct {
	Trial int
	Idx   int
}

func (k Key) String() string { return fmt.Sprintf("%d:%d", k.Trial, k.Idx) }

// Index is a membership set over completed Keys, backed by a concrete
// store (sqlite for single-host runs, postgres for multi-host
// aggregation).
type Index interface {
	// Rebuild replaces the index contents with exactly keys.
	Rebuild(keys []Key) error
	// Mark records one additional completed key.
	Mark(key Key) error
	// Has reports whether key was previously marked.
	Has(key Key) bool
	// Close releases the backing connection.
	Close() error
}
