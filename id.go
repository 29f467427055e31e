package loom

import (
	"time"

	"github.com/google/uuid"
)

// NewID generates a globally unique, time-sortable identifier (UUIDv7,
// RFC 9562). Used for run IDs: the engine names each run's trace
// subdirectory after one, and lexicographic ordering of run IDs matches
// creation order, which is convenient for listing traces on disk.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// DefaultSeed derives a reproducibility seed for runs that don't pin one
// explicitly via engine.WithSeed, so manifest.json's required "seed" field
// is never left zero-valued by omission.
func DefaultSeed(now time.Time) int64 {
	return now.UnixNano()
}
