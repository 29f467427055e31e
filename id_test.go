package loom

import (
	"testing"
	"time"
)

func TestNewID(t *testing.T) {
	id1 := NewID()
	id2 := NewID()
	if len(id1) != 36 {
		t.Errorf("expected 36-char UUID, got %d: %s", len(id1), id1)
	}
	if id1 == id2 {
		t.Error("two IDs should be unique")
	}
}

func TestDefaultSeed(t *testing.T) {
	t1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Nanosecond)
	if DefaultSeed(t1) == DefaultSeed(t2) {
		t.Error("DefaultSeed should vary with its input time")
	}
	if DefaultSeed(t1) != t1.UnixNano() {
		t.Errorf("DefaultSeed(%v) = %d, want %d", t1, DefaultSeed(t1), t1.UnixNano())
	}
}
