package memory

import (
	"testing"

	loom "github.com/loomrun/loom"
)

func TestWindow_RetrieveIsPure(t *testing.T) {
	w := NewWindow(3)
	for i := 0; i < 5; i++ {
		w.Append(loom.MemoryRecord{Role: loom.RoleUser, Content: "x", StepID: i})
	}
	first := w.Retrieve(loom.MemoryQuery{})
	second := w.Retrieve(loom.MemoryQuery{})
	if len(first) != len(second) {
		t.Fatalf("retrieve is not pure: %d vs %d", len(first), len(second))
	}
	if len(first) != 3 {
		t.Fatalf("expected window of 3, got %d", len(first))
	}
}

func TestWindow_EvictDropsOlder(t *testing.T) {
	w := NewWindow(2)
	for i := 0; i < 4; i++ {
		w.Append(loom.MemoryRecord{Role: loom.RoleUser, Content: "x", StepID: i})
	}
	w.Evict()
	remaining := w.Retrieve(loom.MemoryQuery{MaxItems: 10})
	if len(remaining) != 2 {
		t.Fatalf("expected 2 records after evict, got %d", len(remaining))
	}
	if remaining[0].StepID != 2 {
		t.Fatalf("expected oldest remaining step_id=2, got %d", remaining[0].StepID)
	}
}

func TestSummary_EvictCondensesOverflow(t *testing.T) {
	s := NewSummary(2)
	for i := 0; i < 5; i++ {
		s.Append(loom.MemoryRecord{Role: loom.RoleAssistant, Content: "turn", StepID: i})
	}
	s.Evict()
	records := s.Retrieve(loom.MemoryQuery{})
	// first record is the synthesized summary, then 2 verbatim records.
	if len(records) != 3 {
		t.Fatalf("expected summary + 2 verbatim records, got %d", len(records))
	}
}

func TestVector_RetrieveByQueryText(t *testing.T) {
	v := NewVector(nil, 2)
	v.Append(loom.MemoryRecord{Role: loom.RoleAssistant, Content: "apples and oranges", StepID: 0})
	v.Append(loom.MemoryRecord{Role: loom.RoleAssistant, Content: "xyz", StepID: 1})
	records := v.Retrieve(loom.MemoryQuery{Text: "apples", TopK: 1, Format: loom.FormatMessages})
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].Role != loom.RoleUser {
		t.Fatalf("expected vector strategy to tag role=user, got %s", records[0].Role)
	}
}

func TestVector_NeverEvicts(t *testing.T) {
	v := NewVector(nil, 5)
	v.Append(loom.MemoryRecord{Role: loom.RoleUser, Content: "a", StepID: 0})
	v.Evict()
	if len(v.records) != 1 {
		t.Fatal("vector Evict must be a no-op")
	}
}
