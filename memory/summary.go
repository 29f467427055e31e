package memory

import (
	"strings"
	"sync"

	loom "github.com/loomrun/loom"
)

// Summary keeps the last K records verbatim plus a rolling condensed
// summary of everything evicted before them.
type Summary struct {
	keepLast int

	mu        sync.Mutex
	records   []loom.MemoryRecord
	summaries []string
}

// NewSummary returns a Summary strategy retaining keepLast verbatim
// records.
func NewSummary(keepLast int) *Summary {
	if keepLast <= 0 {
		keepLast = 10
	}
	return &Summary{keepLast: keepLast}
}

func (s *Summary) Append(record loom.MemoryRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
}

func (s *Summary) Retrieve(query loom.MemoryQuery) []loom.MemoryRecord {
	s.mu.Lock()
	records := append([]loom.MemoryRecord(nil), s.records...)
	summary := s.condensed()
	s.mu.Unlock()

	n := query.MaxItems
	if n <= 0 {
		n = s.keepLast
	}
	if len(records) > n {
		records = records[len(records)-n:]
	}
	records = filterAndFormat(records, query)

	if summary != "" {
		summaryRecord := loom.MemoryRecord{
			Role:    loom.RoleUser,
			Content: "Summary of earlier turns: " + summary,
			StepID:  0,
		}
		records = append([]loom.MemoryRecord{summaryRecord}, records...)
	}

	if query.Format == loom.FormatMessages {
		return asMessages(records, sameRole, sameContent)
	}
	return records
}

// Evict condenses everything beyond keepLast into the rolling summary and
// drops the underlying records.
func (s *Summary) Evict() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.records) <= s.keepLast {
		return
	}
	overflow := s.records[:len(s.records)-s.keepLast]
	s.summaries = append(s.summaries, condense(overflow))
	s.records = s.records[len(s.records)-s.keepLast:]
}

func (s *Summary) condensed() string {
	return strings.Join(s.summaries, " | ")
}

func condense(records []loom.MemoryRecord) string {
	parts := make([]string, len(records))
	for i, r := range records {
		parts[i] = string(r.Role) + ":" + truncate(r.Content, 80)
	}
	return strings.Join(parts, " | ")
}

var _ loom.MemoryStore = (*Summary)(nil)
