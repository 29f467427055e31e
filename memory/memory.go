// Package memory implements the three interchangeable history strategies:
// Window, Summary, and Vector. All three share loom.MemoryStore;
// retrieval is always a pure projection, eviction is the only place a
// store's backing slice shrinks.
package memory

import (
	"sort"
	"strings"

	loom "github.com/loomrun/loom"
)

// filterAndFormat applies the roles/step_min/step_max slice of a
// MemoryQuery to records (already selected by strategy-specific logic).
// It does not look at query.Format; callers shape the result afterwards.
func filterAndFormat(records []loom.MemoryRecord, query loom.MemoryQuery) []loom.MemoryRecord {
	out := make([]loom.MemoryRecord, 0, len(records))
	var roleSet map[loom.TrajectoryRole]bool
	if len(query.Roles) > 0 {
		roleSet = make(map[loom.TrajectoryRole]bool, len(query.Roles))
		for _, r := range query.Roles {
			roleSet[r] = true
		}
	}
	for _, r := range records {
		if roleSet != nil && !roleSet[r.Role] {
			continue
		}
		if query.StepMin > 0 && r.StepID < query.StepMin {
			continue
		}
		if query.StepMax > 0 && r.StepID > query.StepMax {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StepID < out[j].StepID })
	return out
}

// truncate returns a short preview of s, used by summarization routines
// that condense older records into rolling text.
func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// asMessages shapes records to {role, content} for format="messages"
// retrieval, letting each strategy decide how a
// record's role and content are derived (e.g. vector tags retrieved
// records as role=user prefixed with "Observation:").
func asMessages(records []loom.MemoryRecord, roleFor func(loom.MemoryRecord) loom.TrajectoryRole, contentFor func(loom.MemoryRecord) string) []loom.MemoryRecord {
	out := make([]loom.MemoryRecord, len(records))
	for i, r := range records {
		out[i] = loom.MemoryRecord{Role: roleFor(r), Content: contentFor(r), StepID: r.StepID}
	}
	return out
}

func sameRole(r loom.MemoryRecord) loom.TrajectoryRole { return r.Role }
func sameContent(r loom.MemoryRecord) string           { return r.Content }
