package loom

import "context"

// Parser converts raw model text into a Decision. Implementations never
// return a Go error: any failure is represented as Decision{Mode:
// DecisionError} carrying the failure reason and the offending text
// fragment.
type Parser interface {
	Parse(raw string, availableTools []string) Decision
}

// ToolRegistry is the contract the Engine dispatches actions through. It
// abstracts over the concrete tool package's Registry so the engine does
// not import it directly.
type ToolRegistry interface {
	// Dispatch looks up, validates, and executes one ToolCall, returning a
	// populated ActionResult. It never panics past its own boundary.
	Dispatch(ctx context.Context, call ToolCall) ActionResult
	// Names returns the currently registered tool names.
	Names() []string
	// Versions maps each registered Toolset's name to its version string,
	// recorded in the trace manifest's tool_versions field.
	Versions() map[string]string
	// FormatSchema renders the registry's tools as text suitable for
	// substitution into a "{{tool_schema}}" system prompt placeholder.
	FormatSchema() string
	// SetupAll runs every registered Toolset's Setup hook in registration
	// order.
	SetupAll(ctx context.Context) error
	// TeardownAll runs every registered Toolset's Teardown hook in reverse
	// registration order, continuing past individual failures.
	TeardownAll(ctx context.Context) []error
}

// MemoryQuery is the retrieval request shape shared by all memory
// strategies.
type MemoryQuery struct {
	Roles    []TrajectoryRole
	StepMin  int
	StepMax  int
	MaxItems int
	Text     string
	TopK     int
	Format   MemoryFormat
}

// MemoryFormat selects the shape Retrieve returns records in.
type MemoryFormat string

const (
	FormatRecords  MemoryFormat = "records"
	FormatMessages MemoryFormat = "messages"
)

// MemoryStore is the shared interface Window, Summary, and Vector
// strategies all implement. Retrieve is a pure projection: it never
// mutates store state. Evict is the only mutating operation besides
// Append.
type MemoryStore interface {
	Append(record MemoryRecord)
	Retrieve(query MemoryQuery) []MemoryRecord
	Evict()
}
