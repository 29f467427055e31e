package tool

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	loom "github.com/loomrun/loom"
)

// Registry is the concrete loom.ToolRegistry implementation: a name-keyed
// tool table plus an ordered list of Toolsets contributing lifecycle hooks.
type Registry struct {
	mu       sync.RWMutex
	tools    map[string]Tool
	order    []string
	toolsets []Toolset
	logger   *slog.Logger
}

// NewRegistry returns an empty Registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		tools:  map[string]Tool{},
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Option configures a Registry at construction time.
type Option func(*Registry)

// WithLogger overrides the registry's structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// Register adds a tool. Registering a duplicate name fails unless replace
// is true, in which case the prior entry is replaced in place (keeping its
// original position in Names()).
func (r *Registry) Register(t Tool, replace ...bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	doReplace := len(replace) > 0 && replace[0]
	if _, exists := r.tools[t.Name]; exists && !doReplace {
		return fmt.Errorf("tool %q already registered; pass replace=true to overwrite", t.Name)
	}
	if _, exists := r.tools[t.Name]; !exists {
		r.order = append(r.order, t.Name)
	}
	r.tools[t.Name] = t
	return nil
}

// RegisterToolset adds every tool the Toolset exposes and records the
// Toolset itself so Setup/Teardown run at the right point in a run.
func (r *Registry) RegisterToolset(ts Toolset) error {
	r.mu.Lock()
	r.toolsets = append(r.toolsets, ts)
	r.mu.Unlock()
	for _, t := range ts.Tools() {
		if err := r.Register(t); err != nil {
			return fmt.Errorf("toolset %q: %w", ts.Name, err)
		}
	}
	return nil
}

// Names returns registered tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Versions maps each registered Toolset's name to its version string.
func (r *Registry) Versions() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.toolsets))
	for _, ts := range r.toolsets {
		out[ts.Name] = ts.Version
	}
	return out
}

// FormatSchema renders every registered tool as text for substitution into
// a "{{tool_schema}}" system prompt placeholder.
func (r *Registry) FormatSchema() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.order))
	copy(names, r.order)
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		t := r.tools[name]
		fmt.Fprintf(&b, "- %s(%s): %s\n", t.Name, strings.Join(t.RequiredParams, ", "), t.Description)
	}
	return b.String()
}

// SetupAll runs every Toolset's Setup hook in registration order, stopping
// and returning the first error encountered.
func (r *Registry) SetupAll(ctx context.Context) error {
	r.mu.RLock()
	toolsets := append([]Toolset(nil), r.toolsets...)
	r.mu.RUnlock()
	for _, ts := range toolsets {
		if ts.Setup == nil {
			continue
		}
		if err := ts.Setup(ctx); err != nil {
			return fmt.Errorf("toolset %q setup: %w", ts.Name, err)
		}
	}
	return nil
}

// TeardownAll runs every Toolset's Teardown hook in reverse registration
// order. A failing teardown is logged and collected but does not prevent
// the remaining teardowns from running.
func (r *Registry) TeardownAll(ctx context.Context) []error {
	r.mu.RLock()
	toolsets := append([]Toolset(nil), r.toolsets...)
	r.mu.RUnlock()

	var errs []error
	for i := len(toolsets) - 1; i >= 0; i-- {
		ts := toolsets[i]
		if ts.Teardown == nil {
			continue
		}
		if err := ts.Teardown(ctx); err != nil {
			r.logger.Error("toolset teardown failed", "toolset", ts.Name, "error", err)
			errs = append(errs, fmt.Errorf("toolset %q teardown: %w", ts.Name, err))
		}
	}
	return errs
}

var _ loom.ToolRegistry = (*Registry)(nil)
