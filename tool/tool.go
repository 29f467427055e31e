// Package tool implements the Tool Registry & Dispatcher: type-safe
// tool lookup, argument validation, and a uniform execution envelope that
// never lets a tool fault the engine.
package tool

import (
	"context"
	"time"
)

// Tool is one registered capability. Run returns a mapping that MUST
// include a "status" key in {success, partial, error}; the dispatcher
// wraps it as-is into an ActionResult envelope. Timeout, when
// non-zero, bounds one call's wall-clock time; the watchdog returns
// status="error", error_type="timeout" without aborting the run.
type Tool struct {
	Name            string
	Description     string
	ParameterSchema map[string]any
	RequiredParams  []string
	Permissions     []string
	Timeout         time.Duration
	Run             func(ctx context.Context, args map[string]any) (map[string]any, error)
}

// Toolset is a named bundle of tools with optional lifecycle hooks the
// registry invokes at run start (Setup, registration order) and run end
// (Teardown, reverse registration order).
type Toolset struct {
	Name    string
	Version string
	Setup   func(ctx context.Context) error
	Teardown func(ctx context.Context) error
	Tools   func() []Tool
}
