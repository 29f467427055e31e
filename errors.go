package loom

import (
	"errors"
	"fmt"
	"time"
)

// ParseFailureError reports that the Decision Parser could not extract a
// usable Decision from raw model text. The parser itself never returns this
// as a Go error — it is wrapped into a Decision with Mode == DecisionError —
// and the engine reconstructs it when converting that Decision (or a
// ToolCall whose Error field is set) into an error envelope.
type ParseFailureError struct {
	Reason string
	Raw    string
}

func (e *ParseFailureError) Error() string {
	frag := e.Raw
	if len(frag) > 120 {
		frag = frag[:120] + "..."
	}
	return fmt.Sprintf("parse failure: %s (raw: %q)", e.Reason, frag)
}

// ToolNotFoundError reports dispatch against an unregistered tool name.
type ToolNotFoundError struct {
	Name      string
	Available []string
}

func (e *ToolNotFoundError) Error() string {
	return fmt.Sprintf("tool_not_found: %q not in %v", e.Name, e.Available)
}

// ToolValidationError reports missing required arguments for a tool call.
type ToolValidationError struct {
	Name    string
	Missing []string
}

func (e *ToolValidationError) Error() string {
	return fmt.Sprintf("tool_validation: %q missing required args %v", e.Name, e.Missing)
}

// ToolExecutionError wraps a panic or error raised by a tool's Run method.
type ToolExecutionError struct {
	Name string
	Type string
	Err  error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("tool_execution: %q (%s): %v", e.Name, e.Type, e.Err)
}

func (e *ToolExecutionError) Unwrap() error { return e.Err }

// ToolTimeoutError reports a tool call that exceeded its configured timeout.
type ToolTimeoutError struct {
	Name    string
	Timeout time.Duration
}

func (e *ToolTimeoutError) Error() string {
	return fmt.Sprintf("tool %q exceeded its %s timeout", e.Name, e.Timeout)
}

// LLMTransportError wraps a transport-level failure from the LLM client.
// The engine does not abort on this; the message becomes the raw response
// text fed to the parser.
type LLMTransportError struct {
	Err error
}

func (e *LLMTransportError) Error() string { return fmt.Sprintf("llm_transport: %v", e.Err) }
func (e *LLMTransportError) Unwrap() error { return e.Err }

const llmTransportPrefix = "llm_transport: "

// IsLLMTransportError reports whether raw is the serialized text of an
// LLMTransportError, the form it takes once it's been handed to the parser
// as a raw response. Used by metrics recording to tell a
// transport failure apart from genuine model output.
func IsLLMTransportError(raw string) bool {
	return len(raw) >= len(llmTransportPrefix) && raw[:len(llmTransportPrefix)] == llmTransportPrefix
}

// FatalEngineError marks an engine-internal invariant violation, such as a
// trace write failure. It is the only failure kind that forces
// stop_reason=fatal_error regardless of what else is in flight.
type FatalEngineError struct {
	Err error
}

func (e *FatalEngineError) Error() string { return fmt.Sprintf("fatal_engine: %v", e.Err) }
func (e *FatalEngineError) Unwrap() error { return e.Err }

// ActionResultFromError converts a typed dispatch or parse failure into
// the uniform error envelope fed back to the model. The payload always
// carries message, error_type, and the originating args; each error type
// contributes its own detail fields (available tool names, missing
// params).
func ActionResultFromError(err error, args map[string]any) ActionResult {
	payload := map[string]any{
		"message":    err.Error(),
		"error_type": "error",
		"args":       args,
	}

	var (
		parse      *ParseFailureError
		notFound   *ToolNotFoundError
		validation *ToolValidationError
		execution  *ToolExecutionError
		timeout    *ToolTimeoutError
	)
	switch {
	case errors.As(err, &parse):
		payload["message"] = parse.Reason
		payload["error_type"] = "parse_failure"
	case errors.As(err, &notFound):
		payload["message"] = "tool_not_found"
		payload["error_type"] = "tool_not_found"
		payload["available"] = notFound.Available
	case errors.As(err, &validation):
		payload["message"] = fmt.Sprintf("missing required args %v", validation.Missing)
		payload["error_type"] = "tool_validation"
		payload["missing"] = validation.Missing
	case errors.As(err, &execution):
		payload["message"] = execution.Err.Error()
		payload["error_type"] = execution.Type
	case errors.As(err, &timeout):
		payload["error_type"] = "timeout"
	}
	return ActionResult{Status: StatusError, Payload: payload}
}
