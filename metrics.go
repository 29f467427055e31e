package loom

import "context"

// Metrics records counters and durations for engine operations (step
// completion, LLM calls, tool dispatch). The observer package provides an
// OTEL-backed implementation via NewMetrics(). When no Metrics is
// configured, recording is skipped (nil check), mirroring Tracer.
type Metrics interface {
	// RecordStep is called once per completed FSM step with its decision
	// mode and, if the run terminated this step, the stop reason.
	RecordStep(ctx context.Context, decisionMode string, stopReason string)
	// RecordLLMCall is called once per LLM invocation with its wall-clock
	// duration and whether it returned a transport error.
	RecordLLMCall(ctx context.Context, duration float64, failed bool)
	// RecordToolCall is called once per dispatched ToolCall with its name,
	// resulting status, and wall-clock duration.
	RecordToolCall(ctx context.Context, name string, status string, duration float64)
}
