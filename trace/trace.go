// Package trace implements the append-only run trace: events.jsonl,
// steps.jsonl, and a manifest.json written once at finalize.
// Encoding is bit-stable: UTF-8, one JSON object per line, "\n" terminated,
// no BOM, unknown keys ignored on read.
package trace

import "time"

// Event is one lifecycle record appended to events.jsonl.
type Event struct {
	Type      string         `json:"type"`
	StepID    int            `json:"step_id"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// Event types a run emits.
const (
	EventRunStart    = "run_start"
	EventStepStart   = "step_start"
	EventLLMRequest  = "llm_request"
	EventLLMResponse = "llm_response"
	EventToolCall    = "tool_call"
	EventStepEnd     = "step_end"
	EventRunEnd      = "run_end"
)

// StepRecord is one completed-step record appended to steps.jsonl.
type StepRecord struct {
	StepID        int            `json:"step_id"`
	Rationale     string         `json:"rationale,omitempty"`
	DecisionMode  string         `json:"decision_mode"`
	Actions       []any          `json:"actions,omitempty"`
	ActionResults []any          `json:"action_results,omitempty"`
	StateDiff     []any          `json:"state_diff,omitempty"`
	StopReason    string         `json:"stop_reason,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// ManifestStatus enumerates the terminal status a run's manifest records.
type ManifestStatus string

const (
	StatusCompleted ManifestStatus = "completed"
	StatusAborted   ManifestStatus = "aborted"
)

// Summary is the manifest's compact run outcome.
type Summary struct {
	StopReason  string `json:"stop_reason"`
	FinalResult string `json:"final_result"`
	Steps       int    `json:"steps"`
}

// Manifest is written once, at finalize. Every key is always
// emitted, zero-valued or not: the manifest key set is part of the
// bit-stable trace format.
type Manifest struct {
	RunID         string            `json:"run_id"`
	StartedAt     time.Time         `json:"started_at"`
	EndedAt       time.Time         `json:"ended_at"`
	Status        ManifestStatus    `json:"status"`
	ModelID       string            `json:"model_id"`
	PromptHash    string            `json:"prompt_hash"`
	ToolVersions  map[string]string `json:"tool_versions"`
	Seed          int64             `json:"seed"`
	RunConfigHash string            `json:"run_config_hash"`
	Summary       Summary           `json:"summary"`
}
