package trace_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/loomrun/loom/trace"
)

func TestWriter_RoundTripValidatesAgainstSchema(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "run-1")
	w, err := trace.Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	now := time.Now().UTC()
	for _, typ := range []string{
		trace.EventRunStart, trace.EventStepStart, trace.EventLLMRequest,
		trace.EventLLMResponse, trace.EventToolCall, trace.EventStepEnd, trace.EventRunEnd,
	} {
		if err := w.AppendEvent(trace.Event{Type: typ, StepID: 0, Timestamp: now}); err != nil {
			t.Fatalf("AppendEvent(%s): %v", typ, err)
		}
	}
	if err := w.AppendStep(trace.StepRecord{StepID: 0, DecisionMode: "final"}); err != nil {
		t.Fatalf("AppendStep: %v", err)
	}

	if err := w.Finalize(trace.Manifest{
		RunID: "run-1", StartedAt: now, EndedAt: now, Status: trace.StatusCompleted,
		ToolVersions:  map[string]string{},
		RunConfigHash: "deadbeef",
		Summary:       trace.Summary{StopReason: "final_answer", Steps: 1},
	}); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	if err := (trace.SchemaValidator{}).ValidateDir(dir); err != nil {
		t.Fatalf("ValidateDir: %v", err)
	}
}

func TestSchemaValidator_RejectsUnknownEventType(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "run-2")
	w, err := trace.Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	now := time.Now().UTC()
	_ = w.AppendEvent(trace.Event{Type: trace.EventRunStart, StepID: 0, Timestamp: now})
	_ = w.AppendEvent(trace.Event{Type: "made_up_event", StepID: 0, Timestamp: now})
	_ = w.AppendEvent(trace.Event{Type: trace.EventRunEnd, StepID: 0, Timestamp: now})
	_ = w.Finalize(trace.Manifest{
		RunID: "run-2", StartedAt: now, EndedAt: now, Status: trace.StatusCompleted,
		ToolVersions: map[string]string{}, Summary: trace.Summary{StopReason: "final_answer"},
	})

	if err := (trace.SchemaValidator{}).ValidateDir(dir); err == nil {
		t.Fatal("expected ValidateDir to reject an event type outside the schema vocabulary")
	}
}

func TestSchemaValidator_RejectsDuplicateRunEnd(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "run-4")
	w, err := trace.Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	now := time.Now().UTC()
	_ = w.AppendEvent(trace.Event{Type: trace.EventRunStart, StepID: 0, Timestamp: now})
	_ = w.AppendEvent(trace.Event{Type: trace.EventRunEnd, StepID: 0, Timestamp: now})
	_ = w.AppendEvent(trace.Event{Type: trace.EventRunEnd, StepID: 0, Timestamp: now})
	_ = w.Finalize(trace.Manifest{
		RunID: "run-4", StartedAt: now, EndedAt: now, Status: trace.StatusCompleted,
		ToolVersions: map[string]string{}, Summary: trace.Summary{StopReason: "final_answer"},
	})

	if err := (trace.SchemaValidator{}).ValidateDir(dir); err == nil {
		t.Fatal("expected ValidateDir to reject a trace with two run_end events")
	}
}

func TestSchemaValidator_RejectsStepIDGap(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "run-5")
	w, err := trace.Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	now := time.Now().UTC()
	_ = w.AppendEvent(trace.Event{Type: trace.EventRunStart, StepID: 0, Timestamp: now})
	_ = w.AppendEvent(trace.Event{Type: trace.EventRunEnd, StepID: 0, Timestamp: now})
	_ = w.AppendStep(trace.StepRecord{StepID: 0, DecisionMode: "act"})
	_ = w.AppendStep(trace.StepRecord{StepID: 2, DecisionMode: "final"})
	_ = w.Finalize(trace.Manifest{
		RunID: "run-5", StartedAt: now, EndedAt: now, Status: trace.StatusCompleted,
		ToolVersions: map[string]string{}, Summary: trace.Summary{StopReason: "final_answer"},
	})

	if err := (trace.SchemaValidator{}).ValidateDir(dir); err == nil {
		t.Fatal("expected ValidateDir to reject a steps.jsonl step_id gap")
	}
}

func TestFinalize_IsIdempotent(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "run-3")
	w, err := trace.Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	m := trace.Manifest{RunID: "run-3", Status: trace.StatusCompleted, ToolVersions: map[string]string{}}
	if err := w.Finalize(m); err != nil {
		t.Fatalf("first Finalize: %v", err)
	}
	if err := w.Finalize(m); err != nil {
		t.Fatalf("second Finalize should be a safe no-op, got: %v", err)
	}
}
