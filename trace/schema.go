package trace

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// knownEventTypes is the full event vocabulary. Every event
// line must carry one of these; which of them appear in a given trace
// depends on what the run actually did (a run that never dispatched a
// tool has no tool_call events), but run_start and run_end bracket every
// trace exactly once.
var knownEventTypes = map[string]bool{
	EventRunStart: true, EventStepStart: true, EventLLMRequest: true,
	EventLLMResponse: true, EventToolCall: true, EventStepEnd: true,
	EventRunEnd: true,
}

// SchemaValidator checks that the three trace artifacts conform to the
// expected shapes: required fields present, JSONL lines well-formed.
type SchemaValidator struct{}

// NewSchemaValidator returns a stateless SchemaValidator.
func NewSchemaValidator() *SchemaValidator { return &SchemaValidator{} }

// ValidateDir reads and validates events.jsonl, steps.jsonl, and
// manifest.json from dir.
func (SchemaValidator) ValidateDir(dir string) error {
	events, err := readJSONLines(filepath.Join(dir, "events.jsonl"))
	if err != nil {
		return err
	}
	if err := validateEvents(events); err != nil {
		return err
	}

	steps, err := readJSONLines(filepath.Join(dir, "steps.jsonl"))
	if err != nil {
		return err
	}
	if err := validateSteps(steps); err != nil {
		return err
	}

	raw, err := os.ReadFile(filepath.Join(dir, "manifest.json"))
	if err != nil {
		return fmt.Errorf("trace: read manifest.json: %w", err)
	}
	var manifest map[string]any
	if err := json.Unmarshal(raw, &manifest); err != nil {
		return fmt.Errorf("trace: manifest.json is not valid JSON: %w", err)
	}
	return validateManifest(manifest)
}

func readJSONLines(path string) ([]map[string]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("trace: open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	var out []map[string]any
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var obj map[string]any
		if err := json.Unmarshal(line, &obj); err != nil {
			return nil, fmt.Errorf("trace: %s:%d is not a JSON object: %w", filepath.Base(path), lineNo, err)
		}
		out = append(out, obj)
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		return nil, fmt.Errorf("trace: read %s: %w", filepath.Base(path), err)
	}
	return out, nil
}

func validateEvents(events []map[string]any) error {
	runStarts, runEnds := 0, 0
	for i, e := range events {
		for _, field := range []string{"type", "step_id", "timestamp"} {
			if _, ok := e[field]; !ok {
				return fmt.Errorf("trace: events.jsonl line %d missing required field %q", i+1, field)
			}
		}
		t, _ := e["type"].(string)
		if !knownEventTypes[t] {
			return fmt.Errorf("trace: events.jsonl line %d has unknown event type %q", i+1, t)
		}
		switch t {
		case EventRunStart:
			runStarts++
		case EventRunEnd:
			runEnds++
		}
	}
	if runStarts != 1 {
		return fmt.Errorf("trace: events.jsonl must contain exactly one run_start, got %d", runStarts)
	}
	if runEnds != 1 {
		return fmt.Errorf("trace: events.jsonl must contain exactly one run_end, got %d", runEnds)
	}
	return nil
}

func validateSteps(steps []map[string]any) error {
	for i, s := range steps {
		for _, field := range []string{"step_id", "decision_mode"} {
			if _, ok := s[field]; !ok {
				return fmt.Errorf("trace: steps.jsonl line %d missing required field %q", i+1, field)
			}
		}
		id, ok := s["step_id"].(float64)
		if !ok || int(id) != i {
			return fmt.Errorf("trace: steps.jsonl line %d has step_id %v, want %d (step_ids are 0,1,2,... without gaps)", i+1, s["step_id"], i)
		}
	}
	return nil
}

func validateManifest(m map[string]any) error {
	required := []string{
		"run_id", "started_at", "ended_at", "status", "model_id",
		"prompt_hash", "tool_versions", "seed", "run_config_hash", "summary",
	}
	for _, field := range required {
		if _, ok := m[field]; !ok {
			return fmt.Errorf("trace: manifest.json missing required field %q", field)
		}
	}
	status, _ := m["status"].(string)
	if status != string(StatusCompleted) && status != string(StatusAborted) {
		return fmt.Errorf("trace: manifest.json has invalid status %q", status)
	}
	summary, ok := m["summary"].(map[string]any)
	if !ok {
		return fmt.Errorf("trace: manifest.json summary must be an object")
	}
	for _, field := range []string{"stop_reason", "steps"} {
		if _, ok := summary[field]; !ok {
			return fmt.Errorf("trace: manifest.json summary missing required field %q", field)
		}
	}
	return nil
}
