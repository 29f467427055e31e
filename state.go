package loom

import "time"

// State is the mutable per-run container the engine owns exclusively for
// the duration of a run. Every write to a tracked field appends one
// MutationLogEntry, preserving the invariant that CurrentStep never
// decreases and that StopReason is written at most once.
type State struct {
	Task         string
	CurrentStep  int
	MaxSteps     int
	FinalResult  *string
	StopReason   *StopReason
	Metadata     map[string]any

	mutations []MutationLogEntry
}

// NewState builds the initial State for a run from a Task.
func NewState(task Task) *State {
	maxSteps := 0
	if task.Budget != nil {
		maxSteps = task.Budget.MaxSteps
	}
	return &State{
		Task:        task.Objective,
		CurrentStep: 0,
		MaxSteps:    maxSteps,
		Metadata:    map[string]any{},
	}
}

// Mutations returns the append-only mutation log recorded so far.
func (s *State) Mutations() []MutationLogEntry {
	return s.mutations
}

func (s *State) record(field string, old, new any) {
	s.mutations = append(s.mutations, MutationLogEntry{
		StepID:    s.CurrentStep,
		Field:     field,
		OldValue:  old,
		NewValue:  new,
		Timestamp: time.Now().UTC(),
	})
}

// SetFinalResult sets the terminal answer and records the write in the
// mutation log. A later call replaces the earlier value.
func (s *State) SetFinalResult(v string) {
	old := s.FinalResult
	s.FinalResult = &v
	s.record("final_result", derefStr(old), v)
}

// SetStopReason sets the terminal stop reason. The engine calls this
// exactly once per run; a second call would violate the "written at most
// once" invariant and callers must not rely on it silently overwriting.
func (s *State) SetStopReason(r StopReason) {
	old := s.StopReason
	s.StopReason = &r
	var oldVal any
	if old != nil {
		oldVal = *old
	}
	s.record("stop_reason", oldVal, r)
}

// IncrementStep advances CurrentStep by exactly one, recording the write.
func (s *State) IncrementStep() {
	old := s.CurrentStep
	s.CurrentStep++
	s.record("current_step", old, s.CurrentStep)
}

// SetMetadata writes one key in the Metadata map, recording the write.
func (s *State) SetMetadata(key string, value any) {
	if s.Metadata == nil {
		s.Metadata = map[string]any{}
	}
	old := s.Metadata[key]
	s.Metadata[key] = value
	s.record("metadata."+key, old, value)
}

func derefStr(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
