// Package agents implements reference Agent variants: ReAct and a
// plan-then-act variant, plus helpers both share. They exist to exercise
// the full engine/parser/registry/memory stack end to end; consumers are
// expected to write their own Agent implementations alongside them.
package agents

import (
	"context"
	"fmt"
	"strings"

	loom "github.com/loomrun/loom"
)

// ReActSystemPrompt is the default system prompt for ReAct, following the
// Thought/Action line-prefixed convention the ReAct parser recognizes.
const ReActSystemPrompt = `You are an autonomous agent working step by step toward the given objective.

Available Tools
{{tool_schema}}

At every turn, respond in this exact form:

Thought: brief reasoning about what to do next
Action: tool_name(arg1=value1, arg2=value2)

When the objective is complete, respond instead with:

Thought: brief reasoning about why the objective is complete
Final Answer: the result to return
`

// ReAct is a minimal single-prompt ReAct Agent: one system prompt fixed
// for the whole run, one user turn per step built from the last
// observation. It keeps no state of its own
// beyond what the Engine's State/memory already track.
type ReAct struct {
	Objective string
	// SystemPromptTemplate overrides ReActSystemPrompt when non-empty.
	SystemPromptTemplate string
}

// NewReAct builds a ReAct agent for the given objective.
func NewReAct(objective string) *ReAct {
	return &ReAct{Objective: objective}
}

func (a *ReAct) SystemPrompt(ctx context.Context, state *loom.State) (string, error) {
	if a.SystemPromptTemplate != "" {
		return a.SystemPromptTemplate, nil
	}
	return ReActSystemPrompt, nil
}

// Observe reports the running step count and the most recent action
// result recorded in state's metadata by Reduce, so Prepare can summarize
// "what just happened" without re-deriving it from the trace.
func (a *ReAct) Observe(ctx context.Context, state *loom.State) (map[string]any, error) {
	obs := map[string]any{"step": state.CurrentStep}
	if v, ok := state.Metadata["last_observation"]; ok {
		obs["last_observation"] = v
	}
	return obs, nil
}

func (a *ReAct) Prepare(ctx context.Context, state *loom.State, observation map[string]any) (string, error) {
	if observation["step"] == 0 {
		return fmt.Sprintf("Objective: %s\n\nBegin.", a.Objective), nil
	}
	last, _ := observation["last_observation"].(string)
	if last == "" {
		return "Continue toward the objective.", nil
	}
	return fmt.Sprintf("Observation: %s\n\nContinue toward the objective.", last), nil
}

// Reduce stores a text summary of this step's action results so the next
// Observe/Prepare cycle can reference it.
func (a *ReAct) Reduce(ctx context.Context, state *loom.State, observation map[string]any, decision loom.Decision, results []loom.ActionResult) (*loom.State, error) {
	if len(results) > 0 {
		state.SetMetadata("last_observation", summarizeResults(results))
	}
	return state, nil
}

func summarizeResults(results []loom.ActionResult) string {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		if r.Status == loom.StatusError {
			parts = append(parts, fmt.Sprintf("error: %v", r.Payload["message"]))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %v", r.Status, r.Payload))
	}
	return strings.Join(parts, " | ")
}

var _ loom.Agent = (*ReAct)(nil)
