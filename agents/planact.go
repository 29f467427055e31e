package agents

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	loom "github.com/loomrun/loom"
)

// PlanAct is a two-phase Agent: an initial planning turn produces a
// numbered step list, then each subsequent turn executes one step of
// that plan until the cursor runs past the end.
type PlanAct struct {
	Objective string

	plan   []string
	cursor int
}

const planPrompt = `You are a strategic planner working toward the given objective.
Break it down into a numbered list of concrete, atomic steps.

Respond in this exact form so the plan can be captured as a step of its
own turn (this is not the final answer — execution happens afterward):

Thought: brief reasoning about the breakdown
Action: plan(steps="1. first step\n2. second step\n...")
`

const executePromptTemplate = `You are executing one step of a plan toward the objective: %s

Plan:
%s

Currently working on step %d: %s

Available Tools
{{tool_schema}}

Call exactly one tool that makes progress on this step:

Thought: brief reasoning
Action: tool_name(arg1=value1, arg2=value2)

Do not use "Final Answer" yet — it is reserved for the last step of the
whole plan. This step advances automatically once its tool call succeeds.
`

// NewPlanAct builds a PlanAct agent for the given objective.
func NewPlanAct(objective string) *PlanAct {
	return &PlanAct{Objective: objective}
}

func (a *PlanAct) SystemPrompt(ctx context.Context, state *loom.State) (string, error) {
	if a.plan == nil {
		return planPrompt, nil
	}
	if a.cursor >= len(a.plan) {
		return "All steps are complete. Respond with Final Answer: a summary of the overall outcome.", nil
	}
	return fmt.Sprintf(executePromptTemplate, a.Objective, a.renderPlan(), a.cursor+1, a.plan[a.cursor]), nil
}

func (a *PlanAct) Observe(ctx context.Context, state *loom.State) (map[string]any, error) {
	obs := map[string]any{"planned": a.plan != nil, "cursor": a.cursor}
	if v, ok := state.Metadata["last_observation"]; ok {
		obs["last_observation"] = v
	}
	return obs, nil
}

func (a *PlanAct) Prepare(ctx context.Context, state *loom.State, observation map[string]any) (string, error) {
	if a.plan == nil {
		return fmt.Sprintf("Objective: %s\n\nGenerate the plan now.", a.Objective), nil
	}
	if a.cursor >= len(a.plan) {
		return "Provide the final summary.", nil
	}
	last, _ := observation["last_observation"].(string)
	if last == "" {
		return fmt.Sprintf("Execute step %d: %s", a.cursor+1, a.plan[a.cursor]), nil
	}
	return fmt.Sprintf("Previous step result: %s\n\nNow execute step %d: %s", last, a.cursor+1, a.plan[a.cursor]), nil
}

// Reduce captures the plan from the first turn's "plan" action — a
// pseudo-tool this agent never registers with the engine's registry, so
// the parser flags it as an unknown tool, the engine answers it with an
// error envelope without dispatching it, and the run keeps going
// (an unregistered tool name does not reclassify the Decision) — then
// advances the cursor once a real step's tool call succeeds. The plan
// deliberately never arrives via decision.Mode=="final": the Engine
// already terminates the run the instant that mode appears, so only the
// genuine last-step turn may ever use it.
func (a *PlanAct) Reduce(ctx context.Context, state *loom.State, observation map[string]any, decision loom.Decision, results []loom.ActionResult) (*loom.State, error) {
	if a.plan == nil {
		if call, ok := findAction(decision.Actions, "plan"); ok {
			steps, _ := call.Args["steps"].(string)
			if parsed := extractNumberedList(steps); len(parsed) > 0 {
				a.plan = parsed
				state.SetMetadata("plan", parsed)
			}
		}
		return state, nil
	}

	if len(results) > 0 {
		state.SetMetadata("last_observation", summarizeResults(results))
	}

	if a.cursor < len(a.plan) && stepSucceeded(results) {
		a.cursor++
		state.SetMetadata("plan_cursor", a.cursor)
	}
	return state, nil
}

// findAction returns the first ToolCall named name, regardless of whether
// the parser or dispatcher flagged it (an unregistered "plan" pseudo-tool
// still carries its parsed args even though the parser marks it unknown).
func findAction(actions []loom.ToolCall, name string) (loom.ToolCall, bool) {
	for _, a := range actions {
		if a.Name == name {
			return a, true
		}
	}
	return loom.ToolCall{}, false
}

func stepSucceeded(results []loom.ActionResult) bool {
	for _, r := range results {
		if r.Status == loom.StatusSuccess {
			return true
		}
	}
	return false
}

func (a *PlanAct) renderPlan() string {
	var b strings.Builder
	for i, step := range a.plan {
		status := "WAIT"
		switch {
		case i < a.cursor:
			status = "DONE"
		case i == a.cursor:
			status = "DOING"
		}
		fmt.Fprintf(&b, "%d. [%s] %s\n", i+1, status, step)
	}
	return b.String()
}

var numberedLineRe = regexp.MustCompile(`^\s*\d+[.)]\s*(.+)$`)
var bulletLineRe = regexp.MustCompile(`^\s*[-*]\s*(.+)$`)

// extractNumberedList parses "1. foo" / "1) foo" / "- foo" lines out of
// free text.
func extractNumberedList(text string) []string {
	var items []string
	for _, line := range strings.Split(text, "\n") {
		if m := numberedLineRe.FindStringSubmatch(line); m != nil {
			if item := strings.TrimSpace(m[1]); item != "" {
				items = append(items, item)
			}
			continue
		}
		if m := bulletLineRe.FindStringSubmatch(line); m != nil {
			if item := strings.TrimSpace(m[1]); item != "" {
				items = append(items, item)
			}
		}
	}
	return items
}

var _ loom.Agent = (*PlanAct)(nil)
