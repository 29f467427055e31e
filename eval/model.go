package eval

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	loom "github.com/loomrun/loom"
)

// ModelEvaluator asks an LLM for {success, score, reason} JSON and returns
// the parsed result.
type ModelEvaluator struct {
	Name     string
	Provider loom.Provider
	Rubric   string
}

// Evaluate implements Evaluator.
func (m ModelEvaluator) Evaluate(ctx Context) Result {
	name := m.Name
	if name == "" {
		name = "model_based"
	}
	if m.Provider == nil {
		return Result{Name: name, Success: false, Score: 0, Reasons: []string{"llm_not_configured"}}
	}

	rubric := m.Rubric
	if rubric == "" {
		rubric = `Judge whether the agent solved the task. Return JSON: {"success": bool, "score": number, "reason": str}.`
	}

	prompt := m.buildPrompt(ctx, rubric)
	raw, err := m.Provider.Complete(context.Background(), []loom.Message{
		{Role: "system", Content: "You are a strict trajectory evaluator."},
		{Role: "user", Content: prompt},
	})
	if err != nil {
		return Result{Name: name, Success: false, Score: 0, Reasons: []string{fmt.Sprintf("model_eval_error:%v", err)}}
	}

	parsed, ok := parseJudgeJSON(raw)
	if !ok {
		return Result{
			Name: name, Success: strings.Contains(strings.ToLower(raw), "true"), Score: 0,
			Reasons: []string{"model_judge_unparseable"}, Evidence: map[string]any{"raw": raw},
		}
	}

	success, _ := parsed["success"].(bool)
	score, _ := parsed["score"].(float64)
	if success && score == 0 {
		score = 1
	}
	reason, _ := parsed["reason"].(string)
	var reasons []string
	if reason != "" {
		reasons = []string{reason}
	}
	return Result{
		Name: name, Success: success, Score: score, Reasons: reasons,
		Evidence: map[string]any{"raw": raw, "parsed": parsed},
	}
}

func (m ModelEvaluator) buildPrompt(ctx Context, rubric string) string {
	summary, _ := ctx.Manifest["summary"].(map[string]any)
	var stopReason, finalResult any
	if summary != nil {
		stopReason, finalResult = summary["stop_reason"], summary["final_result"]
	}
	return strings.Join([]string{
		rubric,
		fmt.Sprintf("Task objective: %s", ctx.Objective),
		fmt.Sprintf("Stop reason: %v", stopReason),
		fmt.Sprintf("Final result: %v", finalResult),
		fmt.Sprintf("Extras: %v", ctx.Extras),
	}, "\n")
}

// parseJudgeJSON extracts a {success, score, reason} object from raw
// model text, tolerating a JSON blob embedded in surrounding prose.
func parseJudgeJSON(raw string) (map[string]any, bool) {
	s := strings.TrimSpace(raw)
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err == nil {
		return obj, true
	}
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start >= 0 && end > start {
		if err := json.Unmarshal([]byte(s[start:end+1]), &obj); err == nil {
			return obj, true
		}
	}
	return nil, false
}

var _ Evaluator = ModelEvaluator{}
