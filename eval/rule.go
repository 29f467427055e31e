package eval

import (
	"fmt"
	"strings"
)

// RuleEvaluator checks stop_reason membership, a minimum reward, required
// substrings in the final result, and required payload keys — a pure
// function of Context, no side effects.
type RuleEvaluator struct {
	Name               string
	RequireStopReason  []string
	MinReward          *float64
	FinalContains      []string
	RequireExtraKeys   []string
}

// Evaluate implements Evaluator.
func (r RuleEvaluator) Evaluate(ctx Context) Result {
	name := r.Name
	if name == "" {
		name = "rule_based"
	}

	var reasons []string
	evidence := map[string]any{}
	ok := true

	summary, _ := ctx.Manifest["summary"].(map[string]any)
	stopReason := ""
	if summary != nil {
		stopReason, _ = summary["stop_reason"].(string)
	}
	finalResult := ""
	if summary != nil {
		finalResult, _ = summary["final_result"].(string)
	}

	if len(r.RequireStopReason) > 0 {
		allowed := make(map[string]bool, len(r.RequireStopReason))
		for _, s := range r.RequireStopReason {
			allowed[s] = true
		}
		if !allowed[stopReason] {
			ok = false
			reasons = append(reasons, fmt.Sprintf("stop_reason_not_allowed:%s", stopReason))
		}
	}

	if r.MinReward != nil {
		reward, hasReward := rewardOf(ctx.Extras)
		if !hasReward || reward < *r.MinReward {
			ok = false
			reasons = append(reasons, fmt.Sprintf("reward_below_threshold:%v", reward))
		}
		evidence["reward"] = reward
	}

	if len(r.FinalContains) > 0 {
		var missing []string
		for _, want := range r.FinalContains {
			if !contains(finalResult, want) {
				missing = append(missing, want)
			}
		}
		if len(missing) > 0 {
			ok = false
			reasons = append(reasons, fmt.Sprintf("final_missing:%v", missing))
		}
	}

	for _, key := range r.RequireExtraKeys {
		if _, present := ctx.Extras[key]; !present {
			ok = false
			reasons = append(reasons, fmt.Sprintf("missing_key:%s", key))
		}
	}

	evidence["stop_reason"] = stopReason
	evidence["final_result"] = finalResult

	score := 0.0
	if ok {
		score = 1.0
	}
	return Result{Name: name, Success: ok, Score: score, Reasons: reasons, Evidence: evidence}
}

func rewardOf(extras map[string]any) (float64, bool) {
	v, ok := extras["reward"]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

func contains(haystack, needle string) bool {
	return needle == "" || strings.Contains(haystack, needle)
}

var _ Evaluator = RuleEvaluator{}
