package eval

import (
	"strings"
	"testing"
)

func TestRuleEvaluator_StopReason(t *testing.T) {
	r := RuleEvaluator{RequireStopReason: []string{"final_answer"}}
	ctx := Context{Manifest: map[string]any{"summary": map[string]any{"stop_reason": "final_answer"}}}
	res := r.Evaluate(ctx)
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}

	ctx2 := Context{Manifest: map[string]any{"summary": map[string]any{"stop_reason": "max_steps_reached"}}}
	res2 := r.Evaluate(ctx2)
	if res2.Success {
		t.Fatal("expected failure on disallowed stop reason")
	}
}

func TestDSLEvaluator_Arithmetic(t *testing.T) {
	d := DSLEvaluator{Expression: `extras["reward"] >= 0.5 && steps != nil`}
	ctx := Context{Extras: map[string]any{"reward": 0.9}, Steps: []map[string]any{{"step_id": 0}}}
	res := d.Evaluate(ctx)
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
}

func TestDSLEvaluator_RejectsDisallowed(t *testing.T) {
	cases := map[string]string{
		"call on a subscripted value": `extras["reward"]()`,
		"builtin function":            `len(extras) > 0`,
		"lambda/closure":              `all(steps, {.step_id >= 0})`,
		"another builtin":             `any(steps, {.step_id == 0})`,
	}
	for name, expression := range cases {
		t.Run(name, func(t *testing.T) {
			d := DSLEvaluator{Expression: expression}
			res := d.Evaluate(Context{
				Extras: map[string]any{"reward": 1},
				Steps:  []map[string]any{{"step_id": 0}},
			})
			if res.Success {
				t.Fatalf("expected compile-time rejection of %q, got %+v", expression, res)
			}
			if len(res.Reasons) == 0 || !strings.HasPrefix(res.Reasons[0], "dsl_compile_error:") {
				t.Fatalf("expected a dsl_compile_error reason for %q, got %+v", expression, res.Reasons)
			}
		})
	}
}

func TestSuite_ModeAll(t *testing.T) {
	s := Suite{Mode: ModeAll, Evaluators: []Evaluator{
		RuleEvaluator{RequireStopReason: []string{"final_answer"}},
		DSLEvaluator{Expression: `extras["reward"] >= 0.5`},
	}}
	ctx := Context{
		Manifest: map[string]any{"summary": map[string]any{"stop_reason": "final_answer"}},
		Extras:   map[string]any{"reward": 1.0},
	}
	res := s.Evaluate(ctx)
	if !res.Success || res.Score != 1 {
		t.Fatalf("expected composite success, got %+v", res)
	}
}
