package parser

import (
	"encoding/json"
	"strings"

	loom "github.com/loomrun/loom"
)

// jsonKeys is the recognized key set for the JSON decision flavor,
// matched case-insensitively.
var jsonKeys = map[string]bool{
	"mode": true, "action": true, "actions": true, "rationale": true,
	"thinking": true, "reflection": true, "final_answer": true,
}

type jsonParser struct{}

// NewJSONParser returns a Parser that looks for a balanced JSON object
// with decision keys, using brace-depth counting so nested braces inside
// string values survive.
func NewJSONParser() loom.Parser { return jsonParser{} }

func (jsonParser) Parse(raw string, available []string) loom.Decision {
	text := normalize(raw)
	for _, block := range findBalancedObjects(text) {
		var obj map[string]any
		if err := json.Unmarshal([]byte(block), &obj); err != nil {
			continue
		}
		lower := lowerKeys(obj)
		if !hasAnyKey(lower, jsonKeys) {
			continue
		}
		return decisionFromObject(lower, available)
	}
	return finalOrRecover(raw)
}

// findBalancedObjects scans text for top-level {...} spans using
// brace-depth counting, treating braces inside double-quoted strings as
// literal characters so they do not perturb the depth count.
func findBalancedObjects(text string) []string {
	var out []string
	depth := 0
	start := -1
	inString := false
	escaped := false
	for i, r := range text {
		if inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			}
			continue
		}
		switch r {
		case '"':
			inString = true
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 && start >= 0 {
					out = append(out, text[start:i+1])
					start = -1
				}
			}
		}
	}
	return out
}

func lowerKeys(obj map[string]any) map[string]any {
	out := make(map[string]any, len(obj))
	for k, v := range obj {
		out[strings.ToLower(k)] = v
	}
	return out
}

func hasAnyKey(obj map[string]any, keys map[string]bool) bool {
	for k := range obj {
		if keys[k] {
			return true
		}
	}
	return false
}

func decisionFromObject(obj map[string]any, available []string) loom.Decision {
	rationale := firstString(obj, "rationale", "thinking", "reflection")

	if fa, ok := obj["final_answer"]; ok {
		if _, hasAction := obj["action"]; !hasAction {
			if _, hasActions := obj["actions"]; !hasActions {
				return loom.Decision{Mode: loom.DecisionFinal, FinalAnswer: anyToString(fa), Rationale: rationale}
			}
		}
	}

	mode := loom.DecisionMode(strings.ToLower(anyToString(obj["mode"])))
	var actions []loom.ToolCall
	if a, ok := obj["action"]; ok {
		if tc, ok := toolCallFromAny(a); ok {
			actions = append(actions, tc)
		}
	}
	if a, ok := obj["actions"]; ok {
		if list, ok := a.([]any); ok {
			for _, item := range list {
				if tc, ok := toolCallFromAny(item); ok {
					actions = append(actions, tc)
				}
			}
		}
	}

	switch {
	case mode == loom.DecisionFinal:
		return loom.Decision{Mode: loom.DecisionFinal, FinalAnswer: anyToString(obj["final_answer"]), Rationale: rationale}
	case mode == loom.DecisionWait:
		return loom.Decision{Mode: loom.DecisionWait, Rationale: rationale}
	case len(actions) > 0:
		return loom.Decision{Mode: loom.DecisionAct, Actions: validateToolNames(actions, available), Rationale: rationale}
	case obj["final_answer"] != nil:
		return loom.Decision{Mode: loom.DecisionFinal, FinalAnswer: anyToString(obj["final_answer"]), Rationale: rationale}
	default:
		return loom.Decision{Mode: loom.DecisionError, ErrorMessage: "JSON object matched decision keys but contained no usable action or final_answer"}
	}
}

func toolCallFromAny(v any) (loom.ToolCall, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return loom.ToolCall{}, false
	}
	name := firstString(m, "name", "tool", "function")
	if name == "" {
		return loom.ToolCall{}, false
	}
	args, _ := m["args"].(map[string]any)
	if args == nil {
		args, _ = m["arguments"].(map[string]any)
	}
	return loom.ToolCall{Name: name, Args: args}, true
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if s := anyToString(v); s != "" {
				return s
			}
		}
	}
	return ""
}

func anyToString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

var _ loom.Parser = jsonParser{}
