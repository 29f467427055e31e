package parser

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	loom "github.com/loomrun/loom"
)

// ReActSynonyms configures the line prefixes recognized for each field.
// Zero value uses DefaultReActSynonyms.
type ReActSynonyms struct {
	Thought     []string
	Action      []string
	FinalAnswer []string
}

// DefaultReActSynonyms mirrors common ReAct prompting conventions.
func DefaultReActSynonyms() ReActSynonyms {
	return ReActSynonyms{
		Thought:     []string{"Thought", "Thinking", "Reasoning"},
		Action:      []string{"Action", "Tool", "Function"},
		FinalAnswer: []string{"Final Answer", "Answer", "Conclusion"},
	}
}

type reactParser struct {
	syn ReActSynonyms
}

// NewReActParser returns a Parser for line-prefixed Thought/Action/Final
// Answer text. It checks for a final answer first, then falls back to
// action parsing — the reverse priority of the JSON flavor.
func NewReActParser(syn ...ReActSynonyms) loom.Parser {
	s := DefaultReActSynonyms()
	if len(syn) > 0 && (len(syn[0].Thought) > 0 || len(syn[0].Action) > 0 || len(syn[0].FinalAnswer) > 0) {
		s = syn[0]
	}
	return reactParser{syn: s}
}

func (p reactParser) Parse(raw string, available []string) loom.Decision {
	text := normalize(raw)
	rationale := extractField(text, p.syn.Thought)

	if final, ok := extractFieldOK(text, p.syn.FinalAnswer); ok {
		return loom.Decision{Mode: loom.DecisionFinal, FinalAnswer: strings.TrimSpace(final), Rationale: rationale}
	}

	actionLines := extractAllFields(text, p.syn.Action)
	if len(actionLines) == 0 {
		return finalOrRecover(raw)
	}

	actions := make([]loom.ToolCall, 0, len(actionLines))
	for _, line := range actionLines {
		actions = append(actions, parseActionLine(line))
	}
	return loom.Decision{Mode: loom.DecisionAct, Actions: validateToolNames(actions, available), Rationale: rationale}
}

var fieldLineRe = func(label string) *regexp.Regexp {
	return regexp.MustCompile(`(?im)^\s*` + regexp.QuoteMeta(label) + `\s*:\s*(.*)$`)
}

// extractField returns the first match for any of the given labels, or "".
func extractField(text string, labels []string) string {
	v, _ := extractFieldOK(text, labels)
	return v
}

func extractFieldOK(text string, labels []string) (string, bool) {
	for _, label := range labels {
		m := fieldLineRe(label).FindStringSubmatch(text)
		if m != nil {
			return strings.TrimSpace(m[1]), true
		}
	}
	return "", false
}

func extractAllFields(text string, labels []string) []string {
	var out []string
	for _, label := range labels {
		ms := fieldLineRe(label).FindAllStringSubmatch(text, -1)
		for _, m := range ms {
			out = append(out, strings.TrimSpace(m[1]))
		}
	}
	return out
}

// parseActionLine parses one Action: value as either a JSON blob or the
// function-invocation form name(arg1=value1, arg2=value2, ...).
func parseActionLine(line string) loom.ToolCall {
	trimmed := strings.TrimSpace(line)
	if strings.HasPrefix(trimmed, "{") {
		var obj map[string]any
		if err := json.Unmarshal([]byte(trimmed), &obj); err == nil {
			if tc, ok := toolCallFromAny(obj); ok {
				return tc
			}
		}
	}

	open := strings.IndexByte(trimmed, '(')
	if open < 0 {
		return loom.ToolCall{Name: strings.TrimSpace(trimmed)}
	}
	name := strings.TrimSpace(trimmed[:open])
	rest := trimmed[open+1:]
	// Recovery: a missing closing paren still yields partial args, no error.
	if close := strings.LastIndexByte(rest, ')'); close >= 0 {
		rest = rest[:close]
	}
	return loom.ToolCall{Name: name, Args: parseArgsStr(rest)}
}

// parseArgsStr splits a function-invocation argument string on commas at
// depth 0 (respecting quotes/brackets/braces/parens) and types each
// key=value pair by attempt order: int, float, bool, JSON, string.
func parseArgsStr(s string) map[string]any {
	s = strings.TrimSpace(s)
	if s == "" {
		return map[string]any{}
	}
	parts := splitArgsDepthAware(s)
	args := map[string]any{}
	hasKV := false
	for i, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		eq := indexTopLevelEquals(part)
		if eq < 0 {
			args["arg"+strconv.Itoa(i)] = typeValue(part)
			continue
		}
		key := strings.TrimSpace(part[:eq])
		val := strings.TrimSpace(part[eq+1:])
		args[key] = typeValue(val)
		hasKV = true
	}
	if !hasKV && len(parts) == 1 {
		return map[string]any{"input": s}
	}
	return args
}

func indexTopLevelEquals(s string) int {
	depth := 0
	var quote rune
	for i, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
		case r == '(' || r == '[' || r == '{':
			depth++
		case r == ')' || r == ']' || r == '}':
			depth--
		case r == '=' && depth == 0:
			return i
		}
	}
	return -1
}

func splitArgsDepthAware(s string) []string {
	var parts []string
	var cur strings.Builder
	depth := 0
	var quote rune
	for _, r := range s {
		switch {
		case quote != 0:
			cur.WriteRune(r)
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
			cur.WriteRune(r)
		case r == '(' || r == '[' || r == '{':
			depth++
			cur.WriteRune(r)
		case r == ')' || r == ']' || r == '}':
			depth--
			cur.WriteRune(r)
		case r == ',' && depth == 0:
			parts = append(parts, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	if cur.Len() > 0 {
		parts = append(parts, cur.String())
	}
	return parts
}

// typeValue types a scalar literal by attempt order: integer, float,
// boolean, JSON object/array, otherwise string (quotes stripped).
func typeValue(v string) any {
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	switch strings.ToLower(v) {
	case "true":
		return true
	case "false":
		return false
	}
	if strings.HasPrefix(v, "{") || strings.HasPrefix(v, "[") {
		var out any
		if err := json.Unmarshal([]byte(v), &out); err == nil {
			return out
		}
	}
	if len(v) >= 2 {
		if (v[0] == '"' && v[len(v)-1] == '"') || (v[0] == '\'' && v[len(v)-1] == '\'') {
			return v[1 : len(v)-1]
		}
	}
	return v
}

var _ loom.Parser = reactParser{}
