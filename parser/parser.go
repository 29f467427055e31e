// Package parser converts raw LLM text into loom.Decision values, with
// graceful recovery on malformed input. Three flavors share one decision
// shape: JSON, ReAct-style line-prefixed text, and XML-tagged text.
package parser

import (
	"strings"

	loom "github.com/loomrun/loom"
	"golang.org/x/text/unicode/norm"
)

// normalize applies NFKC normalization and strips zero-width characters
// before any brace-depth scanning, guarding the scanner against obfuscated
// or garbled model output rather than prompt injection.
func normalize(raw string) string {
	s := norm.NFKC.String(raw)
	s = zeroWidth.Replace(s)
	return s
}

var zeroWidth = strings.NewReplacer(
	"​", "", // zero width space
	"‌", "", // zero width non-joiner
	"‍", "", // zero width joiner
	"\ufeff", "", // byte order mark
)

// containsAvailable reports whether name is present in available,
// case-sensitively (tool names are exact identifiers).
func containsAvailable(name string, available []string) bool {
	for _, a := range available {
		if a == name {
			return true
		}
	}
	return false
}

// validateToolNames stamps an Error on every ToolCall whose Name is not in
// available; the Decision mode remains act.
func validateToolNames(actions []loom.ToolCall, available []string) []loom.ToolCall {
	for i := range actions {
		if actions[i].Error != "" {
			continue
		}
		if !containsAvailable(actions[i].Name, available) {
			actions[i].Error = "Unknown tool: " + actions[i].Name + ". Available tools: " + strings.Join(available, ", ")
		}
	}
	return actions
}

// finalOrRecover implements the "no Action and no Final Answer found"
// recovery rule: treat the whole raw text as a surrendered final answer.
func finalOrRecover(raw string) loom.Decision {
	return loom.Decision{Mode: loom.DecisionFinal, FinalAnswer: strings.TrimSpace(raw)}
}
