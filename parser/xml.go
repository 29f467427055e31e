package parser

import (
	"regexp"
	"strings"

	loom "github.com/loomrun/loom"
)

type xmlParser struct{}

// NewXMLParser returns a Parser that extracts <think>, <reflection>, and
// <action> elements from raw model text.
func NewXMLParser() loom.Parser { return xmlParser{} }

var (
	thinkRe      = regexp.MustCompile(`(?is)<think>(.*?)</think>`)
	reflectionRe = regexp.MustCompile(`(?is)<reflection>(.*?)</reflection>`)
	actionRe     = regexp.MustCompile(`(?is)<action>(.*?)</action>`)
	finalTagRe   = regexp.MustCompile(`(?is)<final[_ ]?answer>(.*?)</final[_ ]?answer>`)
)

func (xmlParser) Parse(raw string, available []string) loom.Decision {
	text := normalize(raw)

	rationale := ""
	if m := thinkRe.FindStringSubmatch(text); m != nil {
		rationale = strings.TrimSpace(m[1])
	} else if m := reflectionRe.FindStringSubmatch(text); m != nil {
		rationale = strings.TrimSpace(m[1])
	}

	if m := finalTagRe.FindStringSubmatch(text); m != nil {
		return loom.Decision{Mode: loom.DecisionFinal, FinalAnswer: strings.TrimSpace(m[1]), Rationale: rationale}
	}

	matches := actionRe.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return finalOrRecover(raw)
	}

	actions := make([]loom.ToolCall, 0, len(matches))
	for _, m := range matches {
		actions = append(actions, parseActionLine(strings.TrimSpace(m[1])))
	}
	return loom.Decision{Mode: loom.DecisionAct, Actions: validateToolNames(actions, available), Rationale: rationale}
}

var _ loom.Parser = xmlParser{}
