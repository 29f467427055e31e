// Package eval implements trajectory evaluators: rule-based,
// DSL-based, and model-based flavors sharing one EvaluationResult shape,
// composed through an EvaluationSuite.
package eval

// Context is the read-only view an Evaluator judges against: the task's
// manifest/events/steps trace plus caller-supplied extras (e.g. a reward
// signal a benchmark adapter attaches out of band).
type Context struct {
	TaskID    string
	Objective string
	Manifest  map[string]any
	Events    []map[string]any
	Steps     []map[string]any
	Extras    map[string]any
}

// Result is the judgment an Evaluator produces.
type Result struct {
	Name     string         `json:"name"`
	Success  bool           `json:"success"`
	Score    float64        `json:"score"`
	Reasons  []string       `json:"reasons,omitempty"`
	Evidence map[string]any `json:"evidence,omitempty"`
}

// Evaluator judges one run's Context.
type Evaluator interface {
	Evaluate(ctx Context) Result
}

// SuiteMode controls how an EvaluationSuite folds multiple Evaluator
// results into one composite judgment.
type SuiteMode string

const (
	// ModeAll requires every evaluator to succeed.
	ModeAll SuiteMode = "all"
	// ModeAny requires at least one evaluator to succeed.
	ModeAny SuiteMode = "any"
	// ModeMeanScore treats the mean score across evaluators as the
	// composite score and considers success when that mean is >= 0.5.
	ModeMeanScore SuiteMode = "mean_score"
)

// Suite combines Evaluators under one SuiteMode.
type Suite struct {
	Evaluators []Evaluator
	Mode       SuiteMode
}

// CompositeResult is what Suite.Evaluate returns.
type CompositeResult struct {
	Success bool     `json:"success"`
	Score   float64  `json:"score"`
	Results []Result `json:"results"`
}

// Evaluate runs every evaluator and folds the results per Mode.
func (s Suite) Evaluate(ctx Context) CompositeResult {
	results := make([]Result, len(s.Evaluators))
	for i, e := range s.Evaluators {
		results[i] = e.Evaluate(ctx)
	}

	if len(results) == 0 {
		return CompositeResult{Success: true, Score: 1, Results: results}
	}

	var sum float64
	allOK, anyOK := true, false
	for _, r := range results {
		sum += r.Score
		if r.Success {
			anyOK = true
		} else {
			allOK = false
		}
	}
	mean := sum / float64(len(results))

	var success bool
	switch s.Mode {
	case ModeAny:
		success = anyOK
	case ModeMeanScore:
		success = mean >= 0.5
	default: // ModeAll, and the zero value
		success = allOK
	}

	return CompositeResult{Success: success, Score: mean, Results: results}
}
