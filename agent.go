package loom

import "context"

// Agent is the decision-making unit the Engine drives through one run.
// Unlike a conversational agent, Agent does not call the LLM or parse its
// output itself — the Engine owns both steps so every agent shares
// one uniform trace shape. Agent supplies only the observation, the prompt
// built from it, the system prompt, and the state-reduction step.
type Agent interface {
	// Observe gathers whatever context this agent family needs before a
	// decision is made. The returned value must be JSON-serializable.
	Observe(ctx context.Context, state *State) (map[string]any, error)

	// Prepare turns an Observation into the user-turn prompt text sent to
	// the model this step.
	Prepare(ctx context.Context, state *State, observation map[string]any) (string, error)

	// SystemPrompt returns the system prompt for this run, or "" for none.
	// The engine substitutes "{{tool_schema}}" with the registry's
	// formatted tool descriptions before sending it.
	SystemPrompt(ctx context.Context, state *State) (string, error)

	// Reduce folds a step's Decision and ActionResults back into State and
	// returns the state to carry into the next step.
	Reduce(ctx context.Context, state *State, observation map[string]any, decision Decision, results []ActionResult) (*State, error)
}

// StoppingCriteria is an optional user-supplied predicate checked before
// every LLM call. When it returns true the run terminates
// with StopCustomCriteria before the model is invoked.
type StoppingCriteria func(state *State, lastResponse string) bool

// Provider is the LLM client contract: an ordered message sequence in,
// raw text out. No streaming or function-calling extension is assumed;
// any such structure must already be serialized into text the configured
// Parser recognizes.
type Provider interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// EmbeddingProvider turns text into a fixed-width float vector, used by
// the vector memory strategy. A default bucketed-character-fold embedder
// is provided in package memory so no embedding service is required.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}
