package engine

import (
	"context"
	"errors"
	"strings"
	"time"

	loom "github.com/loomrun/loom"
	"github.com/loomrun/loom/trace"
)

var errNoProvider = errors.New("engine: no Provider configured")

// step executes one FSM cycle: budget check, observe, message assembly,
// stopping criteria, LLM call, parse, dispatch, reduce, trace append,
// increment. It returns the completed StepRecord (nil if the step
// terminated before reaching dispatch/reduce), a non-empty stopReason if
// the run should terminate after this step, and the final answer text
// when stopReason == StopFinalAnswer.
func (e *Engine) step(ctx context.Context, w *trace.Writer, state *loom.State, task loom.Task, startedAt time.Time, lastResp *string) (*trace.StepRecord, loom.StopReason, string, error) {
	stepID := state.CurrentStep
	if err := w.AppendEvent(trace.Event{Type: trace.EventStepStart, StepID: stepID, Timestamp: e.now()}); err != nil {
		return nil, "", "", err
	}

	ctx, span := e.startSpan(ctx, "engine.step", loom.IntAttr("step_id", stepID))
	defer span.End()

	// Budget precedence: runtime is checked at step start alongside
	// max_steps and outranks it when both would fire.
	if sr := e.checkRuntimeBudget(task, startedAt); sr != "" {
		return nil, sr, "", nil
	}
	if state.MaxSteps > 0 && state.CurrentStep >= state.MaxSteps {
		return nil, loom.StopMaxStepsReached, "", nil
	}

	// Observe.
	observation, err := e.agent.Observe(ctx, state)
	if err != nil {
		observation = map[string]any{"observe_error": err.Error()}
	}

	// Assemble messages.
	systemPrompt, err := e.agent.SystemPrompt(ctx, state)
	if err != nil {
		systemPrompt = ""
	}
	systemPrompt = substituteToolSchema(systemPrompt, e.registry)

	userPrompt, err := e.agent.Prepare(ctx, state, observation)
	if err != nil {
		userPrompt = "error preparing prompt: " + err.Error()
	}

	messages := e.assembleMessages(systemPrompt, userPrompt)

	// Pre-termination stopping criteria, checked before the LLM call so
	// a run that is already done spends no tokens.
	if e.stopping != nil && e.stopping(state, *lastResp) {
		return nil, loom.StopCustomCriteria, "", nil
	}

	// Invoke the model.
	if err := w.AppendEvent(trace.Event{Type: trace.EventLLMRequest, StepID: stepID, Timestamp: e.now()}); err != nil {
		return nil, "", "", err
	}
	llmStart := e.now()
	llmCtx, llmSpan := e.startSpan(ctx, "engine.llm_call", loom.IntAttr("step_id", stepID))
	raw := e.invokeLLM(llmCtx, messages)
	llmSpan.End()
	if e.metrics != nil {
		e.metrics.RecordLLMCall(ctx, e.now().Sub(llmStart).Seconds(), loom.IsLLMTransportError(raw))
	}
	*lastResp = raw
	if err := w.AppendEvent(trace.Event{Type: trace.EventLLMResponse, StepID: stepID, Timestamp: e.now(), Payload: map[string]any{"length": len(raw)}}); err != nil {
		return nil, "", "", err
	}
	if e.memory != nil {
		// Record this turn so the next step's history retrieval sees it;
		// Evict keeps the store within its strategy's retention bound.
		e.memory.Append(loom.MemoryRecord{Role: loom.RoleUser, Content: userPrompt, StepID: stepID})
		e.memory.Append(loom.MemoryRecord{Role: loom.RoleAssistant, Content: raw, StepID: stepID})
		e.memory.Evict()
	}
	if sr := e.checkRuntimeBudget(task, startedAt); sr != "" {
		return nil, sr, "", nil
	}

	// Parse.
	decision := e.parser.Parse(raw, e.registry.Names())

	// Dispatch.
	var actionResults []loom.ActionResult
	var stopReason loom.StopReason
	var finalResult string

	switch decision.Mode {
	case loom.DecisionFinal:
		stopReason = loom.StopFinalAnswer
		finalResult = decision.FinalAnswer
	case loom.DecisionAct:
		for _, call := range decision.Actions {
			if stopReason != "" {
				// The runtime budget expired mid-decision. The remaining
				// actions are not dispatched, but each still yields an
				// envelope so actions and results stay paired 1:1 in the
				// step record.
				actionResults = append(actionResults, loom.ActionResult{
					Status: loom.StatusError,
					Payload: map[string]any{
						"message":    "skipped: " + string(stopReason),
						"error_type": "skipped",
						"args":       call.Args,
					},
				})
				continue
			}
			res := e.dispatchOne(ctx, w, stepID, call)
			actionResults = append(actionResults, res)
			if sr := e.checkRuntimeBudget(task, startedAt); sr != "" {
				stopReason = sr
			}
		}
	case loom.DecisionError:
		actionResults = append(actionResults, loom.ActionResultFromError(&loom.ParseFailureError{
			Reason: decision.ErrorMessage,
			Raw:    raw,
		}, nil))
	case loom.DecisionWait:
		// No dispatch; the agent will see an empty observation next turn.
	}

	// Reduce.
	next, err := e.agent.Reduce(ctx, state, observation, decision, actionResults)
	if err != nil {
		e.logger.Error("engine: reduce failed", "step_id", stepID, "error", err)
	} else if next != nil {
		*state = *next
	}

	// Append the step record.
	rec := trace.StepRecord{
		StepID:       stepID,
		Rationale:    decision.Rationale,
		DecisionMode: string(decision.Mode),
	}
	for _, a := range decision.Actions {
		rec.Actions = append(rec.Actions, a)
	}
	for _, r := range actionResults {
		rec.ActionResults = append(rec.ActionResults, r)
	}
	for _, mut := range state.Mutations() {
		if mut.StepID == stepID {
			rec.StateDiff = append(rec.StateDiff, mut)
		}
	}
	if stopReason != "" {
		rec.StopReason = string(stopReason)
	}
	if err := w.AppendStep(rec); err != nil {
		return nil, "", "", err
	}

	// Advance.
	state.IncrementStep()
	if err := w.AppendEvent(trace.Event{Type: trace.EventStepEnd, StepID: stepID, Timestamp: e.now()}); err != nil {
		return nil, "", "", err
	}
	if e.metrics != nil {
		e.metrics.RecordStep(ctx, string(decision.Mode), string(stopReason))
	}

	return &rec, stopReason, finalResult, nil
}

func (e *Engine) dispatchOne(ctx context.Context, w *trace.Writer, stepID int, call loom.ToolCall) loom.ActionResult {
	if call.Error != "" {
		return loom.ActionResultFromError(&loom.ParseFailureError{Reason: call.Error}, call.Args)
	}
	_ = w.AppendEvent(trace.Event{
		Type: trace.EventToolCall, StepID: stepID, Timestamp: e.now(),
		Payload: map[string]any{"name": call.Name, "args": call.Args},
	})
	dctx, span := e.startSpan(ctx, "engine.tool_call", loom.StringAttr("tool", call.Name))
	defer span.End()
	res := e.registry.Dispatch(dctx, call)
	if e.metrics != nil {
		e.metrics.RecordToolCall(ctx, call.Name, string(res.Status), res.Duration.Seconds())
	}
	return res
}

func (e *Engine) checkRuntimeBudget(task loom.Task, startedAt time.Time) loom.StopReason {
	if task.Budget == nil || task.Budget.MaxRuntimeSeconds <= 0 {
		return ""
	}
	if e.now().Sub(startedAt) >= time.Duration(task.Budget.MaxRuntimeSeconds)*time.Second {
		return loom.StopMaxRuntimeExceeded
	}
	return ""
}

func (e *Engine) invokeLLM(ctx context.Context, messages []loom.Message) string {
	if e.provider == nil {
		return (&loom.LLMTransportError{Err: errNoProvider}).Error()
	}
	return e.retryProvider(ctx, messages)
}

func (e *Engine) assembleMessages(systemPrompt, userPrompt string) []loom.Message {
	var messages []loom.Message
	if systemPrompt != "" {
		messages = append(messages, loom.Message{Role: "system", Content: systemPrompt})
	}
	if e.memory != nil {
		records := e.memory.Retrieve(loom.MemoryQuery{
			Roles:  []loom.TrajectoryRole{loom.RoleUser, loom.RoleAssistant},
			Format: loom.FormatMessages,
		})
		for _, r := range records {
			messages = append(messages, loom.Message{Role: string(r.Role), Content: r.Content})
		}
	}
	messages = append(messages, loom.Message{Role: "user", Content: userPrompt})
	return messages
}

func (e *Engine) startSpan(ctx context.Context, name string, attrs ...loom.SpanAttr) (context.Context, loom.Span) {
	if e.tracer == nil {
		return ctx, noopSpan{}
	}
	return e.tracer.Start(ctx, name, attrs...)
}

// substituteToolSchema replaces the "{{tool_schema}}" placeholder in a
// system prompt with the registry's formatted tool descriptions.
func substituteToolSchema(prompt string, reg loom.ToolRegistry) string {
	if prompt == "" || !strings.Contains(prompt, "{{tool_schema}}") {
		return prompt
	}
	return strings.ReplaceAll(prompt, "{{tool_schema}}", reg.FormatSchema())
}

// noopSpan implements loom.Span as a discard target when no Tracer is
// configured.
type noopSpan struct{}

func (noopSpan) SetAttr(...loom.SpanAttr)    {}
func (noopSpan) Event(string, ...loom.SpanAttr) {}
func (noopSpan) Error(error)                 {}
func (noopSpan) End()                        {}

var _ loom.Span = noopSpan{}
