// Package engine implements the FSM control loop: the
// observe → decide → act → reduce step cycle, budget enforcement, and
// trace emission for one run.
package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"

	loom "github.com/loomrun/loom"
	"github.com/loomrun/loom/parser"
	"github.com/loomrun/loom/trace"
)

// RunResult is what Run returns: the final state, every completed step's
// record, and the terminal outcome.
type RunResult struct {
	State       *loom.State
	Records     []trace.StepRecord
	StopReason  loom.StopReason
	StepCount   int
	FinalResult string
	TraceDir    string
}

// Engine drives one Task to termination and emits one trace.
type Engine struct {
	agent    loom.Agent
	registry loom.ToolRegistry
	provider loom.Provider
	parser   loom.Parser
	memory   loom.MemoryStore
	tracer   loom.Tracer
	metrics  loom.Metrics
	stopping loom.StoppingCriteria
	logger   *slog.Logger

	modelID      string
	traceBaseDir string
	retryMaxTime time.Duration
	seed         int64
	seedSet      bool

	now func() time.Time
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithProvider sets the LLM client the engine invokes each step.
func WithProvider(p loom.Provider) Option { return func(e *Engine) { e.provider = p } }

// WithParser sets the Decision Parser. Defaults to the JSON flavor if unset.
func WithParser(p loom.Parser) Option { return func(e *Engine) { e.parser = p } }

// WithMemory sets the memory store used to assemble history messages.
// Without one, no history is injected beyond the current turn.
func WithMemory(m loom.MemoryStore) Option { return func(e *Engine) { e.memory = m } }

// WithTracer sets the span tracer wrapping each step and LLM call.
func WithTracer(t loom.Tracer) Option { return func(e *Engine) { e.tracer = t } }

// WithMetrics sets the counters/histograms recorder for step, LLM, and
// tool-call outcomes. Without one, the engine records nothing.
func WithMetrics(m loom.Metrics) Option { return func(e *Engine) { e.metrics = m } }

// WithStoppingCriteria sets the pre-LLM termination predicate, checked
// before every model call.
func WithStoppingCriteria(f loom.StoppingCriteria) Option {
	return func(e *Engine) { e.stopping = f }
}

// WithLogger overrides the engine's structured logger.
func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.logger = l } }

// WithModelID records the model identifier written into the trace manifest.
func WithModelID(id string) Option { return func(e *Engine) { e.modelID = id } }

// WithTraceDir sets the base directory under which each run's trace
// subdirectory (named by run ID) is created.
func WithTraceDir(dir string) Option { return func(e *Engine) { e.traceBaseDir = dir } }

// WithSeed pins the reproducibility seed recorded in manifest.json's
// "seed" field. Without one, the engine derives a seed from the
// run's start time (loom.DefaultSeed).
func WithSeed(seed int64) Option {
	return func(e *Engine) { e.seed = seed; e.seedSet = true }
}

// WithLLMRetryBudget bounds total wall-clock time spent retrying a
// transient LLM transport failure before surfacing it to the parser as
// raw text.
func WithLLMRetryBudget(d time.Duration) Option {
	return func(e *Engine) { e.retryMaxTime = d }
}

// New builds an Engine for agent against registry. provider and parser
// may also be supplied via options; New panics on nil agent or registry,
// the one programmer-error fast-fail this API allows.
func New(agent loom.Agent, registry loom.ToolRegistry, opts ...Option) *Engine {
	if agent == nil {
		panic("engine: nil agent")
	}
	if registry == nil {
		panic("engine: nil registry")
	}
	e := &Engine{
		agent:        agent,
		registry:     registry,
		logger:       slog.Default(),
		retryMaxTime: 30 * time.Second,
		traceBaseDir: "traces",
		now:          time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	if e.parser == nil {
		e.parser = parser.NewJSONParser()
	}
	return e
}

// Run executes task to termination, producing RunResult and a flushed
// trace under WithTraceDir/<run-id>. Run never panics except for the
// nil-task programmer error. A task that fails ValidateTask, or a trace
// directory that cannot be opened, returns an empty RunResult and a
// non-nil error before any trace is written; every failure after that is
// captured as stop_reason=fatal_error in the returned RunResult.
func (e *Engine) Run(ctx context.Context, task loom.Task) (RunResult, error) {
	if task.ID == "" && task.Objective == "" {
		panic("engine: nil task")
	}
	if issues := loom.ValidateTask(task, ""); len(issues) > 0 {
		return RunResult{}, fmt.Errorf("engine: task %q failed validation: %s (%d issues)", task.ID, issues[0].Message, len(issues))
	}

	runID := loom.NewID()
	dir := e.traceBaseDir + "/" + runID
	w, err := trace.Open(dir)
	if err != nil {
		return RunResult{}, fmt.Errorf("engine: open trace: %w", err)
	}

	startedAt := e.now()
	seed := e.seed
	if !e.seedSet {
		seed = loom.DefaultSeed(startedAt)
	}
	state := loom.NewState(task)

	sysPrompt, _ := e.agent.SystemPrompt(ctx, state)
	promptHash := sha256Hex([]byte(substituteToolSchema(sysPrompt, e.registry)))

	_ = w.AppendEvent(trace.Event{
		Type: trace.EventRunStart, StepID: 0, Timestamp: startedAt,
		Payload: map[string]any{"task_id": task.ID, "run_id": runID},
	})

	if err := e.registry.SetupAll(ctx); err != nil {
		return e.abortFatal(w, runID, promptHash, startedAt, task, state, fmt.Errorf("toolset setup: %w", err))
	}
	defer e.registry.TeardownAll(ctx)

	var (
		records     []trace.StepRecord
		lastResp    string
		stopReason  loom.StopReason
		finalResult string
	)

runLoop:
	for {
		select {
		case <-ctx.Done():
			stopReason = loom.StopCancelled
			break runLoop
		default:
		}

		rec, sr, fr, stepErr := e.step(ctx, w, state, task, startedAt, &lastResp)
		if stepErr != nil {
			return e.abortFatal(w, runID, promptHash, startedAt, task, state, stepErr)
		}
		if rec != nil {
			records = append(records, *rec)
		}
		if sr != "" {
			stopReason = sr
			finalResult = fr
			break runLoop
		}
	}

	state.SetStopReason(stopReason)
	if finalResult != "" {
		state.SetFinalResult(finalResult)
	}

	endedAt := e.now()
	_ = w.AppendEvent(trace.Event{
		Type: trace.EventRunEnd, StepID: state.CurrentStep, Timestamp: endedAt,
		Payload: map[string]any{"stop_reason": string(stopReason)},
	})

	status := trace.StatusCompleted
	if stopReason == loom.StopFatalError || stopReason == loom.StopCancelled {
		status = trace.StatusAborted
	}
	manifestErr := w.Finalize(trace.Manifest{
		RunID: runID, StartedAt: startedAt, EndedAt: endedAt, Status: status,
		ModelID:       e.modelID,
		PromptHash:    promptHash,
		Seed:          seed,
		ToolVersions:  e.registry.Versions(),
		RunConfigHash: configHash(task),
		Summary: trace.Summary{
			StopReason:  string(stopReason),
			FinalResult: finalResult,
			Steps:       state.CurrentStep,
		},
	})
	if manifestErr != nil {
		// run_end is already on disk; the manifest is what failed. Report
		// fatal_error without panicking.
		e.logger.Error("engine: trace finalize failed", "run_id", runID, "error", manifestErr)
		return RunResult{State: state, StopReason: loom.StopFatalError, StepCount: state.CurrentStep}, &loom.FatalEngineError{Err: manifestErr}
	}

	return RunResult{
		State: state, Records: records, StopReason: stopReason,
		StepCount: state.CurrentStep, FinalResult: finalResult, TraceDir: dir,
	}, nil
}

// abortFatal finalizes the trace with status=aborted and stop_reason
// fatal_error: flush whatever manifest we can, then return the failure —
// wrapped as a FatalEngineError — to the caller rather than panicking.
func (e *Engine) abortFatal(w *trace.Writer, runID, promptHash string, startedAt time.Time, task loom.Task, state *loom.State, cause error) (RunResult, error) {
	cause = &loom.FatalEngineError{Err: cause}
	e.logger.Error("engine: fatal error", "run_id", runID, "error", cause)
	if state.StopReason == nil {
		state.SetStopReason(loom.StopFatalError)
	}
	endedAt := e.now()
	seed := e.seed
	if !e.seedSet {
		seed = loom.DefaultSeed(startedAt)
	}
	_ = w.AppendEvent(trace.Event{
		Type: trace.EventRunEnd, StepID: state.CurrentStep, Timestamp: endedAt,
		Payload: map[string]any{"stop_reason": string(loom.StopFatalError), "error": cause.Error()},
	})
	_ = w.Finalize(trace.Manifest{
		RunID: runID, StartedAt: startedAt, EndedAt: endedAt, Status: trace.StatusAborted,
		ModelID:       e.modelID,
		PromptHash:    promptHash,
		Seed:          seed,
		ToolVersions:  e.registry.Versions(),
		RunConfigHash: configHash(task),
		Summary: trace.Summary{
			StopReason: string(loom.StopFatalError),
			Steps:      state.CurrentStep,
		},
	})
	return RunResult{State: state, StopReason: loom.StopFatalError, StepCount: state.CurrentStep}, cause
}

// retryProvider wraps a single LLM call with exponential backoff, treating
// any error as transient up to the engine's retry budget before handing
// the failure text to the parser.
func (e *Engine) retryProvider(ctx context.Context, messages []loom.Message) string {
	text, err := backoff.Retry(ctx, func() (string, error) {
		return e.provider.Complete(ctx, messages)
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxElapsedTime(e.retryMaxTime))
	if err != nil {
		return (&loom.LLMTransportError{Err: err}).Error()
	}
	return text
}

func configHash(task loom.Task) string {
	data, _ := json.Marshal(task)
	return sha256Hex(data)
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
