// Package loom is an agent execution runtime: a finite-state control loop
// that drives an LLM-backed agent through observe, decide, act, and reduce
// steps against a typed tool registry, with pluggable memory, tracing, and
// batch benchmark execution.
//
// # Quick Start
//
// Wire an Agent against an Engine and a tool Registry:
//
//	reg := tool.NewRegistry()
//	reg.Register(mytools.Add())
//
//	eng := engine.New(myAgent, reg,
//		engine.WithTracer(observer.NewTracer()),
//		engine.WithParser(parser.NewJSONParser()),
//	)
//	result, err := eng.Run(ctx, task)
//
// # Core Interfaces
//
//   - [Agent] — the decision-making unit: observation, system prompt, reduce
//   - [Provider] — LLM backend (raw chat completion)
//   - [Tracer] — span-based tracing, no-op safe
//   - [Metrics] — counters/histograms for steps, LLM calls, tool calls
//
// # Included Implementations
//
// Parsing: parser (JSON, ReAct, XML decision flavors).
// Tooling: tool (registry, dispatcher, toolset lifecycle).
// Memory: memory (window, summary, vector strategies).
// Tracing and metrics: observer (OpenTelemetry-backed Tracer and Metrics).
// Agents: agents (ReAct, plan-then-act variants).
// Benchmarking: batch (bounded-concurrency runner with resume), benchmark
// (adapter contract converting external datasets into Task values).
// Evaluation: eval, metric (rule/DSL/model evaluators, pass^k and friends).
// Trace persistence: trace (JSONL event/step writer, schema validator).
//
// See cmd/loomctl and package release for the release-readiness CLI.
package loom
