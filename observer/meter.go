package observer

import (
	"context"
	"fmt"

	loom "github.com/loomrun/loom"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// otelMetrics implements loom.Metrics using OTEL counters and histograms:
// per-operation counters plus duration histograms, one Meter shared
// across all of them.
type otelMetrics struct {
	steps        metric.Int64Counter
	llmRequests  metric.Int64Counter
	llmDuration  metric.Float64Histogram
	toolCalls    metric.Int64Counter
	toolDuration metric.Float64Histogram
}

// NewMetrics builds a loom.Metrics backed by the global OTEL MeterProvider.
// Call InitMeter first to install a provider with a real reader; without
// one, the global API falls back to its no-op implementation and
// recording becomes a cheap discard.
func NewMetrics() (loom.Metrics, error) {
	meter := otel.Meter(scopeName)

	steps, err := meter.Int64Counter("loom.engine.steps",
		metric.WithDescription("Completed FSM steps"), metric.WithUnit("{step}"))
	if err != nil {
		return nil, fmt.Errorf("observer: steps counter: %w", err)
	}
	llmRequests, err := meter.Int64Counter("loom.llm.requests",
		metric.WithDescription("LLM invocations, success and transport failure"), metric.WithUnit("{request}"))
	if err != nil {
		return nil, fmt.Errorf("observer: llm requests counter: %w", err)
	}
	llmDuration, err := meter.Float64Histogram("loom.llm.duration",
		metric.WithDescription("LLM call wall-clock duration"), metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("observer: llm duration histogram: %w", err)
	}
	toolCalls, err := meter.Int64Counter("loom.tool.calls",
		metric.WithDescription("Dispatched tool calls by status"), metric.WithUnit("{call}"))
	if err != nil {
		return nil, fmt.Errorf("observer: tool calls counter: %w", err)
	}
	toolDuration, err := meter.Float64Histogram("loom.tool.duration",
		metric.WithDescription("Tool dispatch wall-clock duration"), metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("observer: tool duration histogram: %w", err)
	}

	return &otelMetrics{
		steps: steps, llmRequests: llmRequests, llmDuration: llmDuration,
		toolCalls: toolCalls, toolDuration: toolDuration,
	}, nil
}

func (m *otelMetrics) RecordStep(ctx context.Context, decisionMode, stopReason string) {
	attrs := []attrKV{{"decision_mode", decisionMode}}
	if stopReason != "" {
		attrs = append(attrs, attrKV{"stop_reason", stopReason})
	}
	m.steps.Add(ctx, 1, metric.WithAttributes(toAttrs(attrs)...))
}

func (m *otelMetrics) RecordLLMCall(ctx context.Context, duration float64, failed bool) {
	status := "ok"
	if failed {
		status = "transport_error"
	}
	opt := metric.WithAttributes(toAttrs([]attrKV{{"status", status}})...)
	m.llmRequests.Add(ctx, 1, opt)
	m.llmDuration.Record(ctx, duration, opt)
}

func (m *otelMetrics) RecordToolCall(ctx context.Context, name, status string, duration float64) {
	opt := metric.WithAttributes(toAttrs([]attrKV{{"tool", name}, {"status", status}})...)
	m.toolCalls.Add(ctx, 1, opt)
	m.toolDuration.Record(ctx, duration, opt)
}

var _ loom.Metrics = (*otelMetrics)(nil)

// InitMeter installs an OTEL MeterProvider backed by an in-process manual
// reader and returns that ManualReader, for pulling point-in-time metric
// data (used by the check-release smoke check), plus the provider's
// shutdown func. Unlike tracing, no OTLP
// metric exporter is wired: the aggregate metric reports are the only
// consumer, so the reader stays in-process rather than shipping to a
// network sink nothing reads.
func InitMeter() (*sdkmetric.ManualReader, func(context.Context) error) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(mp)
	return reader, mp.Shutdown
}

type attrKV struct {
	key, value string
}

func toAttrs(kvs []attrKV) []attribute.KeyValue {
	out := make([]attribute.KeyValue, len(kvs))
	for i, kv := range kvs {
		out[i] = attribute.String(kv.key, kv.value)
	}
	return out
}
