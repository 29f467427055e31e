package observer_test

import (
	"context"
	"testing"

	"github.com/loomrun/loom/observer"

	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestMetrics_RecordsSurfaceThroughManualReader(t *testing.T) {
	reader, shutdown := observer.InitMeter()
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			t.Fatalf("shutdown: %v", err)
		}
	}()

	m, err := observer.NewMetrics()
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	ctx := context.Background()
	m.RecordStep(ctx, "act", "")
	m.RecordLLMCall(ctx, 0.05, false)
	m.RecordToolCall(ctx, "add", "success", 0.01)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}

	seen := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, metric := range sm.Metrics {
			seen[metric.Name] = true
		}
	}
	for _, want := range []string{"loom.engine.steps", "loom.llm.requests", "loom.llm.duration", "loom.tool.calls", "loom.tool.duration"} {
		if !seen[want] {
			t.Fatalf("missing recorded instrument %q, saw %v", want, seen)
		}
	}
}
