package tool

import (
	"context"
	"errors"
	"testing"
	"time"

	loom "github.com/loomrun/loom"
)

func addTool() Tool {
	return Tool{
		Name:           "add",
		Description:    "adds two numbers",
		RequiredParams: []string{"a", "b"},
		Run: func(_ context.Context, args map[string]any) (map[string]any, error) {
			a, _ := args["a"].(int64)
			b, _ := args["b"].(int64)
			return map[string]any{"status": "success", "sum": a + b}, nil
		},
	}
}

func TestDispatch_Success(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(addTool()); err != nil {
		t.Fatal(err)
	}
	res := r.Dispatch(context.Background(), loom.ToolCall{Name: "add", Args: map[string]any{"a": int64(1), "b": int64(2)}})
	if res.Status != loom.StatusSuccess {
		t.Fatalf("expected success, got %+v", res)
	}
	if res.Payload["sum"] != int64(3) {
		t.Fatalf("expected sum=3, got %v", res.Payload["sum"])
	}
}

func TestDispatch_NotFound(t *testing.T) {
	r := NewRegistry()
	res := r.Dispatch(context.Background(), loom.ToolCall{Name: "missing"})
	if res.Status != loom.StatusError {
		t.Fatalf("expected error, got %+v", res)
	}
}

func TestDispatch_MissingRequired(t *testing.T) {
	r := NewRegistry()
	_ = r.Register(addTool())
	res := r.Dispatch(context.Background(), loom.ToolCall{Name: "add", Args: map[string]any{"a": int64(1)}})
	if res.Status != loom.StatusError {
		t.Fatalf("expected validation error, got %+v", res)
	}
}

func TestDispatch_ToolErrorContained(t *testing.T) {
	r := NewRegistry()
	_ = r.Register(Tool{
		Name: "boom",
		Run: func(context.Context, map[string]any) (map[string]any, error) {
			return nil, errors.New("kaboom")
		},
	})
	res := r.Dispatch(context.Background(), loom.ToolCall{Name: "boom"})
	if res.Status != loom.StatusError {
		t.Fatalf("expected contained error, got %+v", res)
	}
}

func TestDispatch_PanicContained(t *testing.T) {
	r := NewRegistry()
	_ = r.Register(Tool{
		Name: "panics",
		Run: func(context.Context, map[string]any) (map[string]any, error) {
			panic("oh no")
		},
	})
	res := r.Dispatch(context.Background(), loom.ToolCall{Name: "panics"})
	if res.Status != loom.StatusError {
		t.Fatalf("expected panic contained as error, got %+v", res)
	}
}

func TestDispatch_TimeoutContained(t *testing.T) {
	r := NewRegistry()
	_ = r.Register(Tool{
		Name:    "slow",
		Timeout: 10 * time.Millisecond,
		Run: func(ctx context.Context, _ map[string]any) (map[string]any, error) {
			<-ctx.Done()
			return map[string]any{"status": "success"}, nil
		},
	})
	res := r.Dispatch(context.Background(), loom.ToolCall{Name: "slow"})
	if res.Status != loom.StatusError {
		t.Fatalf("expected timeout contained as error, got %+v", res)
	}
	if res.Payload["error_type"] != "timeout" {
		t.Fatalf("expected error_type=timeout, got %v", res.Payload["error_type"])
	}
}

// TestDispatch_PanicUnderTimeoutContained covers the combination
// TestDispatch_PanicContained and TestDispatch_TimeoutContained each test
// separately: a tool with a positive Timeout that panics runs on its own
// goroutine inside dispatchWithTimeout, whose recover only protects the
// synchronous call path — without a recover on that goroutine too, the
// panic would crash the process instead of producing a contained
// status=error result.
func TestDispatch_PanicUnderTimeoutContained(t *testing.T) {
	r := NewRegistry()
	_ = r.Register(Tool{
		Name:    "panics_with_timeout",
		Timeout: 50 * time.Millisecond,
		Run: func(context.Context, map[string]any) (map[string]any, error) {
			panic("boom under timeout")
		},
	})
	res := r.Dispatch(context.Background(), loom.ToolCall{Name: "panics_with_timeout"})
	if res.Status != loom.StatusError {
		t.Fatalf("expected panic-under-timeout contained as error, got %+v", res)
	}
	if res.Payload["error_type"] != "panic" {
		t.Fatalf("expected error_type=panic, got %v", res.Payload["error_type"])
	}
}

func TestRegister_DuplicateFailsWithoutReplace(t *testing.T) {
	r := NewRegistry()
	_ = r.Register(addTool())
	if err := r.Register(addTool()); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
	if err := r.Register(addTool(), true); err != nil {
		t.Fatalf("expected replace=true to succeed, got %v", err)
	}
}

func TestToolsetLifecycle_Order(t *testing.T) {
	r := NewRegistry()
	var events []string
	_ = r.RegisterToolset(Toolset{
		Name: "first",
		Setup: func(context.Context) error {
			events = append(events, "setup:first")
			return nil
		},
		Teardown: func(context.Context) error {
			events = append(events, "teardown:first")
			return nil
		},
		Tools: func() []Tool { return nil },
	})
	_ = r.RegisterToolset(Toolset{
		Name: "second",
		Setup: func(context.Context) error {
			events = append(events, "setup:second")
			return nil
		},
		Teardown: func(context.Context) error {
			events = append(events, "teardown:second")
			return nil
		},
		Tools: func() []Tool { return nil },
	})

	if err := r.SetupAll(context.Background()); err != nil {
		t.Fatal(err)
	}
	r.TeardownAll(context.Background())

	want := []string{"setup:first", "setup:second", "teardown:second", "teardown:first"}
	if len(events) != len(want) {
		t.Fatalf("expected %v, got %v", want, events)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, events)
		}
	}
}
