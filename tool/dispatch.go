package tool

import (
	"context"
	"fmt"
	"time"

	loom "github.com/loomrun/loom"
)

// Dispatch looks up, validates, and executes one ToolCall, translating any
// failure into a populated ActionResult via the typed dispatch errors and
// loom.ActionResultFromError. It never lets a tool's panic or error escape
// past this boundary.
func (r *Registry) Dispatch(ctx context.Context, call loom.ToolCall) (result loom.ActionResult) {
	r.mu.RLock()
	t, ok := r.tools[call.Name]
	r.mu.RUnlock()

	if !ok {
		return loom.ActionResultFromError(&loom.ToolNotFoundError{
			Name:      call.Name,
			Available: r.Names(),
		}, call.Args)
	}

	if missing := missingRequired(t, call.Args); len(missing) > 0 {
		return loom.ActionResultFromError(&loom.ToolValidationError{
			Name:    t.Name,
			Missing: missing,
		}, call.Args)
	}

	start := time.Now()
	defer func() {
		result.Duration = time.Since(start)
		if rec := recover(); rec != nil {
			result = loom.ActionResultFromError(&loom.ToolExecutionError{
				Name: t.Name,
				Type: "panic",
				Err:  fmt.Errorf("%v", rec),
			}, call.Args)
			result.Duration = time.Since(start)
		}
	}()

	if t.Timeout > 0 {
		return r.dispatchWithTimeout(ctx, t, call)
	}

	out, err := t.Run(ctx, call.Args)
	if err != nil {
		return loom.ActionResultFromError(&loom.ToolExecutionError{
			Name: t.Name,
			Type: fmt.Sprintf("%T", err),
			Err:  err,
		}, call.Args)
	}
	return resultFromMap(out)
}

// dispatchWithTimeout runs t.Run under a deadline, returning a
// status="error", error_type="timeout" envelope if it's exceeded. The
// goroutine keeps running in the background on timeout (Go has no way to
// preempt it); its result, if any, is discarded.
func (r *Registry) dispatchWithTimeout(ctx context.Context, t Tool, call loom.ToolCall) loom.ActionResult {
	type outcome struct {
		out   map[string]any
		err   error
		panic any
	}
	done := make(chan outcome, 1)
	tctx, cancel := context.WithTimeout(ctx, t.Timeout)
	defer cancel()

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- outcome{panic: rec}
			}
		}()
		out, err := t.Run(tctx, call.Args)
		done <- outcome{out: out, err: err}
	}()

	select {
	case o := <-done:
		if o.panic != nil {
			return loom.ActionResultFromError(&loom.ToolExecutionError{
				Name: t.Name,
				Type: "panic",
				Err:  fmt.Errorf("%v", o.panic),
			}, call.Args)
		}
		if o.err != nil {
			return loom.ActionResultFromError(&loom.ToolExecutionError{
				Name: t.Name,
				Type: fmt.Sprintf("%T", o.err),
				Err:  o.err,
			}, call.Args)
		}
		return resultFromMap(o.out)
	case <-tctx.Done():
		return loom.ActionResultFromError(&loom.ToolTimeoutError{
			Name:    t.Name,
			Timeout: t.Timeout,
		}, call.Args)
	}
}

func missingRequired(t Tool, args map[string]any) []string {
	var missing []string
	for _, req := range t.RequiredParams {
		if _, ok := args[req]; !ok {
			missing = append(missing, req)
		}
	}
	return missing
}

// resultFromMap builds an ActionResult from a tool's returned mapping,
// pulling "status" out into the envelope's Status field and leaving the
// rest as Payload.
func resultFromMap(out map[string]any) loom.ActionResult {
	status := loom.StatusSuccess
	payload := map[string]any{}
	for k, v := range out {
		if k == "status" {
			if s, ok := v.(string); ok {
				status = loom.ActionResultStatus(s)
			}
			continue
		}
		payload[k] = v
	}
	return loom.ActionResult{Status: status, Payload: payload}
}
