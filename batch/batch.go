// Package batch implements the bounded-concurrency benchmark runner:
// N tasks x T trials, isolated per job, resumable via the output
// JSONL treated as a set keyed by (trial, idx).
package batch

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	loom "github.com/loomrun/loom"
	"github.com/loomrun/loom/batch/resultstore"
	"github.com/loomrun/loom/eval"
)

// Row is one completed job's output line.
type Row struct {
	TaskID         string         `json:"task_id"`
	Idx            int            `json:"idx"`
	Trial          int            `json:"trial"`
	Benchmark      string         `json:"benchmark,omitempty"`
	Split          string         `json:"split,omitempty"`
	Reward         *float64       `json:"reward,omitempty"`
	Success        bool           `json:"success"`
	EvalScore      float64        `json:"eval_score"`
	EvalDetails    []eval.Result  `json:"eval_details,omitempty"`
	StopReason     string         `json:"stop_reason,omitempty"`
	Steps          int            `json:"steps"`
	Error          string         `json:"error,omitempty"`
	StartedAt      time.Time      `json:"started_at"`
	EndedAt        time.Time      `json:"ended_at"`
	LatencySeconds float64        `json:"latency_seconds"`
	Extras         map[string]any `json:"extras,omitempty"`
}

// RunFunc executes one task/trial in full isolation (fresh workspace,
// engine, agent, tool registry) and returns its outcome plus whatever
// the Evaluation Suite needs in Extras.
type RunFunc func(ctx context.Context, task loom.Task, trial int) (stopReason string, steps int, finalResult string, extras map[string]any, runErr error)

// EvaluateFunc scores one completed run through an Evaluation Suite.
type EvaluateFunc func(task loom.Task, stopReason, finalResult string, extras map[string]any) eval.CompositeResult

// Config configures one batch invocation.
type Config struct {
	Tasks        []loom.Task
	Trials       int
	Workers      int
	OutputPath   string
	Resume       bool
	ShuffleSeed  *int64
	Benchmark    string
	Split        string
	RateLimiter  *rate.Limiter
	Index        resultstore.Index // optional fast membership cache
	Run          RunFunc
	Evaluate     EvaluateFunc
}

type workItem struct {
	trial int
	idx   int
	task  loom.Task
}

// Runner executes a Config's work list with bounded concurrency.
type Runner struct {
	cfg Config

	writeMu sync.Mutex
	out     *os.File
}

// New validates cfg and returns a Runner ready to Execute.
func New(cfg Config) (*Runner, error) {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Trials <= 0 {
		cfg.Trials = 1
	}
	if cfg.Run == nil {
		return nil, fmt.Errorf("batch: Config.Run is required")
	}
	if cfg.OutputPath == "" {
		return nil, fmt.Errorf("batch: Config.OutputPath is required")
	}
	return &Runner{cfg: cfg}, nil
}

// Execute runs every not-yet-completed (trial, idx) job, appending one
// Row per completion, then returns every row in the output file
// (completed this run plus anything already there). It computes no
// aggregate metrics over those rows.
func (r *Runner) Execute(ctx context.Context) ([]Row, error) {
	items := r.buildWorkList()

	_, completed, err := r.loadCompleted()
	if err != nil {
		return nil, err
	}
	// Sync the file's keys into the index by union, never Rebuild: a
	// shared index (the postgres backend) may carry completions marked by
	// other hosts that this host's output file knows nothing about, and
	// replacing its contents would discard them.
	if r.cfg.Index != nil {
		for k := range completed {
			if err := r.cfg.Index.Mark(k); err != nil {
				return nil, fmt.Errorf("batch: sync resume index: %w", err)
			}
		}
	}

	if r.cfg.Resume {
		filtered := items[:0]
		for _, it := range items {
			key := resultstore.Key{Trial: it.trial, Idx: it.idx}
			if completed[key] {
				continue
			}
			if r.cfg.Index != nil && r.cfg.Index.Has(key) {
				continue
			}
			filtered = append(filtered, it)
		}
		items = filtered
	}

	out, err := os.OpenFile(r.cfg.OutputPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("batch: open output: %w", err)
	}
	r.out = out
	defer out.Close()

	sem := semaphore.NewWeighted(int64(r.cfg.Workers))
	group, gctx := errgroup.WithContext(ctx)

	for _, item := range items {
		item := item
		if err := sem.Acquire(gctx, 1); err != nil {
			// Context cancelled: stop scheduling new jobs; in-flight jobs
			// (already holding the semaphore) still run to completion.
			break
		}
		group.Go(func() error {
			defer sem.Release(1)
			if r.cfg.RateLimiter != nil {
				if err := r.cfg.RateLimiter.Wait(gctx); err != nil {
					return nil
				}
			}
			row := r.runOne(gctx, item)
			if err := r.appendRow(row); err != nil {
				return err
			}
			if r.cfg.Index != nil {
				_ = r.cfg.Index.Mark(resultstore.Key{Trial: item.trial, Idx: item.idx})
			}
			return nil
		})
	}

	// errgroup's first-error-cancels-siblings semantics apply only to
	// jobs that haven't started; runOne itself never returns an error
	// (failures are captured in Row.Error), so Wait only surfaces
	// append/index failures.
	waitErr := group.Wait()

	// collectRows re-reads the output file, which at this point holds
	// every pre-existing row plus everything appended this call — that
	// single re-read is the full, current row set. Appending it onto a
	// separately-held pre-run snapshot would double-count every row that
	// existed before this call, breaking resume idempotence.
	return r.collectRows(), waitErr
}

func (r *Runner) buildWorkList() []workItem {
	var items []workItem
	for trial := 0; trial < r.cfg.Trials; trial++ {
		trialItems := make([]workItem, len(r.cfg.Tasks))
		for idx, task := range r.cfg.Tasks {
			trialItems[idx] = workItem{trial: trial, idx: idx, task: task}
		}
		if r.cfg.ShuffleSeed != nil {
			seed := *r.cfg.ShuffleSeed + int64(trial)
			rng := rand.New(rand.NewSource(seed))
			rng.Shuffle(len(trialItems), func(i, j int) {
				trialItems[i], trialItems[j] = trialItems[j], trialItems[i]
			})
		}
		items = append(items, trialItems...)
	}
	return items
}

// loadCompleted reads the output file (if any) and returns its rows plus
// the set of (trial, idx) keys already present.
func (r *Runner) loadCompleted() ([]Row, map[resultstore.Key]bool, error) {
	completed := map[resultstore.Key]bool{}
	f, err := os.Open(r.cfg.OutputPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, completed, nil
		}
		return nil, nil, fmt.Errorf("batch: read output: %w", err)
	}
	defer f.Close()

	var rows []Row
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var row Row
		if err := json.Unmarshal(line, &row); err != nil {
			continue // a torn/corrupt trailing line from a prior crash is skipped, not fatal
		}
		rows = append(rows, row)
		completed[resultstore.Key{Trial: row.Trial, Idx: row.Idx}] = true
	}
	return rows, completed, nil
}

// appendRow serializes row and issues it as one Write call under the
// runner's output lock, so parallel workers never interleave half lines.
func (r *Runner) appendRow(row Row) error {
	data, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("batch: encode row: %w", err)
	}
	line := append(data, '\n')

	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	if _, err := r.out.Write(line); err != nil {
		return fmt.Errorf("batch: write row: %w", err)
	}
	return nil
}

func (r *Runner) runOne(ctx context.Context, item workItem) Row {
	started := time.Now()
	stopReason, steps, finalResult, extras, runErr := r.cfg.Run(ctx, item.task, item.trial)
	ended := time.Now()

	row := Row{
		TaskID: item.task.ID, Idx: item.idx, Trial: item.trial,
		Benchmark: r.cfg.Benchmark, Split: r.cfg.Split,
		StopReason: stopReason, Steps: steps,
		StartedAt: started, EndedAt: ended,
		LatencySeconds: ended.Sub(started).Seconds(),
		Extras:         extras,
	}
	if runErr != nil {
		row.Error = runErr.Error()
		return row
	}
	if reward, ok := extras["reward"]; ok {
		if v, ok := reward.(float64); ok {
			row.Reward = &v
		}
	}
	if r.cfg.Evaluate != nil {
		composite := r.cfg.Evaluate(item.task, stopReason, finalResult, extras)
		row.Success = composite.Success
		row.EvalScore = composite.Score
		row.EvalDetails = composite.Results
	} else {
		row.Success = stopReason == string(loom.StopFinalAnswer)
	}
	return row
}

// collectRows re-reads the output file so the returned row set reflects
// exactly what's on disk (source of truth), including rows appended by
// this Execute call.
func (r *Runner) collectRows() []Row {
	rows, _, err := r.loadCompleted()
	if err != nil {
		return nil
	}
	return rows
}
