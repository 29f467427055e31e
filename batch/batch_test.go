package batch

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	loom "github.com/loomrun/loom"
	"github.com/loomrun/loom/batch/resultstore"
)

func newTestRunner(t *testing.T, outputPath string, resume bool) *Runner {
	t.Helper()
	tasks := []loom.Task{{ID: "t0", Objective: "add one plus one"}, {ID: "t1", Objective: "add two plus two"}}
	r, err := New(Config{
		Tasks:      tasks,
		Trials:     1,
		Workers:    2,
		OutputPath: outputPath,
		Resume:     resume,
		Run: func(ctx context.Context, task loom.Task, trial int) (string, int, string, map[string]any, error) {
			return string(loom.StopFinalAnswer), 1, "4", nil, nil
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

// TestExecute_ResumeDoesNotDuplicateRows guards resume idempotence:
// resuming a run whose output file already holds every
// (trial, idx) row must not return each pre-existing row twice.
func TestExecute_ResumeDoesNotDuplicateRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl")

	first := newTestRunner(t, path, true)
	rows, err := first.Execute(context.Background())
	if err != nil {
		t.Fatalf("first Execute: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("first Execute: got %d rows, want 2", len(rows))
	}

	// Nothing left to do: every (trial, idx) key is already in the file.
	second := newTestRunner(t, path, true)
	rows, err = second.Execute(context.Background())
	if err != nil {
		t.Fatalf("resumed Execute: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("resumed Execute returned %d rows, want 2 (no duplicates)", len(rows))
	}

	seen := map[string]bool{}
	for _, row := range rows {
		key := row.TaskID
		if seen[key] {
			t.Fatalf("duplicate row for task %q in resumed Execute result", key)
		}
		seen[key] = true
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if got := len(splitLines(data)); got != 2 {
		t.Fatalf("output file has %d lines, want 2 (no re-appended duplicates)", got)
	}
}

func splitLines(data []byte) []string {
	var lines []string
	start := 0
	for i, b := range data {
		if b == '\n' {
			if i > start {
				lines = append(lines, string(data[start:i]))
			}
			start = i + 1
		}
	}
	if start < len(data) {
		lines = append(lines, string(data[start:]))
	}
	return lines
}

// TestExecute_ResumeConsultsIndex covers the shared-index path: a key
// marked in the index by another writer (a second host appending to the
// same postgres table, say) must be skipped on resume even though the
// local output file has no row for it.
func TestExecute_ResumeConsultsIndex(t *testing.T) {
	idx, err := resultstore.OpenSQLite("")
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer idx.Close()
	if err := idx.Mark(resultstore.Key{Trial: 0, Idx: 0}); err != nil {
		t.Fatalf("Mark: %v", err)
	}

	var executed atomic.Int64
	tasks := []loom.Task{{ID: "t0", Objective: "already done elsewhere"}, {ID: "t1", Objective: "still to do"}}
	r, err := New(Config{
		Tasks:      tasks,
		Trials:     1,
		Workers:    2,
		OutputPath: filepath.Join(t.TempDir(), "out.jsonl"),
		Resume:     true,
		Index:      idx,
		Run: func(ctx context.Context, task loom.Task, trial int) (string, int, string, map[string]any, error) {
			executed.Add(1)
			return string(loom.StopFinalAnswer), 1, "done", nil, nil
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	rows, err := r.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := executed.Load(); got != 1 {
		t.Fatalf("executed %d jobs, want 1 (idx 0 is already in the index)", got)
	}
	if len(rows) != 1 || rows[0].TaskID != "t1" {
		t.Fatalf("unexpected rows: %+v", rows)
	}
	if !idx.Has(resultstore.Key{Trial: 0, Idx: 1}) {
		t.Fatal("completed job was not marked in the index")
	}
}

// TestBuild_WiresIndexAndLimiterFromConfig pins the RunConfig -> Config
// translation: the default sqlite backend yields a usable Index and the
// rate-limit block yields a limiter only when enabled.
func TestBuild_WiresIndexAndLimiterFromConfig(t *testing.T) {
	rc := DefaultRunConfig()
	rc.OutputPath = filepath.Join(t.TempDir(), "out.jsonl")
	rc.RateLimit.Enabled = true
	rc.RateLimit.RequestsPerSecond = 100

	cfg, err := rc.Build(context.Background())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if cfg.Index == nil {
		t.Fatal("default sqlite backend produced no Index")
	}
	defer cfg.Index.Close()
	if cfg.RateLimiter == nil {
		t.Fatal("enabled rate limit produced no limiter")
	}
	if cfg.Workers != rc.Workers || cfg.Trials != rc.Trials || cfg.OutputPath != rc.OutputPath {
		t.Fatalf("Build dropped scalar fields: %+v", cfg)
	}

	rc.Index.Backend = "carrier-pigeon"
	if _, err := rc.Build(context.Background()); err == nil {
		t.Fatal("expected an unknown index backend to fail Build")
	}
}

func TestLoadRunConfig_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "batch.toml")
	doc := "workers = 9\ntrials = 3\noutput_path = \"rows.jsonl\"\n\n[index]\nbackend = \"none\"\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := LoadRunConfig(path)
	if cfg.Workers != 9 || cfg.Trials != 3 || cfg.OutputPath != "rows.jsonl" {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.Index.Backend != "none" {
		t.Fatalf("index backend = %q, want none", cfg.Index.Backend)
	}
	if !cfg.Resume {
		t.Fatal("untouched defaults must survive file loading")
	}
}
