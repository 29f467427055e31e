package batch

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
	"golang.org/x/time/rate"

	"github.com/loomrun/loom/batch/resultstore"
)

// RunConfig is the on-disk shape of a batch invocation, loaded
// defaults -> TOML file -> env vars (env wins).
type RunConfig struct {
	Benchmark   string `toml:"benchmark"`
	Split       string `toml:"split"`
	Trials      int    `toml:"trials"`
	Workers     int    `toml:"workers"`
	OutputPath  string `toml:"output_path"`
	Resume      bool   `toml:"resume"`
	ShuffleSeed *int64 `toml:"shuffle_seed"`

	RateLimit struct {
		Enabled           bool    `toml:"enabled"`
		RequestsPerSecond float64 `toml:"requests_per_second"`
		Burst             int     `toml:"burst"`
	} `toml:"rate_limit"`

	Index struct {
		Backend string `toml:"backend"` // "sqlite" (default), "postgres", or "none"
		Path    string `toml:"path"`    // sqlite file, empty = in-memory
		DSN     string `toml:"dsn"`     // postgres connection string
		Table   string `toml:"table"`   // postgres table name
	} `toml:"index"`
}

// DefaultRunConfig returns a RunConfig with every default applied.
func DefaultRunConfig() RunConfig {
	cfg := RunConfig{
		Trials:     1,
		Workers:    4,
		OutputPath: "results.jsonl",
		Resume:     true,
	}
	cfg.Index.Backend = "sqlite"
	cfg.RateLimit.Burst = 1
	return cfg
}

// LoadRunConfig reads config: defaults -> TOML file -> env vars (env wins).
func LoadRunConfig(path string) RunConfig {
	cfg := DefaultRunConfig()

	if path == "" {
		path = "batch.toml"
	}
	if data, err := os.ReadFile(path); err == nil {
		_ = toml.Unmarshal(data, &cfg)
	}

	if v := os.Getenv("LOOM_BATCH_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Workers = n
		}
	}
	if v := os.Getenv("LOOM_BATCH_TRIALS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Trials = n
		}
	}
	if v := os.Getenv("LOOM_BATCH_OUTPUT"); v != "" {
		cfg.OutputPath = v
	}
	if v := os.Getenv("LOOM_BATCH_INDEX_DSN"); v != "" {
		cfg.Index.DSN = v
	}
	if os.Getenv("LOOM_BATCH_NO_RESUME") == "1" {
		cfg.Resume = false
	}

	return cfg
}

// Build converts an on-disk RunConfig into an executable Config: worker
// and trial counts, output path, resume flag, shuffle seed, the rate
// limiter when enabled, and the resume index backend the [index] block
// names. Tasks, Run, and Evaluate still come from the caller. The caller
// owns the returned Config's Index and must Close it when done.
func (rc RunConfig) Build(ctx context.Context) (Config, error) {
	cfg := Config{
		Trials:      rc.Trials,
		Workers:     rc.Workers,
		OutputPath:  rc.OutputPath,
		Resume:      rc.Resume,
		ShuffleSeed: rc.ShuffleSeed,
		Benchmark:   rc.Benchmark,
		Split:       rc.Split,
	}

	if rc.RateLimit.Enabled {
		burst := rc.RateLimit.Burst
		if burst <= 0 {
			burst = 1
		}
		cfg.RateLimiter = rate.NewLimiter(rate.Limit(rc.RateLimit.RequestsPerSecond), burst)
	}

	switch rc.Index.Backend {
	case "none", "":
	case "sqlite":
		idx, err := resultstore.OpenSQLite(rc.Index.Path)
		if err != nil {
			return Config{}, fmt.Errorf("batch: open sqlite index: %w", err)
		}
		cfg.Index = idx
	case "postgres":
		idx, err := resultstore.OpenPostgres(ctx, rc.Index.DSN, rc.Index.Table)
		if err != nil {
			return Config{}, fmt.Errorf("batch: open postgres index: %w", err)
		}
		cfg.Index = idx
	default:
		return Config{}, fmt.Errorf("batch: unknown index backend %q", rc.Index.Backend)
	}

	return cfg, nil
}
