// Package metric computes aggregate reports over a collection of batch
// run rows: success_rate, avg_reward, mean_steps,
// stop_reason_distribution, and pass^k for k in [1..num_trials].
package metric

import (
	"math/big"
)

// Input is one run's contribution to a metric report, mirroring the
// Batch Runner's per-row shape.
type Input struct {
	TaskID     string
	Trial      int
	Success    bool
	Reward     *float64
	Steps      int
	StopReason string
	Payload    map[string]any
}

// Report is one computed metric's value plus supporting detail.
type Report struct {
	Name    string
	Value   any
	Details map[string]any
}

// Metric computes one Report over a row collection.
type Metric interface {
	Compute(rows []Input) Report
}

// Registry runs a fixed set of Metrics over the same row collection.
type Registry struct {
	Metrics []Metric
}

// NewDefaultRegistry returns the standard metric set: success_rate,
// avg_reward, mean_steps, stop_reason_distribution, and pass^k for every
// k from 1 to numTrials.
func NewDefaultRegistry(numTrials int) Registry {
	metrics := []Metric{
		SuccessRate{},
		AverageReward{},
		MeanSteps{},
		StopReasonDistribution{},
	}
	for k := 1; k <= numTrials; k++ {
		metrics = append(metrics, PassAtK{K: k})
	}
	return Registry{Metrics: metrics}
}

// Compute runs every configured Metric and returns one Report per metric.
func (r Registry) Compute(rows []Input) []Report {
	out := make([]Report, len(r.Metrics))
	for i, m := range r.Metrics {
		out[i] = m.Compute(rows)
	}
	return out
}

// comb computes C(n, k) with math/big, keeping the binomial coefficients
// in pass^k exact for any trial count.
func comb(n, k int) *big.Int {
	if k < 0 || k > n {
		return big.NewInt(0)
	}
	return new(big.Int).Binomial(int64(n), int64(k))
}
