package metric

import (
	"math/big"
	"strconv"
)

// SuccessRate is the fraction of rows with Success == true.
type SuccessRate struct{}

func (SuccessRate) Compute(rows []Input) Report {
	total := len(rows)
	success := 0
	for _, r := range rows {
		if r.Success {
			success++
		}
	}
	value := 0.0
	if total > 0 {
		value = float64(success) / float64(total)
	}
	return Report{Name: "success_rate", Value: value, Details: map[string]any{"success": success, "total": total}}
}

// AverageReward is the mean of every row's non-nil Reward.
type AverageReward struct{}

func (AverageReward) Compute(rows []Input) Report {
	var sum float64
	count := 0
	for _, r := range rows {
		if r.Reward != nil {
			sum += *r.Reward
			count++
		}
	}
	value := 0.0
	if count > 0 {
		value = sum / float64(count)
	}
	return Report{Name: "avg_reward", Value: value, Details: map[string]any{"count": count}}
}

// MeanSteps is the mean of every row's Steps.
type MeanSteps struct{}

func (MeanSteps) Compute(rows []Input) Report {
	var sum int
	for _, r := range rows {
		sum += r.Steps
	}
	value := 0.0
	if len(rows) > 0 {
		value = float64(sum) / float64(len(rows))
	}
	return Report{Name: "mean_steps", Value: value, Details: map[string]any{"count": len(rows)}}
}

// StopReasonDistribution counts rows by StopReason.
type StopReasonDistribution struct{}

func (StopReasonDistribution) Compute(rows []Input) Report {
	counts := map[string]int{}
	for _, r := range rows {
		counts[r.StopReason]++
	}
	return Report{Name: "stop_reason_distribution", Value: counts, Details: map[string]any{"count": len(rows)}}
}

// PassAtK is the tau-bench-style pass^k metric:
//
//	pass^k(task) = C(c, k) / C(n, k)  if c >= k else 0
//	pass^k = mean over tasks of pass^k(task)
type PassAtK struct {
	K int
}

func (p PassAtK) Compute(rows []Input) Report {
	grouped := map[string][]Input{}
	for _, r := range rows {
		grouped[r.TaskID] = append(grouped[r.TaskID], r)
	}

	var taskScores []float64
	for _, items := range grouped {
		n := len(items)
		if n == 0 || p.K <= 0 || p.K > n {
			continue
		}
		c := 0
		for _, r := range items {
			if r.Success {
				c++
			}
		}
		if c < p.K {
			taskScores = append(taskScores, 0)
			continue
		}
		num := new(big.Float).SetInt(comb(c, p.K))
		den := new(big.Float).SetInt(comb(n, p.K))
		score, _ := new(big.Float).Quo(num, den).Float64()
		taskScores = append(taskScores, score)
	}

	value := 0.0
	if len(taskScores) > 0 {
		var sum float64
		for _, s := range taskScores {
			sum += s
		}
		value = sum / float64(len(taskScores))
	}
	return Report{
		Name:    passAtKName(p.K),
		Value:   value,
		Details: map[string]any{"task_count": len(taskScores)},
	}
}

func passAtKName(k int) string {
	return "pass_at_" + strconv.Itoa(k)
}
