package metric

import "testing"

func reward(v float64) *float64 { return &v }

// successesToRows builds n trials per task from a slice of per-task
// success counts.
func successesToRows(successes []int, n int) []Input {
	var rows []Input
	for taskIdx, c := range successes {
		taskID := string(rune('A' + taskIdx))
		for trial := 0; trial < n; trial++ {
			rows = append(rows, Input{TaskID: taskID, Trial: trial, Success: trial < c})
		}
	}
	return rows
}

func TestPassAtK_ScenarioSix(t *testing.T) {
	rows := successesToRows([]int{2, 1, 0, 0}, 2)

	got1 := PassAtK{K: 1}.Compute(rows).Value.(float64)
	if !almostEqual(got1, 0.375) {
		t.Fatalf("pass^1 = %v, want 0.375", got1)
	}

	got2 := PassAtK{K: 2}.Compute(rows).Value.(float64)
	if !almostEqual(got2, 0.25) {
		t.Fatalf("pass^2 = %v, want 0.25", got2)
	}
}

func TestPassAt1_EqualsSuccessRate_WhenSingleTrial(t *testing.T) {
	rows := []Input{
		{TaskID: "a", Success: true},
		{TaskID: "b", Success: false},
		{TaskID: "c", Success: true},
		{TaskID: "d", Success: false},
	}
	sr := SuccessRate{}.Compute(rows).Value.(float64)
	p1 := PassAtK{K: 1}.Compute(rows).Value.(float64)
	if !almostEqual(sr, p1) {
		t.Fatalf("pass^1 (%v) != success_rate (%v) for single-trial rows", p1, sr)
	}
}

func TestAverageReward(t *testing.T) {
	rows := []Input{{Reward: reward(1)}, {Reward: reward(3)}, {Reward: nil}}
	got := AverageReward{}.Compute(rows).Value.(float64)
	if !almostEqual(got, 2.0) {
		t.Fatalf("avg_reward = %v, want 2.0", got)
	}
}

func almostEqual(a, b float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < 1e-9
}
