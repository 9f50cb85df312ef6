package harness

import (
	"math"
	"sort"
)

// MetricStats summarises one metric over successful runs.
type MetricStats struct {
	N    int     `json:"n"`
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"` // population standard deviation
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
}

// Summary aggregates a batch of runs. A run succeeds when it completed and
// its plan has no hard violations. Metric statistics cover successful runs
// only.
type Summary struct {
	Runs        int                    `json:"runs"`
	Successes   int                    `json:"successes"`
	Failures    int                    `json:"failures"`
	Errors      int                    `json:"errors"`
	SuccessRate float64                `json:"success_rate"`
	Metrics     map[string]MetricStats `json:"metrics"`
	// Violations counts violations per constraint id over all runs.
	Violations map[string]int `json:"violations"`
}

// Succeeded reports whether a run counts as a success.
func (r RunResult) Succeeded() bool { return r.Err == nil && r.Feasible }

// Summarize reduces results. The reduction is order independent up to
// floating-point rounding; callers keep results in trial order.
func Summarize(results []RunResult) Summary {
	s := Summary{
		Runs:       len(results),
		Metrics:    map[string]MetricStats{},
		Violations: map[string]int{},
	}
	samples := map[string][]float64{}
	for _, r := range results {
		switch {
		case r.Err != nil:
			s.Errors++
		case r.Feasible:
			s.Successes++
			for k, v := range r.Metrics {
				samples[k] = append(samples[k], v)
			}
		default:
			s.Failures++
		}
		if r.Report != nil {
			for _, v := range r.Report.Violations {
				s.Violations[v.ConstraintID]++
			}
		}
	}
	if s.Runs > 0 {
		s.SuccessRate = float64(s.Successes) / float64(s.Runs)
	}
	for k, xs := range samples {
		s.Metrics[k] = describe(xs)
	}
	return s
}

// MetricNames returns the summarised metric names in sorted order.
func (s Summary) MetricNames() []string {
	names := make([]string, 0, len(s.Metrics))
	for k := range s.Metrics {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func describe(xs []float64) MetricStats {
	st := MetricStats{N: len(xs), Min: math.Inf(1), Max: math.Inf(-1)}
	if len(xs) == 0 {
		return MetricStats{}
	}
	var sum float64
	for _, x := range xs {
		sum += x
		st.Min = math.Min(st.Min, x)
		st.Max = math.Max(st.Max, x)
	}
	st.Mean = sum / float64(len(xs))
	var ss float64
	for _, x := range xs {
		d := x - st.Mean
		ss += d * d
	}
	st.Std = math.Sqrt(ss / float64(len(xs)))
	return st
}
