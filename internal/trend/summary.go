package trend

import "github.com/caevv/bddash/internal/model"

// Summary aggregates a set of runs for dashboard cards.
type Summary struct {
	Runs        int `json:"runs"`
	PassedRuns  int `json:"passed_runs"`
	FailedRuns  int `json:"failed_runs"`
	OtherRuns   int `json:"other_runs"`
	Scenarios   int `json:"scenarios"`
	Passed      int `json:"passed"`
	Failed      int `json:"failed"`
	Skipped     int `json:"skipped"`
	PassRate    int `json:"pass_rate"`
	AvgDuration int `json:"avg_duration_ms"`
}

// Summarize totals runs. The pass rate is computed over summed scenario
// counts, like the daily trend.
func Summarize(runs []model.TestRun) Summary {
	var s Summary
	var duration float64

	for _, run := range runs {
		s.Runs++
		switch run.Status {
		case model.StatusPassed:
			s.PassedRuns++
		case model.StatusFailed:
			s.FailedRuns++
		default:
			s.OtherRuns++
		}
		s.Scenarios += run.Summary.Total
		s.Passed += run.Summary.Passed
		s.Failed += run.Summary.Failed
		s.Skipped += run.Summary.Skipped
		duration += run.Duration
	}

	s.PassRate = PassRate(s.Passed, s.Scenarios)
	if s.Runs > 0 {
		s.AvgDuration = int(duration / float64(s.Runs))
	}
	return s
}
