package server

import "github.com/caevv/bddash/internal/scheduler"

// SchedulerAdapter adapts scheduler.Scheduler to the Tasks interface.
type SchedulerAdapter struct {
	scheduler *scheduler.Scheduler
}

// NewSchedulerAdapter creates a new scheduler adapter
func NewSchedulerAdapter(s *scheduler.Scheduler) *SchedulerAdapter {
	return &SchedulerAdapter{scheduler: s}
}

// Tasks returns every scheduled task with its statistics.
func (a *SchedulerAdapter) Tasks() []TaskSummary {
	stats := a.scheduler.AllStats()
	summaries := make([]TaskSummary, 0, len(stats))

	for _, st := range stats {
		summary := TaskSummary{
			Name:     st.Task,
			Schedule: st.Schedule,
			RunCount: st.RunCount,
			Failures: st.Failures,
		}
		if !st.LastRun.IsZero() {
			lastRun := st.LastRun
			summary.LastRun = &lastRun
		}
		if !st.NextRun.IsZero() {
			nextRun := st.NextRun
			summary.NextRun = &nextRun
		}
		if st.Last != nil && !st.Last.Success {
			summary.LastError = st.Last.Error
		}
		summaries = append(summaries, summary)
	}

	return summaries
}
