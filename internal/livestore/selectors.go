package livestore

import (
	"github.com/caevv/bddash/internal/model"
	"github.com/caevv/bddash/internal/trend"
)

// Stats are the dashboard headline numbers.
type Stats struct {
	Projects int `json:"projects"`
	trend.Summary
}

// ProjectSummary is one row of the project table.
type ProjectSummary struct {
	Project model.Project  `json:"project"`
	Runs    int            `json:"runs"`
	Latest  *model.TestRun `json:"latest,omitempty"`
	// PassRate of the latest run, 0 without runs.
	PassRate int `json:"pass_rate"`
}

// Stats summarizes every run currently held.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Projects: len(s.state.Projects),
		Summary:  trend.Summarize(s.state.Runs),
	}
}

// Trend is the daily pass rate across all projects.
// It returns trend.ErrInsufficientData when there is nothing to plot.
func (s *Store) Trend() ([]trend.Point, error) {
	s.mu.Lock()
	runs := append([]model.TestRun(nil), s.state.Runs...)
	s.mu.Unlock()
	return s.agg.Daily(runs, s.now())
}

// ProjectTrend is the daily pass rate of one project.
func (s *Store) ProjectTrend(projectID string) ([]trend.Point, error) {
	return s.agg.Daily(s.ProjectRuns(projectID), s.now())
}

// Project looks up a project by ID.
func (s *Store) Project(id string) (model.Project, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.state.Projects {
		if p.ID == id {
			return p, true
		}
	}
	return model.Project{}, false
}

// ProjectRuns returns the runs of a project, newest first. The result is
// never nil.
func (s *Store) ProjectRuns(projectID string) []model.TestRun {
	s.mu.Lock()
	defer s.mu.Unlock()
	runs := []model.TestRun{}
	for _, r := range s.state.Runs {
		if r.ProjectID == projectID {
			runs = append(runs, r)
		}
	}
	return runs
}

// Run looks up a run of a project.
func (s *Store) Run(projectID, runID string) (model.TestRun, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.state.Runs {
		if r.ProjectID == projectID && r.ID == runID {
			return r, true
		}
	}
	return model.TestRun{}, false
}

// RecentRuns returns up to n of the newest runs; n <= 0 returns all.
func (s *Store) RecentRuns(n int) []model.TestRun {
	s.mu.Lock()
	defer s.mu.Unlock()
	runs := s.state.Runs
	if n > 0 && len(runs) > n {
		runs = runs[:n]
	}
	return append([]model.TestRun{}, runs...)
}

// ProjectSummaries returns one row per project, in project order.
func (s *Store) ProjectSummaries() []ProjectSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	byProject := make(map[string]*ProjectSummary, len(s.state.Projects))
	out := make([]ProjectSummary, len(s.state.Projects))
	for i, p := range s.state.Projects {
		out[i] = ProjectSummary{Project: p}
		byProject[p.ID] = &out[i]
	}

	// Runs are newest first, so the first run seen is the latest.
	for i := range s.state.Runs {
		run := s.state.Runs[i]
		ps, ok := byProject[run.ProjectID]
		if !ok {
			continue
		}
		ps.Runs++
		if ps.Latest == nil {
			latest := run
			ps.Latest = &latest
			ps.PassRate = run.Summary.PassRate()
		}
	}
	return out
}
