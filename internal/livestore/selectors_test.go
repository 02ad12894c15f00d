package livestore

import (
	"testing"
	"time"

	"github.com/caevv/bddash/internal/source"
	"github.com/caevv/bddash/internal/trend"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadedStore(t *testing.T) *Store {
	t.Helper()
	s, src := newTestStore(t, nil)
	s.Init()
	src.latest(DefaultProjectsCollection).onSnapshot(projectDocs())
	src.latest(DefaultRunsCollection).onSnapshot([]source.Document{
		runDoc("c1", "checkout", testNow.Add(-48*time.Hour), 1, 4),
		runDoc("c2", "checkout", testNow, 3, 4),
		runDoc("s1", "search", testNow.Add(-time.Hour), 2, 2),
	})
	require.False(t, s.State().Loading)
	return s
}

func TestStore_Lookups(t *testing.T) {
	s := loadedStore(t)

	p, ok := s.Project("checkout")
	require.True(t, ok)
	assert.Equal(t, "Payments", p.Description)
	_, ok = s.Project("missing")
	assert.False(t, ok)

	runs := s.ProjectRuns("checkout")
	require.Len(t, runs, 2)
	assert.Equal(t, "c2", runs[0].ID)
	missing := s.ProjectRuns("missing")
	assert.NotNil(t, missing)
	assert.Empty(t, missing)

	r, ok := s.Run("search", "s1")
	require.True(t, ok)
	assert.Equal(t, 2, r.Summary.Passed)
	_, ok = s.Run("checkout", "s1")
	assert.False(t, ok, "run belongs to another project")
}

func TestStore_RecentRuns(t *testing.T) {
	s := loadedStore(t)

	recent := s.RecentRuns(2)
	require.Len(t, recent, 2)
	assert.Equal(t, "c2", recent[0].ID)
	assert.Equal(t, "s1", recent[1].ID)
	assert.Len(t, s.RecentRuns(0), 3)
	assert.Len(t, s.RecentRuns(10), 3)

	empty, _ := newTestStore(t, nil)
	assert.NotNil(t, empty.RecentRuns(5))
	assert.NotNil(t, empty.ProjectRuns("checkout"))
}

func TestStore_StatsAndSummaries(t *testing.T) {
	s := loadedStore(t)

	stats := s.Stats()
	assert.Equal(t, 2, stats.Projects)
	assert.Equal(t, 3, stats.Runs)
	assert.Equal(t, 10, stats.Scenarios)
	assert.Equal(t, 60, stats.PassRate)

	rows := s.ProjectSummaries()
	require.Len(t, rows, 2)
	assert.Equal(t, "checkout", rows[0].Project.ID)
	assert.Equal(t, 2, rows[0].Runs)
	require.NotNil(t, rows[0].Latest)
	assert.Equal(t, "c2", rows[0].Latest.ID)
	assert.Equal(t, 75, rows[0].PassRate)
	assert.Equal(t, 1, rows[1].Runs)
}

func TestStore_Trends(t *testing.T) {
	s := loadedStore(t)

	points, err := s.Trend()
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, 25, points[0].PassRate)
	assert.Equal(t, 83, points[1].PassRate, "5 of 6 scenarios on the last day")

	points, err = s.ProjectTrend("checkout")
	require.NoError(t, err)
	assert.Len(t, points, 2)

	_, err = s.ProjectTrend("search")
	assert.ErrorIs(t, err, trend.ErrInsufficientData)
}
