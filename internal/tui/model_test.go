package tui

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/caevv/bddash/internal/livestore"
	"github.com/caevv/bddash/internal/model"
	"github.com/caevv/bddash/internal/trend"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDashboard struct {
	state    livestore.State
	retries  int
	themeErr error
	changes  chan struct{}
	stopped  bool
}

func newStub() *stubDashboard {
	return &stubDashboard{
		state: livestore.State{
			Projects: []model.Project{
				{ID: "checkout", Name: "Checkout", Description: "Payment flows"},
				{ID: "search", Name: "Search"},
			},
			Runs: []model.TestRun{{
				ID: "r1", ProjectID: "checkout", Status: model.StatusFailed, Branch: "main",
				Timestamp: "2024-03-15T12:00:00.000Z", Duration: 1200,
				Summary: model.Summary{Total: 4, Passed: 3, Failed: 1},
				Features: []model.Feature{{Name: "Pay", Scenarios: []model.Scenario{{
					Name: "Declined", Status: model.StatusFailed,
					Steps: []model.Step{{Keyword: "Then", Text: "I see an error", Status: model.StatusFailed, Error: "expected banner\n"}},
				}}}},
			}},
			Connected:     true,
			BrowserOnline: true,
			Theme:         livestore.ThemeLight,
		},
		changes: make(chan struct{}, 1),
	}
}

func (d *stubDashboard) State() livestore.State { return d.state }

func (d *stubDashboard) Stats() livestore.Stats {
	return livestore.Stats{Projects: len(d.state.Projects), Summary: trend.Summarize(d.state.Runs)}
}

func (d *stubDashboard) ProjectSummaries() []livestore.ProjectSummary {
	var out []livestore.ProjectSummary
	for _, p := range d.state.Projects {
		ps := livestore.ProjectSummary{Project: p}
		if runs := d.ProjectRuns(p.ID); len(runs) > 0 {
			ps.Runs = len(runs)
			ps.Latest = &runs[0]
			ps.PassRate = runs[0].Summary.PassRate()
		}
		out = append(out, ps)
	}
	return out
}

func (d *stubDashboard) ProjectRuns(id string) []model.TestRun {
	var out []model.TestRun
	for _, r := range d.state.Runs {
		if r.ProjectID == id {
			out = append(out, r)
		}
	}
	return out
}

func (d *stubDashboard) Trend() ([]trend.Point, error) {
	return nil, trend.ErrInsufficientData
}

func (d *stubDashboard) ProjectTrend(string) ([]trend.Point, error) {
	return []trend.Point{{Day: time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC), PassRate: 100}, {Day: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), PassRate: 75}}, nil
}

func (d *stubDashboard) Retry() {
	d.retries++
	d.state.Error = ""
	d.state.Loading = true
}

func (d *stubDashboard) ToggleTheme() (livestore.Theme, error) {
	d.state.Theme = d.state.Theme.Toggle()
	return d.state.Theme, d.themeErr
}

func (d *stubDashboard) Changes() (<-chan struct{}, func()) {
	return d.changes, func() { d.stopped = true }
}

func newTestModel(t *testing.T, dash *stubDashboard) Model {
	t.Helper()
	m := New(dash, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(m.Close)
	return m
}

func press(t *testing.T, m Model, key string) Model {
	t.Helper()
	var msg tea.KeyMsg
	switch key {
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
	next, _ := m.Update(msg)
	return next.(Model)
}

func TestModel_ListView(t *testing.T) {
	m := newTestModel(t, newStub())

	view := m.View()
	assert.Contains(t, view, "Projects (2)")
	assert.Contains(t, view, "Checkout")
	assert.Contains(t, view, "Not enough data for a trend yet")
	assert.NotContains(t, view, "Reconnecting")
}

func TestModel_Navigation(t *testing.T) {
	m := newTestModel(t, newStub())

	m = press(t, m, "j")
	assert.Equal(t, 1, m.selected)
	m = press(t, m, "j")
	assert.Equal(t, 1, m.selected, "selection stops at the last project")
	m = press(t, m, "g")
	assert.Equal(t, 0, m.selected)

	m = press(t, m, "enter")
	require.Equal(t, ViewModeDetail, m.viewMode)
	require.Len(t, m.detailRuns, 1)
	assert.Len(t, m.detailTrend, 2)

	view := m.View()
	assert.Contains(t, view, "Payment flows")
	assert.Contains(t, view, "expected banner")

	m = press(t, m, "esc")
	assert.Equal(t, ViewModeList, m.viewMode)
	assert.Nil(t, m.detailRuns)
}

func TestModel_RetryAndTheme(t *testing.T) {
	dash := newStub()
	dash.state.Error = "Failed to load runs: unavailable"
	m := newTestModel(t, dash)
	assert.Contains(t, m.View(), "press r to retry")

	m = press(t, m, "r")
	assert.Equal(t, 1, dash.retries)
	assert.True(t, m.state.Loading)
	assert.NotContains(t, m.View(), "press r to retry")

	m = press(t, m, "t")
	assert.Equal(t, livestore.ThemeDark, m.state.Theme)
	assert.Empty(t, m.errorMessage)

	dash.themeErr = errors.New("persist theme: read-only")
	m = press(t, m, "t")
	assert.Equal(t, livestore.ThemeLight, m.state.Theme, "theme flips even when persisting fails")
	assert.Contains(t, m.View(), "read-only")
}

func TestModel_ChangeRefreshes(t *testing.T) {
	dash := newStub()
	m := newTestModel(t, dash)

	dash.state.BrowserOnline = false
	dash.state.Connected = false
	next, cmd := m.Update(changedMsg{})
	m = next.(Model)

	assert.NotNil(t, cmd, "keeps waiting for changes")
	assert.Contains(t, m.View(), livestore.BannerOffline.Message())
	assert.NotContains(t, m.View(), livestore.BannerReconnecting.Message())
}

func TestModel_SelectionClampsWhenProjectsShrink(t *testing.T) {
	dash := newStub()
	m := newTestModel(t, dash)
	m = press(t, m, "j")
	m = press(t, m, "enter")
	require.Equal(t, ViewModeDetail, m.viewMode)

	dash.state.Projects = dash.state.Projects[:1]
	next, _ := m.Update(changedMsg{})
	m = next.(Model)

	assert.Equal(t, 0, m.selected)
	assert.Equal(t, ViewModeDetail, m.viewMode)
}

func TestModel_WaitForChange(t *testing.T) {
	changes := make(chan struct{}, 1)
	done := make(chan struct{})

	changes <- struct{}{}
	assert.Equal(t, changedMsg{}, waitForChange(changes, done)())

	close(done)
	assert.Nil(t, waitForChange(changes, done)())
}

func TestModel_CloseStopsChanges(t *testing.T) {
	dash := newStub()
	m := New(dash, nil)
	m.Close()
	m.Close()
	assert.True(t, dash.stopped)
}

func TestSparkline(t *testing.T) {
	points := []trend.Point{{PassRate: 0}, {PassRate: 50}, {PassRate: 100}, {PassRate: 14}}
	assert.Equal(t, "▁▅█▂", sparkline(points))
	assert.Empty(t, sparkline(nil))
}

func TestFirstFailure(t *testing.T) {
	run := model.TestRun{Features: []model.Feature{{
		Name: "Search",
		Scenarios: []model.Scenario{
			{Name: "ok", Status: model.StatusPassed},
			{Name: "no results", Status: model.StatusFailed},
		},
	}}}
	assert.Equal(t, "Search: no results", firstFailure(run))
	assert.Empty(t, firstFailure(model.TestRun{}))
}

func TestFormatTimestamp(t *testing.T) {
	assert.Equal(t, "2024-03-15 12:00", formatTimestamp("2024-03-15T12:00:00.000Z"))
	assert.Equal(t, "unknown", formatTimestamp(""))
	assert.True(t, strings.HasPrefix(padRight("✓ ok", 6), "✓ ok  "))
}
