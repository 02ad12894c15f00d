package tui

import (
	"errors"
	"log/slog"
	"time"

	"github.com/caevv/bddash/internal/livestore"
	"github.com/caevv/bddash/internal/model"
	"github.com/caevv/bddash/internal/trend"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// Dashboard is the subset of the live store the TUI reads and drives.
// *livestore.Store implements it.
type Dashboard interface {
	State() livestore.State
	Stats() livestore.Stats
	ProjectSummaries() []livestore.ProjectSummary
	ProjectRuns(projectID string) []model.TestRun
	Trend() ([]trend.Point, error)
	ProjectTrend(projectID string) ([]trend.Point, error)
	Retry()
	ToggleTheme() (livestore.Theme, error)
	Changes() (<-chan struct{}, func())
}

// ViewMode represents the current view in the TUI.
type ViewMode int

const (
	ViewModeList ViewMode = iota
	ViewModeDetail
)

// Model holds the state for the TUI.
type Model struct {
	dash   Dashboard
	logger *slog.Logger

	changes     <-chan struct{}
	stopChanges func()
	done        chan struct{}

	// Snapshot taken on every change notification
	state    livestore.State
	stats    livestore.Stats
	projects []livestore.ProjectSummary
	trend    []trend.Point

	// UI state
	viewMode     ViewMode
	selected     int
	detailRuns   []model.TestRun
	detailTrend  []trend.Point
	viewport     viewport.Model
	spinner      spinner.Model
	styles       styles
	width        int
	height       int
	lastUpdate   time.Time
	quitting     bool
	errorMessage string
}

// New creates a TUI model subscribed to the dashboard's change notifications.
// Call Close once the program has exited.
func New(dash Dashboard, logger *slog.Logger) Model {
	if logger == nil {
		logger = slog.Default()
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	changes, stop := dash.Changes()
	m := Model{
		dash:        dash,
		logger:      logger.With("component", "tui"),
		changes:     changes,
		stopChanges: stop,
		done:        make(chan struct{}),
		spinner:     sp,
		viewport:    viewport.New(80, 20),
	}
	m.refreshData()
	return m
}

// Close releases the change subscription.
func (m Model) Close() {
	m.stopChanges()
	select {
	case <-m.done:
	default:
		close(m.done)
	}
}

// Init initializes the model (required by Bubbletea).
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		waitForChange(m.changes, m.done),
		m.spinner.Tick,
		tea.EnterAltScreen,
	)
}

// changedMsg is sent when the store reports new data or flags.
type changedMsg struct{}

// waitForChange blocks until the store signals a change or the TUI closes.
func waitForChange(changes <-chan struct{}, done <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		select {
		case <-changes:
			return changedMsg{}
		case <-done:
			return nil
		}
	}
}

// refreshData takes a fresh snapshot from the store.
func (m *Model) refreshData() {
	m.state = m.dash.State()
	m.stats = m.dash.Stats()
	m.projects = m.dash.ProjectSummaries()
	m.styles = newStyles(m.state.Theme)

	m.trend = m.loadTrend(m.dash.Trend())

	if m.selected >= len(m.projects) {
		m.selected = max(len(m.projects)-1, 0)
	}
	if m.viewMode == ViewModeDetail {
		if p, ok := m.selectedProject(); ok {
			m.loadDetail(p.Project.ID)
		} else {
			m.viewMode = ViewModeList
		}
	}

	m.lastUpdate = time.Now()
}

func (m *Model) loadDetail(projectID string) {
	m.detailRuns = m.dash.ProjectRuns(projectID)
	m.detailTrend = m.loadTrend(m.dash.ProjectTrend(projectID))
	m.viewport.SetContent(m.renderRunHistory())
}

func (m *Model) loadTrend(points []trend.Point, err error) []trend.Point {
	if err != nil && !errors.Is(err, trend.ErrInsufficientData) {
		m.logger.Error("failed to compute trend", "error", err)
	}
	return points
}

func (m Model) selectedProject() (livestore.ProjectSummary, bool) {
	if m.selected < 0 || m.selected >= len(m.projects) {
		return livestore.ProjectSummary{}, false
	}
	return m.projects[m.selected], true
}

// Quitting returns true if the user has requested to quit.
func (m Model) Quitting() bool {
	return m.quitting
}
