package tui

import (
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// detailChrome is the number of lines the detail view uses around the
// run history viewport.
const detailChrome = 16

// Update handles incoming messages and updates the model state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = max(msg.Width-8, 20)
		m.viewport.Height = max(msg.Height-detailChrome, 5)
		return m, nil

	case changedMsg:
		m.refreshData()
		return m, waitForChange(m.changes, m.done)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case error:
		m.errorMessage = msg.Error()
		return m, nil
	}

	return m, nil
}

// handleKeyPress processes keyboard input.
func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		m.quitting = true
		return m, tea.Quit

	case "esc":
		if m.viewMode == ViewModeDetail {
			m.viewMode = ViewModeList
			m.detailRuns = nil
			m.detailTrend = nil
		}
		return m, nil

	case "enter":
		if m.viewMode == ViewModeList {
			if p, ok := m.selectedProject(); ok {
				m.viewMode = ViewModeDetail
				m.loadDetail(p.Project.ID)
				m.viewport.GotoTop()
			}
		}
		return m, nil

	case "up", "k":
		if m.viewMode == ViewModeDetail {
			m.viewport.LineUp(1)
		} else if m.selected > 0 {
			m.selected--
		}
		return m, nil

	case "down", "j":
		if m.viewMode == ViewModeDetail {
			m.viewport.LineDown(1)
		} else if m.selected < len(m.projects)-1 {
			m.selected++
		}
		return m, nil

	case "g":
		if m.viewMode == ViewModeList {
			m.selected = 0
		} else {
			m.viewport.GotoTop()
		}
		return m, nil

	case "G":
		if m.viewMode == ViewModeList && len(m.projects) > 0 {
			m.selected = len(m.projects) - 1
		} else {
			m.viewport.GotoBottom()
		}
		return m, nil

	case "r":
		// Retry re-subscribes; the store signals once new data or an error arrives.
		m.dash.Retry()
		m.errorMessage = ""
		m.refreshData()
		return m, nil

	case "t":
		if _, err := m.dash.ToggleTheme(); err != nil {
			m.logger.Warn("theme not persisted", "error", err)
			m.errorMessage = err.Error()
		} else {
			m.errorMessage = ""
		}
		m.refreshData()
		return m, nil
	}

	return m, nil
}
