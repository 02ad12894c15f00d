package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/caevv/bddash/internal/livestore"
	"github.com/caevv/bddash/internal/model"
	"github.com/caevv/bddash/internal/trend"
	"github.com/charmbracelet/lipgloss"
)

// View renders the UI.
func (m Model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	if m.viewMode == ViewModeDetail {
		return m.renderDetailView()
	}

	sections := []string{m.renderHeader("BDD Test Dashboard")}
	sections = append(sections, m.renderNotices()...)
	sections = append(sections,
		m.renderStats(),
		m.renderTrend(m.trend),
		m.renderProjectList(),
		m.renderHelpBar("q: quit  │  ↑/↓: navigate  │  enter: details  │  r: retry  │  t: theme"),
	)

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderHeader renders the title line with the loading spinner.
func (m Model) renderHeader(title string) string {
	s := m.styles
	parts := []string{s.title.Render(title)}
	if m.state.Loading {
		parts = append(parts, m.spinner.View()+" "+s.subtitle.Render("Loading test results..."))
	}
	parts = append(parts, s.subtitle.Render(fmt.Sprintf("Last updated: %s", m.lastUpdate.Format("15:04:05"))))

	return s.header.Render(lipgloss.JoinHorizontal(lipgloss.Top, strings.Join(parts, "  ")))
}

// renderNotices renders the connectivity banner and the subscription error.
func (m Model) renderNotices() []string {
	s := m.styles
	var out []string

	switch banner := m.state.Banner(); banner {
	case livestore.BannerOffline:
		out = append(out, s.bannerOffline.Render(banner.Message()))
	case livestore.BannerReconnecting:
		out = append(out, s.bannerReconnecting.Render(banner.Message()))
	}

	if m.state.Error != "" {
		out = append(out, s.errorLine.Render(m.state.Error+"  (press r to retry)"))
	}
	return out
}

// renderStats renders the statistics bar.
func (m Model) renderStats() string {
	s := m.styles
	stats := []string{
		fmt.Sprintf("%s %d", s.key.Render("Projects:"), m.stats.Projects),
		fmt.Sprintf("%s %d", s.key.Render("Runs:"), m.stats.Runs),
		fmt.Sprintf("%s %s", s.key.Render("Pass rate:"), m.rateStyle(m.stats.PassRate).Render(fmt.Sprintf("%d%%", m.stats.PassRate))),
		fmt.Sprintf("%s %d", s.key.Render("Failed runs:"), m.stats.FailedRuns),
	}
	if m.stats.Runs > 0 {
		avg := time.Duration(m.stats.AvgDuration) * time.Millisecond
		stats = append(stats, fmt.Sprintf("%s %s", s.key.Render("Avg:"), s.duration.Render(formatDuration(avg))))
	}

	return s.stats.Render(strings.Join(stats, "  │  "))
}

// renderTrend renders the daily pass rate as a sparkline.
func (m Model) renderTrend(points []trend.Point) string {
	s := m.styles
	rows := []string{s.title.Render("Pass Rate Trend (14 days)")}

	if len(points) == 0 {
		rows = append(rows, s.subtitle.Render("Not enough data for a trend yet. Runs from at least two different days are needed."))
		return s.panel.Render(strings.Join(rows, "\n"))
	}

	first, last := points[0], points[len(points)-1]
	rows = append(rows,
		" "+s.spark.Render(sparkline(points)),
		s.key.Render(fmt.Sprintf(" %s → %s   latest %d%%", first.Label(), last.Label(), last.PassRate)),
	)
	return s.panel.Render(strings.Join(rows, "\n"))
}

// renderProjectList renders the list of projects.
func (m Model) renderProjectList() string {
	s := m.styles
	if len(m.projects) == 0 {
		msg := "No projects found"
		if m.state.Loading {
			msg = "Waiting for projects..."
		}
		return s.panel.Render(s.subtitle.Render(msg))
	}

	rows := []string{s.title.Render(fmt.Sprintf("Projects (%d)", len(m.projects))), ""}

	header := fmt.Sprintf("   %-22s  %-10s  %-5s  %-9s  %s", "Project", "Latest", "Runs", "Pass Rate", "Last Run")
	rows = append(rows, s.key.Render(header))
	rows = append(rows, s.key.Render(strings.Repeat("─", 72)))

	for i, p := range m.projects {
		rows = append(rows, m.renderProjectRow(p, i == m.selected))
	}

	return s.panel.Render(strings.Join(rows, "\n"))
}

// renderProjectRow renders a single project row.
func (m Model) renderProjectRow(p livestore.ProjectSummary, selected bool) string {
	s := m.styles

	cursor := " "
	if selected {
		cursor = iconArrow
	}

	name := padRight(truncate(p.Project.Name, 22), 22)

	status := padRight("-", 10)
	rate := padRight("-", 9)
	last := "never"
	if p.Latest != nil {
		status = m.statusLabel(p.Latest.Status, 10)
		rate = m.rateStyle(p.PassRate).Render(padRight(fmt.Sprintf("%d%%", p.PassRate), 9))
		last = formatTimestamp(p.Latest.Timestamp)
	}

	row := fmt.Sprintf("%s  %s  %s  %-5d  %s  %s", cursor, name, status, p.Runs, rate, s.key.Render(last))

	if selected {
		return s.itemSelected.Render(row)
	}
	return s.item.Render(row)
}

// renderHelpBar renders the help/status bar at the bottom.
func (m Model) renderHelpBar(help string) string {
	s := m.styles
	if m.errorMessage != "" {
		return s.statusBar.Render(s.failed.Render("Error: " + m.errorMessage))
	}
	return s.statusBar.Render(help + "  │  theme: " + string(m.state.Theme))
}

// renderDetailView renders the detailed view for the selected project.
func (m Model) renderDetailView() string {
	p, ok := m.selectedProject()
	if !ok {
		return "Invalid project selection"
	}
	s := m.styles

	sections := []string{m.renderHeader("BDD Test Dashboard - " + p.Project.Name)}
	sections = append(sections, m.renderNotices()...)

	summary := trend.Summarize(m.detailRuns)
	info := []string{s.title.Render(p.Project.Name), ""}
	if p.Project.Description != "" {
		info = append(info, s.subtitle.Render(p.Project.Description))
	}
	info = append(info,
		fmt.Sprintf("%s %s", s.key.Render("ID:"), s.value.Render(p.Project.ID)),
		fmt.Sprintf("%s %d (%d failed)", s.key.Render("Runs:"), summary.Runs, summary.FailedRuns),
		fmt.Sprintf("%s %s", s.key.Render("Pass rate:"), m.rateStyle(summary.PassRate).Render(fmt.Sprintf("%d%% of %d scenarios", summary.PassRate, summary.Scenarios))),
	)
	if len(m.detailTrend) > 0 {
		info = append(info, fmt.Sprintf("%s %s", s.key.Render("Trend:"), s.spark.Render(sparkline(m.detailTrend))))
	} else {
		info = append(info, fmt.Sprintf("%s %s", s.key.Render("Trend:"), s.subtitle.Render("not enough data")))
	}
	sections = append(sections, s.panel.Render(strings.Join(info, "\n")))

	history := []string{
		s.title.Render(fmt.Sprintf("Run History (%d runs)", len(m.detailRuns))),
		"",
		m.viewport.View(),
	}
	sections = append(sections, s.panel.Render(strings.Join(history, "\n")))

	sections = append(sections, m.renderHelpBar("esc: back  │  ↑/↓: scroll  │  q: quit  │  r: retry  │  t: theme"))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderRunHistory renders the runs of the detail view into the viewport.
func (m Model) renderRunHistory() string {
	s := m.styles
	if len(m.detailRuns) == 0 {
		return s.subtitle.Render("No test runs for this project yet")
	}

	header := fmt.Sprintf("  %-16s  %-10s  %-16s  %-12s  %-9s  %s", "Started", "Status", "Branch", "Environment", "Pass Rate", "Duration")
	rows := []string{s.key.Render(header), s.key.Render("  " + strings.Repeat("─", 84))}

	for _, run := range m.detailRuns {
		row := fmt.Sprintf("  %-16s  %s  %-16s  %-12s  %s  %s",
			formatTimestamp(run.Timestamp),
			m.statusLabel(run.Status, 10),
			truncate(run.Branch, 16),
			truncate(run.Environment, 12),
			m.rateStyle(run.Summary.PassRate()).Render(padRight(fmt.Sprintf("%d/%d", run.Summary.Passed, run.Summary.Total), 9)),
			s.duration.Render(formatDuration(run.DurationValue())),
		)
		rows = append(rows, row)

		if msg := firstFailure(run); msg != "" {
			rows = append(rows, "    "+s.key.Render("Error: ")+s.failed.Render(truncate(msg, 75)))
		}
	}

	return strings.Join(rows, "\n")
}

// statusLabel renders an icon and status name padded to width.
func (m Model) statusLabel(status model.RunStatus, width int) string {
	s := m.styles
	var icon string
	var style lipgloss.Style

	switch status {
	case model.StatusPassed:
		icon, style = iconPassed, s.passed
	case model.StatusFailed:
		icon, style = iconFailed, s.failed
	case model.StatusRunning:
		icon, style = iconRunning, s.running
	case model.StatusSkipped:
		icon, style = iconSkipped, s.other
	case model.StatusPending:
		icon, style = iconPending, s.other
	default:
		icon, style = iconBullet, s.other
	}

	return style.Render(padRight(icon+" "+string(status), width))
}

func (m Model) rateStyle(rate int) lipgloss.Style {
	switch {
	case rate >= 90:
		return m.styles.passed
	case rate >= 70:
		return m.styles.running
	default:
		return m.styles.failed
	}
}

// Helper functions

var sparkBlocks = []rune("▁▂▃▄▅▆▇█")

// sparkline maps each day's pass rate onto a block character.
func sparkline(points []trend.Point) string {
	var b strings.Builder
	for _, p := range points {
		rate := min(max(p.PassRate, 0), 100)
		b.WriteRune(sparkBlocks[(rate*(len(sparkBlocks)-1)+50)/100])
	}
	return b.String()
}

// firstFailure returns the first failing step's error, or the first failing
// scenario's name when no step carries an error.
func firstFailure(run model.TestRun) string {
	var scenario string
	for _, f := range run.Features {
		for _, sc := range f.Scenarios {
			if sc.Status != model.StatusFailed {
				continue
			}
			for _, st := range sc.Steps {
				if st.Error != "" {
					return strings.TrimSpace(st.Error)
				}
			}
			if scenario == "" {
				scenario = f.Name + ": " + sc.Name
			}
		}
	}
	return scenario
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%.1fm", d.Minutes())
	}
	return fmt.Sprintf("%.1fh", d.Hours())
}

// formatTimestamp renders a normalized ISO timestamp in UTC.
func formatTimestamp(ts string) string {
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return "unknown"
	}
	return t.UTC().Format("2006-01-02 15:04")
}

// truncate truncates a string to a maximum length.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// padRight pads a string with spaces to reach the desired length.
func padRight(s string, length int) string {
	w := lipgloss.Width(s)
	if w >= length {
		return s
	}
	return s + strings.Repeat(" ", length-w)
}
