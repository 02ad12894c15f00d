// Package tui provides a terminal view of the live test results.
package tui

import (
	"github.com/caevv/bddash/internal/livestore"
	"github.com/charmbracelet/lipgloss"
)

// palette is one color scheme. The store theme picks which one is used.
type palette struct {
	primary   lipgloss.Color
	success   lipgloss.Color
	failure   lipgloss.Color
	warning   lipgloss.Color
	info      lipgloss.Color
	muted     lipgloss.Color
	border    lipgloss.Color
	highlight lipgloss.Color
	bar       lipgloss.Color
}

var (
	lightPalette = palette{
		primary:   lipgloss.Color("#5B21B6"), // Purple
		success:   lipgloss.Color("#047857"), // Green
		failure:   lipgloss.Color("#B91C1C"), // Red
		warning:   lipgloss.Color("#B45309"), // Orange
		info:      lipgloss.Color("#1D4ED8"), // Blue
		muted:     lipgloss.Color("#4B5563"), // Gray
		border:    lipgloss.Color("#D1D5DB"),
		highlight: lipgloss.Color("#7C3AED"),
		bar:       lipgloss.Color("#E5E7EB"),
	}

	darkPalette = palette{
		primary:   lipgloss.Color("#7C3AED"),
		success:   lipgloss.Color("#10B981"),
		failure:   lipgloss.Color("#EF4444"),
		warning:   lipgloss.Color("#F59E0B"),
		info:      lipgloss.Color("#3B82F6"),
		muted:     lipgloss.Color("#6B7280"),
		border:    lipgloss.Color("#374151"),
		highlight: lipgloss.Color("#8B5CF6"),
		bar:       lipgloss.Color("#1F2937"),
	}
)

// styles holds every lipgloss style the views use.
type styles struct {
	header    lipgloss.Style
	statusBar lipgloss.Style
	panel     lipgloss.Style
	stats     lipgloss.Style

	item         lipgloss.Style
	itemSelected lipgloss.Style

	passed  lipgloss.Style
	failed  lipgloss.Style
	running lipgloss.Style
	other   lipgloss.Style

	bannerOffline      lipgloss.Style
	bannerReconnecting lipgloss.Style
	errorLine          lipgloss.Style

	title    lipgloss.Style
	subtitle lipgloss.Style
	key      lipgloss.Style
	value    lipgloss.Style
	duration lipgloss.Style
	spark    lipgloss.Style
}

func newStyles(theme livestore.Theme) styles {
	p := lightPalette
	if theme == livestore.ThemeDark {
		p = darkPalette
	}

	return styles{
		header: lipgloss.NewStyle().
			Bold(true).
			Foreground(p.primary).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(p.border).
			Padding(0, 1).
			MarginBottom(1),

		statusBar: lipgloss.NewStyle().
			Foreground(p.muted).
			Background(p.bar).
			Padding(0, 1).
			MarginTop(1),

		panel: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(p.border).
			Padding(1, 2).
			MarginBottom(1),

		stats: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(p.border).
			Padding(0, 2).
			MarginBottom(1),

		item: lipgloss.NewStyle().
			Padding(0, 1),

		itemSelected: lipgloss.NewStyle().
			Foreground(p.highlight).
			Bold(true).
			Padding(0, 1),

		passed:  lipgloss.NewStyle().Foreground(p.success).Bold(true),
		failed:  lipgloss.NewStyle().Foreground(p.failure).Bold(true),
		running: lipgloss.NewStyle().Foreground(p.info).Bold(true),
		other:   lipgloss.NewStyle().Foreground(p.muted),

		bannerOffline: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(p.muted).
			Padding(0, 1),

		bannerReconnecting: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#000000")).
			Background(p.warning).
			Padding(0, 1),

		errorLine: lipgloss.NewStyle().
			Foreground(p.failure).
			Bold(true).
			Padding(0, 1),

		title: lipgloss.NewStyle().
			Bold(true).
			Foreground(p.primary).
			Padding(0, 1),

		subtitle: lipgloss.NewStyle().
			Foreground(p.muted).
			Padding(0, 1),

		key:      lipgloss.NewStyle().Foreground(p.muted),
		value:    lipgloss.NewStyle().Bold(true),
		duration: lipgloss.NewStyle().Foreground(p.info),
		spark:    lipgloss.NewStyle().Foreground(p.primary),
	}
}

// Status icons
const (
	iconRunning = "⟳"
	iconPassed  = "✓"
	iconFailed  = "✗"
	iconSkipped = "⏸"
	iconPending = "◌"
	iconArrow   = ">"
	iconBullet  = "•"
)
