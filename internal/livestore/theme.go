package livestore

import (
	"fmt"
	"strings"
)

// ThemeKey is the preference key the theme is persisted under.
const ThemeKey = "theme"

// Theme is the dashboard color scheme.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// ParseTheme accepts "light" or "dark" (case-insensitive).
func ParseTheme(s string) (Theme, bool) {
	switch Theme(strings.ToLower(strings.TrimSpace(s))) {
	case ThemeLight:
		return ThemeLight, true
	case ThemeDark:
		return ThemeDark, true
	}
	return "", false
}

// Toggle returns the other theme.
func (t Theme) Toggle() Theme {
	if t == ThemeDark {
		return ThemeLight
	}
	return ThemeDark
}

func (s *Store) loadTheme() Theme {
	if s.prefs == nil {
		return ThemeLight
	}

	value, ok, err := s.prefs.Get(ThemeKey)
	if err != nil {
		s.logger.Warn("failed to read theme preference", "error", err)
		return ThemeLight
	}
	if !ok {
		return ThemeLight
	}

	theme, valid := ParseTheme(value)
	if !valid {
		s.logger.Warn("ignoring invalid theme preference", "value", value)
		return ThemeLight
	}
	return theme
}

// ToggleTheme flips the theme and persists it. The in-memory theme changes
// even when persisting fails; the error is returned for the caller to show.
// The state lock is not held while persisting.
func (s *Store) ToggleTheme() (Theme, error) {
	s.themeMu.Lock()
	defer s.themeMu.Unlock()

	s.mu.Lock()
	next := s.state.Theme.Toggle()
	s.state.Theme = next
	s.mu.Unlock()

	var err error
	if s.prefs != nil {
		if setErr := s.prefs.Set(ThemeKey, string(next)); setErr != nil {
			err = fmt.Errorf("persist theme: %w", setErr)
		}
	}

	if err != nil {
		s.logger.Error("failed to persist theme", "theme", next, "error", err)
	} else {
		s.logger.Debug("theme changed", "theme", next)
	}
	s.notify()
	return next, err
}
