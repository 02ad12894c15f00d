package prefs

import (
	"fmt"
	"strings"
)

// SupportedDrivers lists all available preference store drivers.
var SupportedDrivers = []string{"bbolt", "json"}

// NewStore creates a new Store instance based on the specified driver.
// Supported drivers:
//   - "bbolt": BoltDB-backed storage, opened per operation (default)
//   - "json": a single JSON object file, handy for inspection and tests
//
// The path parameter specifies where the preferences are persisted.
func NewStore(driver, path string) (Store, error) {
	driver = strings.ToLower(strings.TrimSpace(driver))

	if path == "" {
		return nil, fmt.Errorf("prefs path is required")
	}

	switch driver {
	case "bbolt":
		s, err := NewBoltStore(path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "json":
		s, err := NewJSONStore(path)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported prefs driver: %s (supported: %v)", driver, SupportedDrivers)
	}
}
