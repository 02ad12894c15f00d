package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var everyIntervalPattern = regexp.MustCompile(`^\d+[smhd]$`)

// LoadConfig loads and validates a bddash configuration from a YAML file.
func LoadConfig(path string) (*Config, error) {
	// Read the file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Apply defaults
	applyDefaults(&cfg)

	// Validate configuration
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for optional fields.
func applyDefaults(cfg *Config) {
	// Source section
	if cfg.Source.Driver == "" {
		cfg.Source.Driver = "file"
	}
	if cfg.Source.Driver == "file" && cfg.Source.Path == "" {
		cfg.Source.Path = "./results.json"
	}
	if cfg.Source.ProjectsCollection == "" {
		cfg.Source.ProjectsCollection = "projects"
	}
	if cfg.Source.RunsCollection == "" {
		cfg.Source.RunsCollection = "runs"
	}

	// Prefs section
	if cfg.Prefs.Driver == "" {
		cfg.Prefs.Driver = "bbolt"
	}
	if cfg.Prefs.Path == "" {
		cfg.Prefs.Path = "./.bddash.db"
	}

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}

	if cfg.Trend.WindowDays == 0 {
		cfg.Trend.WindowDays = 14
	}
	if cfg.Trend.Timezone == "" {
		cfg.Trend.Timezone = "UTC"
	}

	if cfg.Connectivity.ProbeAddr == "" {
		cfg.Connectivity.ProbeAddr = "1.1.1.1:53"
	}
	if cfg.Connectivity.Schedule == "" {
		cfg.Connectivity.Schedule = "@every 15s"
	}
	if cfg.Connectivity.TimeoutSec == 0 {
		cfg.Connectivity.TimeoutSec = 3
	}

	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stderr"
	}
}

// validate checks the configuration for errors and inconsistencies.
func validate(cfg *Config) error {
	switch cfg.Source.Driver {
	case "file":
		if cfg.Source.Path == "" {
			return fmt.Errorf("source.path is required for the file driver")
		}
	case "firestore":
		if cfg.Source.ProjectID == "" {
			return fmt.Errorf("source.project_id is required for the firestore driver")
		}
	default:
		return fmt.Errorf("invalid source driver: %s (must be 'file' or 'firestore')", cfg.Source.Driver)
	}
	if cfg.Source.ProjectsCollection == cfg.Source.RunsCollection {
		return fmt.Errorf("source.projects_collection and source.runs_collection must differ")
	}

	validDrivers := map[string]bool{
		"bbolt": true,
		"json":  true,
	}
	if !validDrivers[cfg.Prefs.Driver] {
		return fmt.Errorf("invalid prefs driver: %s (must be 'bbolt' or 'json')", cfg.Prefs.Driver)
	}

	if cfg.Trend.WindowDays < 1 {
		return fmt.Errorf("trend.window_days must be positive")
	}
	if _, err := time.LoadLocation(cfg.Trend.Timezone); err != nil {
		return fmt.Errorf("invalid trend.timezone %q: %w", cfg.Trend.Timezone, err)
	}

	if !cfg.Connectivity.Disabled {
		if err := ValidateSchedule(cfg.Connectivity.Schedule); err != nil {
			return fmt.Errorf("connectivity.schedule: %w", err)
		}
		if cfg.Connectivity.TimeoutSec < 0 {
			return fmt.Errorf("connectivity.timeout_sec must be non-negative")
		}
		if !strings.Contains(cfg.Connectivity.ProbeAddr, ":") {
			return fmt.Errorf("connectivity.probe_addr must be host:port, got %q", cfg.Connectivity.ProbeAddr)
		}
	}

	if cfg.AutoRetry != "" {
		if err := ValidateSchedule(cfg.AutoRetry); err != nil {
			return fmt.Errorf("auto_retry: %w", err)
		}
	}

	switch strings.ToLower(cfg.Logging.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("invalid logging.format: %s (must be 'json' or 'text')", cfg.Logging.Format)
	}

	return nil
}

// Location returns the trend time zone, falling back to UTC.
func (t Trend) Location() *time.Location {
	loc, err := time.LoadLocation(t.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Window returns the trend window as a duration.
func (t Trend) Window() time.Duration {
	return time.Duration(t.WindowDays) * 24 * time.Hour
}

// Timeout returns the probe dial timeout.
func (c Connectivity) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// ValidateSchedule checks if a schedule expression is valid.
// Supports cron expressions, @-prefixed shortcuts, and @every intervals.
func ValidateSchedule(schedule string) error {
	schedule = strings.TrimSpace(schedule)
	if schedule == "" {
		return fmt.Errorf("schedule cannot be empty")
	}

	// Check for @-prefixed shortcuts
	if strings.HasPrefix(schedule, "@") {
		shortcuts := []string{"@annually", "@yearly", "@monthly", "@weekly", "@daily", "@hourly"}
		for _, shortcut := range shortcuts {
			if schedule == shortcut {
				return nil
			}
		}

		if strings.HasPrefix(schedule, "@every ") {
			interval := strings.TrimSpace(strings.TrimPrefix(schedule, "@every "))
			if everyIntervalPattern.MatchString(interval) {
				return nil
			}
			return fmt.Errorf("invalid @every interval: %s (must be like '15s', '5m', '1h', '2d')", interval)
		}

		return fmt.Errorf("unknown schedule shortcut: %s", schedule)
	}

	// robfig/cron validates the fields themselves when the task is added.
	fields := strings.Fields(schedule)
	if len(fields) < 5 || len(fields) > 6 {
		return fmt.Errorf("cron expression must have 5 or 6 fields, got %d", len(fields))
	}

	return nil
}
