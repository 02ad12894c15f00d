package config

// Config represents the top-level configuration structure for bddash.
type Config struct {
	Source       Source       `yaml:"source"`
	Prefs        Prefs        `yaml:"prefs"`
	Server       Server       `yaml:"server"`
	Trend        Trend        `yaml:"trend"`
	Connectivity Connectivity `yaml:"connectivity"`
	AutoRetry    string       `yaml:"auto_retry"` // optional: schedule for retrying failed subscriptions
	Logging      Logging      `yaml:"logging"`
}

// Source selects the live document store.
type Source struct {
	Driver             string `yaml:"driver"`              // "firestore" or "file"
	Path               string `yaml:"path"`                // fixture file for the file driver
	ProjectID          string `yaml:"project_id"`          // firestore project
	CredentialsFile    string `yaml:"credentials_file"`    // optional: service account key
	EmulatorHost       string `yaml:"emulator_host"`       // optional: host:port of a local emulator
	ProjectsCollection string `yaml:"projects_collection"` // default "projects"
	RunsCollection     string `yaml:"runs_collection"`     // default "runs"
}

// Prefs configuration for persisted user preferences.
type Prefs struct {
	Driver string `yaml:"driver"` // "bbolt" or "json"
	Path   string `yaml:"path"`   // file path for the store
}

// Server configuration for the web dashboard.
type Server struct {
	Addr string `yaml:"addr"`
}

// Trend configuration for daily pass-rate charts.
type Trend struct {
	WindowDays int    `yaml:"window_days"`
	Timezone   string `yaml:"timezone"` // IANA name used for day boundaries
}

// Connectivity configuration for the network probe.
type Connectivity struct {
	ProbeAddr  string `yaml:"probe_addr"`  // host:port dialed over TCP
	Schedule   string `yaml:"schedule"`    // cron expression or @every interval
	TimeoutSec int    `yaml:"timeout_sec"` // dial timeout
	Disabled   bool   `yaml:"disabled"`
}

// Logging configuration.
type Logging struct {
	Format string `yaml:"format"` // "json" or "text"
	Level  string `yaml:"level"`  // debug, info, warn, error
	Output string `yaml:"output"` // stderr, stdout, discard or a file path
}
