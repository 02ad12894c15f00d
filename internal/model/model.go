// Package model defines the read-only entities shown by the dashboard.
package model

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// RunStatus is the overall outcome of a test run, feature, scenario or step.
type RunStatus string

const (
	StatusPassed  RunStatus = "passed"
	StatusFailed  RunStatus = "failed"
	StatusSkipped RunStatus = "skipped"
	StatusPending RunStatus = "pending"
	StatusRunning RunStatus = "running"
)

// Known reports whether s is one of the statuses the views know how to render.
func (s RunStatus) Known() bool {
	switch s {
	case StatusPassed, StatusFailed, StatusSkipped, StatusPending, StatusRunning:
		return true
	}
	return false
}

// Project groups test runs of one system under test.
type Project struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Summary holds scenario counts of a run.
type Summary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// PassRate returns Passed/Total as an integer percentage, 0 when Total is 0.
func (s Summary) PassRate() int {
	return Percent(s.Passed, s.Total)
}

// Percent rounds 100*part/whole to the nearest integer. A non-positive whole yields 0.
func Percent(part, whole int) int {
	if whole <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(part) / float64(whole)))
}

// TestRun is one execution of a project's acceptance suite.
type TestRun struct {
	// ID is unique within the project.
	ID string `json:"id"`

	// ProjectID references Project.ID.
	ProjectID string `json:"projectId"`

	Status      RunStatus `json:"status"`
	Branch      string    `json:"branch"`
	Environment string    `json:"environment"`

	// Timestamp is an ISO-8601 string as produced by the normalizer.
	Timestamp string `json:"timestamp"`

	// Duration of the whole run in milliseconds.
	Duration float64 `json:"duration"`

	Summary  Summary   `json:"summary"`
	Features []Feature `json:"features,omitempty"`

	Commit  string `json:"commit,omitempty"`
	Trigger string `json:"trigger,omitempty"`
}

// Time parses Timestamp.
func (r TestRun) Time() (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, r.Timestamp)
	if err != nil {
		return time.Time{}, fmt.Errorf("run %s: invalid timestamp %q: %w", r.ID, r.Timestamp, err)
	}
	return t, nil
}

// DurationValue returns Duration as a time.Duration.
func (r TestRun) DurationValue() time.Duration {
	return time.Duration(r.Duration * float64(time.Millisecond))
}

// Feature is a Gherkin feature file result.
type Feature struct {
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	Status      RunStatus  `json:"status"`
	Scenarios   []Scenario `json:"scenarios,omitempty"`
}

// Scenario is a single scenario (or example row) result.
type Scenario struct {
	Name     string    `json:"name"`
	Status   RunStatus `json:"status"`
	Duration float64   `json:"duration"`
	Tags     []string  `json:"tags,omitempty"`
	Steps    []Step    `json:"steps,omitempty"`
}

// Step is one Given/When/Then line.
type Step struct {
	Keyword  string    `json:"keyword"`
	Text     string    `json:"text"`
	Status   RunStatus `json:"status"`
	Duration float64   `json:"duration"`
	Error    string    `json:"error,omitempty"`
}

// DecodeProject builds a Project from a normalized document body.
// The document ID is used when the body carries no id field.
func DecodeProject(id string, data map[string]any) (Project, error) {
	var p Project
	if err := decode(data, &p); err != nil {
		return Project{}, fmt.Errorf("decode project %s: %w", id, err)
	}
	if p.ID == "" {
		p.ID = id
	}
	if p.ID == "" {
		return Project{}, fmt.Errorf("decode project: missing id")
	}
	return p, nil
}

// DecodeRun builds a TestRun from a normalized document body.
func DecodeRun(id string, data map[string]any) (TestRun, error) {
	var r TestRun
	if err := decode(data, &r); err != nil {
		return TestRun{}, fmt.Errorf("decode run %s: %w", id, err)
	}
	if r.ID == "" {
		r.ID = id
	}
	if r.ID == "" {
		return TestRun{}, fmt.Errorf("decode run: missing id")
	}
	if r.ProjectID == "" {
		return TestRun{}, fmt.Errorf("decode run %s: missing projectId", r.ID)
	}
	return r, nil
}

func decode(data map[string]any, v any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}
