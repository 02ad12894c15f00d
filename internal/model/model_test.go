package model

import (
	"testing"
	"time"
)

func TestPercent(t *testing.T) {
	tests := []struct {
		name        string
		part, whole int
		want        int
	}{
		{"zero total", 0, 0, 0},
		{"zero total with passes", 3, 0, 0},
		{"all passed", 10, 10, 100},
		{"half", 5, 10, 50},
		{"rounds down", 10, 110, 9},
		{"rounds half up", 1, 8, 13},
		{"two thirds", 2, 3, 67},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Percent(tt.part, tt.whole); got != tt.want {
				t.Errorf("Percent(%d, %d) = %d, want %d", tt.part, tt.whole, got, tt.want)
			}
		})
	}
}

func TestDecodeRun(t *testing.T) {
	data := map[string]any{
		"projectId":   "checkout",
		"status":      "failed",
		"branch":      "main",
		"environment": "staging",
		"timestamp":   "2023-11-14T22:13:20.000Z",
		"duration":    1534.5,
		"summary": map[string]any{
			"total": 12, "passed": 10, "failed": 1, "skipped": 1,
		},
		"features": []any{
			map[string]any{
				"name":   "Checkout",
				"status": "failed",
				"scenarios": []any{
					map[string]any{"name": "pay by card", "status": "failed", "steps": []any{
						map[string]any{"keyword": "When", "text": "I pay", "status": "failed", "error": "timeout"},
					}},
				},
			},
		},
	}

	run, err := DecodeRun("run-7", data)
	if err != nil {
		t.Fatalf("DecodeRun() error = %v", err)
	}

	if run.ID != "run-7" {
		t.Errorf("ID = %q, want document id run-7", run.ID)
	}
	if run.Status != StatusFailed {
		t.Errorf("Status = %q, want failed", run.Status)
	}
	if run.Summary.Passed != 10 || run.Summary.Total != 12 {
		t.Errorf("Summary = %+v", run.Summary)
	}
	if len(run.Features) != 1 || len(run.Features[0].Scenarios) != 1 {
		t.Fatalf("Features = %+v", run.Features)
	}
	if got := run.Features[0].Scenarios[0].Steps[0].Error; got != "timeout" {
		t.Errorf("step error = %q, want timeout", got)
	}

	ts, err := run.Time()
	if err != nil {
		t.Fatalf("Time() error = %v", err)
	}
	if want := time.Unix(1700000000, 0).UTC(); !ts.Equal(want) {
		t.Errorf("Time() = %v, want %v", ts, want)
	}
	if got := run.DurationValue(); got != 1534500*time.Microsecond {
		t.Errorf("DurationValue() = %v", got)
	}
}

func TestDecodeRun_Errors(t *testing.T) {
	tests := []struct {
		name string
		id   string
		data map[string]any
	}{
		{"missing project", "r1", map[string]any{"status": "passed"}},
		{"missing id", "", map[string]any{"projectId": "p"}},
		{"wrong summary type", "r1", map[string]any{"projectId": "p", "summary": "lots"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeRun(tt.id, tt.data); err == nil {
				t.Error("DecodeRun() expected error, got nil")
			}
		})
	}
}

func TestDecodeProject(t *testing.T) {
	p, err := DecodeProject("doc-1", map[string]any{"name": "Checkout"})
	if err != nil {
		t.Fatalf("DecodeProject() error = %v", err)
	}
	if p.ID != "doc-1" || p.Name != "Checkout" {
		t.Errorf("DecodeProject() = %+v", p)
	}

	p, err = DecodeProject("doc-1", map[string]any{"id": "checkout", "name": "Checkout"})
	if err != nil {
		t.Fatalf("DecodeProject() error = %v", err)
	}
	if p.ID != "checkout" {
		t.Errorf("ID = %q, want body id to win", p.ID)
	}
}

func TestRunStatus_Known(t *testing.T) {
	if !StatusRunning.Known() {
		t.Error("running should be known")
	}
	if RunStatus("flaky").Known() {
		t.Error("flaky should not be known")
	}
}
