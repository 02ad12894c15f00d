package scheduler

import (
	"testing"
	"time"
)

func TestParseSchedule(t *testing.T) {
	tests := []struct {
		name    string
		expr    string
		wantErr bool
	}{
		{"cron 5 fields", "0 2 * * *", false},
		{"cron 6 fields", "*/10 * * * * *", false},
		{"descriptor", "@daily", false},
		{"@every", "@every 15s", false},
		{"@every compound", "@every 1h30m", false},
		{"readable interval", "every 5m", false},
		{"days", "every 2d", false},
		{"empty", "", true},
		{"garbage", "invalid cron", true},
		{"too short", "@every 500ms", true},
		{"bad unit", "every 5 parsecs", true},
		{"bad days", "every xd", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSchedule(tt.expr)
			if tt.wantErr && err == nil {
				t.Error("ParseSchedule() error = nil, want error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("ParseSchedule() unexpected error = %v", err)
			}
		})
	}
}

func TestNextRun(t *testing.T) {
	from := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		expr string
		want time.Time
	}{
		{"@every 15s", from.Add(15 * time.Second)},
		{"every 2d", from.Add(48 * time.Hour)},
		{"0 2 * * *", time.Date(2024, 3, 16, 2, 0, 0, 0, time.UTC)},
		{"@hourly", time.Date(2024, 3, 15, 13, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := NextRun(tt.expr, from)
			if err != nil {
				t.Fatalf("NextRun() error = %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("NextRun() = %v, want %v", got, tt.want)
			}
		})
	}
}
