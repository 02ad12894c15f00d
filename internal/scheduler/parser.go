package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// MinInterval is the shortest interval a task may run at.
const MinInterval = time.Second

// cronParser accepts an optional seconds field and @ descriptors.
var cronParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseSchedule parses a schedule expression and returns a cron.Schedule.
// Supports:
//   - cron expressions with 5 or 6 fields: "0 2 * * *", "*/10 * * * * *"
//   - intervals: "@every 15s", or "every 5m" / "every 2d"
//   - descriptors: "@hourly", "@daily", "@weekly", "@monthly"
func ParseSchedule(expr string) (cron.Schedule, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("schedule expression cannot be empty")
	}

	lower := strings.ToLower(expr)
	if strings.HasPrefix(lower, "every ") || strings.HasPrefix(lower, "@every ") {
		d, err := parseInterval(strings.TrimPrefix(strings.TrimPrefix(lower, "@"), "every "))
		if err != nil {
			return nil, fmt.Errorf("invalid interval expression %q: %w", expr, err)
		}
		return cron.Every(d), nil
	}

	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return schedule, nil
}

// parseInterval accepts Go durations ("15s", "1h30m") plus whole days ("2d").
func parseInterval(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)

	var d time.Duration
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, fmt.Errorf("invalid day count %q", days)
		}
		d = time.Duration(n) * 24 * time.Hour
	} else {
		var err error
		if d, err = time.ParseDuration(s); err != nil {
			return 0, err
		}
	}

	if d < MinInterval {
		return 0, fmt.Errorf("interval must be at least %s", MinInterval)
	}
	return d, nil
}

// NextRun calculates the next run time for a schedule expression from the given time.
func NextRun(expr string, from time.Time) (time.Time, error) {
	schedule, err := ParseSchedule(expr)
	if err != nil {
		return time.Time{}, err
	}
	return schedule.Next(from), nil
}
