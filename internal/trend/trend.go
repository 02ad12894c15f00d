// Package trend derives pass-rate statistics from test runs.
package trend

import (
	"errors"
	"sort"
	"time"

	"github.com/caevv/bddash/internal/model"
)

const (
	// DefaultWindow is the trailing period considered for daily trends.
	DefaultWindow = 14 * 24 * time.Hour

	// DefaultMinDays is the number of distinct days needed for a plottable trend.
	DefaultMinDays = 2
)

// ErrInsufficientData is returned when fewer than MinDays distinct days
// have runs inside the window. Views show an explanatory empty state.
var ErrInsufficientData = errors.New("insufficient data for trend")

// Point is the aggregated pass rate of one calendar day.
type Point struct {
	Day      time.Time `json:"day"`
	PassRate int       `json:"pass_rate"`
	Passed   int       `json:"passed"`
	Total    int       `json:"total"`
	Runs     int       `json:"runs"`
}

// Label returns the day as YYYY-MM-DD.
func (p Point) Label() string {
	return p.Day.Format(time.DateOnly)
}

// Aggregator buckets runs by calendar day.
type Aggregator struct {
	// Window is how far back from now runs are considered.
	Window time.Duration
	// Location defines calendar-day boundaries.
	Location *time.Location
	// MinDays is the minimum number of distinct days for a valid series.
	MinDays int
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithWindow overrides the trailing window.
func WithWindow(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.Window = d
		}
	}
}

// WithLocation sets the time zone used for day boundaries.
func WithLocation(loc *time.Location) Option {
	return func(a *Aggregator) {
		if loc != nil {
			a.Location = loc
		}
	}
}

// WithMinDays overrides the minimum number of days.
func WithMinDays(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.MinDays = n
		}
	}
}

// New creates an Aggregator with a 14 day window bucketed in UTC.
func New(opts ...Option) *Aggregator {
	a := &Aggregator{
		Window:   DefaultWindow,
		Location: time.UTC,
		MinDays:  DefaultMinDays,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

var defaultAggregator = New()

// Daily aggregates runs with the default settings.
func Daily(runs []model.TestRun, now time.Time) ([]Point, error) {
	return defaultAggregator.Daily(runs, now)
}

// Daily returns one Point per calendar day with at least one run in the
// window ending at now, ordered by day ascending. Runs on the same day are
// merged by summing counts, not by averaging their rates.
func (a *Aggregator) Daily(runs []model.TestRun, now time.Time) ([]Point, error) {
	cutoff := now.Add(-a.Window)
	buckets := make(map[time.Time]*Point)

	for _, run := range runs {
		ts, err := run.Time()
		if err != nil {
			continue
		}
		if ts.Before(cutoff) {
			continue
		}

		day := startOfDay(ts, a.Location)
		p, ok := buckets[day]
		if !ok {
			p = &Point{Day: day}
			buckets[day] = p
		}
		p.Passed += run.Summary.Passed
		p.Total += run.Summary.Total
		p.Runs++
	}

	if len(buckets) < a.MinDays {
		return nil, ErrInsufficientData
	}

	points := make([]Point, 0, len(buckets))
	for _, p := range buckets {
		p.PassRate = PassRate(p.Passed, p.Total)
		points = append(points, *p)
	}
	sort.Slice(points, func(i, j int) bool {
		return points[i].Day.Before(points[j].Day)
	})

	return points, nil
}

// PassRate is passed/total as a rounded integer percentage; 0 when total is 0.
func PassRate(passed, total int) int {
	return model.Percent(passed, total)
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
