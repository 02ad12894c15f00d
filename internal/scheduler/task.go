package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Task is a named unit of periodic work.
type Task struct {
	// Name identifies the task in logs and stats.
	Name string
	// Schedule is a cron expression, descriptor or interval.
	Schedule string
	// Timeout bounds a single execution; zero means no timeout.
	Timeout time.Duration
	// Run performs the work. It should respect context cancellation.
	Run func(ctx context.Context) error
}

// Execution tracks metadata for a single task execution.
type Execution struct {
	ID        string    `json:"id"`
	Task      string    `json:"task"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
}

// NewExecution creates a new Execution with a unique ID.
func NewExecution(task string) *Execution {
	return &Execution{
		ID:        uuid.New().String(),
		Task:      task,
		StartTime: time.Now(),
	}
}

// Finish marks the execution as complete.
func (e *Execution) Finish(err error) {
	e.EndTime = time.Now()
	e.Success = err == nil
	if err != nil {
		e.Error = err.Error()
	}
}

// Duration returns the elapsed time for this execution.
func (e *Execution) Duration() time.Duration {
	if e.EndTime.IsZero() {
		return time.Since(e.StartTime)
	}
	return e.EndTime.Sub(e.StartTime)
}
