// Package scheduler runs the dashboard's periodic background tasks on top
// of robfig/cron.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler wraps robfig/cron and manages task lifecycle with context support.
type Scheduler struct {
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger
	tasks  map[string]*scheduledTask
	mu     sync.RWMutex
	wg     sync.WaitGroup
}

type scheduledTask struct {
	task     Task
	entryID  cron.EntryID
	lastRun  time.Time
	nextRun  time.Time
	last     *Execution
	runCount int64
	failures int64
}

// New creates a new Scheduler. Cancelling ctx cancels running tasks.
func New(ctx context.Context, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "scheduler")

	schedCtx, cancel := context.WithCancel(ctx)

	cronLogger := &cronSlogAdapter{logger: logger}

	c := cron.New(
		cron.WithLogger(cronLogger),
		cron.WithChain(
			cron.Recover(cronLogger),
			cron.SkipIfStillRunning(cronLogger),
		),
	)

	return &Scheduler{
		cron:   c,
		ctx:    schedCtx,
		cancel: cancel,
		logger: logger,
		tasks:  make(map[string]*scheduledTask),
	}
}

// Add registers a task. It fails if the name is taken or the schedule is invalid.
func (s *Scheduler) Add(task Task) error {
	if task.Name == "" {
		return fmt.Errorf("task name cannot be empty")
	}
	if task.Run == nil {
		return fmt.Errorf("task %q has no run function", task.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[task.Name]; exists {
		return fmt.Errorf("task %q already exists", task.Name)
	}

	schedule, err := ParseSchedule(task.Schedule)
	if err != nil {
		return fmt.Errorf("failed to parse schedule for task %q: %w", task.Name, err)
	}

	entryID := s.cron.Schedule(schedule, s.wrap(task.Name))
	next := schedule.Next(time.Now())
	s.tasks[task.Name] = &scheduledTask{
		task:    task,
		entryID: entryID,
		nextRun: next,
	}

	s.logger.Info("task added",
		slog.String("task", task.Name),
		slog.String("schedule", task.Schedule),
		slog.Time("next_run", next),
	)
	return nil
}

// RunNow executes a registered task immediately on the calling goroutine.
func (s *Scheduler) RunNow(name string) error {
	s.mu.RLock()
	_, exists := s.tasks[name]
	s.mu.RUnlock()
	if !exists {
		return fmt.Errorf("task %q not found", name)
	}
	return s.execute(name)
}

func (s *Scheduler) wrap(name string) cron.FuncJob {
	return func() {
		_ = s.execute(name)
	}
}

func (s *Scheduler) execute(name string) error {
	s.mu.Lock()
	st, exists := s.tasks[name]
	if !exists {
		s.mu.Unlock()
		return fmt.Errorf("task %q not found", name)
	}
	st.lastRun = time.Now()
	st.runCount++
	task := st.task
	s.mu.Unlock()

	s.wg.Add(1)
	defer s.wg.Done()

	ctx := s.ctx
	if task.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, task.Timeout)
		defer cancel()
	}

	exec := NewExecution(name)
	err := task.Run(ctx)
	exec.Finish(err)

	if err != nil {
		s.logger.Warn("task failed",
			slog.String("task", name),
			slog.String("execution_id", exec.ID),
			slog.String("error", err.Error()),
			slog.Duration("duration", exec.Duration()),
		)
	} else {
		s.logger.Debug("task completed",
			slog.String("task", name),
			slog.String("execution_id", exec.ID),
			slog.Duration("duration", exec.Duration()),
		)
	}

	s.mu.Lock()
	if st, exists := s.tasks[name]; exists {
		st.last = exec
		if err != nil {
			st.failures++
		}
		if entry := s.cron.Entry(st.entryID); entry.ID != 0 {
			st.nextRun = entry.Next
		}
	}
	s.mu.Unlock()

	return err
}

// Start begins running tasks on their schedules.
func (s *Scheduler) Start() {
	s.mu.RLock()
	count := len(s.tasks)
	s.mu.RUnlock()

	s.logger.Info("starting scheduler", slog.Int("task_count", count))
	s.cron.Start()
}

// Stop cancels running tasks and waits for them to return.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")

	s.cancel()
	<-s.cron.Stop().Done()
	s.wg.Wait()

	s.logger.Info("scheduler stopped")
}

// Run starts the scheduler and blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	s.Start()
	<-ctx.Done()
	s.Stop()
	return nil
}

// Stats holds statistics for a scheduled task.
type Stats struct {
	Task     string     `json:"task"`
	Schedule string     `json:"schedule"`
	LastRun  time.Time  `json:"last_run"`
	NextRun  time.Time  `json:"next_run"`
	RunCount int64      `json:"run_count"`
	Failures int64      `json:"failures"`
	Last     *Execution `json:"last,omitempty"`
}

// TaskStats returns statistics for a task.
func (s *Scheduler) TaskStats(name string) (Stats, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, exists := s.tasks[name]
	if !exists {
		return Stats{}, false
	}
	return s.statsLocked(st), true
}

// AllStats returns statistics for every task, sorted by name.
func (s *Scheduler) AllStats() []Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Stats, 0, len(s.tasks))
	for _, st := range s.tasks {
		out = append(out, s.statsLocked(st))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Task < out[j].Task })
	return out
}

func (s *Scheduler) statsLocked(st *scheduledTask) Stats {
	nextRun := st.nextRun
	if entry := s.cron.Entry(st.entryID); entry.ID != 0 && !entry.Next.IsZero() {
		nextRun = entry.Next
	}

	var last *Execution
	if st.last != nil {
		cp := *st.last
		last = &cp
	}

	return Stats{
		Task:     st.task.Name,
		Schedule: st.task.Schedule,
		LastRun:  st.lastRun,
		NextRun:  nextRun,
		RunCount: st.runCount,
		Failures: st.failures,
		Last:     last,
	}
}

// cronSlogAdapter adapts slog.Logger to cron.Logger interface.
type cronSlogAdapter struct {
	logger *slog.Logger
}

func (a *cronSlogAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Debug(msg, keysAndValues...)
}

func (a *cronSlogAdapter) Error(err error, msg string, keysAndValues ...interface{}) {
	attrs := make([]any, 0, len(keysAndValues)+1)
	attrs = append(attrs, slog.String("error", err.Error()))
	attrs = append(attrs, keysAndValues...)
	a.logger.Error(msg, attrs...)
}
