// Package livestore holds the dashboard's process-wide view of projects and
// test runs, kept current by live document-store subscriptions.
package livestore

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/caevv/bddash/internal/model"
	"github.com/caevv/bddash/internal/normalize"
	"github.com/caevv/bddash/internal/prefs"
	"github.com/caevv/bddash/internal/source"
	"github.com/caevv/bddash/internal/trend"
)

const (
	// DefaultProjectsCollection is the document collection holding projects.
	DefaultProjectsCollection = "projects"
	// DefaultRunsCollection is the document collection holding test runs.
	DefaultRunsCollection = "runs"
)

// State is a point-in-time copy of the store.
type State struct {
	Projects []model.Project `json:"projects"`
	Runs     []model.TestRun `json:"runs"`
	Loading  bool            `json:"loading"`
	Error    string          `json:"error,omitempty"`

	// Connected is the health of the subscription channel.
	Connected bool `json:"connected"`
	// BrowserOnline is the health of the client's network interface.
	BrowserOnline bool `json:"browser_online"`

	Theme Theme `json:"theme"`
}

// Banner returns the connectivity banner for this state.
func (s State) Banner() Banner {
	return BannerFor(s.BrowserOnline, s.Connected)
}

// Store is the single writer of dashboard state. All mutation goes through
// its methods; readers get copies.
type Store struct {
	src    source.Source
	prefs  prefs.Store
	logger *slog.Logger
	now    func() time.Time
	agg    *trend.Aggregator

	projectsCollection string
	runsCollection     string

	// themeMu orders theme persists; it is never taken while holding mu.
	themeMu sync.Mutex

	mu      sync.Mutex
	state   State
	active  bool
	gen     uint64
	subs    []*subscription
	pending map[string]bool
	changes map[chan struct{}]struct{}
}

// subscription wraps a source handle so it is cancelled exactly once.
type subscription struct {
	name   string
	handle source.Subscription
	once   sync.Once
}

func (s *subscription) cancel() {
	s.once.Do(s.handle.Unsubscribe)
}

// Option configures a Store.
type Option func(*Store)

// WithCollections overrides the collection names.
func WithCollections(projects, runs string) Option {
	return func(s *Store) {
		if projects != "" {
			s.projectsCollection = projects
		}
		if runs != "" {
			s.runsCollection = runs
		}
	}
}

// WithClock replaces time.Now for trend computations.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithAggregator sets the trend aggregator used by Trend and ProjectTrend.
func WithAggregator(agg *trend.Aggregator) Option {
	return func(s *Store) {
		if agg != nil {
			s.agg = agg
		}
	}
}

// New creates a Store reading from src. The theme is restored from kv;
// kv may be nil, in which case the theme is not persisted.
func New(src source.Source, kv prefs.Store, logger *slog.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Store{
		src:                src,
		prefs:              kv,
		logger:             logger.With("component", "livestore"),
		now:                time.Now,
		agg:                trend.New(),
		projectsCollection: DefaultProjectsCollection,
		runsCollection:     DefaultRunsCollection,
		changes:            make(map[chan struct{}]struct{}),
		state: State{
			Connected:     true,
			BrowserOnline: true,
			Theme:         ThemeLight,
		},
	}
	for _, opt := range opts {
		opt(s)
	}

	s.state.Theme = s.loadTheme()
	return s
}

// Init subscribes to the projects and runs collections and to connection
// state. Calling Init on an active store does nothing.
func (s *Store) Init() {
	s.mu.Lock()
	started := s.subscribeLocked()
	s.mu.Unlock()

	if started {
		s.logger.Info("subscriptions started",
			"projects", s.projectsCollection,
			"runs", s.runsCollection)
		s.notify()
	}
}

// Retry drops every active subscription and subscribes again from scratch.
// It never leaves more than one listener per collection.
func (s *Store) Retry() {
	s.mu.Lock()
	old := s.detachLocked()
	s.mu.Unlock()

	cancelAll(old)

	s.mu.Lock()
	started := s.subscribeLocked()
	s.mu.Unlock()

	s.logger.Info("subscriptions re-established", "cancelled", len(old), "started", started)
	s.notify()
}

// Teardown cancels every active subscription. Callbacks still in flight are
// ignored. Further calls do nothing.
func (s *Store) Teardown() {
	s.mu.Lock()
	old := s.detachLocked()
	s.mu.Unlock()

	cancelAll(old)
	if len(old) > 0 {
		s.logger.Info("subscriptions cancelled", "count", len(old))
	}
}

// subscribeLocked starts a new generation of subscriptions unless one is
// already active. Sources never call back synchronously, so holding the
// lock here is safe.
func (s *Store) subscribeLocked() bool {
	if s.active {
		return false
	}

	s.active = true
	s.gen++
	gen := s.gen

	s.state.Loading = true
	s.state.Error = ""
	s.pending = map[string]bool{
		s.projectsCollection: true,
		s.runsCollection:     true,
	}

	projects := s.src.Subscribe(s.projectsCollection,
		func(docs []source.Document) { s.handleProjects(gen, docs) },
		func(err error) { s.handleError(gen, s.projectsCollection, err) })
	runs := s.src.Subscribe(s.runsCollection,
		func(docs []source.Document) { s.handleRuns(gen, docs) },
		func(err error) { s.handleError(gen, s.runsCollection, err) })
	conn := s.src.ConnectionState(func(connected bool) { s.handleConnection(gen, connected) })

	s.subs = []*subscription{
		{name: s.projectsCollection, handle: projects},
		{name: s.runsCollection, handle: runs},
		{name: "connection", handle: conn},
	}
	return true
}

// detachLocked invalidates the current generation and hands back its
// subscriptions for cancellation outside the lock.
func (s *Store) detachLocked() []*subscription {
	s.gen++
	s.active = false
	s.pending = nil
	old := s.subs
	s.subs = nil
	return old
}

func cancelAll(subs []*subscription) {
	for _, sub := range subs {
		sub.cancel()
	}
}

// currentLocked reports whether callbacks of generation gen may still mutate state.
func (s *Store) currentLocked(gen uint64) bool {
	return s.active && gen == s.gen
}

func (s *Store) handleProjects(gen uint64, docs []source.Document) {
	projects := decodeProjects(docs, s.logger)

	s.mu.Lock()
	if !s.currentLocked(gen) {
		s.mu.Unlock()
		s.logger.Debug("ignoring stale snapshot", "collection", s.projectsCollection)
		return
	}
	s.state.Projects = projects
	s.state.Error = ""
	s.markLoadedLocked(s.projectsCollection)
	s.mu.Unlock()

	s.logger.Debug("projects snapshot applied", "count", len(projects))
	s.notify()
}

func (s *Store) handleRuns(gen uint64, docs []source.Document) {
	runs := decodeRuns(docs, s.logger)

	s.mu.Lock()
	if !s.currentLocked(gen) {
		s.mu.Unlock()
		s.logger.Debug("ignoring stale snapshot", "collection", s.runsCollection)
		return
	}
	s.state.Runs = runs
	s.state.Error = ""
	s.markLoadedLocked(s.runsCollection)
	s.mu.Unlock()

	s.logger.Debug("runs snapshot applied", "count", len(runs))
	s.notify()
}

func (s *Store) markLoadedLocked(collection string) {
	delete(s.pending, collection)
	s.state.Loading = len(s.pending) > 0
}

func (s *Store) handleError(gen uint64, collection string, err error) {
	s.mu.Lock()
	if !s.currentLocked(gen) {
		s.mu.Unlock()
		return
	}
	s.state.Error = fmt.Sprintf("Failed to load %s: %v", collection, err)
	s.state.Loading = false
	s.pending = map[string]bool{}
	s.mu.Unlock()

	s.logger.Error("subscription failed", "collection", collection, "error", err)
	s.notify()
}

func (s *Store) handleConnection(gen uint64, connected bool) {
	s.mu.Lock()
	if !s.currentLocked(gen) || s.state.Connected == connected {
		s.mu.Unlock()
		return
	}
	s.state.Connected = connected
	s.mu.Unlock()

	s.logger.Info("subscription channel state changed", "connected", connected)
	s.notify()
}

// SetBrowserOnline records the client's network connectivity.
func (s *Store) SetBrowserOnline(online bool) {
	s.mu.Lock()
	if s.state.BrowserOnline == online {
		s.mu.Unlock()
		return
	}
	s.state.BrowserOnline = online
	s.mu.Unlock()

	s.logger.Info("network connectivity changed", "online", online)
	s.notify()
}

// State returns a copy of the current state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyLocked()
}

func (s *Store) copyLocked() State {
	st := s.state
	st.Projects = append([]model.Project(nil), s.state.Projects...)
	st.Runs = append([]model.TestRun(nil), s.state.Runs...)
	return st
}

// Active reports whether subscriptions are currently established.
func (s *Store) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Changes returns a channel that receives a value after each state change.
// Notifications coalesce; receivers should re-read State. The returned
// func stops notifications.
func (s *Store) Changes() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	s.mu.Lock()
	s.changes[ch] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.changes, ch)
			s.mu.Unlock()
		})
	}
}

func (s *Store) notify() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.changes {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func decodeProjects(docs []source.Document, logger *slog.Logger) []model.Project {
	projects := make([]model.Project, 0, len(docs))
	for _, doc := range docs {
		p, err := model.DecodeProject(doc.ID, normalize.Record(doc.Data))
		if err != nil {
			logger.Warn("dropping malformed project", "doc_id", doc.ID, "error", err)
			continue
		}
		projects = append(projects, p)
	}
	sort.SliceStable(projects, func(i, j int) bool {
		if projects[i].Name != projects[j].Name {
			return projects[i].Name < projects[j].Name
		}
		return projects[i].ID < projects[j].ID
	})
	return projects
}

func decodeRuns(docs []source.Document, logger *slog.Logger) []model.TestRun {
	type timedRun struct {
		run model.TestRun
		at  time.Time
	}

	timed := make([]timedRun, 0, len(docs))
	for _, doc := range docs {
		r, err := model.DecodeRun(doc.ID, normalize.Record(doc.Data))
		if err != nil {
			logger.Warn("dropping malformed run", "doc_id", doc.ID, "error", err)
			continue
		}
		at, _ := r.Time()
		timed = append(timed, timedRun{run: r, at: at})
	}

	// Newest first; runs without a usable timestamp sink to the end.
	sort.SliceStable(timed, func(i, j int) bool {
		return timed[i].at.After(timed[j].at)
	})

	runs := make([]model.TestRun, len(timed))
	for i, t := range timed {
		runs[i] = t.run
	}
	return runs
}
