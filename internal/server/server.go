// Package server serves the read-only web dashboard and its JSON API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/caevv/bddash/internal/livestore"
	"github.com/caevv/bddash/internal/logging"
	"github.com/caevv/bddash/internal/metrics"
	"github.com/caevv/bddash/internal/model"
	"github.com/caevv/bddash/internal/trend"
	"github.com/google/uuid"
)

// Dashboard is the view of live test results the server renders.
// *livestore.Store implements it.
type Dashboard interface {
	State() livestore.State
	Stats() livestore.Stats
	Trend() ([]trend.Point, error)
	ProjectTrend(projectID string) ([]trend.Point, error)
	Project(id string) (model.Project, bool)
	ProjectRuns(projectID string) []model.TestRun
	Run(projectID, runID string) (model.TestRun, bool)
	RecentRuns(n int) []model.TestRun
	ProjectSummaries() []livestore.ProjectSummary

	// UI state only; none of these touch projects or runs.
	Retry()
	ToggleTheme() (livestore.Theme, error)
	SetBrowserOnline(online bool)

	Changes() (<-chan struct{}, func())
}

// Tasks exposes background task statistics.
type Tasks interface {
	Tasks() []TaskSummary
}

// Server represents the HTTP server for the dashboard.
type Server struct {
	addr    string
	dash    Dashboard
	tasks   Tasks
	logger  *slog.Logger
	metrics *metrics.Metrics

	srv       *http.Server
	router    *http.ServeMux
	startTime time.Time

	mu      sync.RWMutex
	started bool
}

// Option configures a Server.
type Option func(*Server)

// WithTasks exposes background task stats on /api/tasks.
func WithTasks(t Tasks) Option {
	return func(s *Server) { s.tasks = t }
}

// WithMetrics shares a metrics registry, e.g. with the connectivity probe.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		if m != nil {
			s.metrics = m
		}
	}
}

// New creates a new Server instance.
func New(addr string, dash Dashboard, logger *slog.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		addr:      addr,
		dash:      dash,
		logger:    logger.With("component", "server"),
		startTime: time.Now(),
		router:    http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.New(SnapshotFunc(dash))
	}

	s.registerRoutes()
	return s
}

// SnapshotFunc samples a dashboard for the metrics gauges.
func SnapshotFunc(dash Dashboard) func() metrics.Snapshot {
	return func() metrics.Snapshot {
		st := dash.State()
		return metrics.Snapshot{
			Projects:      len(st.Projects),
			Runs:          len(st.Runs),
			Loading:       st.Loading,
			Connected:     st.Connected,
			BrowserOnline: st.BrowserOnline,
			HasError:      st.Error != "",
		}
	}
}

// registerRoutes sets up all HTTP routes
func (s *Server) registerRoutes() {
	// API routes
	s.router.HandleFunc("GET /api/health", s.handleHealth)
	s.router.HandleFunc("GET /api/state", s.handleState)
	s.router.HandleFunc("GET /api/stats", s.handleStats)
	s.router.HandleFunc("GET /api/projects", s.handleListProjects)
	s.router.HandleFunc("GET /api/projects/{id}", s.handleGetProject)
	s.router.HandleFunc("GET /api/projects/{id}/runs", s.handleGetProjectRuns)
	s.router.HandleFunc("GET /api/projects/{id}/runs/{runId}", s.handleGetRun)
	s.router.HandleFunc("GET /api/runs", s.handleListRuns)
	s.router.HandleFunc("GET /api/trend", s.handleTrend)
	s.router.HandleFunc("GET /api/tasks", s.handleTasks)
	s.router.HandleFunc("GET /api/events", s.handleEvents)
	s.router.HandleFunc("POST /api/retry", s.handleRetry)
	s.router.HandleFunc("POST /api/theme/toggle", s.handleToggleTheme)
	s.router.HandleFunc("POST /api/connectivity", s.handleConnectivity)
	s.router.HandleFunc("/api/", s.handleAPINotFound)
	s.router.Handle("GET /metrics", s.metrics.Handler())

	// UI routes
	s.router.HandleFunc("GET /{$}", s.handleDashboard)
	s.router.HandleFunc("GET /project/{projectId}", s.handleProject)
	s.router.HandleFunc("GET /project/{projectId}/run/{runId}", s.handleRunDetail)
	s.router.HandleFunc("/", s.handleNotFound)
}

// Handler returns the routed handler with request ID, logging and metrics.
func (s *Server) Handler() http.Handler {
	return s.requestIDMiddleware(s.loggingMiddleware(s.router))
}

// Start starts the HTTP server and blocks until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.New("server already started")
	}
	s.started = true
	s.srv = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
		BaseContext:  func(_ net.Listener) context.Context { return ctx },
	}
	srv := s.srv
	s.mu.Unlock()

	s.logger.Info("starting HTTP server", "addr", s.addr)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server failed: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server", "reason", ctx.Err())
		return s.Stop(context.Background())
	case err := <-errCh:
		s.logger.Error("HTTP server error", "error", err)
		return err
	}
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started || s.srv == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("error during shutdown", "error", err)
		return fmt.Errorf("shutdown failed: %w", err)
	}

	s.started = false
	s.logger.Info("HTTP server stopped")
	return nil
}

type requestIDKey struct{}

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

// requestIDMiddleware reuses a well-formed incoming request ID or mints one,
// and attaches a logger tagged with it to the request context.
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)

		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		ctx = logging.WithContext(ctx, s.logger.With("request_id", id))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestID returns the ID assigned to the request, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// loggingMiddleware logs HTTP requests and records their metrics.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Wrap response writer to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		s.metrics.ObserveRequest(route, r.Method, wrapped.statusCode, duration)

		level := slog.LevelInfo
		if r.URL.Path == "/api/events" || r.URL.Path == "/metrics" || r.URL.Path == "/api/health" {
			level = slog.LevelDebug
		}
		logging.FromContext(r.Context()).Log(r.Context(), level, "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"route", route,
			"status", wrapped.statusCode,
			"duration_ms", duration.Milliseconds(),
			"remote_addr", r.RemoteAddr,
		)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Uptime returns the server uptime as a string
func (s *Server) Uptime() string {
	duration := time.Since(s.startTime)
	hours := int(duration.Hours())
	minutes := int(duration.Minutes()) % 60
	seconds := int(duration.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("%dh%dm%ds", hours, minutes, seconds)
	} else if minutes > 0 {
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}
