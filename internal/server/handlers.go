package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/caevv/bddash/internal/model"
	"github.com/caevv/bddash/internal/trend"
)

const (
	version      = "v0.1.0"
	defaultLimit = 50
	maxLimit     = 500
)

// handleHealth returns the health status of the server
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	st := s.dash.State()
	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Version:   version,
		Uptime:    s.Uptime(),
		Connected: st.Connected,
		Online:    st.BrowserOnline,
	})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, newStateResponse(s.dash.State()))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.dash.Stats())
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.dash.ProjectSummaries())
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	project, ok := s.dash.Project(id)
	if !ok {
		s.writeError(w, http.StatusNotFound, "project not found", nil)
		return
	}

	s.writeJSON(w, http.StatusOK, ProjectResponse{
		Project: project,
		Stats:   trend.Summarize(s.dash.ProjectRuns(id)),
	})
}

func (s *Server) handleGetProjectRuns(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if _, ok := s.dash.Project(id); !ok {
		s.writeError(w, http.StatusNotFound, "project not found", nil)
		return
	}

	runs := s.dash.ProjectRuns(id)
	if runs == nil {
		runs = []model.TestRun{}
	}
	if limit := s.parseLimitParam(r); len(runs) > limit {
		runs = runs[:limit]
	}
	s.writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.dash.Run(r.PathValue("id"), r.PathValue("runId"))
	if !ok {
		s.writeError(w, http.StatusNotFound, "run not found", nil)
		return
	}
	s.writeJSON(w, http.StatusOK, run)
}

// handleListRuns returns the newest runs across all projects.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.dash.RecentRuns(s.parseLimitParam(r)))
}

func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	project := r.URL.Query().Get("project")

	var (
		points []trend.Point
		err    error
	)
	if project != "" {
		if _, ok := s.dash.Project(project); !ok {
			s.writeError(w, http.StatusNotFound, "project not found", nil)
			return
		}
		points, err = s.dash.ProjectTrend(project)
	} else {
		points, err = s.dash.Trend()
	}

	resp := TrendResponse{Project: project, Points: points}
	if errors.Is(err, trend.ErrInsufficientData) {
		resp.Points = []trend.Point{}
		resp.InsufficientData = true
	} else if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to compute trend", err)
		return
	}

	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	if s.tasks == nil {
		s.writeJSON(w, http.StatusOK, []TaskSummary{})
		return
	}
	s.writeJSON(w, http.StatusOK, s.tasks.Tasks())
}

// handleRetry re-establishes the live subscriptions.
func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	s.dash.Retry()
	s.metrics.Retried()
	s.writeJSON(w, http.StatusAccepted, newStateResponse(s.dash.State()))
}

// handleToggleTheme flips the theme. A persistence failure still flips the
// theme for this process and is reported in the response.
func (s *Server) handleToggleTheme(w http.ResponseWriter, r *http.Request) {
	theme, err := s.dash.ToggleTheme()
	resp := ThemeResponse{Theme: theme, Persisted: err == nil}
	if err != nil {
		resp.Error = err.Error()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleConnectivity(w http.ResponseWriter, r *http.Request) {
	var req ConnectivityRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<10))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil || req.Online == nil {
		s.writeError(w, http.StatusBadRequest, `body must be {"online": true|false}`, nil)
		return
	}

	s.dash.SetBrowserOnline(*req.Online)
	s.writeJSON(w, http.StatusOK, newStateResponse(s.dash.State()))
}

func (s *Server) handleAPINotFound(w http.ResponseWriter, r *http.Request) {
	s.writeError(w, http.StatusNotFound, "no such endpoint", nil)
}

// parseLimitParam parses the limit query parameter
func (s *Server) parseLimitParam(r *http.Request) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode JSON response", "error", err)
	}
}

// writeError writes a JSON error response
func (s *Server) writeError(w http.ResponseWriter, status int, message string, err error) {
	response := ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Code:    status,
	}

	if err != nil {
		s.logger.Error("API error", "status", status, "message", message, "error", err)
	}

	s.writeJSON(w, status, response)
}
