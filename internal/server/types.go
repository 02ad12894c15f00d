package server

import (
	"time"

	"github.com/caevv/bddash/internal/livestore"
	"github.com/caevv/bddash/internal/model"
	"github.com/caevv/bddash/internal/trend"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Uptime    string `json:"uptime"`
	Connected bool   `json:"connected"`
	Online    bool   `json:"online"`
}

// StateResponse carries the UI flags without the data.
type StateResponse struct {
	Loading       bool            `json:"loading"`
	Error         string          `json:"error,omitempty"`
	Connected     bool            `json:"connected"`
	BrowserOnline bool            `json:"browser_online"`
	Theme         livestore.Theme `json:"theme"`
	Banner        string          `json:"banner"`
	BannerMessage string          `json:"banner_message,omitempty"`
	Projects      int             `json:"projects"`
	Runs          int             `json:"runs"`
}

func newStateResponse(st livestore.State) StateResponse {
	banner := st.Banner()
	return StateResponse{
		Loading:       st.Loading,
		Error:         st.Error,
		Connected:     st.Connected,
		BrowserOnline: st.BrowserOnline,
		Theme:         st.Theme,
		Banner:        banner.String(),
		BannerMessage: banner.Message(),
		Projects:      len(st.Projects),
		Runs:          len(st.Runs),
	}
}

// ProjectResponse is a project with the totals of its runs.
type ProjectResponse struct {
	model.Project
	Stats trend.Summary `json:"stats"`
}

// TrendResponse is a daily pass-rate series. Points is empty when there
// are fewer than two days of data.
type TrendResponse struct {
	Project          string        `json:"project,omitempty"`
	Points           []trend.Point `json:"points"`
	InsufficientData bool          `json:"insufficient_data"`
}

// ThemeResponse reports the theme after a toggle.
type ThemeResponse struct {
	Theme     livestore.Theme `json:"theme"`
	Persisted bool            `json:"persisted"`
	Error     string          `json:"error,omitempty"`
}

// ConnectivityRequest is posted by the page on online/offline events.
type ConnectivityRequest struct {
	Online *bool `json:"online"`
}

// TaskSummary describes a background task.
type TaskSummary struct {
	Name      string     `json:"name"`
	Schedule  string     `json:"schedule"`
	LastRun   *time.Time `json:"last_run,omitempty"`
	NextRun   *time.Time `json:"next_run,omitempty"`
	RunCount  int64      `json:"run_count"`
	Failures  int64      `json:"failures"`
	LastError string     `json:"last_error,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code"`
}
