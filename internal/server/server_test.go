package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/caevv/bddash/internal/livestore"
	"github.com/caevv/bddash/internal/model"
	"github.com/caevv/bddash/internal/trend"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubDashboard is an in-memory Dashboard.
type stubDashboard struct {
	mu       sync.Mutex
	state    livestore.State
	points   []trend.Point
	themeErr error
	retries  int
	changes  chan struct{}
}

func newStub() *stubDashboard {
	return &stubDashboard{
		state: livestore.State{
			Projects: []model.Project{
				{ID: "checkout", Name: "Checkout", Description: "Payment flows"},
				{ID: "search", Name: "Search"},
			},
			Runs: []model.TestRun{
				{
					ID: "r2", ProjectID: "checkout", Status: model.StatusFailed,
					Branch: "main", Environment: "staging",
					Timestamp: "2024-03-15T12:00:00.000Z", Duration: 1500,
					Summary: model.Summary{Total: 4, Passed: 3, Failed: 1},
					Features: []model.Feature{{
						Name: "Pay by card", Status: model.StatusFailed,
						Scenarios: []model.Scenario{{
							Name: "Declined card", Status: model.StatusFailed,
							Steps: []model.Step{{Keyword: "Then", Text: "I see <an error>", Status: model.StatusFailed, Error: "expected banner"}},
						}},
					}},
				},
				{
					ID: "r1", ProjectID: "checkout", Status: model.StatusPassed,
					Timestamp: "2024-03-14T12:00:00.000Z", Duration: 900,
					Summary: model.Summary{Total: 4, Passed: 4},
				},
			},
			Connected:     true,
			BrowserOnline: true,
			Theme:         livestore.ThemeLight,
		},
		points: []trend.Point{
			{Day: time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC), PassRate: 100, Passed: 4, Total: 4, Runs: 1},
			{Day: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), PassRate: 75, Passed: 3, Total: 4, Runs: 1},
		},
		changes: make(chan struct{}, 1),
	}
}

func (d *stubDashboard) State() livestore.State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *stubDashboard) Stats() livestore.Stats {
	st := d.State()
	return livestore.Stats{Projects: len(st.Projects), Summary: trend.Summarize(st.Runs)}
}

func (d *stubDashboard) Trend() ([]trend.Point, error) {
	if len(d.points) < 2 {
		return nil, trend.ErrInsufficientData
	}
	return d.points, nil
}

func (d *stubDashboard) ProjectTrend(id string) ([]trend.Point, error) {
	if id != "checkout" {
		return nil, trend.ErrInsufficientData
	}
	return d.Trend()
}

func (d *stubDashboard) Project(id string) (model.Project, bool) {
	for _, p := range d.State().Projects {
		if p.ID == id {
			return p, true
		}
	}
	return model.Project{}, false
}

func (d *stubDashboard) ProjectRuns(id string) []model.TestRun {
	var out []model.TestRun
	for _, r := range d.State().Runs {
		if r.ProjectID == id {
			out = append(out, r)
		}
	}
	return out
}

func (d *stubDashboard) Run(projectID, runID string) (model.TestRun, bool) {
	for _, r := range d.ProjectRuns(projectID) {
		if r.ID == runID {
			return r, true
		}
	}
	return model.TestRun{}, false
}

func (d *stubDashboard) RecentRuns(n int) []model.TestRun {
	runs := d.State().Runs
	if n > 0 && len(runs) > n {
		runs = runs[:n]
	}
	return runs
}

func (d *stubDashboard) ProjectSummaries() []livestore.ProjectSummary {
	var out []livestore.ProjectSummary
	for _, p := range d.State().Projects {
		ps := livestore.ProjectSummary{Project: p}
		runs := d.ProjectRuns(p.ID)
		ps.Runs = len(runs)
		if len(runs) > 0 {
			ps.Latest = &runs[0]
			ps.PassRate = runs[0].Summary.PassRate()
		}
		out = append(out, ps)
	}
	return out
}

func (d *stubDashboard) Retry() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.retries++
	d.state.Error = ""
	d.state.Loading = true
}

func (d *stubDashboard) ToggleTheme() (livestore.Theme, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state.Theme = d.state.Theme.Toggle()
	return d.state.Theme, d.themeErr
}

func (d *stubDashboard) SetBrowserOnline(online bool) {
	d.mu.Lock()
	d.state.BrowserOnline = online
	d.mu.Unlock()
	d.notify()
}

func (d *stubDashboard) Changes() (<-chan struct{}, func()) {
	return d.changes, func() {}
}

func (d *stubDashboard) notify() {
	select {
	case d.changes <- struct{}{}:
	default:
	}
}

func (d *stubDashboard) set(fn func(*livestore.State)) {
	d.mu.Lock()
	fn(&d.state)
	d.mu.Unlock()
}

func newTestServer(t *testing.T, dash Dashboard) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(":0", dash, logger).Handler()
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, r))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestAPI_Health(t *testing.T) {
	h := newTestServer(t, newStub())

	rec := do(t, h, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[HealthResponse](t, rec)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, version, resp.Version)
	assert.True(t, resp.Connected)

	_, err := uuid.Parse(rec.Header().Get(RequestIDHeader))
	assert.NoError(t, err, "response carries a request ID")
}

func TestAPI_RequestIDIsPropagated(t *testing.T) {
	h := newTestServer(t, newStub())
	id := uuid.NewString()

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set(RequestIDHeader, id)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, id, rec.Header().Get(RequestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set(RequestIDHeader, "<script>")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.NotEqual(t, "<script>", rec.Header().Get(RequestIDHeader))
}

func TestAPI_AccessLogCarriesRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	h := New(":0", newStub(), logger).Handler()

	id := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	req.Header.Set(RequestIDHeader, id)
	h.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "http request", entry["msg"])
	assert.Equal(t, id, entry["request_id"])
	assert.Equal(t, "GET /api/stats", entry["route"])
}

func TestAPI_State(t *testing.T) {
	dash := newStub()
	h := newTestServer(t, dash)

	resp := decode[StateResponse](t, do(t, h, http.MethodGet, "/api/state", ""))
	assert.Equal(t, "none", resp.Banner)
	assert.Empty(t, resp.BannerMessage)
	assert.Equal(t, 2, resp.Projects)
	assert.Equal(t, livestore.ThemeLight, resp.Theme)

	dash.set(func(st *livestore.State) {
		st.Connected = false
		st.BrowserOnline = false
	})
	resp = decode[StateResponse](t, do(t, h, http.MethodGet, "/api/state", ""))
	assert.Equal(t, "offline", resp.Banner, "offline wins over reconnecting")
	assert.NotEmpty(t, resp.BannerMessage)
}

func TestAPI_ProjectsAndRuns(t *testing.T) {
	h := newTestServer(t, newStub())

	rows := decode[[]livestore.ProjectSummary](t, do(t, h, http.MethodGet, "/api/projects", ""))
	require.Len(t, rows, 2)
	assert.Equal(t, 2, rows[0].Runs)
	assert.Equal(t, 75, rows[0].PassRate)

	project := decode[ProjectResponse](t, do(t, h, http.MethodGet, "/api/projects/checkout", ""))
	assert.Equal(t, "Checkout", project.Name)
	assert.Equal(t, 2, project.Stats.Runs)
	assert.Equal(t, 88, project.Stats.PassRate)

	runs := decode[[]model.TestRun](t, do(t, h, http.MethodGet, "/api/projects/checkout/runs?limit=1", ""))
	require.Len(t, runs, 1)
	assert.Equal(t, "r2", runs[0].ID)

	run := decode[model.TestRun](t, do(t, h, http.MethodGet, "/api/projects/checkout/runs/r1", ""))
	assert.Equal(t, model.StatusPassed, run.Status)

	all := decode[[]model.TestRun](t, do(t, h, http.MethodGet, "/api/runs", ""))
	assert.Len(t, all, 2)

	rec := do(t, h, http.MethodGet, "/api/projects/search/runs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	stats := decode[livestore.Stats](t, do(t, h, http.MethodGet, "/api/stats", ""))
	assert.Equal(t, 2, stats.Projects)
	assert.Equal(t, 8, stats.Scenarios)
}

func TestAPI_NotFound(t *testing.T) {
	h := newTestServer(t, newStub())

	tests := []string{
		"/api/projects/missing",
		"/api/projects/missing/runs",
		"/api/projects/checkout/runs/missing",
		"/api/projects/search/runs/r1",
		"/api/trend?project=missing",
		"/api/unknown",
	}
	for _, target := range tests {
		t.Run(target, func(t *testing.T) {
			rec := do(t, h, http.MethodGet, target, "")
			assert.Equal(t, http.StatusNotFound, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		})
	}
}

func TestAPI_Trend(t *testing.T) {
	dash := newStub()
	h := newTestServer(t, dash)

	resp := decode[TrendResponse](t, do(t, h, http.MethodGet, "/api/trend", ""))
	assert.False(t, resp.InsufficientData)
	require.Len(t, resp.Points, 2)
	assert.Equal(t, 75, resp.Points[1].PassRate)

	resp = decode[TrendResponse](t, do(t, h, http.MethodGet, "/api/trend?project=search", ""))
	assert.True(t, resp.InsufficientData)
	assert.NotNil(t, resp.Points)
	assert.Empty(t, resp.Points)
	assert.Equal(t, "search", resp.Project)
}

func TestAPI_Retry(t *testing.T) {
	dash := newStub()
	dash.set(func(st *livestore.State) { st.Error = "Failed to load runs: unavailable" })
	h := newTestServer(t, dash)

	rec := do(t, h, http.MethodPost, "/api/retry", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	resp := decode[StateResponse](t, rec)
	assert.Empty(t, resp.Error)
	assert.True(t, resp.Loading)
	assert.Equal(t, 1, dash.retries)

	rec = do(t, h, http.MethodGet, "/api/retry", "")
	assert.NotEqual(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 1, dash.retries, "retry requires POST")
}

func TestAPI_ToggleTheme(t *testing.T) {
	dash := newStub()
	h := newTestServer(t, dash)

	resp := decode[ThemeResponse](t, do(t, h, http.MethodPost, "/api/theme/toggle", ""))
	assert.Equal(t, livestore.ThemeDark, resp.Theme)
	assert.True(t, resp.Persisted)

	dash.themeErr = errors.New("persist theme: disk full")
	resp = decode[ThemeResponse](t, do(t, h, http.MethodPost, "/api/theme/toggle", ""))
	assert.Equal(t, livestore.ThemeLight, resp.Theme)
	assert.False(t, resp.Persisted)
	assert.Contains(t, resp.Error, "disk full")
}

func TestAPI_Connectivity(t *testing.T) {
	dash := newStub()
	h := newTestServer(t, dash)

	rec := do(t, h, http.MethodPost, "/api/connectivity", `{"online": false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "offline", decode[StateResponse](t, rec).Banner)
	assert.False(t, dash.State().BrowserOnline)

	for _, body := range []string{``, `{}`, `{"online": "yes"}`, `{"online": true, "extra": 1}`} {
		rec := do(t, h, http.MethodPost, "/api/connectivity", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body %q", body)
	}
	assert.False(t, dash.State().BrowserOnline)
}

func TestUI_Dashboard(t *testing.T) {
	h := newTestServer(t, newStub())

	rec := do(t, h, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.Contains(t, body, `class="theme-light"`)
	assert.Contains(t, body, `href="/project/checkout"`)
	assert.Contains(t, body, `<svg class="trend"`)
	assert.Contains(t, body, "2024-03-15: 75% (3/4 scenarios, 1 runs)")
	assert.NotContains(t, body, `role="status"`, "no banner while healthy")
	assert.NotContains(t, body, `id="retry"`)
}

func TestUI_DashboardStates(t *testing.T) {
	dash := newStub()
	dash.points = nil
	dash.set(func(st *livestore.State) {
		st.Theme = livestore.ThemeDark
		st.Connected = false
		st.Error = "Failed to load runs: permission denied"
	})
	h := newTestServer(t, dash)

	body := do(t, h, http.MethodGet, "/", "").Body.String()
	assert.Contains(t, body, `class="theme-dark"`)
	assert.Contains(t, body, "banner-reconnecting")
	assert.Contains(t, body, "Failed to load runs: permission denied")
	assert.Contains(t, body, `id="retry"`)
	assert.Contains(t, body, "Not enough data for a trend yet")
	assert.Contains(t, body, "Checkout", "data kept alongside the error")
}

func TestUI_ProjectAndRun(t *testing.T) {
	h := newTestServer(t, newStub())

	rec := do(t, h, http.MethodGet, "/project/checkout", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Payment flows")
	assert.Contains(t, rec.Body.String(), `href="/project/checkout/run/r2"`)

	rec = do(t, h, http.MethodGet, "/project/checkout/run/r2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Pay by card")
	assert.Contains(t, body, "Declined card")
	assert.Contains(t, body, "I see &lt;an error&gt;")
	assert.Contains(t, body, "expected banner")
}

func TestUI_NotFound(t *testing.T) {
	h := newTestServer(t, newStub())

	tests := []struct {
		target string
		want   string
	}{
		{"/nope", "does not exist"},
		{"/project/missing", "There is no project"},
		{"/project/checkout/run/missing", "has no run"},
		{"/project/search/run/r1", "has no run"},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rec := do(t, h, http.MethodGet, tt.target, "")
			assert.Equal(t, http.StatusNotFound, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.want)
			assert.Contains(t, rec.Body.String(), `<a href="/">Back to the dashboard</a>`)
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestServer(t, newStub())

	do(t, h, http.MethodGet, "/api/state", "")
	rec := do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "bddash_runs 2")
	assert.Contains(t, body, `route="GET /api/state"`)
}

func TestEvents(t *testing.T) {
	dash := newStub()
	srv := httptest.NewServer(newTestServer(t, dash))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := make(chan StateResponse, 4)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			data, ok := strings.CutPrefix(scanner.Text(), "data: ")
			if !ok {
				continue
			}
			var st StateResponse
			if json.Unmarshal([]byte(data), &st) == nil {
				events <- st
			}
		}
		close(events)
	}()

	next := func() StateResponse {
		t.Helper()
		select {
		case st, ok := <-events:
			require.True(t, ok, "stream closed")
			return st
		case <-time.After(5 * time.Second):
			t.Fatal("no event received")
			return StateResponse{}
		}
	}

	assert.Equal(t, "none", next().Banner, "current state is sent on connect")

	dash.SetBrowserOnline(false)
	assert.Equal(t, "offline", next().Banner)
}
