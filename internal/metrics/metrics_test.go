package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Gauges(t *testing.T) {
	snap := Snapshot{Projects: 3, Runs: 42, Connected: true}
	m := New(func() Snapshot { return snap })

	values, err := m.Gather()
	require.NoError(t, err)
	assert.Equal(t, 3.0, values["bddash_projects"])
	assert.Equal(t, 42.0, values["bddash_runs"])
	assert.Equal(t, 1.0, values["bddash_connected"])
	assert.Equal(t, 0.0, values["bddash_online"])

	snap.BrowserOnline = true
	values, err = m.Gather()
	require.NoError(t, err)
	assert.Equal(t, 1.0, values["bddash_online"], "sampled at scrape time")
}

func TestMetrics_Counters(t *testing.T) {
	m := New(nil)

	m.ObserveRequest("GET /api/state", "GET", 200, 5*time.Millisecond)
	m.ObserveRequest("GET /api/state", "GET", 200, 5*time.Millisecond)
	m.Retried()
	m.ProbeFailed()

	timer := prometheus.NewTimer(m.ProbeObserver())
	timer.ObserveDuration()

	values, err := m.Gather()
	require.NoError(t, err)
	assert.Equal(t, 2.0, values["bddash_http_requests_total"])
	assert.Equal(t, 1.0, values["bddash_subscription_retries_total"])
	assert.Equal(t, 1.0, values["bddash_connectivity_probe_failures_total"])
	_, ok := values["bddash_projects"]
	assert.False(t, ok, "no store gauges without a sampler")
}

func TestMetrics_Handler(t *testing.T) {
	m := New(func() Snapshot { return Snapshot{Runs: 7} })
	m.ObserveRequest("GET /", "GET", 200, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	out := string(body)
	assert.True(t, strings.Contains(out, "bddash_runs 7"), out)
	assert.Contains(t, out, `bddash_http_requests_total{code="200",method="GET",route="GET /"} 1`)
	assert.Contains(t, out, "go_goroutines")
}
