// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "bddash"

// Snapshot is the store state sampled at scrape time.
type Snapshot struct {
	Projects      int
	Runs          int
	Loading       bool
	Connected     bool
	BrowserOnline bool
	HasError      bool
}

// Metrics owns a private registry so tests can create as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	requests      *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	probeLatency  prometheus.Gauge
	probeFailures prometheus.Counter
	retries       prometheus.Counter
}

// New registers the process, Go and dashboard collectors. sample is called
// on every scrape and may be nil.
func New(sample func() Snapshot) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		probeLatency: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connectivity_probe_latency_seconds",
			Help:      "Duration of the last connectivity probe.",
		}),
		probeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connectivity_probe_failures_total",
			Help:      "Connectivity probes that could not reach the probe address.",
		}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subscription_retries_total",
			Help:      "Manual and automatic subscription retries.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.duration,
		m.probeLatency,
		m.probeFailures,
		m.retries,
	)

	if sample != nil {
		gauge := func(name, help string, value func(Snapshot) float64) prometheus.GaugeFunc {
			return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      name,
				Help:      help,
			}, func() float64 { return value(sample()) })
		}
		m.registry.MustRegister(
			gauge("projects", "Projects currently loaded.", func(s Snapshot) float64 { return float64(s.Projects) }),
			gauge("runs", "Test runs currently loaded.", func(s Snapshot) float64 { return float64(s.Runs) }),
			gauge("loading", "1 while waiting for the first snapshots.", func(s Snapshot) float64 { return boolValue(s.Loading) }),
			gauge("connected", "1 while the subscription channel is healthy.", func(s Snapshot) float64 { return boolValue(s.Connected) }),
			gauge("online", "1 while the network is reachable.", func(s Snapshot) float64 { return boolValue(s.BrowserOnline) }),
			gauge("error", "1 while a subscription error is shown.", func(s Snapshot) float64 { return boolValue(s.HasError) }),
		)
	}

	return m
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveRequest records one finished HTTP request.
func (m *Metrics) ObserveRequest(route, method string, code int, elapsed time.Duration) {
	m.requests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	m.duration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// ProbeObserver receives the latency of each connectivity probe.
func (m *Metrics) ProbeObserver() prometheus.Observer {
	return prometheus.ObserverFunc(m.probeLatency.Set)
}

// ProbeFailed counts an unreachable probe.
func (m *Metrics) ProbeFailed() {
	m.probeFailures.Inc()
}

// Retried counts a subscription retry.
func (m *Metrics) Retried() {
	m.retries.Inc()
}

// Gather exposes the registry for tests.
func (m *Metrics) Gather() (map[string]float64, error) {
	families, err := m.registry.Gather()
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64)
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			var v float64
			switch {
			case metric.GetGauge() != nil:
				v = metric.GetGauge().GetValue()
			case metric.GetCounter() != nil:
				v = metric.GetCounter().GetValue()
			default:
				continue
			}
			out[mf.GetName()] += v
		}
	}
	return out, nil
}
