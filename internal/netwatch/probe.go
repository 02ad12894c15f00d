// Package netwatch checks whether the host has working network access.
package netwatch

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// DefaultAddr is dialed when no probe address is configured.
	DefaultAddr = "1.1.1.1:53"
	// DefaultTimeout bounds a single dial.
	DefaultTimeout = 3 * time.Second
)

// DialFunc opens a connection; net.Dialer.DialContext satisfies it.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// Reporter receives probe results.
type Reporter interface {
	SetBrowserOnline(online bool)
}

// Probe dials a TCP address and reports whether it succeeded.
type Probe struct {
	addr    string
	timeout time.Duration
	dial    DialFunc
	report  Reporter
	logger  *slog.Logger
	latency prometheus.Observer
	failed  func()

	mu     sync.Mutex
	last   *bool
	checks int64
}

// Option configures a Probe.
type Option func(*Probe)

// WithDialer replaces the network dialer.
func WithDialer(dial DialFunc) Option {
	return func(p *Probe) {
		if dial != nil {
			p.dial = dial
		}
	}
}

// WithMetrics records each dial's latency on obs and calls failed when the
// address is unreachable. Either may be nil.
func WithMetrics(obs prometheus.Observer, failed func()) Option {
	return func(p *Probe) {
		p.latency = obs
		p.failed = failed
	}
}

// NewProbe creates a probe that reports to r.
func NewProbe(addr string, timeout time.Duration, r Reporter, logger *slog.Logger, opts ...Option) *Probe {
	if addr == "" {
		addr = DefaultAddr
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	var d net.Dialer
	p := &Probe{
		addr:    addr,
		timeout: timeout,
		dial:    d.DialContext,
		report:  r,
		logger:  logger.With("component", "netwatch", "addr", addr),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Check dials once, reports the outcome and returns the dial error.
// A cancelled ctx is not reported as offline.
func (p *Probe) Check(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var timer *prometheus.Timer
	if p.latency != nil {
		timer = prometheus.NewTimer(p.latency)
	}
	conn, err := p.dial(dialCtx, "tcp", p.addr)
	if timer != nil {
		timer.ObserveDuration()
	}
	if err == nil {
		conn.Close()
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	online := err == nil
	p.mu.Lock()
	changed := p.last == nil || *p.last != online
	p.last = &online
	p.checks++
	p.mu.Unlock()

	if changed {
		p.logger.Info("network probe result changed", "online", online)
	}
	if p.report != nil {
		p.report.SetBrowserOnline(online)
	}
	if err != nil {
		if p.failed != nil {
			p.failed()
		}
		return fmt.Errorf("probe %s: %w", p.addr, err)
	}
	return nil
}

// Online returns the last result; ok is false before the first check.
func (p *Probe) Online() (online, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil {
		return false, false
	}
	return *p.last, true
}

// Checks returns how many probes have completed.
func (p *Probe) Checks() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.checks
}
