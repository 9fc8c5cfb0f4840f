// Package connectivity tracks whether the remote catalog is reachable.
package connectivity

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/productkeeper/internal/logging"
)

type Status string

const (
	StatusUnknown Status = "unknown"
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// Monitor probes the remote side on a fixed interval and notifies
// subscribers only when the status actually changes.
type Monitor struct {
	pinger   Pinger
	interval time.Duration
	logger   logging.Logger

	mu     sync.RWMutex
	status Status
	subs   []func(prev, next Status)
}

func NewMonitor(p Pinger, interval time.Duration, logger logging.Logger) *Monitor {
	return &Monitor{
		pinger:   p,
		interval: interval,
		logger:   logger.With("module", "connectivity"),
		status:   StatusUnknown,
	}
}

func (m *Monitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Monitor) Online() bool {
	return m.Status() == StatusOnline
}

// OnChange registers fn to be called after every transition. Callbacks run
// on the goroutine that observed the change and must not block.
func (m *Monitor) OnChange(fn func(prev, next Status)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = append(m.subs, fn)
}

// Check probes once and records the outcome.
func (m *Monitor) Check(ctx context.Context) Status {
	if err := m.pinger.Ping(ctx); err != nil {
		m.logger.Debug(ctx, "ping failed", "error", err)
		m.Set(ctx, StatusOffline)
		return StatusOffline
	}
	m.Set(ctx, StatusOnline)
	return StatusOnline
}

// Set records s, which lets other components report what they observed
// without waiting for the next probe.
func (m *Monitor) Set(ctx context.Context, s Status) {
	m.mu.Lock()
	prev := m.status
	if prev == s {
		m.mu.Unlock()
		return
	}
	m.status = s
	subs := append([]func(prev, next Status){}, m.subs...)
	m.mu.Unlock()

	m.logger.Info(ctx, "connectivity changed", "from", string(prev), "to", string(s))
	for _, fn := range subs {
		fn(prev, s)
	}
}

// Run checks immediately and then on every tick until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	m.Check(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Check(ctx)
		case <-ctx.Done():
			return
		}
	}
}
