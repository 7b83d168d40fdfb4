// ABOUTME: Network reachability provider: an online flag with change subscriptions.
// ABOUTME: Probe keeps the flag current by pinging the remote on an interval.
package netstate

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Monitor holds the current reachability and notifies subscribers on change.
// The zero value is not usable; call NewMonitor.
type Monitor struct {
	mu        sync.Mutex
	online    bool
	forced    bool
	listeners map[int]func(bool)
	next      int
}

// NewMonitor returns a Monitor with the given initial state.
func NewMonitor(online bool) *Monitor {
	return &Monitor{online: online, listeners: map[int]func(bool){}}
}

// Forced returns a Monitor pinned offline; SetOnline is ignored.
func Forced() *Monitor {
	m := NewMonitor(false)
	m.forced = true
	return m
}

// IsOnline reports the last known reachability.
func (m *Monitor) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// SetOnline updates the state. Subscribers are called outside the lock and
// only when the value changes.
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()
	if m.forced || m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	fns := make([]func(bool), 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(online)
	}
}

// Subscribe registers fn for state changes and returns its cancel func.
func (m *Monitor) Subscribe(fn func(online bool)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.next
	m.next++
	m.listeners[id] = fn
	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

// Pinger is anything that can cheaply test reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

const (
	// DefaultProbeInterval is the time between probes.
	DefaultProbeInterval = 30 * time.Second
	// ProbeTimeout bounds a single probe.
	ProbeTimeout = 5 * time.Second
)

// Probe pings target every interval and feeds the result into m until ctx
// is done. It probes once immediately.
func Probe(ctx context.Context, m *Monitor, target Pinger, interval time.Duration, logger *log.Logger) {
	if interval <= 0 {
		interval = DefaultProbeInterval
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	check := func() {
		pctx, cancel := context.WithTimeout(ctx, ProbeTimeout)
		err := target.Ping(pctx)
		cancel()
		if ctx.Err() != nil {
			return
		}
		was := m.IsOnline()
		m.SetOnline(err == nil)
		if was != m.IsOnline() {
			if err != nil {
				logger.Warn("remote unreachable", "err", err)
			} else {
				logger.Info("remote reachable")
			}
		}
	}

	check()
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			check()
		}
	}
}
