// ABOUTME: Tests for the reachability monitor and probe loop.
// ABOUTME: Uses a scripted pinger so no network is touched.
package netstate

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitorNotifiesOnChangeOnly(t *testing.T) {
	m := NewMonitor(false)
	var got []bool
	unsub := m.Subscribe(func(online bool) { got = append(got, online) })

	m.SetOnline(true)
	m.SetOnline(true)
	m.SetOnline(false)
	assert.Equal(t, []bool{true, false}, got)

	unsub()
	m.SetOnline(true)
	assert.Len(t, got, 2)
	assert.True(t, m.IsOnline())
}

func TestSubscriberMayReadState(t *testing.T) {
	m := NewMonitor(false)
	var seen bool
	m.Subscribe(func(bool) { seen = m.IsOnline() })
	m.SetOnline(true)
	assert.True(t, seen)
}

func TestForcedStaysOffline(t *testing.T) {
	m := Forced()
	m.SetOnline(true)
	assert.False(t, m.IsOnline())
}

type pinger struct {
	fail atomic.Bool
	n    atomic.Int32
}

func (p *pinger) Ping(context.Context) error {
	p.n.Add(1)
	if p.fail.Load() {
		return errors.New("connection refused")
	}
	return nil
}

func TestProbeTracksReachability(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := NewMonitor(false)
	p := &pinger{}
	done := make(chan struct{})
	go func() {
		Probe(ctx, m, p, 5*time.Millisecond, nil)
		close(done)
	}()

	require.Eventually(t, m.IsOnline, time.Second, time.Millisecond)
	p.fail.Store(true)
	require.Eventually(t, func() bool { return !m.IsOnline() }, time.Second, time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("probe did not stop")
	}
	assert.GreaterOrEqual(t, p.n.Load(), int32(2))
}
