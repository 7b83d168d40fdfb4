// ABOUTME: Shared fixtures for sync tests: devices, a scriptable remote and a fake network.
// ABOUTME: The relational remote stands in for the shared backend so two devices can sync.
package sync

import (
	"context"
	"path/filepath"
	gosync "sync"
	"testing"
	"time"

	"github.com/harperreed/periodize/internal/models"
	"github.com/harperreed/periodize/internal/remote"
	"github.com/harperreed/periodize/internal/storage"
	"github.com/stretchr/testify/require"
)

const testUser = "user-1"

type clock struct {
	mu gosync.Mutex
	t  time.Time
}

func newClock() *clock {
	return &clock{t: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// fakeNet is a Reachability whose state the test flips.
type fakeNet struct {
	mu        gosync.Mutex
	online    bool
	listeners map[int]func(bool)
	next      int
}

func newFakeNet(online bool) *fakeNet {
	return &fakeNet{online: online, listeners: map[int]func(bool){}}
}

func (n *fakeNet) IsOnline() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.online
}

func (n *fakeNet) Subscribe(fn func(bool)) func() {
	n.mu.Lock()
	defer n.mu.Unlock()
	id := n.next
	n.next++
	n.listeners[id] = fn
	return func() {
		n.mu.Lock()
		delete(n.listeners, id)
		n.mu.Unlock()
	}
}

func (n *fakeNet) Set(online bool) {
	n.mu.Lock()
	n.online = online
	fns := make([]func(bool), 0, len(n.listeners))
	for _, fn := range n.listeners {
		fns = append(fns, fn)
	}
	n.mu.Unlock()
	for _, fn := range fns {
		fn(online)
	}
}

// scriptedRemote wraps a real remote and lets tests intercept calls.
type scriptedRemote struct {
	remote.Remote

	mu      gosync.Mutex
	upserts int
	fetches int
	// onUpsert runs before the wrapped Upsert; a non-nil error replaces it.
	onUpsert func(rec models.Record) error
}

func (r *scriptedRemote) Upsert(ctx context.Context, rec models.Record) error {
	r.mu.Lock()
	r.upserts++
	hook := r.onUpsert
	r.mu.Unlock()
	if hook != nil {
		if err := hook(rec); err != nil {
			return err
		}
	}
	return r.Remote.Upsert(ctx, rec)
}

func (r *scriptedRemote) FetchSince(ctx context.Context, kind models.Kind, userID string, since int64) ([]remote.Change, error) {
	r.mu.Lock()
	r.fetches++
	r.mu.Unlock()
	return r.Remote.FetchSince(ctx, kind, userID, since)
}

func (r *scriptedRemote) Upserts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.upserts
}

func openRemote(t *testing.T) *remote.SQLRemote {
	t.Helper()
	r, err := remote.OpenSQL(filepath.Join(t.TempDir(), "remote.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

// device is one local store plus its engine.
type device struct {
	store  *storage.Store
	engine *Engine
	net    *fakeNet
	clock  *clock
}

func newDevice(t *testing.T, rem remote.Remote, clk *clock) *device {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "periodize.db"))
	require.NoError(t, err)
	store := storage.NewStore(db, storage.WithClock(clk.Now))
	t.Cleanup(func() { _ = store.Close() })

	net := newFakeNet(true)
	engine := NewEngine(store, rem, StaticIdentity(testUser), net, WithClock(clk.Now))
	return &device{store: store, engine: engine, net: net, clock: clk}
}

func (d *device) sync(t *testing.T) *Report {
	t.Helper()
	rep, err := d.engine.Sync(context.Background())
	require.NoError(t, err)
	require.True(t, rep.Ran(), "sync skipped: %s", rep.Skipped)
	return rep
}

type tree struct {
	plan     *models.Periodization
	session  *models.Session
	exercise *models.Exercise
	set      *models.Set
}

func seedTree(t *testing.T, s *storage.Store) tree {
	t.Helper()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p := models.NewPeriodization(testUser, "Strength block", start).WithEndDate(start.AddDate(0, 3, 0))
	require.NoError(t, s.CreatePeriodization(p))
	sess := models.NewSession(testUser, p.ID, "Day 1", start.AddDate(0, 0, 1))
	require.NoError(t, s.CreateSession(sess))
	ex := models.NewExercise(testUser, sess.ID, "Back squat", 0).WithMuscleGroup("legs")
	require.NoError(t, s.CreateExercise(ex))
	set := models.NewSet(testUser, ex.ID, 0, 5, 100).WithRPE(8)
	require.NoError(t, s.CreateSet(set))
	return tree{plan: p, session: sess, exercise: ex, set: set}
}
