// ABOUTME: Sync engine tests against a real relational remote shared by two devices.
// ABOUTME: Covers guards, push/pull, merge rules, deferral, partial failure and abort paths.
package sync

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"testing"
	"time"

	"github.com/harperreed/periodize/internal/models"
	"github.com/harperreed/periodize/internal/remote"
	"github.com/harperreed/periodize/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOfflineCreateSyncsWhenOnline(t *testing.T) {
	ctx := context.Background()
	rem := openRemote(t)
	dev := newDevice(t, rem, newClock())

	dev.net.Set(false)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p := models.NewPeriodization(testUser, "P1", start).WithEndDate(time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, dev.store.CreatePeriodization(p))

	rep, err := dev.engine.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, SkipOffline, rep.Skipped)
	assert.Equal(t, StateIdle, dev.engine.State())

	got, err := dev.store.GetPeriodization(p.ID)
	require.NoError(t, err)
	assert.True(t, got.NeedsSync)
	assert.Nil(t, got.SyncedAt)

	live, err := rem.ListLive(ctx, models.KindPeriodization, testUser)
	require.NoError(t, err)
	assert.Empty(t, live)

	dev.net.Set(true)
	rep = dev.sync(t)
	assert.Equal(t, 1, rep.Pushed)

	live, err = rem.ListLive(ctx, models.KindPeriodization, testUser)
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, p.ID, live[0].Base().ID)

	got, err = dev.store.GetPeriodization(p.ID)
	require.NoError(t, err)
	assert.False(t, got.NeedsSync)
	require.NotNil(t, got.SyncedAt)
	assert.False(t, got.SyncedAt.Before(got.UpdatedAt))
}

func TestOfflineDeleteReachesRemote(t *testing.T) {
	ctx := context.Background()
	rem := openRemote(t)
	dev := newDevice(t, rem, newClock())
	tr := seedTree(t, dev.store)
	dev.sync(t)

	dev.net.Set(false)
	dev.clock.Advance(time.Minute)
	require.NoError(t, dev.store.DeleteSession(tr.session.ID))
	_, err := dev.store.GetSession(tr.session.ID)
	require.ErrorIs(t, err, storage.ErrNotFound)

	dev.net.Set(true)
	rep := dev.sync(t)
	// Session, exercise and set were tombstoned together.
	assert.Equal(t, 3, rep.Deleted)

	rows, err := rem.FetchSince(ctx, models.KindSession, testUser, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.NotNil(t, rows[0].Record.Base().DeletedAt)

	live, err := rem.ListLive(ctx, models.KindSession, testUser)
	require.NoError(t, err)
	assert.Empty(t, live)

	_, err = dev.store.GetSession(tr.session.ID)
	require.ErrorIs(t, err, storage.ErrNotFound)
	got, err := dev.store.GetSessionIncludingDeleted(tr.session.ID)
	require.NoError(t, err)
	assert.False(t, got.NeedsSync)
}

func TestRoundTripToSecondDevice(t *testing.T) {
	rem := openRemote(t)
	a := newDevice(t, rem, newClock())
	b := newDevice(t, rem, newClock())

	tr := seedTree(t, a.store)
	require.NoError(t, a.store.UpdateSet(tr.set.ID, func(s *models.Set) {
		technique := models.TechniqueDropSet
		s.Technique = &technique
		s.DropSets = []models.DropSegment{{Weight: 80, Repetitions: 6}, {Weight: 60, Repetitions: 8}}
	}))
	a.sync(t)

	rep := b.sync(t)
	assert.Equal(t, 4, rep.Inserted)

	wantSet, err := a.store.GetSet(tr.set.ID)
	require.NoError(t, err)
	gotSet, err := b.store.GetSet(tr.set.ID)
	require.NoError(t, err)
	wantSet.SyncedAt, gotSet.SyncedAt = nil, nil
	assert.Equal(t, wantSet, gotSet)

	wantPlan, err := a.store.GetPeriodization(tr.plan.ID)
	require.NoError(t, err)
	gotPlan, err := b.store.GetPeriodization(tr.plan.ID)
	require.NoError(t, err)
	wantPlan.SyncedAt, gotPlan.SyncedAt = nil, nil
	assert.Equal(t, wantPlan, gotPlan)

	sessions, err := b.store.ListSessions(tr.plan.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.False(t, sessions[0].NeedsSync)
}

func TestRemoteDeletePropagates(t *testing.T) {
	rem := openRemote(t)
	a := newDevice(t, rem, newClock())
	bClock := newClock()
	b := newDevice(t, rem, bClock)

	tr := seedTree(t, a.store)
	a.sync(t)
	b.sync(t)

	bClock.Advance(time.Hour)
	require.NoError(t, b.store.DeleteExercise(tr.exercise.ID))
	b.sync(t)

	rep := a.sync(t)
	assert.Equal(t, 2, rep.Updated)
	_, err := a.store.GetExercise(tr.exercise.ID)
	require.ErrorIs(t, err, storage.ErrNotFound)
	_, err = a.store.GetSet(tr.set.ID)
	require.ErrorIs(t, err, storage.ErrNotFound)
	sessions, err := a.store.ListSessions(tr.plan.ID)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
}

func TestLateUploadReachesDeviceThatSyncedAhead(t *testing.T) {
	rem := openRemote(t)
	aClock := newClock()
	bClock := newClock()
	a := newDevice(t, rem, aClock)
	b := newDevice(t, rem, bClock)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	// B edits offline at 09:30 and stays offline.
	b.net.Set(false)
	bClock.Advance(30 * time.Minute)
	fromB := models.NewPeriodization(testUser, "Written offline", start)
	require.NoError(t, b.store.CreatePeriodization(fromB))

	// A edits at 10:00 and syncs, moving its cursor past B's edit time.
	aClock.Advance(time.Hour)
	fromA := models.NewPeriodization(testUser, "Written online", start)
	require.NoError(t, a.store.CreatePeriodization(fromA))
	a.sync(t)

	// B reconnects at 11:00 and uploads an edit stamped 09:30.
	bClock.Advance(90 * time.Minute)
	b.net.Set(true)
	rep := b.sync(t)
	assert.Equal(t, 1, rep.Pushed)
	assert.Equal(t, 1, rep.Inserted)

	rep = a.sync(t)
	assert.Equal(t, 1, rep.Fetched)
	assert.Equal(t, 1, rep.Inserted)
	got, err := a.store.GetPeriodization(fromB.ID)
	require.NoError(t, err)
	assert.Equal(t, "Written offline", got.Name)

	// A later delete from the lagging device arrives too.
	b.net.Set(false)
	bClock.Advance(time.Minute)
	require.NoError(t, b.store.DeletePeriodization(fromB.ID))
	b.net.Set(true)
	b.sync(t)

	rep = a.sync(t)
	assert.Equal(t, 1, rep.Updated)
	_, err = a.store.GetPeriodization(fromB.ID)
	require.ErrorIs(t, err, storage.ErrNotFound)

	plansA, err := a.store.ListPeriodizations(testUser)
	require.NoError(t, err)
	plansB, err := b.store.ListPeriodizations(testUser)
	require.NoError(t, err)
	require.Len(t, plansA, 1)
	require.Len(t, plansB, 1)
	assert.Equal(t, fromA.ID, plansA[0].ID)
	assert.Equal(t, fromA.ID, plansB[0].ID)
}

func TestMergeDirtyLocalWins(t *testing.T) {
	rem := openRemote(t)
	dev := newDevice(t, rem, newClock())
	tr := seedTree(t, dev.store)
	dev.sync(t)

	synced, err := dev.store.GetSet(tr.set.ID)
	require.NoError(t, err)

	dev.clock.Advance(time.Minute)
	require.NoError(t, dev.store.UpdateSet(tr.set.ID, func(s *models.Set) { s.Weight = 120 }))

	stale := *synced
	stale.Weight = 100
	stale.UpdatedAt = synced.UpdatedAt.Add(time.Second)
	rep := &Report{}
	require.NoError(t, dev.engine.merge(&stale, rep))
	assert.Equal(t, 1, rep.LocalWins)

	got, err := dev.store.GetSet(tr.set.ID)
	require.NoError(t, err)
	assert.Equal(t, 120.0, got.Weight)
	assert.True(t, got.NeedsSync)

	// A newer remote edit does not override a dirty record either.
	newer := *synced
	newer.Weight = 90
	newer.UpdatedAt = got.UpdatedAt.Add(time.Hour)
	require.NoError(t, dev.engine.merge(&newer, rep))
	got, err = dev.store.GetSet(tr.set.ID)
	require.NoError(t, err)
	assert.Equal(t, 120.0, got.Weight)

	dev.sync(t)
	rows, err := rem.ListLive(context.Background(), models.KindSet, testUser)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 120.0, rows[0].(*models.Set).Weight)
}

func TestMergeCleanRemoteWins(t *testing.T) {
	rem := openRemote(t)
	dev := newDevice(t, rem, newClock())
	tr := seedTree(t, dev.store)
	dev.sync(t)

	local, err := dev.store.GetSet(tr.set.ID)
	require.NoError(t, err)
	require.False(t, local.NeedsSync)

	incoming := *local
	incoming.Weight = 100
	incoming.Repetitions = 3
	incoming.UpdatedAt = local.UpdatedAt.Add(time.Minute)
	rep := &Report{}
	require.NoError(t, dev.engine.merge(&incoming, rep))
	assert.Equal(t, 1, rep.Updated)

	got, err := dev.store.GetSet(tr.set.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Repetitions)
	assert.False(t, got.NeedsSync)

	// Same or older remote versions are ignored.
	older := *local
	older.Repetitions = 12
	require.NoError(t, dev.engine.merge(&older, rep))
	got, err = dev.store.GetSet(tr.set.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Repetitions)
}

func TestMergeNewerTombstoneBeatsDirtyEdit(t *testing.T) {
	rem := openRemote(t)
	dev := newDevice(t, rem, newClock())
	tr := seedTree(t, dev.store)
	dev.sync(t)

	synced, err := dev.store.GetSet(tr.set.ID)
	require.NoError(t, err)
	dev.clock.Advance(time.Minute)
	require.NoError(t, dev.store.UpdateSet(tr.set.ID, func(s *models.Set) { s.Weight = 130 }))
	edited, err := dev.store.GetSet(tr.set.ID)
	require.NoError(t, err)

	older := *synced
	deletedAt := synced.UpdatedAt.Add(time.Second)
	older.DeletedAt = &deletedAt
	older.UpdatedAt = deletedAt
	rep := &Report{}
	require.NoError(t, dev.engine.merge(&older, rep))
	_, err = dev.store.GetSet(tr.set.ID)
	require.NoError(t, err, "older tombstone must not delete a newer local edit")

	newer := *synced
	deletedAt = edited.UpdatedAt.Add(time.Minute)
	newer.DeletedAt = &deletedAt
	newer.UpdatedAt = deletedAt
	require.NoError(t, dev.engine.merge(&newer, rep))
	_, err = dev.store.GetSet(tr.set.ID)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSingleFlight(t *testing.T) {
	ctx := context.Background()
	clk := newClock()
	rem := &scriptedRemote{Remote: openRemote(t)}
	dev := newDevice(t, rem, clk)
	seedTree(t, dev.store)

	started := make(chan struct{})
	release := make(chan struct{})
	var once gosync.Once
	rem.onUpsert = func(models.Record) error {
		once.Do(func() {
			close(started)
			<-release
		})
		return nil
	}

	done := make(chan *Report)
	go func() {
		rep, err := dev.engine.Sync(ctx)
		assert.NoError(t, err)
		done <- rep
	}()

	<-started
	second, err := dev.engine.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, SkipInFlight, second.Skipped)
	assert.False(t, second.Ran())

	close(release)
	first := <-done
	assert.True(t, first.Ran())
	assert.Equal(t, 4, rem.Upserts())
	assert.Equal(t, len(models.Kinds), rem.fetches)
}

func TestPushEditDuringFlightStaysDirty(t *testing.T) {
	clk := newClock()
	rem := &scriptedRemote{Remote: openRemote(t)}
	dev := newDevice(t, rem, clk)
	tr := seedTree(t, dev.store)

	var once gosync.Once
	rem.onUpsert = func(rec models.Record) error {
		if rec.Kind() == models.KindSet {
			once.Do(func() {
				require.NoError(t, dev.store.UpdateSet(tr.set.ID, func(s *models.Set) { s.Repetitions = 6 }))
			})
		}
		return nil
	}

	rep := dev.sync(t)
	assert.Equal(t, 1, rep.Requeued)

	got, err := dev.store.GetSet(tr.set.ID)
	require.NoError(t, err)
	assert.True(t, got.NeedsSync)
	assert.Equal(t, 6, got.Repetitions)

	pending, err := dev.store.PendingCount(testUser)
	require.NoError(t, err)
	assert.Equal(t, 1, pending)

	rem.onUpsert = nil
	dev.sync(t)
	got, err = dev.store.GetSet(tr.set.ID)
	require.NoError(t, err)
	assert.False(t, got.NeedsSync)
}

func TestPartialFailureContinues(t *testing.T) {
	rem := &scriptedRemote{Remote: openRemote(t)}
	dev := newDevice(t, rem, newClock())
	tr := seedTree(t, dev.store)
	second := models.NewSet(testUser, tr.exercise.ID, 1, 5, 105)
	require.NoError(t, dev.store.CreateSet(second))

	rem.onUpsert = func(rec models.Record) error {
		if rec.Base().ID == tr.set.ID {
			return &remote.ConflictError{Kind: models.KindSet, ID: tr.set.ID, Code: "23514", Message: "check violation"}
		}
		return nil
	}

	rep, err := dev.engine.Sync(context.Background())
	require.NoError(t, err)
	require.Len(t, rep.Failures, 1)
	assert.Equal(t, tr.set.ID, rep.Failures[0].ID)
	assert.Equal(t, "push", rep.Failures[0].Phase)
	assert.True(t, remote.IsConflict(rep.Err()))
	assert.Equal(t, 4, rep.Pushed)

	failed, err := dev.store.GetSet(tr.set.ID)
	require.NoError(t, err)
	assert.True(t, failed.NeedsSync)
	ok, err := dev.store.GetSet(second.ID)
	require.NoError(t, err)
	assert.False(t, ok.NeedsSync)
	assert.Equal(t, StateIdle, dev.engine.State())
}

func TestMissingRemoteParentIsDeferred(t *testing.T) {
	ctx := context.Background()
	clk := newClock()
	dev := newDevice(t, openRemote(t), clk)
	tr := seedTree(t, dev.store)
	dev.sync(t)

	// A fresh remote knows none of the clean parents.
	fresh := openRemote(t)
	engine := NewEngine(dev.store, fresh, StaticIdentity(testUser), dev.net, WithClock(clk.Now))
	clk.Advance(time.Minute)
	require.NoError(t, dev.store.UpdateSet(tr.set.ID, func(s *models.Set) { s.Weight = 110 }))

	rep, err := engine.Sync(ctx)
	require.NoError(t, err)
	require.NoError(t, rep.Err())
	assert.Equal(t, 1, rep.Deferred)

	for _, kind := range models.Kinds {
		live, err := fresh.ListLive(ctx, kind, testUser)
		require.NoError(t, err)
		assert.Len(t, live, 1, kind)
	}
	got, err := dev.store.GetSet(tr.set.ID)
	require.NoError(t, err)
	assert.False(t, got.NeedsSync)
}

func TestUnauthorizedEntersErrorState(t *testing.T) {
	ctx := context.Background()
	rem := &scriptedRemote{Remote: openRemote(t)}
	dev := newDevice(t, rem, newClock())
	seedTree(t, dev.store)

	rem.onUpsert = func(models.Record) error { return remote.ErrUnauthorized }
	_, err := dev.engine.Sync(ctx)
	require.ErrorIs(t, err, remote.ErrUnauthorized)
	assert.Equal(t, StateError, dev.engine.State())
	assert.ErrorIs(t, dev.engine.LastError(), remote.ErrUnauthorized)

	calls := rem.Upserts()
	rep, err := dev.engine.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, SkipErrorState, rep.Skipped)
	assert.Equal(t, calls, rem.Upserts())

	rem.onUpsert = nil
	dev.engine.Reset()
	assert.Equal(t, StateIdle, dev.engine.State())
	rep = dev.sync(t)
	assert.Equal(t, 4, rep.Pushed)
}

func TestUnavailableAbortsButKeepsProgress(t *testing.T) {
	rem := &scriptedRemote{Remote: openRemote(t)}
	dev := newDevice(t, rem, newClock())
	tr := seedTree(t, dev.store)

	rem.onUpsert = func(rec models.Record) error {
		if rec.Kind() == models.KindExercise {
			return fmt.Errorf("upsert: %w: connection refused", remote.ErrUnavailable)
		}
		return nil
	}
	rep, err := dev.engine.Sync(context.Background())
	require.ErrorIs(t, err, ErrAborted)
	require.ErrorIs(t, err, remote.ErrUnavailable)
	assert.Equal(t, StateIdle, dev.engine.State())
	assert.Equal(t, 2, rep.Pushed)

	plan, err := dev.store.GetPeriodization(tr.plan.ID)
	require.NoError(t, err)
	assert.False(t, plan.NeedsSync)
	ex, err := dev.store.GetExercise(tr.exercise.ID)
	require.NoError(t, err)
	assert.True(t, ex.NeedsSync)

	last, err := dev.store.GetState(lastSyncedKey)
	require.NoError(t, err)
	assert.Empty(t, last)
}

func TestGoingOfflineMidPassAborts(t *testing.T) {
	rem := &scriptedRemote{Remote: openRemote(t)}
	dev := newDevice(t, rem, newClock())
	seedTree(t, dev.store)

	rem.onUpsert = func(rec models.Record) error {
		if rec.Kind() == models.KindSession {
			dev.net.Set(false)
		}
		return nil
	}
	_, err := dev.engine.Sync(context.Background())
	require.True(t, errors.Is(err, ErrAborted))

	pending, err := dev.store.PendingCount(testUser)
	require.NoError(t, err)
	assert.Equal(t, 2, pending)
}

func TestSignedOutSkips(t *testing.T) {
	dev := newDevice(t, openRemote(t), newClock())
	engine := NewEngine(dev.store, openRemote(t), StaticIdentity(""), nil)
	rep, err := engine.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SkipUnauthenticated, rep.Skipped)
}

func TestStatusAndCursors(t *testing.T) {
	rem := openRemote(t)
	a := newDevice(t, rem, newClock())
	b := newDevice(t, rem, newClock())
	seedTree(t, a.store)

	st, err := a.engine.Status()
	require.NoError(t, err)
	assert.Equal(t, 4, st.Pending)
	assert.Nil(t, st.LastSyncedAt)

	a.sync(t)
	st, err = a.engine.Status()
	require.NoError(t, err)
	assert.Equal(t, 0, st.Pending)
	require.NotNil(t, st.LastSyncedAt)
	assert.Equal(t, StateIdle, st.State)

	b.sync(t)
	cur, err := b.store.GetState(cursorKey(models.KindSet, testUser))
	require.NoError(t, err)
	assert.NotEmpty(t, cur)

	// Nothing new remotely: a second pass fetches nothing.
	rep := b.sync(t)
	assert.Zero(t, rep.Fetched)

	require.NoError(t, b.engine.ResetCursors(testUser))
	rep = b.sync(t)
	assert.Equal(t, 4, rep.Fetched)
	assert.Zero(t, rep.Inserted+rep.Updated)
}
