// ABOUTME: Tests for the relational remote.
// ABOUTME: Covers upsert idempotence, FK conflicts, soft delete and fetch filters.
package remote

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/harperreed/periodize/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestRemote(t *testing.T) *SQLRemote {
	t.Helper()
	r, err := OpenSQL(filepath.Join(t.TempDir(), "remote.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func stamped[T models.Record](rec T, id string, at time.Time) T {
	m := rec.Base()
	m.ID = id
	m.CreatedAt = at
	m.UpdatedAt = at
	models.Normalize(rec)
	return rec
}

func TestSQLRemoteUpsertIdempotent(t *testing.T) {
	ctx := context.Background()
	r := openTestRemote(t)
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p := stamped(models.NewPeriodization("user-1", "Block", at), "p1", at)

	require.NoError(t, r.Upsert(ctx, p))
	p.Name = "Renamed"
	p.UpdatedAt = at.Add(time.Minute)
	require.NoError(t, r.Upsert(ctx, p))

	recs, err := r.FetchSince(ctx, models.KindPeriodization, "user-1", 0)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Renamed", recs[0].Record.(*models.Periodization).Name)
	assert.Equal(t, int64(2), recs[0].Seq)
}

func TestSQLRemoteMissingParentIsConflict(t *testing.T) {
	r := openTestRemote(t)
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := stamped(models.NewSession("user-1", "missing", "Day 1", at), "s1", at)

	err := r.Upsert(context.Background(), s)
	var c *ConflictError
	require.True(t, errors.As(err, &c), "got %v", err)
	assert.True(t, c.ParentMissing)
	assert.Equal(t, "s1", c.ID)
}

func TestSQLRemoteSoftDeleteAndFilters(t *testing.T) {
	ctx := context.Background()
	r := openTestRemote(t)
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p := stamped(models.NewPeriodization("user-1", "Block", at), "p1", at)
	require.NoError(t, r.Upsert(ctx, p))
	for i, id := range []string{"s2", "s1"} {
		s := stamped(models.NewSession("user-1", "p1", id, at), id, at.Add(time.Duration(i)*time.Second))
		require.NoError(t, r.Upsert(ctx, s))
	}

	all, err := r.FetchSince(ctx, models.KindSession, "user-1", 0)
	require.NoError(t, err)
	require.Len(t, all, 2)

	tomb := all[1].Record
	deleted := at.Add(time.Hour)
	tomb.Base().DeletedAt = &deleted
	tomb.Base().UpdatedAt = deleted
	require.NoError(t, r.SoftDelete(ctx, tomb))

	live, err := r.ListLive(ctx, models.KindSession, "user-1")
	require.NoError(t, err)
	require.Len(t, live, 1)

	changed, err := r.FetchSince(ctx, models.KindSession, "user-1", all[1].Seq)
	require.NoError(t, err)
	require.Len(t, changed, 1)
	assert.Equal(t, tomb.Base().ID, changed[0].Record.Base().ID)
	require.NotNil(t, changed[0].Record.Base().DeletedAt)

	other, err := r.FetchSince(ctx, models.KindSession, "user-2", 0)
	require.NoError(t, err)
	assert.Empty(t, other, "reads are scoped to the user")
}

func TestSQLRemoteUpsertCannotStealRow(t *testing.T) {
	ctx := context.Background()
	r := openTestRemote(t)
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, r.Upsert(ctx, stamped(models.NewPeriodization("user-1", "Mine", at), "p1", at)))
	require.NoError(t, r.Upsert(ctx, stamped(models.NewPeriodization("user-2", "Theirs", at), "p1", at)))

	recs, err := r.FetchSince(ctx, models.KindPeriodization, "user-1", 0)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Mine", recs[0].Record.(*models.Periodization).Name)
}

func TestSQLRemoteSequenceFollowsWriteOrderNotTimestamps(t *testing.T) {
	ctx := context.Background()
	r := openTestRemote(t)
	early := time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC)
	late := early.Add(30 * time.Minute)

	require.NoError(t, r.Upsert(ctx, stamped(models.NewPeriodization("user-1", "Late", late), "p-late", late)))
	first, err := r.FetchSince(ctx, models.KindPeriodization, "user-1", 0)
	require.NoError(t, err)
	require.Len(t, first, 1)

	// Written second but stamped earlier, as a device syncing late would.
	require.NoError(t, r.Upsert(ctx, stamped(models.NewPeriodization("user-1", "Early", early), "p-early", early)))
	next, err := r.FetchSince(ctx, models.KindPeriodization, "user-1", first[0].Seq)
	require.NoError(t, err)
	require.Len(t, next, 1)
	assert.Equal(t, "p-early", next[0].Record.Base().ID)
	assert.Greater(t, next[0].Seq, first[0].Seq)

	// A soft delete is a new write as well.
	tomb := next[0].Record
	tomb.Base().DeletedAt = &early
	require.NoError(t, r.SoftDelete(ctx, tomb))
	last, err := r.FetchSince(ctx, models.KindPeriodization, "user-1", next[0].Seq)
	require.NoError(t, err)
	require.Len(t, last, 1)
	assert.NotNil(t, last[0].Record.Base().DeletedAt)
}

func TestSQLRemoteAddsSequenceToOlderDatabase(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "remote.db")
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r, err := OpenSQL(path)
	require.NoError(t, err)
	require.NoError(t, r.Upsert(ctx, stamped(models.NewPeriodization("user-1", "Before", at), "p1", at)))
	for _, kind := range models.Kinds {
		_, err := r.db.Exec(fmt.Sprintf("DROP INDEX idx_remote_%s_seq", kind.Table()))
		require.NoError(t, err)
		_, err = r.db.Exec(fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", kind.Table(), SeqColumn))
		require.NoError(t, err)
	}
	require.NoError(t, r.Close())

	r, err = OpenSQL(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	require.NoError(t, r.Upsert(ctx, stamped(models.NewPeriodization("user-1", "After", at), "p2", at)))

	recs, err := r.FetchSince(ctx, models.KindPeriodization, "user-1", 0)
	require.NoError(t, err)
	require.Len(t, recs, 2, "rows written before the upgrade are still fetched")
	assert.Equal(t, "p1", recs[0].Record.Base().ID)
	assert.Equal(t, "p2", recs[1].Record.Base().ID)
	assert.Greater(t, recs[1].Seq, recs[0].Seq)
}
