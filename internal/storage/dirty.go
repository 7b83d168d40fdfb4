// ABOUTME: Dirty tracking rules applied by every Store mutation.
// ABOUTME: Stamps audit timestamps and needs_sync; only the pull-merge path writes clean.
package storage

import (
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/periodize/internal/models"
)

// WriteOption adjusts how an update is stamped.
type WriteOption func(*writeOptions)

type writeOptions struct {
	clean    bool
	syncedAt time.Time
}

// MarkClean writes the update as already acknowledged by the remote at syncedAt.
// Only the sync engine should pass it.
func MarkClean(syncedAt time.Time) WriteOption {
	return func(o *writeOptions) {
		o.clean = true
		o.syncedAt = syncedAt
	}
}

func collectOptions(opts []WriteOption) writeOptions {
	var o writeOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// nextUpdate returns a timestamp strictly after prev.
func nextUpdate(now, prev time.Time) time.Time {
	now = models.NormalizeTime(now)
	if !now.After(prev) {
		return prev.Add(models.Precision)
	}
	return now
}

func laterOf(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

// stampCreate prepares a locally created record. When prev is non-nil the
// create overwrites an existing record with the same id.
func stampCreate(m *models.Meta, prev *models.Meta, now time.Time) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	now = models.NormalizeTime(now)
	m.DeletedAt = nil
	m.NeedsSync = true
	if prev == nil {
		m.CreatedAt = now
		m.UpdatedAt = now
		m.SyncedAt = nil
		return
	}
	m.CreatedAt = prev.CreatedAt
	m.UpdatedAt = nextUpdate(now, prev.UpdatedAt)
	m.SyncedAt = prev.SyncedAt
}

// stampUpdate applies the dirty rule to an updated record, or the clean
// override when the caller passed MarkClean.
func stampUpdate(m *models.Meta, now time.Time, o writeOptions) {
	m.UpdatedAt = nextUpdate(now, m.UpdatedAt)
	if o.clean {
		synced := laterOf(models.NormalizeTime(o.syncedAt), m.UpdatedAt)
		m.SyncedAt = &synced
		m.NeedsSync = false
		return
	}
	m.NeedsSync = true
}

// stampDelete tombstones a record at deletedAt. Cascades pass the parent's
// deletedAt so a whole subtree shares one tombstone time.
func stampDelete(m *models.Meta, deletedAt time.Time) {
	deletedAt = models.NormalizeTime(deletedAt)
	m.UpdatedAt = nextUpdate(deletedAt, m.UpdatedAt)
	m.DeletedAt = &deletedAt
	m.NeedsSync = true
}

// stampMerged marks a record imported from the remote as acknowledged.
func stampMerged(m *models.Meta, syncedAt time.Time) {
	synced := laterOf(models.NormalizeTime(syncedAt), m.UpdatedAt)
	m.SyncedAt = &synced
	m.NeedsSync = false
}
