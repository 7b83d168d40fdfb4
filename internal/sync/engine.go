// ABOUTME: Sync Engine: single-flight push then pull passes against the Remote Adapter.
// ABOUTME: Parent-before-child ordering, deferred retry of orphaned children, last-write-wins merge.
package sync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	gosync "sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/harperreed/periodize/internal/models"
	"github.com/harperreed/periodize/internal/remote"
	"github.com/harperreed/periodize/internal/storage"
)

// Engine reconciles the local store with the remote. Safe for concurrent use;
// overlapping Sync calls collapse into the one already running.
type Engine struct {
	store       Store
	remote      remote.Remote
	identity    Identity
	net         Reachability
	logger      *log.Logger
	now         func() time.Time
	callTimeout time.Duration

	running atomic.Bool
	state   atomic.Int32

	mu      gosync.Mutex
	lastErr error
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithClock overrides the time source used for synced_at stamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithCallTimeout overrides the per-call network budget.
func WithCallTimeout(d time.Duration) Option {
	return func(e *Engine) { e.callTimeout = d }
}

// NewEngine wires the engine to its collaborators. net may be nil, meaning always online.
func NewEngine(store Store, rem remote.Remote, identity Identity, net Reachability, opts ...Option) *Engine {
	e := &Engine{
		store:       store,
		remote:      rem,
		identity:    identity,
		net:         net,
		now:         time.Now,
		callTimeout: remote.CallTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = log.New(io.Discard)
	}
	return e
}

// State returns the current state.
func (e *Engine) State() State { return State(e.state.Load()) }

func (e *Engine) setState(s State) {
	e.state.Store(int32(s))
	e.logger.Debug("sync state", "state", s)
}

// Reset leaves the Error state. Call it when authentication changes.
func (e *Engine) Reset() {
	e.state.CompareAndSwap(int32(StateError), int32(StateIdle))
	e.mu.Lock()
	e.lastErr = nil
	e.mu.Unlock()
}

// LastError returns the error of the most recent pass, if any.
func (e *Engine) LastError() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

// Sync runs one pass. When a pass is already running, the device is offline,
// nobody is signed in, or the engine is in the Error state, it returns a
// skipped report and a nil error without touching state.
func (e *Engine) Sync(ctx context.Context) (*Report, error) {
	if !e.running.CompareAndSwap(false, true) {
		return &Report{Skipped: SkipInFlight}, nil
	}
	defer e.running.Store(false)

	if e.State() == StateError {
		return &Report{Skipped: SkipErrorState}, nil
	}
	if e.net != nil && !e.net.IsOnline() {
		return &Report{Skipped: SkipOffline}, nil
	}
	userID, ok := e.identity.CurrentUserID()
	if !ok {
		return &Report{Skipped: SkipUnauthenticated}, nil
	}

	rep := &Report{StartedAt: e.now()}
	err := e.run(ctx, userID, rep)
	rep.FinishedAt = e.now()

	e.mu.Lock()
	e.lastErr = err
	e.mu.Unlock()
	return rep, err
}

func (e *Engine) run(ctx context.Context, userID string, rep *Report) error {
	e.setState(StatePushing)
	err := e.push(ctx, userID, rep)
	if err == nil {
		e.setState(StatePulling)
		err = e.pull(ctx, userID, rep)
	}

	switch {
	case err == nil:
	case errors.Is(err, remote.ErrUnauthorized):
		e.setState(StateError)
		e.logger.Error("sync stopped: remote rejected credentials", "err", err)
		return err
	case errors.Is(err, remote.ErrUnavailable), errors.Is(err, ErrAborted):
		e.setState(StateIdle)
		e.logger.Warn("sync aborted", "err", err, "pushed", rep.Pushed, "pulled", rep.Inserted+rep.Updated)
		if errors.Is(err, ErrAborted) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrAborted, err)
	default:
		e.setState(StateIdle)
		e.logger.Error("sync failed", "err", err)
		return err
	}

	if err := e.store.SetState(lastSyncedKey, models.FormatTime(e.now())); err != nil {
		e.setState(StateIdle)
		return fmt.Errorf("record last sync: %w", err)
	}
	e.setState(StateIdle)
	e.logger.Info("sync complete",
		"pushed", rep.Pushed, "deleted", rep.Deleted, "deferred", rep.Deferred,
		"inserted", rep.Inserted, "updated", rep.Updated, "local_wins", rep.LocalWins,
		"failures", len(rep.Failures))
	for _, f := range rep.Failures {
		e.logger.Warn("record failed", "phase", f.Phase, "kind", f.Kind, "id", f.ID, "err", f.Err)
	}
	return nil
}

// checkOnline aborts between records once reachability reports offline.
func (e *Engine) checkOnline(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrAborted, err)
	}
	if e.net != nil && !e.net.IsOnline() {
		return fmt.Errorf("%w: device went offline", ErrAborted)
	}
	return nil
}

// fatal reports whether err ends the pass rather than one record.
func fatal(err error) bool {
	return errors.Is(err, remote.ErrUnavailable) || errors.Is(err, remote.ErrUnauthorized) || errors.Is(err, ErrAborted)
}

func parentMissing(err error) bool {
	var c *remote.ConflictError
	return errors.As(err, &c) && c.ParentMissing
}

type recordKey struct {
	kind models.Kind
	id   string
}

func keyOf(rec models.Record) recordKey {
	return recordKey{kind: rec.Kind(), id: rec.Base().ID}
}

// push publishes dirty records parents first. Children rejected for a missing
// parent are retried once the parent has been pushed in this pass.
func (e *Engine) push(ctx context.Context, userID string, rep *Report) error {
	pushed := map[recordKey]bool{}
	var deferred []models.Record

	for _, kind := range models.Kinds {
		dirty, err := e.store.ListDirty(kind, userID)
		if err != nil {
			return fmt.Errorf("list dirty %s: %w", kind.Table(), err)
		}
		for _, rec := range dirty {
			if err := e.checkOnline(ctx); err != nil {
				return err
			}
			err := e.pushOne(ctx, rec, rep, false)
			switch {
			case err == nil:
				pushed[keyOf(rec)] = true
			case fatal(err):
				return err
			case parentMissing(err):
				e.logger.Debug("deferring push until parent lands", "kind", kind, "id", rec.Base().ID)
				deferred = append(deferred, rec)
			default:
				rep.fail(kind, rec.Base().ID, "push", err)
			}
		}
	}

	return e.retryDeferred(ctx, deferred, pushed, rep)
}

// retryDeferred pushes each deferred child's parent chain if needed, then the child.
// Parents that are clean locally but missing remotely are republished too.
func (e *Engine) retryDeferred(ctx context.Context, deferred []models.Record, pushed map[recordKey]bool, rep *Report) error {
	for _, rec := range deferred {
		if err := e.checkOnline(ctx); err != nil {
			return err
		}
		if err := e.ensureParent(ctx, rec, pushed, rep, len(models.Kinds)); err != nil {
			if fatal(err) {
				return err
			}
			rep.fail(rec.Kind(), rec.Base().ID, "push", fmt.Errorf("parent not pushed: %w", err))
			continue
		}
		// The record may have changed since it was listed.
		current, err := e.store.GetRecord(rec.Kind(), rec.Base().ID)
		if err != nil {
			rep.fail(rec.Kind(), rec.Base().ID, "push", err)
			continue
		}
		if err := e.pushOne(ctx, current, rep, true); err != nil {
			if fatal(err) {
				return err
			}
			rep.fail(rec.Kind(), rec.Base().ID, "push", err)
			continue
		}
		pushed[keyOf(rec)] = true
		rep.Deferred++
	}
	return nil
}

func (e *Engine) ensureParent(ctx context.Context, rec models.Record, pushed map[recordKey]bool, rep *Report, depth int) error {
	parentKind := rec.Kind().Parent()
	if parentKind == "" {
		return nil
	}
	key := recordKey{kind: parentKind, id: rec.ParentID()}
	if pushed[key] {
		return nil
	}
	if depth == 0 {
		return fmt.Errorf("parent chain too deep at %s %s", key.kind, key.id)
	}
	parent, err := e.store.GetRecord(parentKind, rec.ParentID())
	if err != nil {
		return err
	}
	if err := e.ensureParent(ctx, parent, pushed, rep, depth-1); err != nil {
		return err
	}
	// The remote is missing this parent, so a soft delete would match no row.
	if err := e.pushOne(ctx, parent, rep, true); err != nil {
		return err
	}
	pushed[key] = true
	return nil
}

// pushOne sends one record and acknowledges it locally if it was dirty.
// A tombstone the remote already knows gets a soft delete; anything else,
// or any record when forceUpsert is set, is upserted.
func (e *Engine) pushOne(ctx context.Context, rec models.Record, rep *Report, forceUpsert bool) error {
	callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()

	m := rec.Base()
	var err error
	if m.IsDeleted() && m.SyncedAt != nil && !forceUpsert {
		err = e.remote.SoftDelete(callCtx, rec)
	} else {
		err = e.remote.Upsert(callCtx, rec)
	}
	if err != nil {
		return err
	}
	if m.IsDeleted() {
		rep.Deleted++
	} else {
		rep.Pushed++
	}
	if !m.NeedsSync {
		return nil
	}

	ok, err := e.store.MarkSynced(rec.Kind(), m.ID, m.UpdatedAt, e.now())
	if err != nil {
		return fmt.Errorf("acknowledge %s %s: %w", rec.Kind(), m.ID, err)
	}
	if !ok {
		rep.Requeued++
		e.logger.Debug("record edited during push; stays dirty", "kind", rec.Kind(), "id", m.ID)
	}
	return nil
}

// pull fetches remote changes per kind since the stored cursor and merges them.
// The cursor is the remote's write sequence, never a client timestamp, so an
// edit uploaded late by another device is still fetched. It only advances past
// records that merged cleanly, so a failed record is fetched again next pass.
func (e *Engine) pull(ctx context.Context, userID string, rep *Report) error {
	for _, kind := range models.Kinds {
		if err := e.checkOnline(ctx); err != nil {
			return err
		}
		since, err := e.cursor(kind, userID)
		if err != nil {
			return err
		}

		callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
		changes, err := e.remote.FetchSince(callCtx, kind, userID, since)
		cancel()
		if err != nil {
			if fatal(err) {
				return err
			}
			rep.fail(kind, "", "pull", err)
			continue
		}
		rep.Fetched += len(changes)

		next := since
		blocked := false
		for _, ch := range changes {
			if err := e.merge(ch.Record, rep); err != nil {
				rep.fail(kind, ch.Record.Base().ID, "pull", err)
				blocked = true
				continue
			}
			if !blocked && ch.Seq > next {
				next = ch.Seq
			}
		}
		if next > since {
			if err := e.store.SetState(cursorKey(kind, userID), strconv.FormatInt(next, 10)); err != nil {
				return fmt.Errorf("save %s cursor: %w", kind, err)
			}
		}
	}
	return nil
}

func (e *Engine) cursor(kind models.Kind, userID string) (int64, error) {
	v, err := e.store.GetState(cursorKey(kind, userID))
	if err != nil {
		return 0, fmt.Errorf("load %s cursor: %w", kind, err)
	}
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		e.logger.Warn("ignoring unreadable cursor", "kind", kind, "value", v)
		return 0, nil
	}
	return n, nil
}

// merge applies one pulled record by id:
//   - absent locally: insert clean
//   - local clean and remote newer: remote wins
//   - local dirty: local wins and stays queued, except that a newer remote
//     tombstone still deletes it
func (e *Engine) merge(incoming models.Record, rep *Report) error {
	in := incoming.Base()
	local, err := e.store.GetRecord(incoming.Kind(), in.ID)
	if errors.Is(err, storage.ErrNotFound) {
		if err := e.store.ApplyRemote(incoming, e.now()); err != nil {
			return err
		}
		rep.Inserted++
		return nil
	}
	if err != nil {
		return err
	}

	lm := local.Base()
	if lm.UserID != in.UserID {
		return fmt.Errorf("id %s belongs to another user locally", in.ID)
	}
	if !in.UpdatedAt.After(lm.UpdatedAt) {
		if lm.NeedsSync {
			rep.LocalWins++
		}
		return nil
	}
	if lm.NeedsSync && in.DeletedAt == nil {
		rep.LocalWins++
		return nil
	}
	if err := e.store.ApplyRemote(incoming, e.now()); err != nil {
		return err
	}
	rep.Updated++
	return nil
}

// ResetCursors forgets every pull cursor of the user so the next pass
// re-fetches the full remote history.
func (e *Engine) ResetCursors(userID string) error {
	for _, kind := range models.Kinds {
		if err := e.store.SetState(cursorKey(kind, userID), ""); err != nil {
			return err
		}
	}
	return nil
}

// Status is a snapshot for display.
type Status struct {
	State        State
	LastSyncedAt *time.Time
	Pending      int
	LastError    error
}

// Status reports the engine state, last completed pass and pending push count.
func (e *Engine) Status() (*Status, error) {
	st := &Status{State: e.State(), LastError: e.LastError()}
	if v, err := e.store.GetState(lastSyncedKey); err != nil {
		return nil, err
	} else if v != "" {
		if t, err := models.ParseTime(v); err == nil {
			st.LastSyncedAt = &t
		}
	}
	if userID, ok := e.identity.CurrentUserID(); ok {
		n, err := e.store.PendingCount(userID)
		if err != nil {
			return nil, err
		}
		st.Pending = n
	}
	return st, nil
}
