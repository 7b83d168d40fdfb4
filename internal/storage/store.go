// ABOUTME: Store is the typed Local Store layered over a Backend.
// ABOUTME: Every mutation path applies the dirty-tracking rules; ApplyRemote is the only clean writer.
package storage

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/harperreed/periodize/internal/models"
)

// Store implements Repository on top of either backend.
type Store struct {
	backend Backend
	now     func() time.Time
	mu      sync.Mutex
}

// Compile-time check that Store implements Repository.
var _ Repository = (*Store)(nil)

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithClock overrides the time source used for audit timestamps.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// NewStore wraps a backend with lifecycle stamping.
func NewStore(b Backend, opts ...StoreOption) *Store {
	s := &Store{backend: b, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Backend returns the underlying persistence engine.
func (s *Store) Backend() Backend { return s.backend }

// Close closes the backend.
func (s *Store) Close() error { return s.backend.Close() }

// Periodizations

func (s *Store) CreatePeriodization(p *models.Periodization) error { return s.create(p) }

func (s *Store) GetPeriodization(id string) (*models.Periodization, error) {
	return getTyped[*models.Periodization](s, models.KindPeriodization, id, false)
}

func (s *Store) GetPeriodizationIncludingDeleted(id string) (*models.Periodization, error) {
	return getTyped[*models.Periodization](s, models.KindPeriodization, id, true)
}

// ListPeriodizations returns the user's live periodizations, newest first.
func (s *Store) ListPeriodizations(userID string) ([]*models.Periodization, error) {
	return listTyped[*models.Periodization](s, models.KindPeriodization, userID)
}

func (s *Store) UpdatePeriodization(id string, apply func(*models.Periodization), opts ...WriteOption) error {
	return updateTyped(s, models.KindPeriodization, id, apply, opts)
}

// DeletePeriodization tombstones the periodization and its live descendants.
func (s *Store) DeletePeriodization(id string) error { return s.delete(models.KindPeriodization, id) }

// Sessions

func (s *Store) CreateSession(sess *models.Session) error { return s.create(sess) }

func (s *Store) GetSession(id string) (*models.Session, error) {
	return getTyped[*models.Session](s, models.KindSession, id, false)
}

func (s *Store) GetSessionIncludingDeleted(id string) (*models.Session, error) {
	return getTyped[*models.Session](s, models.KindSession, id, true)
}

func (s *Store) ListSessions(periodizationID string) ([]*models.Session, error) {
	return listTyped[*models.Session](s, models.KindSession, periodizationID)
}

func (s *Store) UpdateSession(id string, apply func(*models.Session), opts ...WriteOption) error {
	return updateTyped(s, models.KindSession, id, apply, opts)
}

func (s *Store) DeleteSession(id string) error { return s.delete(models.KindSession, id) }

// Exercises

func (s *Store) CreateExercise(e *models.Exercise) error { return s.create(e) }

func (s *Store) GetExercise(id string) (*models.Exercise, error) {
	return getTyped[*models.Exercise](s, models.KindExercise, id, false)
}

func (s *Store) GetExerciseIncludingDeleted(id string) (*models.Exercise, error) {
	return getTyped[*models.Exercise](s, models.KindExercise, id, true)
}

// ListExercises returns live exercises of a session by ascending order index.
func (s *Store) ListExercises(sessionID string) ([]*models.Exercise, error) {
	return listTyped[*models.Exercise](s, models.KindExercise, sessionID)
}

func (s *Store) UpdateExercise(id string, apply func(*models.Exercise), opts ...WriteOption) error {
	return updateTyped(s, models.KindExercise, id, apply, opts)
}

func (s *Store) DeleteExercise(id string) error { return s.delete(models.KindExercise, id) }

// Sets

func (s *Store) CreateSet(set *models.Set) error { return s.create(set) }

func (s *Store) GetSet(id string) (*models.Set, error) {
	return getTyped[*models.Set](s, models.KindSet, id, false)
}

func (s *Store) GetSetIncludingDeleted(id string) (*models.Set, error) {
	return getTyped[*models.Set](s, models.KindSet, id, true)
}

// ListSets returns live sets of an exercise by ascending order index.
func (s *Store) ListSets(exerciseID string) ([]*models.Set, error) {
	return listTyped[*models.Set](s, models.KindSet, exerciseID)
}

func (s *Store) UpdateSet(id string, apply func(*models.Set), opts ...WriteOption) error {
	return updateTyped(s, models.KindSet, id, apply, opts)
}

func (s *Store) DeleteSet(id string) error { return s.delete(models.KindSet, id) }

// Record-level operations

// GetRecord returns a record of any kind, tombstones included.
func (s *Store) GetRecord(kind models.Kind, id string) (models.Record, error) {
	return s.backend.Get(kind, id)
}

// ListDirty returns the user's records of kind awaiting push.
func (s *Store) ListDirty(kind models.Kind, userID string) ([]models.Record, error) {
	return s.backend.ListDirty(kind, userID)
}

// AllRecords returns every record of kind, tombstones included.
func (s *Store) AllRecords(kind models.Kind) ([]models.Record, error) {
	return s.backend.ListAll(kind)
}

// PendingCount returns how many of the user's records await push.
func (s *Store) PendingCount(userID string) (int, error) {
	total := 0
	for _, kind := range models.Kinds {
		recs, err := s.backend.ListDirty(kind, userID)
		if err != nil {
			return 0, fmt.Errorf("list dirty %s: %w", kind.Table(), err)
		}
		total += len(recs)
	}
	return total, nil
}

// MarkSynced records a remote acknowledgment of the record version pushed.
// It reports false when the record changed after that version was read.
func (s *Store) MarkSynced(kind models.Kind, id string, version, syncedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	version = models.NormalizeTime(version)
	return s.backend.MarkSynced(kind, id, version, laterOf(models.NormalizeTime(syncedAt), version))
}

// ApplyRemote writes an already-acknowledged remote snapshot. It is the pull-merge
// path and the only writer allowed to leave needs_sync false.
func (s *Store) ApplyRemote(rec models.Record, syncedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	models.Normalize(rec)
	if err := s.validate(rec); err != nil {
		return err
	}
	stampMerged(rec.Base(), syncedAt)
	return s.backend.Put(rec)
}

// Restore writes a record verbatim, preserving its lifecycle fields. Used by import.
func (s *Store) Restore(rec models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	models.Normalize(rec)
	if err := s.validate(rec); err != nil {
		return err
	}
	return s.backend.Put(rec)
}

// PurgeTombstones physically removes tombstones acknowledged before the cutoff,
// children first.
func (s *Store) PurgeTombstones(before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for i := len(models.Kinds) - 1; i >= 0; i-- {
		n, err := s.backend.Purge(models.Kinds[i], models.NormalizeTime(before))
		if err != nil {
			return total, fmt.Errorf("purge %s: %w", models.Kinds[i].Table(), err)
		}
		total += n
	}
	return total, nil
}

// ResolveID expands an id or unique id prefix to the full id of a live record.
func (s *Store) ResolveID(kind models.Kind, idOrPrefix string) (string, error) {
	if rec, err := s.backend.Get(kind, idOrPrefix); err == nil && !rec.Base().IsDeleted() {
		return idOrPrefix, nil
	}
	recs, err := s.backend.ListAll(kind)
	if err != nil {
		return "", err
	}
	var matches []string
	for _, r := range recs {
		m := r.Base()
		if !m.IsDeleted() && strings.HasPrefix(m.ID, idOrPrefix) {
			matches = append(matches, m.ID)
		}
	}
	switch len(matches) {
	case 0:
		return "", notFound(kind, idOrPrefix)
	case 1:
		return matches[0], nil
	}
	return "", fmt.Errorf("ambiguous prefix %s: matches %d %s records", idOrPrefix, len(matches), kind)
}

// GetState reads a sync bookkeeping value; absent keys return "".
func (s *Store) GetState(key string) (string, error) { return s.backend.GetState(key) }

// SetState writes a sync bookkeeping value.
func (s *Store) SetState(key, value string) error { return s.backend.SetState(key, value) }

// internals

func (s *Store) create(rec models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	models.Normalize(rec)
	m := rec.Base()
	var prev *models.Meta
	if m.ID != "" {
		existing, err := s.backend.Get(rec.Kind(), m.ID)
		switch {
		case err == nil:
			p := *existing.Base()
			if p.UserID != m.UserID {
				return &ValidationError{Kind: rec.Kind(), ID: m.ID, Reason: "id belongs to another user"}
			}
			prev = &p
		case !errors.Is(err, ErrNotFound):
			return fmt.Errorf("create %s: %w", rec.Kind(), err)
		}
	}
	stampCreate(m, prev, s.now())
	if err := s.validate(rec); err != nil {
		return err
	}
	if err := s.backend.Put(rec); err != nil {
		return fmt.Errorf("create %s: %w", rec.Kind(), err)
	}
	return nil
}

// update applies an edit to a live record and writes it dirty. An error from
// apply aborts the update before anything is stamped or written.
func (s *Store) update(kind models.Kind, id string, apply func(models.Record) error, opts []WriteOption) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.backend.Get(kind, id)
	if err != nil {
		return err
	}
	if rec.Base().IsDeleted() {
		return notFound(kind, id)
	}
	meta := *rec.Base()
	if err := apply(rec); err != nil {
		return err
	}
	*rec.Base() = meta

	models.Normalize(rec)
	stampUpdate(rec.Base(), s.now(), collectOptions(opts))
	if err := s.validate(rec); err != nil {
		return err
	}
	if err := s.backend.Put(rec); err != nil {
		return fmt.Errorf("update %s: %w", kind, err)
	}
	return nil
}

func (s *Store) delete(kind models.Kind, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.backend.Get(kind, id)
	if err != nil {
		return err
	}
	if rec.Base().IsDeleted() {
		return notFound(kind, id)
	}

	deletedAt := models.NormalizeTime(s.now())
	stampDelete(rec.Base(), deletedAt)
	writes := []models.Record{rec}
	descendants, err := s.liveDescendants(kind, id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", kind, err)
	}
	for _, d := range descendants {
		stampDelete(d.Base(), deletedAt)
		writes = append(writes, d)
	}

	put := func(b Backend) error {
		for _, w := range writes {
			if err := b.Put(w); err != nil {
				return fmt.Errorf("delete %s %s: %w", w.Kind(), w.Base().ID, err)
			}
		}
		return nil
	}
	if tx, ok := s.backend.(Transactional); ok {
		return tx.InTx(put)
	}
	return put(s.backend)
}

// liveDescendants walks the subtree below (kind, id), parents before children.
func (s *Store) liveDescendants(kind models.Kind, id string) ([]models.Record, error) {
	child := kind.Child()
	if child == "" {
		return nil, nil
	}
	children, err := s.backend.ListByParent(child, id, false)
	if err != nil {
		return nil, err
	}
	out := append([]models.Record(nil), children...)
	for _, c := range children {
		below, err := s.liveDescendants(child, c.Base().ID)
		if err != nil {
			return nil, err
		}
		out = append(out, below...)
	}
	return out, nil
}

// validate checks fields and that the parent reference resolves (live or tombstoned).
func (s *Store) validate(rec models.Record) error {
	m := rec.Base()
	if err := rec.Validate(); err != nil {
		return &ValidationError{Kind: rec.Kind(), ID: m.ID, Err: err}
	}
	parentKind := rec.Kind().Parent()
	if parentKind == "" {
		return nil
	}
	if _, err := s.backend.Get(parentKind, rec.ParentID()); err != nil {
		if errors.Is(err, ErrNotFound) {
			return &ValidationError{
				Kind:   rec.Kind(),
				ID:     m.ID,
				Reason: fmt.Sprintf("parent %s %s does not exist", parentKind, rec.ParentID()),
			}
		}
		return err
	}
	return nil
}

func getTyped[T models.Record](s *Store, kind models.Kind, id string, includeDeleted bool) (T, error) {
	var zero T
	rec, err := s.backend.Get(kind, id)
	if err != nil {
		return zero, err
	}
	if !includeDeleted && rec.Base().IsDeleted() {
		return zero, notFound(kind, id)
	}
	t, ok := rec.(T)
	if !ok {
		return zero, fmt.Errorf("%s %s: unexpected record type %T", kind, id, rec)
	}
	return t, nil
}

func listTyped[T models.Record](s *Store, kind models.Kind, parentID string) ([]T, error) {
	recs, err := s.backend.ListByParent(kind, parentID, false)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind.Table(), err)
	}
	out := make([]T, 0, len(recs))
	for _, r := range recs {
		t, ok := r.(T)
		if !ok {
			return nil, fmt.Errorf("list %s: unexpected record type %T", kind.Table(), r)
		}
		out = append(out, t)
	}
	return out, nil
}

func updateTyped[T models.Record](s *Store, kind models.Kind, id string, apply func(T), opts []WriteOption) error {
	return s.update(kind, id, func(rec models.Record) error {
		t, ok := rec.(T)
		if !ok {
			return fmt.Errorf("%s %s: unexpected record type %T", kind, id, rec)
		}
		apply(t)
		return nil
	}, opts)
}
