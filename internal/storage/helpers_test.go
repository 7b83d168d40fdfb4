// ABOUTME: Shared fixtures for storage tests.
// ABOUTME: Opens each backend in a temp dir and builds a small training hierarchy.
package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/harperreed/periodize/internal/models"
)

const testUser = "user-1"

// fakeClock is a controllable time source; it does not advance on its own.
type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "periodize.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func setupTestKV(t *testing.T) *KVStore {
	t.Helper()
	engine, err := OpenBadgerInMemory()
	if err != nil {
		t.Fatalf("Failed to open badger: %v", err)
	}
	kv := NewKVStore(engine)
	t.Cleanup(func() { kv.Close() })
	return kv
}

// forEachBackend runs fn against a Store on both backends.
func forEachBackend(t *testing.T, fn func(t *testing.T, s *Store, clock *fakeClock)) {
	t.Helper()
	backends := []struct {
		name string
		open func(t *testing.T) Backend
	}{
		{"sqlite", func(t *testing.T) Backend { return setupTestDB(t) }},
		{"kv", func(t *testing.T) Backend { return setupTestKV(t) }},
	}
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			clock := newFakeClock()
			fn(t, NewStore(b.open(t), WithClock(clock.Now)), clock)
		})
	}
}

type tree struct {
	plan     *models.Periodization
	session  *models.Session
	exercise *models.Exercise
	set      *models.Set
}

// seedTree creates one record at each level of the hierarchy.
func seedTree(t *testing.T, s *Store) tree {
	t.Helper()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p := models.NewPeriodization(testUser, "Strength block", start).WithEndDate(start.AddDate(0, 3, 0))
	if err := s.CreatePeriodization(p); err != nil {
		t.Fatalf("CreatePeriodization failed: %v", err)
	}
	sess := models.NewSession(testUser, p.ID, "Day 1", start.AddDate(0, 0, 1))
	if err := s.CreateSession(sess); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	ex := models.NewExercise(testUser, sess.ID, "Back squat", 0).WithMuscleGroup("legs")
	if err := s.CreateExercise(ex); err != nil {
		t.Fatalf("CreateExercise failed: %v", err)
	}
	set := models.NewSet(testUser, ex.ID, 0, 5, 100).WithRPE(8)
	if err := s.CreateSet(set); err != nil {
		t.Fatalf("CreateSet failed: %v", err)
	}
	return tree{plan: p, session: sess, exercise: ex, set: set}
}
