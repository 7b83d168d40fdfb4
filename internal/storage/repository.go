// ABOUTME: Storage contracts: the raw Backend implemented by SQLite and KV,
// ABOUTME: and the typed Repository the CLI, MCP server and aggregations consume.
package storage

import (
	"time"

	"github.com/harperreed/periodize/internal/models"
)

// Backend is the persistence contract both local engines satisfy identically.
// It stores records verbatim; lifecycle stamping happens in Store.
type Backend interface {
	// Put inserts or overwrites a record by id, exactly as given.
	Put(rec models.Record) error
	// Get returns a record whether live or tombstoned.
	Get(kind models.Kind, id string) (models.Record, error)
	// ListByParent returns children of parentID (the user id for periodizations).
	// Ordered kinds sort by order_index, created_at, id ascending;
	// the rest by created_at descending, id ascending.
	ListByParent(kind models.Kind, parentID string, includeDeleted bool) ([]models.Record, error)
	// ListDirty returns the user's records with needs_sync set, oldest update first.
	ListDirty(kind models.Kind, userID string) ([]models.Record, error)
	// ListAll returns every record of kind, tombstones included, by created_at then id.
	ListAll(kind models.Kind) ([]models.Record, error)
	// MarkSynced clears needs_sync only while updated_at still equals version.
	MarkSynced(kind models.Kind, id string, version, syncedAt time.Time) (bool, error)
	// Purge physically removes acknowledged tombstones synced before the cutoff.
	Purge(kind models.Kind, before time.Time) (int, error)
	GetState(key string) (string, error)
	SetState(key, value string) error
	Close() error
}

// Transactional is implemented by backends that can apply several writes atomically.
type Transactional interface {
	InTx(fn func(Backend) error) error
}

// Repository is the typed Local Store used by application-level collaborators.
type Repository interface {
	CreatePeriodization(p *models.Periodization) error
	GetPeriodization(id string) (*models.Periodization, error)
	GetPeriodizationIncludingDeleted(id string) (*models.Periodization, error)
	ListPeriodizations(userID string) ([]*models.Periodization, error)
	UpdatePeriodization(id string, apply func(*models.Periodization), opts ...WriteOption) error
	DeletePeriodization(id string) error

	CreateSession(s *models.Session) error
	GetSession(id string) (*models.Session, error)
	GetSessionIncludingDeleted(id string) (*models.Session, error)
	ListSessions(periodizationID string) ([]*models.Session, error)
	UpdateSession(id string, apply func(*models.Session), opts ...WriteOption) error
	DeleteSession(id string) error

	CreateExercise(e *models.Exercise) error
	GetExercise(id string) (*models.Exercise, error)
	GetExerciseIncludingDeleted(id string) (*models.Exercise, error)
	ListExercises(sessionID string) ([]*models.Exercise, error)
	UpdateExercise(id string, apply func(*models.Exercise), opts ...WriteOption) error
	DeleteExercise(id string) error

	CreateSet(s *models.Set) error
	GetSet(id string) (*models.Set, error)
	GetSetIncludingDeleted(id string) (*models.Set, error)
	ListSets(exerciseID string) ([]*models.Set, error)
	UpdateSet(id string, apply func(*models.Set), opts ...WriteOption) error
	DeleteSet(id string) error

	// Record-level access used by sync, export and migration.
	GetRecord(kind models.Kind, id string) (models.Record, error)
	ListDirty(kind models.Kind, userID string) ([]models.Record, error)
	AllRecords(kind models.Kind) ([]models.Record, error)
	PendingCount(userID string) (int, error)

	Close() error
}
