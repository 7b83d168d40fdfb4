// ABOUTME: Shared lifecycle fields and the Record abstraction for all entities.
// ABOUTME: Defines entity kinds in parent-before-child order and time normalisation.
package models

import (
	"fmt"
	"time"
)

// Kind identifies one of the four entity types in the training hierarchy.
type Kind string

const (
	KindPeriodization Kind = "periodization"
	KindSession       Kind = "session"
	KindExercise      Kind = "exercise"
	KindSet           Kind = "set"
)

// Kinds lists every entity kind in parent-before-child order.
// Push and pull passes iterate in this order.
var Kinds = []Kind{KindPeriodization, KindSession, KindExercise, KindSet}

// Table returns the relational table name for the kind.
func (k Kind) Table() string {
	switch k {
	case KindPeriodization:
		return "periodizations"
	case KindSession:
		return "sessions"
	case KindExercise:
		return "exercises"
	case KindSet:
		return "sets"
	}
	return ""
}

// Parent returns the kind of the containing entity, or "" for periodizations.
func (k Kind) Parent() Kind {
	switch k {
	case KindSession:
		return KindPeriodization
	case KindExercise:
		return KindSession
	case KindSet:
		return KindExercise
	}
	return ""
}

// Child returns the kind contained by k, or "" for sets.
func (k Kind) Child() Kind {
	switch k {
	case KindPeriodization:
		return KindSession
	case KindSession:
		return KindExercise
	case KindExercise:
		return KindSet
	}
	return ""
}

// Ordered reports whether siblings of this kind are sequenced by OrderIndex.
func (k Kind) Ordered() bool {
	return k == KindExercise || k == KindSet
}

// IsValid reports whether k names a known kind.
func (k Kind) IsValid() bool {
	return k.Table() != ""
}

// ParseKind converts a string (singular or table name) to a Kind.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if s == string(k) || s == k.Table() {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown entity kind: %q", s)
}

// Meta carries the identity, ownership, audit and sync fields common to every entity.
type Meta struct {
	ID        string     `json:"id" yaml:"id"`
	UserID    string     `json:"user_id" yaml:"user_id"`
	CreatedAt time.Time  `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" yaml:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty" yaml:"deleted_at,omitempty"`
	SyncedAt  *time.Time `json:"synced_at,omitempty" yaml:"synced_at,omitempty"`
	NeedsSync bool       `json:"needs_sync" yaml:"needs_sync"`
}

// Base returns the embedded Meta so generic code can reach lifecycle fields.
func (m *Meta) Base() *Meta { return m }

// IsDeleted reports whether the record is tombstoned.
func (m *Meta) IsDeleted() bool { return m.DeletedAt != nil }

// Record is implemented by every entity type.
type Record interface {
	Base() *Meta
	Kind() Kind
	// ParentID is the id of the containing entity; periodizations return "".
	ParentID() string
	// Validate checks type-specific fields at the store boundary.
	Validate() error
	normalize()
}

// NewRecord returns an empty record of the given kind, ready for decoding.
func NewRecord(k Kind) (Record, error) {
	switch k {
	case KindPeriodization:
		return &Periodization{}, nil
	case KindSession:
		return &Session{}, nil
	case KindExercise:
		return &Exercise{}, nil
	case KindSet:
		return &Set{}, nil
	}
	return nil, fmt.Errorf("unknown entity kind: %q", k)
}

// TimeFormat is the fixed-width persisted timestamp layout. It is always UTC
// with microsecond precision, so lexical order equals chronological order.
const TimeFormat = "2006-01-02T15:04:05.000000Z"

// Precision is the finest timestamp resolution kept by the store and the remote.
const Precision = time.Microsecond

// NormalizeTime converts t to UTC and truncates it to Precision.
func NormalizeTime(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC().Truncate(Precision)
}

// NormalizeTimePtr is NormalizeTime for optional timestamps.
func NormalizeTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	n := NormalizeTime(*t)
	return &n
}

// FormatTime renders t in TimeFormat.
func FormatTime(t time.Time) string {
	return NormalizeTime(t).Format(TimeFormat)
}

// ParseTime parses a persisted timestamp, accepting TimeFormat and RFC3339 variants.
func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(TimeFormat, s)
	if err != nil {
		t, err = time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}, err
		}
	}
	return NormalizeTime(t), nil
}

// Normalize brings every timestamp of rec to the persisted precision.
func Normalize(rec Record) {
	m := rec.Base()
	m.CreatedAt = NormalizeTime(m.CreatedAt)
	m.UpdatedAt = NormalizeTime(m.UpdatedAt)
	m.DeletedAt = NormalizeTimePtr(m.DeletedAt)
	m.SyncedAt = NormalizeTimePtr(m.SyncedAt)
	rec.normalize()
}

// Clean reports whether the dirty-tracking invariant holds for m:
// a record that is not dirty has been acknowledged no earlier than its last update.
func (m *Meta) Clean() bool {
	return !m.NeedsSync && m.SyncedAt != nil && !m.SyncedAt.Before(m.UpdatedAt)
}
