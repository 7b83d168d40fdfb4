// ABOUTME: Tests for entity kinds, timestamp normalisation and the clean invariant.
// ABOUTME: Covers kind ordering, parsing, and the persisted time layout.
package models

import (
	"testing"
	"time"
)

func TestKindHierarchy(t *testing.T) {
	tests := []struct {
		kind   Kind
		table  string
		parent Kind
		child  Kind
	}{
		{KindPeriodization, "periodizations", "", KindSession},
		{KindSession, "sessions", KindPeriodization, KindExercise},
		{KindExercise, "exercises", KindSession, KindSet},
		{KindSet, "sets", KindExercise, ""},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			if got := tt.kind.Table(); got != tt.table {
				t.Errorf("Table() = %s, want %s", got, tt.table)
			}
			if got := tt.kind.Parent(); got != tt.parent {
				t.Errorf("Parent() = %s, want %s", got, tt.parent)
			}
			if got := tt.kind.Child(); got != tt.child {
				t.Errorf("Child() = %s, want %s", got, tt.child)
			}
		})
	}
}

func TestKindsParentsFirst(t *testing.T) {
	seen := map[Kind]bool{}
	for _, k := range Kinds {
		if p := k.Parent(); p != "" && !seen[p] {
			t.Errorf("%s listed before its parent %s", k, p)
		}
		seen[k] = true
	}
}

func TestParseKind(t *testing.T) {
	for _, in := range []string{"set", "sets", "periodization", "periodizations"} {
		if _, err := ParseKind(in); err != nil {
			t.Errorf("ParseKind(%q) unexpected error: %v", in, err)
		}
	}
	if _, err := ParseKind("workout"); err == nil {
		t.Error("ParseKind(workout) expected error")
	}
}

func TestNewRecord(t *testing.T) {
	for _, k := range Kinds {
		rec, err := NewRecord(k)
		if err != nil {
			t.Fatalf("NewRecord(%s): %v", k, err)
		}
		if rec.Kind() != k {
			t.Errorf("NewRecord(%s).Kind() = %s", k, rec.Kind())
		}
	}
	if _, err := NewRecord("nope"); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestNormalizeTime(t *testing.T) {
	loc := time.FixedZone("X", 2*60*60)
	in := time.Date(2025, 1, 31, 10, 0, 0, 123456789, loc)

	got := NormalizeTime(in)

	if got.Location() != time.UTC {
		t.Errorf("location = %v, want UTC", got.Location())
	}
	if got.Nanosecond() != 123456000 {
		t.Errorf("nanoseconds = %d, want 123456000", got.Nanosecond())
	}
	if !got.Equal(in.Truncate(time.Microsecond)) {
		t.Errorf("instant changed: %v vs %v", got, in)
	}
	if !NormalizeTime(time.Time{}).IsZero() {
		t.Error("zero time should stay zero")
	}
}

func TestFormatTimeIsFixedWidth(t *testing.T) {
	a := FormatTime(time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC))
	b := FormatTime(time.Date(2025, 1, 2, 3, 4, 5, 1000, time.UTC))

	if a != "2025-01-02T03:04:05.000000Z" {
		t.Errorf("FormatTime = %s", a)
	}
	if len(a) != len(b) || !(a < b) {
		t.Errorf("lexical order broken: %s vs %s", a, b)
	}
}

func TestParseTime(t *testing.T) {
	want := time.Date(2025, 1, 2, 3, 4, 5, 6000, time.UTC)
	for _, in := range []string{
		"2025-01-02T03:04:05.000006Z",
		"2025-01-02T05:04:05.000006789+02:00",
	} {
		got, err := ParseTime(in)
		if err != nil {
			t.Fatalf("ParseTime(%q): %v", in, err)
		}
		if !got.Equal(want) {
			t.Errorf("ParseTime(%q) = %v, want %v", in, got, want)
		}
	}
	if _, err := ParseTime("yesterday"); err == nil {
		t.Error("expected error")
	}
}

func TestMetaClean(t *testing.T) {
	now := time.Now()
	later := now.Add(time.Second)

	tests := []struct {
		name string
		meta Meta
		want bool
	}{
		{"dirty", Meta{UpdatedAt: now, NeedsSync: true, SyncedAt: &later}, false},
		{"never synced", Meta{UpdatedAt: now}, false},
		{"synced after update", Meta{UpdatedAt: now, SyncedAt: &later}, true},
		{"synced at update", Meta{UpdatedAt: now, SyncedAt: &now}, true},
		{"updated after sync", Meta{UpdatedAt: later, SyncedAt: &now}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.meta.Clean(); got != tt.want {
				t.Errorf("Clean() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNormalizeRecord(t *testing.T) {
	ts := time.Date(2025, 1, 1, 0, 0, 0, 999, time.Local)
	s := NewSession("u", "p", "Lower", ts)
	s.Status = ""
	s.UpdatedAt = ts

	Normalize(s)

	if s.ScheduledAt.Nanosecond() != 0 || s.UpdatedAt.Location() != time.UTC {
		t.Errorf("timestamps not normalised: %v %v", s.ScheduledAt, s.UpdatedAt)
	}
	if s.Status != SessionPlanned {
		t.Errorf("status = %q, want planned", s.Status)
	}
}
