// ABOUTME: Tests for entity validation and set volume.
// ABOUTME: Each entity rejects missing ownership, names and out-of-range numbers.
package models

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestValidate(t *testing.T) {
	start := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	before := start.Add(-24 * time.Hour)

	tests := []struct {
		name  string
		rec   Record
		field string
	}{
		{"valid periodization", NewPeriodization("u", "Block", start), ""},
		{"periodization without user", NewPeriodization("", "Block", start), "user_id"},
		{"periodization without name", NewPeriodization("u", "  ", start), "name"},
		{"periodization without start", NewPeriodization("u", "Block", time.Time{}), "start_date"},
		{"periodization ends before start", NewPeriodization("u", "Block", start).WithEndDate(before), "end_date"},

		{"valid session", NewSession("u", "p", "Lower", start), ""},
		{"session without parent", NewSession("u", "", "Lower", start), "periodization_id"},
		{"session with bad status", func() Record {
			s := NewSession("u", "p", "Lower", start)
			s.Status = "skipped"
			return s
		}(), "status"},

		{"valid exercise", NewExercise("u", "s", "Squat", 0), ""},
		{"exercise without parent", NewExercise("u", "", "Squat", 0), "session_id"},
		{"exercise negative order", NewExercise("u", "s", "Squat", -1), "order_index"},

		{"valid set", NewSet("u", "e", 0, 5, 100).WithRPE(8).WithRIR(2), ""},
		{"set without parent", NewSet("u", "", 0, 5, 100), "exercise_id"},
		{"set negative reps", NewSet("u", "e", 0, -1, 100), "repetitions"},
		{"set negative weight", NewSet("u", "e", 0, 5, -5), "weight"},
		{"set rpe above ten", NewSet("u", "e", 0, 5, 100).WithRPE(11), "rpe"},
		{"set negative rir", NewSet("u", "e", 0, 5, 100).WithRIR(-1), "rir"},
		{"set nan weight", NewSet("u", "e", 0, 5, math.NaN()), "weight"},
		{"set infinite weight", NewSet("u", "e", 0, 5, math.Inf(1)), "weight"},
		{"set nan rpe", NewSet("u", "e", 0, 5, 100).WithRPE(math.NaN()), "rpe"},
		{"set nan drop weight", func() Record {
			s := NewSet("u", "e", 0, 5, 100)
			s.DropSets = []DropSegment{{Weight: math.NaN(), Repetitions: 6}}
			return s
		}(), "drop_sets"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rec.Validate()
			if tt.field == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			var fe *FieldError
			if !errors.As(err, &fe) {
				t.Fatalf("error = %v, want *FieldError", err)
			}
			if fe.Field != tt.field {
				t.Errorf("field = %s, want %s", fe.Field, tt.field)
			}
		})
	}
}

func TestFieldErrorMessage(t *testing.T) {
	err := NewSet("u", "e", 0, 5, 100).WithRPE(12).Validate()
	if got := err.Error(); got != "invalid set.rpe: must be between 0 and 10" {
		t.Errorf("Error() = %q", got)
	}
}

func TestSetVolume(t *testing.T) {
	tests := []struct {
		name string
		set  *Set
		want float64
	}{
		{"straight set", NewSet("u", "e", 0, 5, 100), 500},
		{"drop set", func() *Set {
			s := NewSet("u", "e", 0, 8, 100)
			s.DropSets = []DropSegment{{Weight: 80, Repetitions: 6}, {Weight: 60, Repetitions: 8}}
			return s
		}(), 800 + 480 + 480},
		{"rest pause", func() *Set {
			s := NewSet("u", "e", 0, 6, 50)
			s.RestPause = []PauseSegment{{Repetitions: 3, RestSeconds: 15}, {Repetitions: 2, RestSeconds: 15}}
			return s
		}(), 300 + 150 + 100},
		{"cluster", func() *Set {
			s := NewSet("u", "e", 0, 2, 140)
			s.Cluster = []PauseSegment{{Repetitions: 2}, {Repetitions: 2}}
			return s
		}(), 280 * 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.set.Volume(); got != tt.want {
				t.Errorf("Volume() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSessionComplete(t *testing.T) {
	s := NewSession("u", "p", "Lower", time.Now())
	if s.Status != SessionPlanned {
		t.Fatalf("new session status = %s", s.Status)
	}
	at := time.Now()
	s.Complete(at)
	if s.Status != SessionCompleted || s.CompletedAt == nil || !s.CompletedAt.Equal(at) {
		t.Errorf("after Complete: %+v", s)
	}
}
