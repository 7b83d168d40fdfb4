// ABOUTME: Set model, a single working set of an exercise.
// ABOUTME: Carries load, reps, effort (RIR/RPE) and technique-specific segments.
package models

import (
	"math"
	"strings"
	"time"
)

// Techniques with per-segment data.
const (
	TechniqueDropSet   = "drop_set"
	TechniqueRestPause = "rest_pause"
	TechniqueCluster   = "cluster"
)

// DropSegment is one load reduction within a drop set.
type DropSegment struct {
	Weight      float64 `json:"weight" yaml:"weight"`
	Repetitions int     `json:"repetitions" yaml:"repetitions"`
}

// PauseSegment is one mini-set of a rest-pause or cluster set.
type PauseSegment struct {
	Repetitions int `json:"repetitions" yaml:"repetitions"`
	RestSeconds int `json:"rest_seconds" yaml:"rest_seconds"`
}

// Set is one performed or planned set of an exercise.
type Set struct {
	Meta        `yaml:",inline"`
	ExerciseID  string         `json:"exercise_id" yaml:"exercise_id"`
	OrderIndex  int            `json:"order_index" yaml:"order_index"`
	Repetitions int            `json:"repetitions" yaml:"repetitions"`
	Weight      float64        `json:"weight" yaml:"weight"`
	Technique   *string        `json:"technique,omitempty" yaml:"technique,omitempty"`
	SetType     *string        `json:"set_type,omitempty" yaml:"set_type,omitempty"`
	RestTime    *int           `json:"rest_time,omitempty" yaml:"rest_time,omitempty"`
	RIR         *int           `json:"rir,omitempty" yaml:"rir,omitempty"`
	RPE         *float64       `json:"rpe,omitempty" yaml:"rpe,omitempty"`
	Notes       *string        `json:"notes,omitempty" yaml:"notes,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
	DropSets    []DropSegment  `json:"drop_sets,omitempty" yaml:"drop_sets,omitempty"`
	RestPause   []PauseSegment `json:"rest_pause,omitempty" yaml:"rest_pause,omitempty"`
	Cluster     []PauseSegment `json:"cluster,omitempty" yaml:"cluster,omitempty"`
}

// NewSet creates a Set at position orderIndex within an exercise.
func NewSet(userID, exerciseID string, orderIndex, reps int, weight float64) *Set {
	return &Set{
		Meta:        Meta{UserID: userID},
		ExerciseID:  exerciseID,
		OrderIndex:  orderIndex,
		Repetitions: reps,
		Weight:      weight,
	}
}

// WithRPE sets the rating of perceived exertion.
func (s *Set) WithRPE(rpe float64) *Set {
	s.RPE = &rpe
	return s
}

// WithRIR sets reps in reserve.
func (s *Set) WithRIR(rir int) *Set {
	s.RIR = &rir
	return s
}

// Volume is weight times repetitions, including drop-set and mini-set segments.
func (s *Set) Volume() float64 {
	v := s.Weight * float64(s.Repetitions)
	for _, d := range s.DropSets {
		v += d.Weight * float64(d.Repetitions)
	}
	for _, p := range s.RestPause {
		v += s.Weight * float64(p.Repetitions)
	}
	for _, c := range s.Cluster {
		v += s.Weight * float64(c.Repetitions)
	}
	return v
}

func (s *Set) Kind() Kind       { return KindSet }
func (s *Set) ParentID() string { return s.ExerciseID }

func (s *Set) Validate() error {
	if strings.TrimSpace(s.UserID) == "" {
		return fieldErr(KindSet, "user_id", "required")
	}
	if s.ExerciseID == "" {
		return fieldErr(KindSet, "exercise_id", "required")
	}
	if s.OrderIndex < 0 {
		return fieldErr(KindSet, "order_index", "must be zero or greater")
	}
	if s.Repetitions < 0 {
		return fieldErr(KindSet, "repetitions", "must be zero or greater")
	}
	if !finite(s.Weight) {
		return fieldErr(KindSet, "weight", "must be a finite number")
	}
	if s.Weight < 0 {
		return fieldErr(KindSet, "weight", "must be zero or greater")
	}
	if s.RIR != nil && *s.RIR < 0 {
		return fieldErr(KindSet, "rir", "must be zero or greater")
	}
	if s.RPE != nil && (!finite(*s.RPE) || *s.RPE < 0 || *s.RPE > 10) {
		return fieldErr(KindSet, "rpe", "must be between 0 and 10")
	}
	if s.RestTime != nil && *s.RestTime < 0 {
		return fieldErr(KindSet, "rest_time", "must be zero or greater")
	}
	for _, d := range s.DropSets {
		if !finite(d.Weight) || d.Weight < 0 || d.Repetitions < 0 {
			return fieldErr(KindSet, "drop_sets", "segments must be finite and non-negative")
		}
	}
	return nil
}

// finite rejects NaN and the infinities, which no backend can store.
func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func (s *Set) normalize() {
	s.CompletedAt = NormalizeTimePtr(s.CompletedAt)
}
