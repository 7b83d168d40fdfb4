// ABOUTME: Exercise model, an ordered movement within a session.
// ABOUTME: Supports conjugated (superset) grouping via group label and order.
package models

import (
	"strings"
	"time"
)

// Exercise is a movement performed during a session.
type Exercise struct {
	Meta            `yaml:",inline"`
	SessionID       string     `json:"session_id" yaml:"session_id"`
	Name            string     `json:"name" yaml:"name"`
	MuscleGroup     *string    `json:"muscle_group,omitempty" yaml:"muscle_group,omitempty"`
	Equipment       *string    `json:"equipment,omitempty" yaml:"equipment,omitempty"`
	Notes           *string    `json:"notes,omitempty" yaml:"notes,omitempty"`
	OrderIndex      int        `json:"order_index" yaml:"order_index"`
	ConjugatedGroup *string    `json:"conjugated_group,omitempty" yaml:"conjugated_group,omitempty"`
	ConjugatedOrder *int       `json:"conjugated_order,omitempty" yaml:"conjugated_order,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
}

// NewExercise creates an Exercise at position orderIndex within a session.
func NewExercise(userID, sessionID, name string, orderIndex int) *Exercise {
	return &Exercise{
		Meta:       Meta{UserID: userID},
		SessionID:  sessionID,
		Name:       name,
		OrderIndex: orderIndex,
	}
}

// WithMuscleGroup sets the muscle group.
func (e *Exercise) WithMuscleGroup(g string) *Exercise {
	e.MuscleGroup = &g
	return e
}

// WithEquipment sets the equipment.
func (e *Exercise) WithEquipment(eq string) *Exercise {
	e.Equipment = &eq
	return e
}

func (e *Exercise) Kind() Kind       { return KindExercise }
func (e *Exercise) ParentID() string { return e.SessionID }

func (e *Exercise) Validate() error {
	if strings.TrimSpace(e.UserID) == "" {
		return fieldErr(KindExercise, "user_id", "required")
	}
	if e.SessionID == "" {
		return fieldErr(KindExercise, "session_id", "required")
	}
	if strings.TrimSpace(e.Name) == "" {
		return fieldErr(KindExercise, "name", "required")
	}
	if e.OrderIndex < 0 {
		return fieldErr(KindExercise, "order_index", "must be zero or greater")
	}
	if e.ConjugatedOrder != nil && *e.ConjugatedOrder < 0 {
		return fieldErr(KindExercise, "conjugated_order", "must be zero or greater")
	}
	return nil
}

func (e *Exercise) normalize() {
	e.CompletedAt = NormalizeTimePtr(e.CompletedAt)
}
