// ABOUTME: Session model, a scheduled training day within a periodization.
// ABOUTME: Tracks planned/in-progress/completed status and completion time.
package models

import (
	"strings"
	"time"
)

// SessionStatus is the lifecycle state of a training session.
type SessionStatus string

const (
	SessionPlanned    SessionStatus = "planned"
	SessionInProgress SessionStatus = "in_progress"
	SessionCompleted  SessionStatus = "completed"
)

// IsValid reports whether s is a known status.
func (s SessionStatus) IsValid() bool {
	switch s {
	case SessionPlanned, SessionInProgress, SessionCompleted:
		return true
	}
	return false
}

// Session is a training day belonging to a periodization.
type Session struct {
	Meta            `yaml:",inline"`
	PeriodizationID string        `json:"periodization_id" yaml:"periodization_id"`
	Name            string        `json:"name" yaml:"name"`
	ScheduledAt     time.Time     `json:"scheduled_at" yaml:"scheduled_at"`
	CompletedAt     *time.Time    `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
	Status          SessionStatus `json:"status" yaml:"status"`
	Notes           *string       `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// NewSession creates a planned Session.
func NewSession(userID, periodizationID, name string, scheduledAt time.Time) *Session {
	return &Session{
		Meta:            Meta{UserID: userID},
		PeriodizationID: periodizationID,
		Name:            name,
		ScheduledAt:     scheduledAt,
		Status:          SessionPlanned,
	}
}

// Complete marks the session completed at t.
func (s *Session) Complete(t time.Time) {
	s.Status = SessionCompleted
	s.CompletedAt = &t
}

func (s *Session) Kind() Kind       { return KindSession }
func (s *Session) ParentID() string { return s.PeriodizationID }

func (s *Session) Validate() error {
	if strings.TrimSpace(s.UserID) == "" {
		return fieldErr(KindSession, "user_id", "required")
	}
	if s.PeriodizationID == "" {
		return fieldErr(KindSession, "periodization_id", "required")
	}
	if strings.TrimSpace(s.Name) == "" {
		return fieldErr(KindSession, "name", "required")
	}
	if s.ScheduledAt.IsZero() {
		return fieldErr(KindSession, "scheduled_at", "required")
	}
	if !s.Status.IsValid() {
		return fieldErr(KindSession, "status", "must be planned, in_progress or completed")
	}
	return nil
}

func (s *Session) normalize() {
	s.ScheduledAt = NormalizeTime(s.ScheduledAt)
	s.CompletedAt = NormalizeTimePtr(s.CompletedAt)
	if s.Status == "" {
		s.Status = SessionPlanned
	}
}
