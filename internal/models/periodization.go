// ABOUTME: Periodization model, the root of the training hierarchy.
// ABOUTME: A named training block with a start date and optional end date.
package models

import (
	"strings"
	"time"
)

// Periodization is a training block owned by a user.
type Periodization struct {
	Meta        `yaml:",inline"`
	Name        string     `json:"name" yaml:"name"`
	Description *string    `json:"description,omitempty" yaml:"description,omitempty"`
	StartDate   time.Time  `json:"start_date" yaml:"start_date"`
	EndDate     *time.Time `json:"end_date,omitempty" yaml:"end_date,omitempty"`
}

// NewPeriodization creates a Periodization for userID starting at start.
// The id and timestamps are assigned by the store.
func NewPeriodization(userID, name string, start time.Time) *Periodization {
	return &Periodization{
		Meta:      Meta{UserID: userID},
		Name:      name,
		StartDate: start,
	}
}

// WithEndDate sets the end date.
func (p *Periodization) WithEndDate(t time.Time) *Periodization {
	p.EndDate = &t
	return p
}

// WithDescription sets the description.
func (p *Periodization) WithDescription(d string) *Periodization {
	p.Description = &d
	return p
}

func (p *Periodization) Kind() Kind       { return KindPeriodization }
func (p *Periodization) ParentID() string { return "" }

func (p *Periodization) Validate() error {
	if strings.TrimSpace(p.UserID) == "" {
		return fieldErr(KindPeriodization, "user_id", "required")
	}
	if strings.TrimSpace(p.Name) == "" {
		return fieldErr(KindPeriodization, "name", "required")
	}
	if p.StartDate.IsZero() {
		return fieldErr(KindPeriodization, "start_date", "required")
	}
	if p.EndDate != nil && p.EndDate.Before(p.StartDate) {
		return fieldErr(KindPeriodization, "end_date", "before start_date")
	}
	return nil
}

func (p *Periodization) normalize() {
	p.StartDate = NormalizeTime(p.StartDate)
	p.EndDate = NormalizeTimePtr(p.EndDate)
}
