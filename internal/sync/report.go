// ABOUTME: Per-pass sync report with counters and aggregated per-record failures.
// ABOUTME: A failure on one record never rolls back records that already succeeded.
package sync

import (
	"errors"
	"fmt"
	"time"

	"github.com/harperreed/periodize/internal/models"
)

// Skip reasons for a pass that did not run.
const (
	SkipInFlight        = "in_flight"
	SkipOffline         = "offline"
	SkipUnauthenticated = "unauthenticated"
	SkipErrorState      = "error_state"
)

// RecordError is one record's failure within a pass.
type RecordError struct {
	Kind  models.Kind
	ID    string
	Phase string
	Err   error
}

func (e RecordError) Error() string {
	return fmt.Sprintf("%s %s %s: %v", e.Phase, e.Kind, e.ID, e.Err)
}

func (e RecordError) Unwrap() error { return e.Err }

// Report summarises one sync pass.
type Report struct {
	StartedAt  time.Time
	FinishedAt time.Time
	// Skipped is set when the guard returned without running a pass.
	Skipped string

	Pushed   int
	Deleted  int
	Deferred int
	// Requeued counts records edited while their push was in flight.
	Requeued int

	Fetched   int
	Inserted  int
	Updated   int
	LocalWins int

	Failures []RecordError
}

// Ran reports whether the pass executed.
func (r *Report) Ran() bool { return r.Skipped == "" }

// Err joins the per-record failures, or returns nil.
func (r *Report) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}

func (r *Report) fail(kind models.Kind, id, phase string, err error) {
	r.Failures = append(r.Failures, RecordError{Kind: kind, ID: id, Phase: phase, Err: err})
}

// Duration is the wall time of the pass.
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
