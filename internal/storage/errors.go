// ABOUTME: Error taxonomy for the local store.
// ABOUTME: NotFound for absent or tombstoned ids, ValidationError for malformed input.
package storage

import (
	"errors"
	"fmt"

	"github.com/harperreed/periodize/internal/models"
)

// ErrNotFound is returned when an id is absent, or tombstoned for live reads.
var ErrNotFound = errors.New("not found")

// ErrValidation is matched by every ValidationError.
var ErrValidation = errors.New("validation failed")

// ValidationError reports malformed input rejected at the store boundary.
type ValidationError struct {
	Kind   models.Kind
	ID     string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid %s %s: %v", e.Kind, e.ID, e.Err)
	}
	return fmt.Sprintf("invalid %s %s: %s", e.Kind, e.ID, e.Reason)
}

// Is lets errors.Is(err, ErrValidation) match any ValidationError.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func (e *ValidationError) Unwrap() error { return e.Err }

func notFound(kind models.Kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
}
