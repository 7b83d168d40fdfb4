// ABOUTME: Error taxonomy for remote calls.
// ABOUTME: Unavailable and Unauthorized sentinels plus per-record ConflictError.
package remote

import (
	"errors"
	"fmt"

	"github.com/harperreed/periodize/internal/models"
)

// ErrUnavailable covers network failures, timeouts and server-side outages.
var ErrUnavailable = errors.New("remote unavailable")

// ErrUnauthorized is returned when the remote rejects the credentials.
var ErrUnauthorized = errors.New("remote rejected credentials")

// ConflictError reports a backend-side rejection of one record.
type ConflictError struct {
	Kind models.Kind
	ID   string
	// Code is the backend's error code, e.g. a Postgres SQLSTATE.
	Code    string
	Message string
	// ParentMissing is set when the rejection is a foreign-key violation.
	ParentMissing bool
}

func (e *ConflictError) Error() string {
	if e.ParentMissing {
		return fmt.Sprintf("remote conflict on %s %s: parent missing: %s", e.Kind, e.ID, e.Message)
	}
	return fmt.Sprintf("remote conflict on %s %s: %s", e.Kind, e.ID, e.Message)
}

// IsConflict reports whether err is a ConflictError.
func IsConflict(err error) bool {
	var c *ConflictError
	return errors.As(err, &c)
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
}
