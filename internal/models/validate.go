// ABOUTME: Field validation errors raised at the store boundary.
// ABOUTME: FieldError names the offending field so callers can report it.
package models

import "fmt"

// FieldError describes a malformed field on an entity.
type FieldError struct {
	Kind   Kind
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("invalid %s.%s: %s", e.Kind, e.Field, e.Reason)
}

func fieldErr(k Kind, field, reason string) error {
	return &FieldError{Kind: k, Field: field, Reason: reason}
}
