package core

import (
	"errors"
	"fmt"
)

// ValidationError reports malformed or missing input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s %s", e.Field, e.Reason)
}

// Invalid is shorthand for a ValidationError.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// AuthError reports a missing, invalid or expired credential.
// Missing maps to 401, everything else to 403.
type AuthError struct {
	Reason  string
	Missing bool
}

func (e *AuthError) Error() string { return "auth: " + e.Reason }

// NotFoundError reports an entity id that does not resolve.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// PersistenceError wraps a failure of the persistence gateway.
type PersistenceError struct {
	Op   string
	Kind string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s %s: %v", e.Op, e.Kind, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Persistence wraps err unless it is nil or already classified.
func Persistence(op, kind string, err error) error {
	if err == nil {
		return nil
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &PersistenceError{Op: op, Kind: kind, Err: err}
}

// UnsupportedCurrencyError reports a currency outside the supported set.
type UnsupportedCurrencyError struct {
	Currency string
}

func (e *UnsupportedCurrencyError) Error() string {
	return fmt.Sprintf("unsupported currency %q", e.Currency)
}

// ProtectedCategoryError is returned when a built-in category is modified.
type ProtectedCategoryError struct {
	ID string
}

func (e *ProtectedCategoryError) Error() string {
	return fmt.Sprintf("category %q is built in and cannot be changed", e.ID)
}
