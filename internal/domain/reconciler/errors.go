package reconciler

import (
	"errors"
	"fmt"
)

// ValidationError marks a framework-level validation failure during
// posting creation, e.g. a permission denial or a document failing its
// save checks. The executor handles it the same way as an unexpected
// error (the transaction goes to Unmatched) but logs it on a separate
// channel for operability.
type ValidationError struct {
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

// Unwrap exposes the wrapped cause.
func (e *ValidationError) Unwrap() error { return e.Err }

// NewValidationError creates a validation error with an optional cause.
func NewValidationError(reason string, err error) *ValidationError {
	return &ValidationError{Reason: reason, Err: err}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
