package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidState = errors.New("invalid state")
	ErrBackpressure = errors.New("backpressure")
)

// ValidationError reports a malformed or out-of-bounds specification field.
// The request carrying it is never enqueued.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid field %q: %s", e.Field, e.Reason)
}

func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// AsValidation unwraps err into a ValidationError, if it is one.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// FailureKind classifies why a job reached the Failed state.
type FailureKind string

const (
	FailureUpstreamError       FailureKind = "upstream_error"
	FailureUpstreamUnavailable FailureKind = "upstream_unavailable"
	FailureTimeout             FailureKind = "timeout"
	FailureInternal            FailureKind = "internal"
)
