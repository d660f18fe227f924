package core

import "github.com/pkg/errors"

// FieldError ties a validation message to a single input field.
type FieldError struct {
	Field string
	Error string
}

// ValidationError carries per-field messages for a rejected input payload.
// Err may be nil when only the field messages matter.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{Err: err, Fields: flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

func (err ValidationError) Unwrap() error { return err.Err }

// shutdown marks an unrecoverable integrity problem; the HTTP error handler
// turns it into a graceful server stop.
type shutdown struct {
	message string
}

func NewShutdownError(msg string) error { return &shutdown{message: msg} }

func (s shutdown) Error() string { return s.message }

// IsShutdown reports whether err, at its cause, requests a shutdown.
func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
