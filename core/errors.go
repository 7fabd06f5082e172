package core

import "github.com/pkg/errors"

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// ConflictError indicates an operation that cannot apply to the entity's
// current state (re-validating a scored completion, redeeming beyond the
// available credits...). Details carries structured figures for the caller.
type ConflictError struct {
	Err     error
	Details map[string]interface{}
}

func NewConflictError(err error, details ...map[string]interface{}) error {
	cErr := &ConflictError{Err: err}
	if len(details) > 0 {
		cErr.Details = details[0]
	}
	return cErr
}

func (err ConflictError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
