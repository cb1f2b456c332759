package core

import "github.com/pkg/errors"

// ErrForbidden is returned when an actor lacks the capability for an operation.
// It deliberately carries nothing about the target.
var ErrForbidden = errors.New("permission denied")

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
		if len(err.Fields) > 0 {
			return err.Fields[0].Field + ": " + err.Fields[0].Error
		}
		return ""
	}
	return err.Err.Error()
}

// NotFoundError reports a missing entity.
type NotFoundError struct {
	Entity string
}

func NewNotFoundError(entity string) error {
	return &NotFoundError{Entity: entity}
}

func (err NotFoundError) Error() string {
	return err.Entity + " not found"
}

func IsNotFound(err error) bool {
	_, ok := errors.Cause(err).(*NotFoundError)
	return ok
}

func IsForbidden(err error) bool {
	return errors.Cause(err) == ErrForbidden
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
