package core

import "github.com/pkg/errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrAccessDenied = errors.New("access denied")
)

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

// NotFoundError is returned when a referenced entity does not exist.
type NotFoundError struct {
	msg string
}

func NewNotFoundError(msg string) error {
	return &NotFoundError{msg: msg}
}

func (err NotFoundError) Error() string { return err.msg }

// Is makes every NotFoundError match ErrNotFound with errors.Is.
func (err NotFoundError) Is(target error) bool { return target == ErrNotFound }

func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	if _, ok := errors.Cause(err).(*NotFoundError); ok {
		return true
	}
	return errors.Is(err, ErrNotFound)
}

// ConflictError is returned when a request would violate the current state.
type ConflictError struct {
	msg string
}

func NewConflictError(msg string) error {
	return &ConflictError{msg: msg}
}

func (err ConflictError) Error() string { return err.msg }

func IsConflict(err error) bool {
	_, ok := errors.Cause(err).(*ConflictError)
	return ok
}

func IsAccessDenied(err error) bool {
	return errors.Cause(err) == ErrAccessDenied
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
