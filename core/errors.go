package core

import (
	"fmt"

	"github.com/pkg/errors"
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

// ErrorKind classifies an AppError; the HTTP layer maps it to a status code.
type ErrorKind int

const (
	KindBadRequest ErrorKind = iota + 1
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	KindInternal
)

// AppError carries a message meant to be shown to the user as is.
type AppError struct {
	Kind    ErrorKind
	Message string
}

func (e *AppError) Error() string {
	return e.Message
}

func newAppError(kind ErrorKind, format string, args ...interface{}) error {
	return &AppError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func NewBadRequestError(format string, args ...interface{}) error {
	return newAppError(KindBadRequest, format, args...)
}

func NewUnauthorizedError(format string, args ...interface{}) error {
	return newAppError(KindUnauthorized, format, args...)
}

func NewForbiddenError(format string, args ...interface{}) error {
	return newAppError(KindForbidden, format, args...)
}

func NewNotFoundError(format string, args ...interface{}) error {
	return newAppError(KindNotFound, format, args...)
}

func NewConflictError(format string, args ...interface{}) error {
	return newAppError(KindConflict, format, args...)
}

func NewInternalError(format string, args ...interface{}) error {
	return newAppError(KindInternal, format, args...)
}

// AsAppError returns the AppError at the root of err, if any.
func AsAppError(err error) (*AppError, bool) {
	appErr, ok := errors.Cause(err).(*AppError)
	return appErr, ok
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
