// services/errors.go - Service error taxonomy
package services

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorCode classifies a failure so the transport layer can map it to a status
type ErrorCode string

const (
	ErrValidation      ErrorCode = "VALIDATION"
	ErrUnauthenticated ErrorCode = "UNAUTHENTICATED"
	ErrForbidden       ErrorCode = "FORBIDDEN"
	ErrNotFound        ErrorCode = "NOT_FOUND"
	ErrConflict        ErrorCode = "CONFLICT"
	ErrTransient       ErrorCode = "TRANSIENT"
	ErrInternal        ErrorCode = "INTERNAL"
)

// ServiceError is returned by every service operation
type ServiceError struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewError creates a ServiceError without a cause
func NewError(code ErrorCode, message string) *ServiceError {
	return &ServiceError{Code: code, Message: message}
}

// WrapError creates a ServiceError around err
func WrapError(code ErrorCode, message string, err error) *ServiceError {
	return &ServiceError{Code: code, Message: message, Err: err}
}

// CodeOf returns the code of the first ServiceError in err's chain, or
// ErrInternal for any other non-nil error
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Code
	}
	return ErrInternal
}

// MessageOf returns the user-facing message for err
func MessageOf(err error) string {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Message
	}
	return "internal server error"
}

// IsCode reports whether err carries code
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

func errAuthRequired() error {
	return NewError(ErrUnauthenticated, "authentication required")
}

func errValidation(format string, args ...interface{}) error {
	return NewError(ErrValidation, fmt.Sprintf(format, args...))
}

func errNotFound(what string) error {
	return NewError(ErrNotFound, what+" not found")
}

func errInternal(op string, err error) error {
	return WrapError(ErrInternal, op+" failed", errors.WithStack(err))
}
