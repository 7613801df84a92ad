// Package apperror defines the error taxonomy shared by the lifecycle engine,
// the auth gateway and the HTTP API.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is a short machine-readable error code.
type Code string

const (
	CodeBadRequest   Code = "bad_request"
	CodeNotFound     Code = "not_found"
	CodeConflict     Code = "conflict"
	CodeForbidden    Code = "forbidden"
	CodeUnauthorized Code = "unauthorized"
	CodeInternal     Code = "internal_error"
	CodeValidation   Code = "validation_error"
)

// InternalMessage is the only message ever shown for internal errors.
const InternalMessage = "internal server error"

// HTTPStatus maps a code to its HTTP status.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeBadRequest:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeForbidden:
		return http.StatusForbidden
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeValidation:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// Error carries a taxonomy code, a client-safe message and an optional cause.
// The cause is for logs only and is never rendered to clients.
type Error struct {
	Code    Code
	Message string
	Details any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code Code, err error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

func BadRequest(format string, args ...any) *Error {
	return newError(CodeBadRequest, nil, format, args...)
}

func NotFound(format string, args ...any) *Error {
	return newError(CodeNotFound, nil, format, args...)
}

func Conflict(format string, args ...any) *Error {
	return newError(CodeConflict, nil, format, args...)
}

func Forbidden(format string, args ...any) *Error {
	return newError(CodeForbidden, nil, format, args...)
}

func Unauthorized(format string, args ...any) *Error {
	return newError(CodeUnauthorized, nil, format, args...)
}

// Internal wraps a storage or programming failure with no defined compensation.
func Internal(err error, format string, args ...any) *Error {
	return newError(CodeInternal, err, format, args...)
}

// Validation reports a request that failed schema validation.
func Validation(details any) *Error {
	return &Error{Code: CodeValidation, Message: "request validation failed", Details: details}
}

// CodeOf returns the taxonomy code of err, or CodeInternal for foreign errors.
func CodeOf(err error) Code {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// As extracts an *Error from err.
// Foreign errors collapse to a generic internal error so nothing leaks verbatim.
func As(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal(err, InternalMessage)
}
