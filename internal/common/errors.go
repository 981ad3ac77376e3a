package common

import (
	"errors"
	"net/http"
)

// AppError carries the HTTP status and machine-readable code a handler
// should answer with. Err keeps the domain error for errors.Is checks.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
	Details    any
}

func (e *AppError) Error() string {
	switch {
	case e == nil:
		return ""
	case e.Err != nil:
		return e.Err.Error()
	default:
		return e.Message
	}
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// WithDetails attaches structured details rendered in the error body.
func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

// NewAppError constructs an AppError.
func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// BadRequest is a 400 with the generic BAD_REQUEST code.
func BadRequest(message string, err error) *AppError {
	return Invalid("BAD_REQUEST", message, err)
}

// Invalid is a 400 carrying a domain code such as INVALID_DISCOUNT. The
// message defaults to err's text.
func Invalid(code, message string, err error) *AppError {
	if message == "" && err != nil {
		message = err.Error()
	}
	return NewAppError(code, message, http.StatusBadRequest, err)
}

// NotFound is a 404.
func NotFound(message string, err error) *AppError {
	return NewAppError("NOT_FOUND", message, http.StatusNotFound, err)
}

// Unprocessable is a 422 for well-formed requests the pricing rules reject.
func Unprocessable(code, message string, err error) *AppError {
	return NewAppError(code, message, http.StatusUnprocessableEntity, err)
}

// IsAppError reports whether err wraps an AppError.
func IsAppError(err error) bool {
	var target *AppError
	return errors.As(err, &target)
}
