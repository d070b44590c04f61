package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is the service's typed error. Code is the stable machine-readable
// identifier exposed over the API; Status drives the HTTP response.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap exposes the cause for errors.Is and errors.As.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates an Error with no underlying cause.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// WrapAs builds an Error carrying the sentinel's code and status with a
// contextual message and the underlying cause.
func WrapAs(err error, sentinel *Error, message string) *Error {
	return &Error{Code: sentinel.Code, Status: sentinel.Status, Message: message, Err: err}
}

// Clone copies a sentinel, optionally overriding its message. Sentinels
// are shared so they must never be mutated in place.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// FromError normalises any error into an *Error. Unknown errors map to
// ErrInternal so no raw cause text leaks into API responses.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return WrapAs(err, ErrInternal, ErrInternal.Message)
}

// Predefined errors for common scenarios.
var (
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid email or password")
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrUpstream           = New("UPSTREAM_ERROR", http.StatusBadGateway, "tag directory request failed")
	ErrCacheMiss          = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)
