// Package core provides shared utilities for the city map pipeline.
package core

import (
	"fmt"
	"net/http"
)

// ErrorCode defines standard error codes for pipeline failures
type ErrorCode string

// Standard error codes
const (
	// Input validation errors
	ErrInvalidInput     ErrorCode = "INVALID_INPUT"
	ErrInvalidLatitude  ErrorCode = "INVALID_LATITUDE"
	ErrInvalidLongitude ErrorCode = "INVALID_LONGITUDE"
	ErrInvalidRadius    ErrorCode = "INVALID_RADIUS"
	ErrEmptyParameter   ErrorCode = "EMPTY_PARAMETER"
	ErrPlaceNotFound    ErrorCode = "PLACE_NOT_FOUND"
	ErrUnknownStyle     ErrorCode = "UNKNOWN_STYLE"

	// Service errors
	ErrServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	ErrServiceTimeout     ErrorCode = "SERVICE_TIMEOUT"
	ErrRateLimit          ErrorCode = "RATE_LIMIT"
	ErrNetworkError       ErrorCode = "NETWORK_ERROR"

	// Data errors
	ErrNoResults     ErrorCode = "NO_RESULTS"
	ErrParseError    ErrorCode = "PARSE_ERROR"
	ErrInternalError ErrorCode = "INTERNAL_ERROR"
)

// ErrorKind classifies errors by how the caller should react
type ErrorKind int

const (
	// KindInput marks errors caused by bad caller input; retrying the
	// same request will fail again
	KindInput ErrorKind = iota
	// KindService marks transient or environment errors where a retry
	// may succeed
	KindService
)

// Error represents a detailed error raised by the pipeline
type Error struct {
	Code     ErrorCode `json:"code"`
	Message  string    `json:"message"`
	Query    string    `json:"query,omitempty"`
	Guidance string    `json:"guidance,omitempty"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Guidance != "" {
		return fmt.Sprintf("%s: %s. %s", e.Code, e.Message, e.Guidance)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Kind reports whether the error is an input error or a service error
func (e *Error) Kind() ErrorKind {
	switch e.Code {
	case ErrServiceUnavailable, ErrServiceTimeout, ErrRateLimit,
		ErrNetworkError, ErrInternalError:
		return KindService
	default:
		return KindInput
	}
}

// NewError creates a new Error with the given code and message
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// WithQuery adds query information to the error
func (e *Error) WithQuery(query string) *Error {
	e.Query = query
	return e
}

// WithGuidance adds guidance information to the error
func (e *Error) WithGuidance(guidance string) *Error {
	e.Guidance = guidance
	return e
}

// ServiceError creates an error for external service failures
func ServiceError(service string, statusCode int, message string) *Error {
	var code ErrorCode
	var guidance string

	switch statusCode {
	case http.StatusTooManyRequests:
		code = ErrRateLimit
		guidance = "The service is rate-limited. Please try again in a few moments."
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		code = ErrServiceTimeout
		guidance = "The request timed out. Try reducing the query radius."
	case http.StatusBadRequest:
		code = ErrInvalidInput
		guidance = "The request was invalid. Check your parameters and try again."
	case http.StatusInternalServerError:
		code = ErrInternalError
		guidance = "The server encountered an error. This is likely temporary, please try again later."
	case http.StatusServiceUnavailable:
		code = ErrServiceUnavailable
		guidance = "The service is temporarily unavailable. Please try again later."
	default:
		code = ErrServiceUnavailable
		guidance = "Please try again later or modify your request parameters."
	}

	return NewError(code, fmt.Sprintf("%s service error: %s", service, message)).
		WithGuidance(guidance)
}
