package errors

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// APIError represents a standardized API error response.
// Validation failures carry a field-keyed map of messages in Fields.
type APIError struct {
	Code    ErrorCode           `json:"code"`
	Message string              `json:"message"`
	Details string              `json:"details,omitempty"`
	Fields  map[string][]string `json:"fields,omitempty"`
	Status  int                 `json:"-"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	if len(e.Fields) > 0 {
		names := make([]string, 0, len(e.Fields))
		for name := range e.Fields {
			names = append(names, name)
		}
		sort.Strings(names)
		return fmt.Sprintf("%s: %s (fields: %s)", e.Code, e.Message, strings.Join(names, ","))
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NotFound creates a NOT_FOUND error
func NotFound(resource string) *APIError {
	return &APIError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Status:  http.StatusNotFound,
	}
}

// Unauthorized creates an UNAUTHORIZED error
func Unauthorized(message string) *APIError {
	return &APIError{
		Code:    ErrUnauthorized,
		Message: message,
		Status:  http.StatusUnauthorized,
	}
}

// Banned is returned when a banned email tries to authenticate
func Banned() *APIError {
	return &APIError{
		Code:    ErrBanned,
		Message: "this account has been banned",
		Status:  http.StatusUnauthorized,
	}
}

// Forbidden creates a FORBIDDEN error
func Forbidden(message string) *APIError {
	return &APIError{
		Code:    ErrForbidden,
		Message: message,
		Status:  http.StatusForbidden,
	}
}

// ValidationError creates a 400 VALIDATION_ERROR for a single field
func ValidationError(field, message string) *APIError {
	return &APIError{
		Code:    ErrValidation,
		Message: "invalid request",
		Fields:  map[string][]string{field: {message}},
		Status:  http.StatusBadRequest,
	}
}

// FieldErrors creates a 400 VALIDATION_ERROR from a field-keyed map
func FieldErrors(fields map[string][]string) *APIError {
	return &APIError{
		Code:    ErrValidation,
		Message: "invalid request",
		Fields:  fields,
		Status:  http.StatusBadRequest,
	}
}

// Duplicate reports a violated composite uniqueness constraint
func Duplicate(fields ...string) *APIError {
	msg := fmt.Sprintf("the fields %s must make a unique set", strings.Join(fields, ", "))
	return &APIError{
		Code:    ErrValidation,
		Message: "invalid request",
		Fields:  map[string][]string{"non_field_errors": {msg}},
		Status:  http.StatusBadRequest,
	}
}

// BadRequest creates a BAD_REQUEST error
func BadRequest(message string) *APIError {
	return &APIError{
		Code:    ErrBadRequest,
		Message: message,
		Status:  http.StatusBadRequest,
	}
}

// InternalError creates an INTERNAL_ERROR
func InternalError(message string) *APIError {
	return &APIError{
		Code:    ErrInternalError,
		Message: message,
		Status:  http.StatusInternalServerError,
	}
}

// RateLimited creates a RATE_LIMITED error
func RateLimited(message string) *APIError {
	if message == "" {
		message = "rate limit exceeded"
	}
	return &APIError{
		Code:    ErrRateLimited,
		Message: message,
		Status:  http.StatusTooManyRequests,
	}
}

// ServiceUnavailable creates a SERVICE_UNAVAILABLE error
func ServiceUnavailable(service string) *APIError {
	return &APIError{
		Code:    ErrServiceUnavail,
		Message: fmt.Sprintf("%s is temporarily unavailable", service),
		Status:  http.StatusServiceUnavailable,
	}
}

// WithDetails adds additional details to an error
func (e *APIError) WithDetails(details string) *APIError {
	e.Details = details
	return e
}
