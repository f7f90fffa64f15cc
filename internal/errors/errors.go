// Package errors defines the typed errors returned across service boundaries
// and their HTTP mapping.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Code identifies an error category in API responses.
type Code string

const (
	CodeBadRequest       Code = "BAD_REQUEST"
	CodeValidation       Code = "VALIDATION_ERROR"
	CodeUnauthorized     Code = "UNAUTHORIZED"
	CodeInvalidToken     Code = "INVALID_TOKEN"
	CodeForbidden        Code = "FORBIDDEN"
	CodeNotFound         Code = "NOT_FOUND"
	CodeConflict         Code = "CONFLICT"
	CodeMethodNotAllowed Code = "METHOD_NOT_ALLOWED"
	CodeRateLimited      Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal         Code = "INTERNAL_ERROR"
)

// ServiceError carries an API-facing message, a code and the HTTP status it
// maps to. Err keeps the underlying cause for logging.
type ServiceError struct {
	Code       Code                   `json:"code"`
	Message    string                 `json:"message"`
	HTTPStatus int                    `json:"-"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Err        error                  `json:"-"`
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error { return e.Err }

// WithDetails returns a copy of e with key set in Details.
func (e *ServiceError) WithDetails(key string, value interface{}) *ServiceError {
	cp := *e
	cp.Details = make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		cp.Details[k] = v
	}
	cp.Details[key] = value
	return &cp
}

func newError(code Code, status int, msg string, err error) *ServiceError {
	return &ServiceError{Code: code, Message: msg, HTTPStatus: status, Err: err}
}

func BadRequest(msg string) *ServiceError {
	return newError(CodeBadRequest, http.StatusBadRequest, msg, nil)
}

// Validation reports an invalid field value.
func Validation(field, msg string) *ServiceError {
	return newError(CodeValidation, http.StatusBadRequest, msg, nil).WithDetails("field", field)
}

func Unauthorized(msg string) *ServiceError {
	if msg == "" {
		msg = "Authentication credentials were not provided."
	}
	return newError(CodeUnauthorized, http.StatusUnauthorized, msg, nil)
}

// InvalidToken wraps a token parsing or verification failure.
func InvalidToken(err error) *ServiceError {
	return newError(CodeInvalidToken, http.StatusUnauthorized, "Token is invalid or expired", err)
}

func Forbidden(msg string) *ServiceError {
	if msg == "" {
		msg = "You do not have permission to perform this action."
	}
	return newError(CodeForbidden, http.StatusForbidden, msg, nil)
}

func NotFound(resource string) *ServiceError {
	return newError(CodeNotFound, http.StatusNotFound, resource+" not found", nil)
}

// Missing is NotFound with a caller-facing message.
func Missing(msg string) *ServiceError {
	return newError(CodeNotFound, http.StatusNotFound, msg, nil)
}

func Conflict(msg string) *ServiceError {
	return newError(CodeConflict, http.StatusConflict, msg, nil)
}

func MethodNotAllowed(msg string) *ServiceError {
	return newError(CodeMethodNotAllowed, http.StatusMethodNotAllowed, msg, nil)
}

// RateLimitExceeded reports a throttled client.
func RateLimitExceeded(limit int, window string) *ServiceError {
	return newError(CodeRateLimited, http.StatusTooManyRequests, "Request was throttled", nil).
		WithDetails("limit", limit).
		WithDetails("window", window)
}

func Internal(msg string, err error) *ServiceError {
	return newError(CodeInternal, http.StatusInternalServerError, msg, err)
}

// GetServiceError returns the first ServiceError in err's chain, or nil.
func GetServiceError(err error) *ServiceError {
	var se *ServiceError
	if stderrors.As(err, &se) {
		return se
	}
	return nil
}

// HTTPStatus maps err to a status code; unknown errors are 500.
func HTTPStatus(err error) int {
	if se := GetServiceError(err); se != nil {
		return se.HTTPStatus
	}
	return http.StatusInternalServerError
}

// Is and As re-export the standard helpers so callers need one import.
func Is(err, target error) bool { return stderrors.Is(err, target) }

func As(err error, target interface{}) bool { return stderrors.As(err, target) }
