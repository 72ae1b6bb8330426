package util

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Error codes surfaced to callers.
const (
	CodeNotFound          = "NOT_FOUND"
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeInvalidMessage    = "INVALID_MESSAGE"
	CodeTransientStorage  = "TRANSIENT_STORAGE"
	CodePermissionDenied  = "PERMISSION_DENIED"
	CodeValidationFailed  = "VALIDATION_FAILED"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeInternal          = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Retryable  bool
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

// NewNotFound reports a missing ticket, channel or message.
func NewNotFound(resource string, details map[string]any) error {
	return NewDomainError(CodeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound, details)
}

// NewInvalidTransition reports a status edge not permitted from the current
// state. Callers must re-fetch current state before retrying.
func NewInvalidTransition(message string, details map[string]any) error {
	return NewDomainError(CodeInvalidTransition, message, http.StatusConflict, details)
}

// NewInvalidMessage reports an empty or over-length chat body. Raised before
// any storage call; never retried.
func NewInvalidMessage(message string) error {
	return NewDomainError(CodeInvalidMessage, message, http.StatusBadRequest, nil)
}

// NewTransientStorage wraps a storage timeout or connection failure. The
// caller may retry with the original payload; client-generated message keys
// keep retried sends idempotent.
func NewTransientStorage(err error) error {
	return &DomainError{
		Code:       CodeTransientStorage,
		Message:    "storage temporarily unavailable",
		HTTPStatus: http.StatusServiceUnavailable,
		Retryable:  true,
		Err:        err,
	}
}

// NewPermissionDenied reports an actor role not authorized for the mutation.
func NewPermissionDenied(message string) error {
	return NewDomainError(CodePermissionDenied, message, http.StatusForbidden, nil)
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidationFailed, message, http.StatusBadRequest, details)
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError. Context deadline and
// network failures classify as transient storage errors.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if IsTransientCause(err) {
		if de, ok := NewTransientStorage(err).(*DomainError); ok {
			return de
		}
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// IsTransientCause reports whether the underlying failure is worth retrying.
func IsTransientCause(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// CodeOf extracts the error code, or INTERNAL_ERROR for untyped errors.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	return ToDomainError(err).Code
}

// IsNotFound reports whether err carries the NOT_FOUND code.
func IsNotFound(err error) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr) && domainErr.Code == CodeNotFound
}

// IsRetryable reports whether the caller may retry with the same payload.
func IsRetryable(err error) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr) && domainErr.Retryable
}
