package peerchat

import (
	"errors"
	"fmt"
)

// Error represents a peerchat error with categorization.
type Error struct {
	// Code is a machine-readable error code
	Code string

	// Message is a human-readable error message
	Message string

	// Err is the underlying error (if any)
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Error codes for peerchat operations.
const (
	// ErrCodeAuthenticationMissing indicates no caller identity was supplied.
	// The HTTP and WebSocket boundary rejects these before any service is called.
	ErrCodeAuthenticationMissing = "AUTHENTICATION_MISSING"

	// ErrCodeValidation indicates a missing or empty recipient, sender or text.
	// Nothing is stored.
	ErrCodeValidation = "VALIDATION_ERROR"

	// ErrCodeStorage indicates the message store is unavailable.
	// The operation had no effect and is not retried by the server.
	ErrCodeStorage = "STORAGE_ERROR"

	// ErrCodeDeliveryMiss indicates the recipient had no live channel or the push failed.
	// It is an expected condition and never surfaced to the sender.
	ErrCodeDeliveryMiss = "DELIVERY_MISS"

	// ErrCodeConfiguration indicates invalid configuration.
	ErrCodeConfiguration = "CONFIGURATION_ERROR"

	// ErrCodeInternal is reported for failures that carry no peerchat code.
	ErrCodeInternal = "INTERNAL_ERROR"
)

// Common errors.
var (
	// ErrAuthenticationMissing is returned when an operation runs without a caller identity.
	ErrAuthenticationMissing = &Error{
		Code:    ErrCodeAuthenticationMissing,
		Message: "caller identity is required",
	}

	// ErrNoChannel is reported to the NotificationService when the recipient is offline.
	ErrNoChannel = &Error{
		Code:    ErrCodeDeliveryMiss,
		Message: "recipient has no live channel",
	}
)

// NewError creates a new Error with the given code and message.
func NewError(code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// NewErrorWithCause creates a new Error wrapping an underlying error.
func NewErrorWithCause(code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     cause,
	}
}

// CodeOf returns the code of the first *Error in err's chain, or "" if there is none.
func CodeOf(err error) string {
	var peerchatErr *Error
	if errors.As(err, &peerchatErr) {
		return peerchatErr.Code
	}
	return ""
}

// IsValidation checks if an error is a validation failure.
func IsValidation(err error) bool {
	return CodeOf(err) == ErrCodeValidation
}

// IsStorage checks if an error is a storage failure.
func IsStorage(err error) bool {
	return CodeOf(err) == ErrCodeStorage
}

// IsAuthenticationMissing checks if an error reports a missing caller identity.
func IsAuthenticationMissing(err error) bool {
	return CodeOf(err) == ErrCodeAuthenticationMissing
}

// IsDeliveryMiss checks if an error is a push delivery miss.
func IsDeliveryMiss(err error) bool {
	return CodeOf(err) == ErrCodeDeliveryMiss
}
