package lifecycle

import (
	"errors"
	"fmt"
)

// ErrorClass represents the classification of an error for reporting logic.
type ErrorClass string

const (
	// ErrorClassTransient indicates a temporary failure that may succeed if
	// the requester submits a fresh lifecycle request.
	// Examples: executor timeouts, unreachable collaborators.
	ErrorClassTransient ErrorClass = "transient"

	// ErrorClassPermanent indicates a non-recoverable error.
	// Examples: invalid requests, executor-reported build failures.
	ErrorClassPermanent ErrorClass = "permanent"
)

// LifecycleError represents a classified error with context.
// nolint:revive // LifecycleError is intentionally named to distinguish from standard errors
type LifecycleError struct {
	// Class is the error classification.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Code is an optional error code for programmatic handling.
	Code string `json:"code,omitempty"`

	// Err is the underlying error that caused this error.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *LifecycleError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s", e.Class, e.Message, e.Err.Error())
	}
	return fmt.Sprintf("[%s] %s", e.Class, e.Message)
}

// Unwrap returns the underlying error for error chain inspection.
func (e *LifecycleError) Unwrap() error {
	return e.Err
}

// NewTransientError creates a new transient error.
func NewTransientError(message string, err error) *LifecycleError {
	return &LifecycleError{
		Class:   ErrorClassTransient,
		Message: message,
		Err:     err,
	}
}

// NewPermanentError creates a new permanent error.
func NewPermanentError(message string, err error) *LifecycleError {
	return &LifecycleError{
		Class:   ErrorClassPermanent,
		Message: message,
		Err:     err,
	}
}

// WithCode adds an error code to an error.
func (e *LifecycleError) WithCode(code string) *LifecycleError {
	e.Code = code
	return e
}

// IsTransient returns true if the error is classified as transient.
func IsTransient(err error) bool {
	var e *LifecycleError
	if errors.As(err, &e) {
		return e.Class == ErrorClassTransient
	}
	return false
}

// IsPermanent returns true if the error is classified as permanent.
func IsPermanent(err error) bool {
	var e *LifecycleError
	if errors.As(err, &e) {
		return e.Class == ErrorClassPermanent
	}
	return false
}

// Common error codes.
const (
	ErrCodeValidation     = "VALIDATION_ERROR"
	ErrCodeLaunchFailed   = "LAUNCH_FAILED"
	ErrCodeTimeout        = "TIMEOUT"
	ErrCodeExecutorFailed = "EXECUTOR_FAILED"
	ErrCodeTeardownFailed = "TEARDOWN_FAILED"
	ErrCodeCallbackFailed = "CALLBACK_FAILED"
)
