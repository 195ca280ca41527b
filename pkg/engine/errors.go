package engine

import (
	"errors"
	"fmt"
)

// ErrorClass classifies an orchestration error for exit-code mapping
// and reporting.
type ErrorClass string

const (
	// ErrorClassNotFound indicates a project or environment lookup miss.
	ErrorClassNotFound ErrorClass = "not_found"

	// ErrorClassConflict indicates a resource name already exists.
	ErrorClassConflict ErrorClass = "conflict"

	// ErrorClassRemote indicates a gateway call failed. Fatal during
	// provisioning; recovered per-resource during teardown.
	ErrorClassRemote ErrorClass = "remote"

	// ErrorClassCancelled indicates the user declined a confirmation.
	// It is a clean abort, not a true error.
	ErrorClassCancelled ErrorClass = "cancelled"

	// ErrorClassInternal indicates a local failure (store I/O, bad
	// input) that is not attributable to a remote system.
	ErrorClassInternal ErrorClass = "internal"
)

// OrchestrationError is a classified error with orchestration context.
type OrchestrationError struct {
	// Class is the error classification.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Code is an optional error code for programmatic handling.
	Code string `json:"code,omitempty"`

	// Step is the provisioning step that failed, if applicable.
	Step Step `json:"step,omitempty"`

	// Hint is a remediation hint shown to the user, if applicable.
	Hint string `json:"hint,omitempty"`

	// Err is the underlying error.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *OrchestrationError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Class, e.Message)
	if e.Step != "" {
		msg = fmt.Sprintf("%s (step=%s)", msg, e.Step)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %s", msg, e.Err.Error())
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection.
func (e *OrchestrationError) Unwrap() error {
	return e.Err
}

// Is implements error equality checking for errors.Is.
func (e *OrchestrationError) Is(target error) bool {
	t, ok := target.(*OrchestrationError)
	if !ok {
		return false
	}
	return e.Class == t.Class && e.Code == t.Code
}

// NewNotFoundError creates a new lookup error.
func NewNotFoundError(message string, err error) *OrchestrationError {
	return &OrchestrationError{Class: ErrorClassNotFound, Message: message, Err: err}
}

// NewConflictError creates a new name-conflict error.
func NewConflictError(message string, err error) *OrchestrationError {
	return &OrchestrationError{Class: ErrorClassConflict, Message: message, Err: err}
}

// NewRemoteError creates a new remote-call error.
func NewRemoteError(message string, err error) *OrchestrationError {
	return &OrchestrationError{Class: ErrorClassRemote, Message: message, Err: err}
}

// NewCancelledError creates a new user-cancellation signal.
func NewCancelledError(message string) *OrchestrationError {
	return &OrchestrationError{Class: ErrorClassCancelled, Message: message}
}

// NewInternalError creates a new local-failure error.
func NewInternalError(message string, err error) *OrchestrationError {
	return &OrchestrationError{Class: ErrorClassInternal, Message: message, Err: err}
}

// WithStep adds the failed provisioning step to an error.
func (e *OrchestrationError) WithStep(step Step) *OrchestrationError {
	e.Step = step
	return e
}

// WithHint adds a remediation hint to an error.
func (e *OrchestrationError) WithHint(hint string) *OrchestrationError {
	e.Hint = hint
	return e
}

// WithCode adds an error code to an error.
func (e *OrchestrationError) WithCode(code string) *OrchestrationError {
	e.Code = code
	return e
}

// IsNotFound returns true if the error is a lookup miss.
func IsNotFound(err error) bool {
	var e *OrchestrationError
	if errors.As(err, &e) {
		return e.Class == ErrorClassNotFound
	}
	return false
}

// IsConflict returns true if the error is a name conflict.
func IsConflict(err error) bool {
	var e *OrchestrationError
	if errors.As(err, &e) {
		return e.Class == ErrorClassConflict
	}
	return false
}

// IsRemote returns true if the error came from a gateway call.
func IsRemote(err error) bool {
	var e *OrchestrationError
	if errors.As(err, &e) {
		return e.Class == ErrorClassRemote
	}
	return false
}

// IsCancelled returns true if the user declined a confirmation.
func IsCancelled(err error) bool {
	var e *OrchestrationError
	if errors.As(err, &e) {
		return e.Class == ErrorClassCancelled
	}
	return false
}

// Hint extracts the remediation hint from an error chain, if any.
func Hint(err error) string {
	var e *OrchestrationError
	if errors.As(err, &e) {
		return e.Hint
	}
	return ""
}

// Common error codes.
const (
	ErrCodeProjectNotFound     = "PROJECT_NOT_FOUND"
	ErrCodeEnvironmentNotFound = "ENVIRONMENT_NOT_FOUND"
	ErrCodeEnvironmentExists   = "ENVIRONMENT_EXISTS"
	ErrCodeNameTaken           = "NAME_TAKEN"
	ErrCodeStepFailed          = "STEP_FAILED"
)
