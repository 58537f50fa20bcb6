// Package errors provides error types for sendhub
package errors

import (
	"fmt"
)

// DispatchError represents a sendhub error with structured information
type DispatchError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Platform  string    `json:"platform,omitempty"`
	Recipient string    `json:"recipient,omitempty"`

	// Cause holds the original error (not serialized)
	Cause error `json:"-"`
}

// Error implements the error interface
func (e *DispatchError) Error() string {
	switch {
	case e.Platform != "" && e.Recipient != "":
		return fmt.Sprintf("%s: %s (platform: %s, recipient: %s)", e.Code, e.Message, e.Platform, e.Recipient)
	case e.Platform != "":
		return fmt.Sprintf("%s: %s (platform: %s)", e.Code, e.Message, e.Platform)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// Unwrap returns the underlying cause error
func (e *DispatchError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target error by code
func (e *DispatchError) Is(target error) bool {
	if targetErr, ok := target.(*DispatchError); ok {
		return e.Code == targetErr.Code
	}
	return false
}

// WithCause adds a cause error
func (e *DispatchError) WithCause(cause error) *DispatchError {
	e.Cause = cause
	return e
}

// WithPlatform sets the platform
func (e *DispatchError) WithPlatform(platform string) *DispatchError {
	e.Platform = platform
	return e
}

// WithRecipient sets the recipient
func (e *DispatchError) WithRecipient(recipient string) *DispatchError {
	e.Recipient = recipient
	return e
}

// New creates a new DispatchError
func New(code ErrorCode, message string) *DispatchError {
	return &DispatchError{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new DispatchError with a formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *DispatchError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap wraps an existing error with a DispatchError
func Wrap(err error, code ErrorCode, message string) *DispatchError {
	return New(code, message).WithCause(err)
}

// Wrapf wraps an existing error with a DispatchError and a formatted message
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *DispatchError {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

// Error classification functions

// IsConfigError checks whether err is fatal before any send attempt
func IsConfigError(err error) bool {
	if dispatchErr, ok := err.(*DispatchError); ok {
		return IsConfigCode(dispatchErr.Code)
	}
	return false
}

// IsSendError checks whether err is a per-recipient delivery failure
func IsSendError(err error) bool {
	if dispatchErr, ok := err.(*DispatchError); ok {
		return dispatchErr.Code == ErrSendFailed
	}
	return false
}

// GetErrorCode extracts the error code from an error
func GetErrorCode(err error) ErrorCode {
	if dispatchErr, ok := err.(*DispatchError); ok {
		return dispatchErr.Code
	}
	return ErrSendFailed
}
