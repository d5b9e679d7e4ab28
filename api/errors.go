// File: api/errors.go
// License: Apache-2.0
//
// Common error types and error handling utilities for the bridge.

package api

import "fmt"

// Common errors used across the bridge.
var (
	ErrBridgeClosed    = fmt.Errorf("bridge is closed")
	ErrDriverBusy      = fmt.Errorf("drive cycle already in progress")
	ErrNotSupported    = fmt.Errorf("operation not supported on this platform")
	ErrInvalidHandle   = fmt.Errorf("invalid or unknown handle")
	ErrAlreadyStarted  = fmt.Errorf("already started")
	ErrHandlerNotSet   = fmt.Errorf("server handler not installed")
	ErrRecordDestroyed = fmt.Errorf("context record already destroyed")
)

// ErrorCode represents specific error conditions in the bridge.
type ErrorCode int

const (
	ErrCodeOK ErrorCode = iota
	ErrCodeEngineOpen
	ErrCodeRegistration
	ErrCodeExecution
	ErrCodeReadinessQueue
	ErrCodeOperation
	ErrCodeInternal
)

// Error is a structured error carrying the failed stage, an engine status
// and optional context.
type Error struct {
	Code    ErrorCode
	Status  Status
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	if e.Status != StatusOK {
		return fmt.Sprintf("%s (status 0x%x)", e.Message, uint32(e.Status))
	}
	return e.Message
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *Error) Unwrap() error { return e.Cause }

// NewError creates a new structured error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithStatus attaches an engine status code.
func (e *Error) WithStatus(s Status) *Error {
	e.Status = s
	return e
}

// WithCause attaches an underlying error.
func (e *Error) WithCause(err error) *Error {
	e.Cause = err
	return e
}
