package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a specific error condition
type ErrorCode string

const (
	// Configuration errors
	ErrCodeConfigNotFound ErrorCode = "CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  ErrorCode = "CONFIG_INVALID"

	// Cache errors
	ErrCodeInvalidKey ErrorCode = "INVALID_KEY"

	// Collaborator I/O errors
	ErrCodeIO ErrorCode = "IO_ERROR"

	// Dispatch errors
	ErrCodeHandlerFailed  ErrorCode = "HANDLER_FAILED"
	ErrCodeAlreadyRunning ErrorCode = "ALREADY_RUNNING"
	ErrCodeClosed         ErrorCode = "ENGINE_CLOSED"

	// General errors
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// BasinError represents a structured error with context
type BasinError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface
func (e *BasinError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *BasinError) Unwrap() error {
	return e.Cause
}

// WithDetail adds a detail to the error
func (e *BasinError) WithDetail(key string, value interface{}) *BasinError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ToJSON converts the error to JSON
func (e *BasinError) ToJSON() string {
	data, _ := json.MarshalIndent(e, "", "  ")
	return string(data)
}

// New creates a new BasinError
func New(code ErrorCode, message string) *BasinError {
	return &BasinError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with a BasinError
func Wrap(err error, code ErrorCode, message string) *BasinError {
	return &BasinError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Is reports whether any BasinError in err's chain carries code.
func Is(err error, code ErrorCode) bool {
	for err != nil {
		var basinErr *BasinError
		if !stderrors.As(err, &basinErr) {
			return false
		}
		if basinErr.Code == code {
			return true
		}
		err = basinErr.Cause
	}
	return false
}

// GetCode extracts the outermost error code from an error
func GetCode(err error) ErrorCode {
	var basinErr *BasinError
	if stderrors.As(err, &basinErr) {
		return basinErr.Code
	}
	return ""
}

// AsBasinError returns the outermost BasinError in err's chain, if any.
func AsBasinError(err error) (*BasinError, bool) {
	var basinErr *BasinError
	if stderrors.As(err, &basinErr) {
		return basinErr, true
	}
	return nil, false
}
