package errors

import (
	"fmt"
)

// ConfigNotFound creates a configuration not found error
func ConfigNotFound(path string) *BasinError {
	return New(ErrCodeConfigNotFound, fmt.Sprintf("configuration file not found: %s", path)).
		WithDetail("path", path)
}

// ConfigInvalid creates an invalid configuration error
func ConfigInvalid(reason string) *BasinError {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration: %s", reason))
}

// InvalidChannel creates a configuration error for a rejected channel definition.
func InvalidChannel(name, reason string) *BasinError {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid channel '%s': %s", name, reason)).
		WithDetail("channel", name)
}

// InvalidKey creates an error for an empty cache store or key argument.
func InvalidKey(store, key string) *BasinError {
	field := "key"
	if store == "" {
		field = "store"
	}
	return New(ErrCodeInvalidKey, fmt.Sprintf("cache %s must not be empty", field)).
		WithDetail("store", store).
		WithDetail("key", key)
}

// IOFailed wraps a read, write or delete failure from the filesystem.
func IOFailed(op, path string, err error) *BasinError {
	return Wrap(err, ErrCodeIO, fmt.Sprintf("%s failed: %s", op, path)).
		WithDetail("op", op).
		WithDetail("path", path)
}

// HandlerFailed wraps an error or recovered panic raised by handler code.
func HandlerFailed(event string, err error) *BasinError {
	return Wrap(err, ErrCodeHandlerFailed, fmt.Sprintf("handler for '%s' failed", event)).
		WithDetail("event", event)
}

// AlreadyRunning reports a second Run on the same engine.
func AlreadyRunning() *BasinError {
	return New(ErrCodeAlreadyRunning, "engine is already running")
}

// Closed reports a Run on an engine that has been closed.
func Closed() *BasinError {
	return New(ErrCodeClosed, "engine has been closed")
}
