// Package errors provides error types and handling for metadata scan operations.
package errors

import (
	"errors"
	"fmt"
)

// Error represents a scan operation error with context about where it failed.
// It wraps the underlying backend SDK error with the operation, backend
// family, root and node path so callers can report precisely what broke.
type Error struct {
	// Op is the operation that failed (e.g., "list_children", "node_tags")
	Op string

	// Source is the backend family label (e.g., "s3", "azure_blob")
	Source string

	// Root is the scan root identifier (bucket, container, drive, volume)
	Root string

	// Path is the node path within the root (if applicable)
	Path string

	// Err is the underlying error from the backend SDK or other source
	Err error
}

// Error implements the error interface by providing a formatted error message.
func (e *Error) Error() string {
	prefix := e.Source
	if prefix == "" {
		prefix = "scan"
	}
	if e.Root != "" && e.Path != "" {
		return fmt.Sprintf("%s.%s %s/%s: %v", prefix, e.Op, e.Root, e.Path, e.Err)
	}
	if e.Root != "" {
		return fmt.Sprintf("%s.%s root %s: %v", prefix, e.Op, e.Root, e.Err)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s.%s node %s: %v", prefix, e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("%s.%s: %v", prefix, e.Op, e.Err)
}

// Unwrap returns the underlying error for error chaining support.
func (e *Error) Unwrap() error {
	return e.Err
}

// WithRoot adds root context to an existing error.
func (e *Error) WithRoot(root string) *Error {
	e.Root = root
	return e
}

// WithPath adds node path context to an existing error.
func (e *Error) WithPath(path string) *Error {
	e.Path = path
	return e
}

// WithMessage wraps the underlying error with a custom message.
func (e *Error) WithMessage(message string) *Error {
	e.Err = fmt.Errorf("%s: %w", message, e.Err)
	return e
}

// NewError creates a new Error with the given operation and underlying error.
func NewError(op, source string, err error) *Error {
	return &Error{
		Op:     op,
		Source: source,
		Err:    err,
	}
}

// NewRootError creates a new Error with root context.
func NewRootError(op, source, root string, err error) *Error {
	return &Error{
		Op:     op,
		Source: source,
		Root:   root,
		Err:    err,
	}
}

// NewNodeError creates a new Error with root and node path context.
func NewNodeError(op, source, root, path string, err error) *Error {
	return &Error{
		Op:     op,
		Source: source,
		Root:   root,
		Path:   path,
		Err:    err,
	}
}

// Sentinel errors for common scan operation failures.
// These can be used with errors.Is() for error checking.
var (
	// ErrPermissionDenied indicates that access to a node, its tags or its
	// account metadata is denied
	ErrPermissionDenied = errors.New("scan: permission denied")

	// ErrRootNotFound indicates that the requested scan root does not exist
	ErrRootNotFound = errors.New("scan: root not found")

	// ErrNodeNotFound indicates that the requested node does not exist
	ErrNodeNotFound = errors.New("scan: node not found")

	// ErrThrottled indicates that the backend is rate limiting requests
	ErrThrottled = errors.New("scan: request throttled")

	// ErrUnreachable indicates that the backend endpoint cannot be reached
	ErrUnreachable = errors.New("scan: backend unreachable")

	// ErrInvalidInput indicates that the provided input is invalid
	ErrInvalidInput = errors.New("scan: invalid input")

	// ErrInvalidCredentials indicates that the backend credentials are invalid
	ErrInvalidCredentials = errors.New("scan: invalid credentials")

	// ErrUnsupported indicates that the backend does not support the operation
	ErrUnsupported = errors.New("scan: operation not supported")

	// ErrTimeout indicates that the operation timed out
	ErrTimeout = errors.New("scan: operation timeout")
)

// IsPermissionDenied checks if an error indicates denied access.
// This is a convenience function that handles both sentinel errors and wrapped errors.
func IsPermissionDenied(err error) bool {
	return errors.Is(err, ErrPermissionDenied)
}

// IsRootNotFound checks if an error indicates that a scan root was not found.
// This is a convenience function that handles both sentinel errors and wrapped errors.
func IsRootNotFound(err error) bool {
	return errors.Is(err, ErrRootNotFound)
}

// IsNodeNotFound checks if an error indicates that a node was not found.
// This is a convenience function that handles both sentinel errors and wrapped errors.
func IsNodeNotFound(err error) bool {
	return errors.Is(err, ErrNodeNotFound)
}

// IsNotFound checks if an error indicates that either a root or a node was
// not found.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRootNotFound) || errors.Is(err, ErrNodeNotFound)
}

// IsThrottled checks if an error indicates backend rate limiting.
func IsThrottled(err error) bool {
	return errors.Is(err, ErrThrottled)
}

// IsUnreachable checks if an error indicates an unreachable backend.
func IsUnreachable(err error) bool {
	return errors.Is(err, ErrUnreachable)
}
