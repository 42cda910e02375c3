package errors

import (
	"context"
	"errors"
	"net"
)

// Class buckets an error by how the scan engine should react to it.
// Classes are string-based for debuggability and natural JSON serialization
// in diagnostics output.
type Class string

const (
	// ClassPermissionDenied indicates a denied tag, ACL or metadata read.
	// Never retried; the engine degrades the affected fields instead.
	ClassPermissionDenied Class = "PERMISSION_DENIED"

	// ClassNotFound indicates a missing root or node.
	ClassNotFound Class = "NOT_FOUND"

	// ClassThrottled indicates backend rate limiting. Retryable.
	ClassThrottled Class = "THROTTLED"

	// ClassTransient indicates a temporary network or timeout failure. Retryable.
	ClassTransient Class = "TRANSIENT"

	// ClassInvalidInput indicates malformed configuration or arguments.
	ClassInvalidInput Class = "INVALID_INPUT"

	// ClassCanceled indicates the caller canceled the scan.
	ClassCanceled Class = "CANCELED"

	// ClassUnknown indicates an unclassified failure. Not retried.
	ClassUnknown Class = "UNKNOWN"
)

// Classify maps an error onto its Class. Adapters normalize backend SDK
// failures onto the package sentinels, so classification only has to look
// at sentinels and a few standard library error kinds.
func Classify(err error) Class {
	switch {
	case err == nil:
		return ClassUnknown
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ClassCanceled
	case errors.Is(err, ErrPermissionDenied), errors.Is(err, ErrInvalidCredentials):
		return ClassPermissionDenied
	case errors.Is(err, ErrRootNotFound), errors.Is(err, ErrNodeNotFound):
		return ClassNotFound
	case errors.Is(err, ErrThrottled):
		return ClassThrottled
	case errors.Is(err, ErrUnreachable), errors.Is(err, ErrTimeout):
		return ClassTransient
	case errors.Is(err, ErrInvalidInput):
		return ClassInvalidInput
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return ClassTransient
	}
	return ClassUnknown
}

// IsRetryable reports whether the error class warrants a bounded retry.
// Only throttling and transient network failures qualify; permission and
// not-found failures are final.
func IsRetryable(err error) bool {
	switch Classify(err) {
	case ClassThrottled, ClassTransient:
		return true
	default:
		return false
	}
}
