package linear

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind classifies a failed operation.
type Kind string

// Error kinds surfaced to tool callers.
const (
	KindInvalidArgument Kind = "invalid_argument"
	KindNotFound        Kind = "not_found"
	KindTimeout         Kind = "timeout"
	KindRemote          Kind = "remote_error"
	KindTransport       Kind = "transport_error"
)

// Error is returned by every Client operation.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewInvalidArgumentError creates an invalid argument error
func NewInvalidArgumentError(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidArgument, Message: fmt.Sprintf(format, args...)}
}

// NewNotFoundError creates a not found error
func NewNotFoundError(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// NewRemoteError creates an error for a failure reported by the Linear API
func NewRemoteError(message string, cause error) *Error {
	return &Error{Kind: KindRemote, Message: message, Cause: cause}
}

// KindOf reports the kind of err. Errors that did not originate in this
// package are treated as remote errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindRemote
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// classifyTransport maps a failure of http.Client.Do onto the error taxonomy.
func classifyTransport(ctx context.Context, operation string, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Message: fmt.Sprintf("%s timed out", operation), Cause: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Kind: KindTimeout, Message: fmt.Sprintf("%s timed out", operation), Cause: err}
	}
	if errors.Is(err, context.Canceled) {
		return &Error{Kind: KindTransport, Message: fmt.Sprintf("%s cancelled", operation), Cause: err}
	}
	return &Error{Kind: KindTransport, Message: fmt.Sprintf("%s: could not reach Linear API", operation), Cause: err}
}
