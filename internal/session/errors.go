package session

import (
	"errors"
	"fmt"
)

// Error codes for session operations.
const (
	CodeNotFound   = "session_not_found"
	CodeExpired    = "session_expired"
	CodeInvalid    = "session_invalid"
	CodeGeneration = "session_generation_failed"
	CodeStorage    = "session_storage_error"
)

// Error is a session failure.
type Error struct {
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// CodeOf returns the code of the first *Error in err's chain, or "" if
// there is none.
func CodeOf(err error) string {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

func errNotFound(id string) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf("session not found: %s", id)}
}

func errExpired(id string) *Error {
	return &Error{Code: CodeExpired, Message: fmt.Sprintf("session expired: %s", id)}
}

func errInvalid(reason string) *Error {
	return &Error{Code: CodeInvalid, Message: reason}
}

func errStorage(operation string, cause error) *Error {
	return &Error{Code: CodeStorage, Message: fmt.Sprintf("storage failed during %s", operation), Cause: cause}
}
