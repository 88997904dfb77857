package errors

import (
	"errors"
	"fmt"
	"syscall"
)

// ProcError is the unified library error type.
type ProcError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Retryable indicates if the operation can be retried.
	Retryable bool `json:"retryable"`
	// Errno is the platform error number for SYSTEM errors, 0 otherwise.
	Errno syscall.Errno `json:"-"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *ProcError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *ProcError) Unwrap() error { return e.Cause }

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *ProcError) WithCause(cause error) *ProcError {
	e.Cause = cause
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *ProcError) WithDetail(key string, value any) *ProcError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new ProcError with automatic retryable detection.
func New(code ErrorCode, message string) *ProcError {
	return &ProcError{
		Code:      code,
		Message:   message,
		Retryable: IsRetryableCode(code),
	}
}

// --- Common Error Constructors ---

// InvalidArgument creates a new ProcError for a caller precondition violation.
func InvalidArgument(reason string) *ProcError {
	return &ProcError{
		Code: ErrCodeInvalidArgument, Message: reason,
		Retryable: false,
	}
}

// OutOfMemory creates a new ProcError for an allocation failure.
func OutOfMemory() *ProcError {
	return &ProcError{
		Code: ErrCodeOutOfMemory, Message: "Out of memory.",
		Retryable: false,
	}
}

// BrokenPipe creates a new ProcError for a pipe whose peer end is closed.
func BrokenPipe(stream string) *ProcError {
	details := map[string]any{}
	if stream != "" {
		details["stream"] = stream
	}
	return &ProcError{
		Code: ErrCodeBrokenPipe, Message: "The pipe has been closed by the remote end.",
		Retryable: false, Details: details,
	}
}

// TimedOut creates a new ProcError for an operation that exceeded its timeout.
func TimedOut(operation string) *ProcError {
	return &ProcError{
		Code: ErrCodeTimedOut, Message: "The operation did not complete in time.",
		Retryable: true,
		Details:   map[string]any{"operation": operation},
	}
}

// System creates a new ProcError carrying a platform error number.
func System(operation string, errno syscall.Errno) *ProcError {
	return &ProcError{
		Code: ErrCodeSystem, Message: fmt.Sprintf("%s: %s", operation, errno.Error()),
		Retryable: errno.Temporary(), Errno: errno,
		Details: map[string]any{"operation": operation, "errno": int(errno)},
	}
}

// --- Inspection helpers ---

// CodeOf returns the error code of err, or ErrCodeSystem for foreign errors.
// A nil error has no code; CodeOf returns the empty string.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var pe *ProcError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ErrCodeSystem
}

// IsInvalidArgument reports whether err carries ErrCodeInvalidArgument.
func IsInvalidArgument(err error) bool { return CodeOf(err) == ErrCodeInvalidArgument }

// IsBrokenPipe reports whether err carries ErrCodeBrokenPipe.
func IsBrokenPipe(err error) bool { return CodeOf(err) == ErrCodeBrokenPipe }

// IsTimedOut reports whether err carries ErrCodeTimedOut.
func IsTimedOut(err error) bool { return CodeOf(err) == ErrCodeTimedOut }

// Strerror resolves any error to a human-readable string. Nil yields "ok".
func Strerror(err error) string {
	if err == nil {
		return "ok"
	}
	var pe *ProcError
	if errors.As(err, &pe) {
		return pe.Message
	}
	return err.Error()
}
