package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches errors by code so clones of a predefined error still satisfy errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrNotFound     = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden    = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrValidation   = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal     = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss    = New("CACHE_MISS", http.StatusNotFound, "cache miss")
	ErrLockTimeout  = New("LOCK_TIMEOUT", http.StatusServiceUnavailable, "another decision for this meeting is in progress, retry later")
)

// Approval workflow errors.
var (
	ErrMeetingNotFinished       = New("MEETING_NOT_FINISHED", http.StatusConflict, "meeting must be FINISHED before approval decisions are accepted")
	ErrNotAwaitingFinalApproval = New("NOT_AWAITING_FINAL_APPROVAL", http.StatusConflict, "meeting is not awaiting final approval")
	ErrAlreadyFinalized         = New("ALREADY_FINALIZED", http.StatusConflict, "meeting approval is already finalized")
	ErrPendingFinalApproval     = New("PENDING_FINAL_APPROVAL", http.StatusConflict, "request is awaiting second-level approval")
	ErrConflictingDecision      = New("CONFLICTING_DECISION", http.StatusBadRequest, "a request cannot be approved and rejected in the same decision")
	ErrUnknownApprover          = New("UNKNOWN_APPROVER", http.StatusOK, "approver could not be resolved to a name")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}
