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
	Status  int    `json:"status"`
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

// Is reports whether target carries the same code, so clones match their template.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	var t *Error
	if !errors.As(target, &t) || t == nil {
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
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid username or password")
	ErrInactiveAccount    = New("ACCOUNT_INACTIVE", http.StatusForbidden, "account is inactive")
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrPreconditionFailed = New("PRECONDITION_FAILED", http.StatusPreconditionFailed, "precondition failed")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss          = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// Assignment engine errors.
var (
	ErrCapacityExceeded       = New("CAPACITY_EXCEEDED", http.StatusConflict, "mentor has no available slots")
	ErrAlreadyAssigned        = New("ALREADY_ASSIGNED", http.StatusConflict, "mentee already has an active assignment")
	ErrNotActive              = New("NOT_ACTIVE", http.StatusConflict, "only active assignments can be changed")
	ErrMentorNotFound         = New("MENTOR_NOT_FOUND", http.StatusNotFound, "mentor not found")
	ErrMenteeNotFound         = New("MENTEE_NOT_FOUND", http.StatusNotFound, "mentee not found")
	ErrAssignmentNotFound     = New("ASSIGNMENT_NOT_FOUND", http.StatusNotFound, "assignment not found")
	ErrAssignmentPairExists   = New("ASSIGNMENT_PAIR_EXISTS", http.StatusConflict, "mentee was already assigned to this mentor before")
	ErrUnresolvableDepartment = New("UNRESOLVABLE_DEPARTMENT", http.StatusUnprocessableEntity, "course does not map to any department")
	ErrSameMentor             = New("SAME_MENTOR", http.StatusBadRequest, "new mentor must differ from the current mentor")
)

// Session and activity errors.
var (
	ErrSessionNotFound  = New("SESSION_NOT_FOUND", http.StatusNotFound, "session not found")
	ErrSessionCompleted = New("SESSION_COMPLETED", http.StatusConflict, "session is already completed")
	ErrReportNotFound   = New("REPORT_NOT_FOUND", http.StatusNotFound, "activity report not found")
	ErrActivityNotFound = New("ACTIVITY_NOT_FOUND", http.StatusNotFound, "activity not found")
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
