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

// Is matches errors by code so cloned or wrapped variants still compare equal to their sentinel.
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

// Generic errors.
var (
	ErrNotFound   = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrConflict   = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal   = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss  = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// Attendance engine errors.
var (
	ErrInvalidScheduleInput = New("INVALID_SCHEDULE_INPUT", http.StatusBadRequest, "invalid schedule input")
	ErrInvalidDescriptor    = New("INVALID_DESCRIPTOR", http.StatusBadRequest, "descriptor must contain exactly 128 finite values")
	ErrEmptyRoster          = New("EMPTY_ROSTER", http.StatusUnprocessableEntity, "no enrolled student has a valid descriptor")
	ErrNoMatch              = New("NO_MATCH", http.StatusOK, "no enrolled student matched the probe")
	ErrSessionAlreadyOpen   = New("SESSION_ALREADY_OPEN", http.StatusConflict, "an open session already exists for this class and session number")
	ErrSessionNotOpen       = New("SESSION_NOT_OPEN", http.StatusConflict, "session is not open")
	ErrUnknownSession       = New("UNKNOWN_SESSION", http.StatusNotFound, "session is not part of the class schedule")
	ErrStudentNotEnrolled   = New("STUDENT_NOT_ENROLLED", http.StatusUnprocessableEntity, "student is not enrolled in the class")
	ErrSessionCompleted     = New("SESSION_COMPLETED", http.StatusConflict, "scheduled session has already been completed")
	ErrScheduleLocked       = New("SCHEDULE_LOCKED", http.StatusConflict, "schedule cannot be regenerated after sessions have begun")
	ErrStorage              = New("STORAGE_ERROR", http.StatusInternalServerError, "storage failure")
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

// Storage wraps a persistence failure; these are never retried or tolerated.
func Storage(err error, message string) *Error {
	return Wrap(err, ErrStorage.Code, ErrStorage.Status, message)
}
