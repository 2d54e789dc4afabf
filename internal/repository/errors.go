package repository

import (
	"errors"

	"github.com/lib/pq"
)

var (
	// ErrOpenSessionExists is returned when another open session holds the (class, session number) slot.
	ErrOpenSessionExists = errors.New("open attendance session already exists")
	// ErrSessionClosed is returned when a write targets a session that is no longer open.
	ErrSessionClosed = errors.New("attendance session is not open")
	// ErrScheduleInUse is returned when a schedule replacement is attempted after sessions were opened.
	ErrScheduleInUse = errors.New("schedule already has attendance sessions")
	// ErrScheduledSessionCompleted is returned when opening a meeting that has already been taken.
	ErrScheduledSessionCompleted = errors.New("scheduled session already completed")
	// ErrClassNotFound is returned when a write references a class that does not exist.
	ErrClassNotFound = errors.New("class not found")
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	openSessionIndex      = "attendance_sessions_one_open"
)

func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || string(pqErr.Code) != pgUniqueViolation {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}

func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == pgForeignKeyViolation
}
