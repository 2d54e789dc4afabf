package models

import "time"

// ScheduledSessionStatus tracks whether a scheduled meeting has been taken.
type ScheduledSessionStatus string

const (
	ScheduledSessionPending   ScheduledSessionStatus = "pending"
	ScheduledSessionCompleted ScheduledSessionStatus = "completed"
)

// Class is a course with a fixed weekly meeting schedule.
type Class struct {
	ID            string    `db:"id" json:"id"`
	Name          string    `db:"name" json:"name"`
	StartDate     time.Time `db:"start_date" json:"start_date"`
	TotalSessions int       `db:"total_sessions" json:"total_sessions"`
	MaxAbsences   int       `db:"max_absences" json:"max_absences"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// ScheduledSession is one dated meeting in a class schedule.
type ScheduledSession struct {
	ClassID       string                 `db:"class_id" json:"class_id"`
	SessionNumber int                    `db:"session_number" json:"session_number"`
	Date          time.Time              `db:"session_date" json:"date"`
	Status        ScheduledSessionStatus `db:"status" json:"status"`
}

// ClassDetail bundles a class with its ordered schedule.
type ClassDetail struct {
	Class
	Schedule []ScheduledSession `json:"schedule"`
}
