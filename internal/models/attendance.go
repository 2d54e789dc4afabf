package models

import "time"

// SessionStatus is the lifecycle state of an attendance session.
type SessionStatus string

const (
	SessionStatusOpen      SessionStatus = "open"
	SessionStatusCompleted SessionStatus = "completed"
)

// RecordMethod describes how a presence record was produced.
type RecordMethod string

const (
	RecordMethodFace   RecordMethod = "face"
	RecordMethodManual RecordMethod = "manual"
	RecordMethodAuto   RecordMethod = "auto"
)

// Valid returns true when the method is a supported value.
func (m RecordMethod) Valid() bool {
	switch m {
	case RecordMethodFace, RecordMethodManual, RecordMethodAuto:
		return true
	default:
		return false
	}
}

// SessionStats is the snapshot written when a session completes.
type SessionStats struct {
	TotalStudents  int     `db:"total_students" json:"total_students"`
	PresentCount   int     `db:"present_count" json:"present_count"`
	AbsentCount    int     `db:"absent_count" json:"absent_count"`
	AttendanceRate float64 `db:"attendance_rate" json:"attendance_rate"`
}

// AttendanceSession is one class meeting at which attendance is taken.
type AttendanceSession struct {
	ID            string        `db:"id" json:"id"`
	ClassID       string        `db:"class_id" json:"class_id"`
	SessionNumber int           `db:"session_number" json:"session_number"`
	Status        SessionStatus `db:"status" json:"status"`
	OpenedAt      time.Time     `db:"opened_at" json:"opened_at"`
	ClosedAt      *time.Time    `db:"closed_at" json:"closed_at,omitempty"`
	SessionStats
}

// IsOpen reports whether the session still accepts records.
func (s AttendanceSession) IsOpen() bool {
	return s.Status == SessionStatusOpen
}

// AttendanceRecord is the presence fact for one student in one session.
type AttendanceRecord struct {
	ID              string       `db:"id" json:"id"`
	SessionID       string       `db:"session_id" json:"session_id"`
	StudentID       string       `db:"student_id" json:"student_id"`
	Present         bool         `db:"present" json:"present"`
	RecordedAt      time.Time    `db:"recorded_at" json:"recorded_at"`
	Method          RecordMethod `db:"method" json:"method"`
	MatchConfidence *float64     `db:"match_confidence" json:"match_confidence,omitempty"`
	MatchDistance   *float64     `db:"match_distance" json:"match_distance,omitempty"`
	Note            string       `db:"note" json:"note"`
}

// CompletedSessionPresence pairs a completed session with the students marked present in it.
type CompletedSessionPresence struct {
	SessionID     string
	SessionNumber int
	Present       map[string]bool
}
