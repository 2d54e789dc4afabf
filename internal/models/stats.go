package models

import "time"

// StudentRollup summarises one student's attendance across completed sessions.
type StudentRollup struct {
	StudentID      string  `json:"student_id"`
	StudentName    string  `json:"student_name"`
	PresentCount   int     `json:"present_count"`
	TotalAbsences  int     `json:"total_absences"`
	AttendanceRate float64 `json:"attendance_rate"`
	IsBanned       bool    `json:"is_banned"`
}

// ClassStats is the per-class rollup across all completed sessions.
type ClassStats struct {
	ClassID           string          `json:"class_id"`
	TotalSessions     int             `json:"total_sessions"`
	CompletedSessions int             `json:"completed_sessions"`
	MaxAbsences       int             `json:"max_absences"`
	TotalStudents     int             `json:"total_students"`
	AverageRate       float64         `json:"average_attendance_rate"`
	BannedCount       int             `json:"banned_count"`
	Students          []StudentRollup `json:"students"`
	GeneratedAt       time.Time       `json:"generated_at"`
}
