package dto

import (
	"github.com/noah-isme/face-attendance-api/internal/facematch"
	"github.com/noah-isme/face-attendance-api/internal/models"
)

// CreateClassRequest creates a class and generates its weekly schedule once.
// StartDate uses the YYYY-MM-DD layout.
type CreateClassRequest struct {
	Name          string `json:"name" validate:"required,max=200"`
	StartDate     string `json:"start_date"`
	TotalSessions int    `json:"total_sessions"`
}

// RegenerateScheduleRequest replaces a class schedule before any session has been opened.
type RegenerateScheduleRequest struct {
	StartDate     string `json:"start_date"`
	TotalSessions int    `json:"total_sessions"`
}

// UpsertProfileRequest enrolls a student or replaces their stored descriptor. A missing
// descriptor enrolls the student without making them matchable.
type UpsertProfileRequest struct {
	StudentName string    `json:"student_name" validate:"max=200"`
	Descriptor  []float32 `json:"descriptor" validate:"omitempty,descriptor"`
	ImageURL    string    `json:"image_url" validate:"omitempty,url"`
}

// OpenSessionRequest opens attendance taking for one scheduled meeting. A number outside
// the class schedule, zero and negatives included, is an unknown session.
type OpenSessionRequest struct {
	SessionNumber int `json:"session_number"`
}

// RecordPresenceRequest carries either a probe descriptor (face flow) or an explicit
// student and presence value (manual flow), never both.
type RecordPresenceRequest struct {
	Descriptor []float32 `json:"descriptor" validate:"omitempty,descriptor"`
	StudentID  string    `json:"student_id" validate:"omitempty,max=100"`
	Present    *bool     `json:"present"`
	Method     string    `json:"method" validate:"omitempty,record_method"`
	Note       string    `json:"note" validate:"max=500"`
}

// IsFace reports whether the request should go through descriptor matching.
func (r RecordPresenceRequest) IsFace() bool {
	return len(r.Descriptor) > 0
}

// PresenceResult is the outcome of a record-presence call. Matched is only set by the face
// flow; a face miss carries the closest distance seen and no record.
type PresenceResult struct {
	Recorded bool                     `json:"recorded"`
	Matched  bool                     `json:"matched"`
	Match    *facematch.Result        `json:"match,omitempty"`
	Record   *models.AttendanceRecord `json:"record,omitempty"`
}

// SessionDetail bundles a session with its recorded presence.
type SessionDetail struct {
	models.AttendanceSession
	Records []models.AttendanceRecord `json:"records"`
}
