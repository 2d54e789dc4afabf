package models

import "time"

// DescriptorLength is the dimension of every face descriptor.
const DescriptorLength = 128

// StudentFaceProfile is an enrolled student's stored face descriptor for one class.
type StudentFaceProfile struct {
	ClassID     string    `json:"class_id"`
	StudentID   string    `json:"student_id"`
	StudentName string    `json:"student_name"`
	Descriptor  []float32 `json:"descriptor,omitempty"`
	ImageURL    string    `json:"image_url"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// HasValidDescriptor reports whether the profile can take part in matching.
func (p StudentFaceProfile) HasValidDescriptor() bool {
	return len(p.Descriptor) == DescriptorLength
}

// RosterEntry is the listing view of a profile without the vector.
type RosterEntry struct {
	StudentID     string    `json:"student_id"`
	StudentName   string    `json:"student_name"`
	ImageURL      string    `json:"image_url"`
	HasDescriptor bool      `json:"has_descriptor"`
	UpdatedAt     time.Time `json:"updated_at"`
}
