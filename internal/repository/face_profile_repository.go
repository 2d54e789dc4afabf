package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pgvector/pgvector-go"

	"github.com/noah-isme/face-attendance-api/internal/models"
)

// FaceProfileRepository stores enrolled students and their descriptors per class.
type FaceProfileRepository struct {
	db *sqlx.DB
}

// NewFaceProfileRepository constructs the repository.
func NewFaceProfileRepository(db *sqlx.DB) *FaceProfileRepository {
	return &FaceProfileRepository{db: db}
}

type faceProfileRow struct {
	ClassID     string           `db:"class_id"`
	StudentID   string           `db:"student_id"`
	StudentName string           `db:"student_name"`
	Descriptor  *pgvector.Vector `db:"descriptor"`
	ImageURL    string           `db:"image_url"`
	CreatedAt   time.Time        `db:"created_at"`
	UpdatedAt   time.Time        `db:"updated_at"`
}

func (row faceProfileRow) toModel() models.StudentFaceProfile {
	profile := models.StudentFaceProfile{
		ClassID:     row.ClassID,
		StudentID:   row.StudentID,
		StudentName: row.StudentName,
		ImageURL:    row.ImageURL,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
	if row.Descriptor != nil {
		profile.Descriptor = row.Descriptor.Slice()
	}
	return profile
}

func descriptorValue(d []float32) interface{} {
	if len(d) == 0 {
		return nil
	}
	return pgvector.NewVector(d)
}

// Upsert enrolls a student or replaces their stored descriptor and display fields.
func (r *FaceProfileRepository) Upsert(ctx context.Context, profile *models.StudentFaceProfile) (*models.StudentFaceProfile, error) {
	now := time.Now().UTC()
	const query = `INSERT INTO student_face_profiles (class_id, student_id, student_name, descriptor, image_url, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $6)
ON CONFLICT (class_id, student_id)
DO UPDATE SET student_name = EXCLUDED.student_name, descriptor = EXCLUDED.descriptor, image_url = EXCLUDED.image_url, updated_at = EXCLUDED.updated_at
RETURNING class_id, student_id, student_name, descriptor, image_url, created_at, updated_at`
	var row faceProfileRow
	if err := r.db.GetContext(ctx, &row, query, profile.ClassID, profile.StudentID, profile.StudentName, descriptorValue(profile.Descriptor), profile.ImageURL, now); err != nil {
		if isForeignKeyViolation(err) {
			return nil, fmt.Errorf("upsert face profile: class %s: %w", profile.ClassID, ErrClassNotFound)
		}
		return nil, fmt.Errorf("upsert face profile: %w", err)
	}
	stored := row.toModel()
	return &stored, nil
}

// ListByClass returns the roster with descriptors in stable enrollment order, which is
// the iteration order used for match tie-breaks.
func (r *FaceProfileRepository) ListByClass(ctx context.Context, classID string) ([]models.StudentFaceProfile, error) {
	const query = `SELECT class_id, student_id, student_name, descriptor, image_url, created_at, updated_at
FROM student_face_profiles WHERE class_id = $1 ORDER BY created_at, student_id`
	var rows []faceProfileRow
	if err := r.db.SelectContext(ctx, &rows, query, classID); err != nil {
		return nil, fmt.Errorf("list face profiles: %w", err)
	}
	profiles := make([]models.StudentFaceProfile, len(rows))
	for i, row := range rows {
		profiles[i] = row.toModel()
	}
	return profiles, nil
}

// ListRoster returns roster entries without loading vectors.
func (r *FaceProfileRepository) ListRoster(ctx context.Context, classID string) ([]models.RosterEntry, error) {
	const query = `SELECT student_id, student_name, image_url, descriptor IS NOT NULL AS has_descriptor, updated_at
FROM student_face_profiles WHERE class_id = $1 ORDER BY created_at, student_id`
	var rows []struct {
		StudentID     string    `db:"student_id"`
		StudentName   string    `db:"student_name"`
		ImageURL      string    `db:"image_url"`
		HasDescriptor bool      `db:"has_descriptor"`
		UpdatedAt     time.Time `db:"updated_at"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, classID); err != nil {
		return nil, fmt.Errorf("list roster: %w", err)
	}
	entries := make([]models.RosterEntry, len(rows))
	for i, row := range rows {
		entries[i] = models.RosterEntry{
			StudentID:     row.StudentID,
			StudentName:   row.StudentName,
			ImageURL:      row.ImageURL,
			HasDescriptor: row.HasDescriptor,
			UpdatedAt:     row.UpdatedAt,
		}
	}
	return entries, nil
}

// IsEnrolled reports whether the student belongs to the class roster.
func (r *FaceProfileRepository) IsEnrolled(ctx context.Context, classID, studentID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM student_face_profiles WHERE class_id = $1 AND student_id = $2)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, classID, studentID); err != nil {
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return exists, nil
}
