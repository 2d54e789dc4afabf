package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/face-attendance-api/internal/models"
)

// ClassRepository persists classes and their session schedules.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository constructs a new class repository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

const insertScheduledSessionQuery = `INSERT INTO scheduled_sessions (class_id, session_number, session_date, status)
VALUES (:class_id, :session_number, :session_date, :status)`

// CreateWithSchedule inserts the class and its generated schedule atomically.
func (r *ClassRepository) CreateWithSchedule(ctx context.Context, class *models.Class, schedule []models.ScheduledSession) error {
	if class.ID == "" {
		class.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	class.CreatedAt = now
	class.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create class: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const query = `INSERT INTO classes (id, name, start_date, total_sessions, max_absences, created_at, updated_at)
VALUES (:id, :name, :start_date, :total_sessions, :max_absences, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, class); err != nil {
		return fmt.Errorf("insert class: %w", err)
	}
	if err := insertSchedule(ctx, tx, class.ID, schedule); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create class: %w", err)
	}
	return nil
}

// ReplaceSchedule swaps the whole schedule and class timing. It refuses once any
// attendance session exists for the class.
func (r *ClassRepository) ReplaceSchedule(ctx context.Context, class *models.Class, schedule []models.ScheduledSession) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace schedule: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var locked string
	if err := tx.GetContext(ctx, &locked, `SELECT id FROM classes WHERE id = $1 FOR UPDATE`, class.ID); err != nil {
		return err
	}
	var sessions int
	if err := tx.GetContext(ctx, &sessions, `SELECT COUNT(*) FROM attendance_sessions WHERE class_id = $1`, class.ID); err != nil {
		return fmt.Errorf("count attendance sessions: %w", err)
	}
	if sessions > 0 {
		return ErrScheduleInUse
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM scheduled_sessions WHERE class_id = $1`, class.ID); err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	class.UpdatedAt = time.Now().UTC()
	const update = `UPDATE classes SET start_date = $2, total_sessions = $3, max_absences = $4, updated_at = $5 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, update, class.ID, class.StartDate, class.TotalSessions, class.MaxAbsences, class.UpdatedAt); err != nil {
		return fmt.Errorf("update class timing: %w", err)
	}
	if err := insertSchedule(ctx, tx, class.ID, schedule); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace schedule: %w", err)
	}
	return nil
}

func insertSchedule(ctx context.Context, tx *sqlx.Tx, classID string, schedule []models.ScheduledSession) error {
	for i := range schedule {
		schedule[i].ClassID = classID
		if _, err := tx.NamedExecContext(ctx, insertScheduledSessionQuery, schedule[i]); err != nil {
			return fmt.Errorf("insert scheduled session %d: %w", schedule[i].SessionNumber, err)
		}
	}
	return nil
}

// FindByID returns a class record by ID.
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.Class, error) {
	const query = `SELECT id, name, start_date, total_sessions, max_absences, created_at, updated_at FROM classes WHERE id = $1`
	var class models.Class
	if err := r.db.GetContext(ctx, &class, query, id); err != nil {
		return nil, err
	}
	return &class, nil
}

// ListSchedule returns the class schedule ordered by session number.
func (r *ClassRepository) ListSchedule(ctx context.Context, classID string) ([]models.ScheduledSession, error) {
	const query = `SELECT class_id, session_number, session_date, status FROM scheduled_sessions WHERE class_id = $1 ORDER BY session_number`
	var rows []models.ScheduledSession
	if err := r.db.SelectContext(ctx, &rows, query, classID); err != nil {
		return nil, fmt.Errorf("list schedule: %w", err)
	}
	return rows, nil
}
