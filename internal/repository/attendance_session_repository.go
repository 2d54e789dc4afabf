package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/face-attendance-api/internal/models"
)

// SessionAggregator computes the completion snapshot from the records and roster seen
// inside the completing transaction.
type SessionAggregator func(records []models.AttendanceRecord, rosterIDs []string) models.SessionStats

// AttendanceSessionRepository persists session lifecycle state.
type AttendanceSessionRepository struct {
	db *sqlx.DB
}

// NewAttendanceSessionRepository constructs the repository.
func NewAttendanceSessionRepository(db *sqlx.DB) *AttendanceSessionRepository {
	return &AttendanceSessionRepository{db: db}
}

const sessionColumns = `id, class_id, session_number, status, opened_at, closed_at, total_students, present_count, absent_count, attendance_rate`

// Create inserts an open session for a pending scheduled meeting. The schedule row is
// share locked so the insert serialises against completion of the same meeting, and the
// partial unique index on open sessions turns a concurrent second open into
// ErrOpenSessionExists. A missing schedule entry returns sql.ErrNoRows.
func (r *AttendanceSessionRepository) Create(ctx context.Context, session *models.AttendanceSession) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if session.OpenedAt.IsZero() {
		session.OpenedAt = time.Now().UTC()
	}
	session.Status = models.SessionStatusOpen

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin open session: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var scheduled models.ScheduledSessionStatus
	const lock = `SELECT status FROM scheduled_sessions WHERE class_id = $1 AND session_number = $2 FOR SHARE`
	if err := tx.GetContext(ctx, &scheduled, lock, session.ClassID, session.SessionNumber); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return err
		}
		return fmt.Errorf("lock scheduled session: %w", err)
	}
	if scheduled == models.ScheduledSessionCompleted {
		return ErrScheduledSessionCompleted
	}

	const query = `INSERT INTO attendance_sessions (id, class_id, session_number, status, opened_at)
VALUES ($1, $2, $3, $4, $5)`
	if _, err := tx.ExecContext(ctx, query, session.ID, session.ClassID, session.SessionNumber, session.Status, session.OpenedAt); err != nil {
		if isUniqueViolation(err, openSessionIndex) {
			return ErrOpenSessionExists
		}
		return fmt.Errorf("insert attendance session: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit open session: %w", err)
	}
	return nil
}

// FindByID returns the session or sql.ErrNoRows.
func (r *AttendanceSessionRepository) FindByID(ctx context.Context, id string) (*models.AttendanceSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM attendance_sessions WHERE id = $1`
	var session models.AttendanceSession
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		return nil, err
	}
	return &session, nil
}

// ListByClass returns every session of a class ordered by session number then open time.
func (r *AttendanceSessionRepository) ListByClass(ctx context.Context, classID string) ([]models.AttendanceSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM attendance_sessions WHERE class_id = $1 ORDER BY session_number, opened_at`
	var sessions []models.AttendanceSession
	if err := r.db.SelectContext(ctx, &sessions, query, classID); err != nil {
		return nil, fmt.Errorf("list attendance sessions: %w", err)
	}
	return sessions, nil
}

// Complete closes an open session in a single transaction: the schedule entry and then
// the session row are locked, records and roster are read under those locks, the snapshot
// is written, and the schedule entry is marked completed. Nothing is written when the
// session is not open.
//
// Locks are taken in the same order as Create (schedule entry first), so an open racing a
// completion of the same meeting waits and then sees the entry completed.
func (r *AttendanceSessionRepository) Complete(ctx context.Context, id string, closedAt time.Time, aggregate SessionAggregator) (*models.AttendanceSession, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin complete session: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var scheduled models.ScheduledSessionStatus
	const lockScheduled = `SELECT ss.status FROM scheduled_sessions ss
JOIN attendance_sessions s ON s.class_id = ss.class_id AND s.session_number = ss.session_number
WHERE s.id = $1 FOR UPDATE OF ss`
	if err := tx.GetContext(ctx, &scheduled, lockScheduled, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("lock scheduled session: %w", err)
	}

	var session models.AttendanceSession
	lockQuery := `SELECT ` + sessionColumns + ` FROM attendance_sessions WHERE id = $1 FOR UPDATE`
	if err := tx.GetContext(ctx, &session, lockQuery, id); err != nil {
		return nil, err
	}
	if !session.IsOpen() {
		return &session, ErrSessionClosed
	}

	records, err := listRecords(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	var rosterIDs []string
	if err := tx.SelectContext(ctx, &rosterIDs, `SELECT student_id FROM student_face_profiles WHERE class_id = $1`, session.ClassID); err != nil {
		return nil, fmt.Errorf("load roster ids: %w", err)
	}

	stats := aggregate(records, rosterIDs)
	closed := closedAt.UTC()
	const update = `UPDATE attendance_sessions SET status = $2, closed_at = $3, total_students = $4, present_count = $5, absent_count = $6, attendance_rate = $7
WHERE id = $1 AND status = 'open'`
	res, err := tx.ExecContext(ctx, update, id, models.SessionStatusCompleted, closed, stats.TotalStudents, stats.PresentCount, stats.AbsentCount, stats.AttendanceRate)
	if err != nil {
		return nil, fmt.Errorf("write session snapshot: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil || n != 1 {
		return nil, fmt.Errorf("write session snapshot: expected 1 row, got %d (%v)", n, err)
	}

	const markScheduled = `UPDATE scheduled_sessions SET status = $3 WHERE class_id = $1 AND session_number = $2`
	if _, err := tx.ExecContext(ctx, markScheduled, session.ClassID, session.SessionNumber, models.ScheduledSessionCompleted); err != nil {
		return nil, fmt.Errorf("mark scheduled session completed: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit complete session: %w", err)
	}

	session.Status = models.SessionStatusCompleted
	session.ClosedAt = &closed
	session.SessionStats = stats
	return &session, nil
}

// ListCompletedPresence returns, for each completed session of a class, the set of
// students recorded present.
func (r *AttendanceSessionRepository) ListCompletedPresence(ctx context.Context, classID string) ([]models.CompletedSessionPresence, error) {
	const query = `SELECT s.id AS session_id, s.session_number, ar.student_id
FROM attendance_sessions s
LEFT JOIN attendance_records ar ON ar.session_id = s.id AND ar.present = TRUE
WHERE s.class_id = $1 AND s.status = 'completed'
ORDER BY s.session_number, s.id`
	var rows []struct {
		SessionID     string         `db:"session_id"`
		SessionNumber int            `db:"session_number"`
		StudentID     sql.NullString `db:"student_id"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, classID); err != nil {
		return nil, fmt.Errorf("list completed presence: %w", err)
	}

	result := make([]models.CompletedSessionPresence, 0)
	index := map[string]int{}
	for _, row := range rows {
		i, ok := index[row.SessionID]
		if !ok {
			i = len(result)
			index[row.SessionID] = i
			result = append(result, models.CompletedSessionPresence{
				SessionID:     row.SessionID,
				SessionNumber: row.SessionNumber,
				Present:       map[string]bool{},
			})
		}
		if row.StudentID.Valid {
			result[i].Present[row.StudentID.String] = true
		}
	}
	return result, nil
}
