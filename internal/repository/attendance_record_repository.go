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

// AttendanceRecordRepository is the presence ledger keyed by (session, student).
type AttendanceRecordRepository struct {
	db *sqlx.DB
}

// NewAttendanceRecordRepository constructs the repository.
func NewAttendanceRecordRepository(db *sqlx.DB) *AttendanceRecordRepository {
	return &AttendanceRecordRepository{db: db}
}

const recordColumns = `id, session_id, student_id, present, recorded_at, method, match_confidence, match_distance, note`

// Upsert inserts or updates the record for (session, student). The session row is share
// locked so the write serialises against completion, and a closed session rejects it.
// recorded_at only moves when the presence value changes.
func (r *AttendanceRecordRepository) Upsert(ctx context.Context, record *models.AttendanceRecord) (*models.AttendanceRecord, error) {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.RecordedAt.IsZero() {
		record.RecordedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin upsert attendance record: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var status models.SessionStatus
	if err := tx.GetContext(ctx, &status, `SELECT status FROM attendance_sessions WHERE id = $1 FOR SHARE`, record.SessionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("lock attendance session: %w", err)
	}
	if status != models.SessionStatusOpen {
		return nil, ErrSessionClosed
	}

	query := `INSERT INTO attendance_records (` + recordColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (session_id, student_id)
DO UPDATE SET present = EXCLUDED.present,
	method = EXCLUDED.method,
	match_confidence = EXCLUDED.match_confidence,
	match_distance = EXCLUDED.match_distance,
	note = EXCLUDED.note,
	recorded_at = CASE WHEN attendance_records.present = EXCLUDED.present THEN attendance_records.recorded_at ELSE EXCLUDED.recorded_at END
RETURNING ` + recordColumns
	var stored models.AttendanceRecord
	if err := tx.GetContext(ctx, &stored, query,
		record.ID, record.SessionID, record.StudentID, record.Present, record.RecordedAt,
		record.Method, record.MatchConfidence, record.MatchDistance, record.Note,
	); err != nil {
		return nil, fmt.Errorf("upsert attendance record: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit attendance record: %w", err)
	}
	return &stored, nil
}

// ListBySession returns every record of a session ordered by student.
func (r *AttendanceRecordRepository) ListBySession(ctx context.Context, sessionID string) ([]models.AttendanceRecord, error) {
	return listRecords(ctx, r.db, sessionID)
}

func listRecords(ctx context.Context, q sqlx.QueryerContext, sessionID string) ([]models.AttendanceRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM attendance_records WHERE session_id = $1 ORDER BY student_id`
	var records []models.AttendanceRecord
	if err := sqlx.SelectContext(ctx, q, &records, query, sessionID); err != nil {
		return nil, fmt.Errorf("list attendance records: %w", err)
	}
	return records, nil
}
