package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/face-attendance-api/internal/models"
)

func weeklySchedule(start time.Time, n int) []models.ScheduledSession {
	out := make([]models.ScheduledSession, n)
	for i := range out {
		out[i] = models.ScheduledSession{SessionNumber: i + 1, Date: start.AddDate(0, 0, 7*i), Status: models.ScheduledSessionPending}
	}
	return out
}

func TestClassRepositoryCreateWithSchedule(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewClassRepository(db)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO classes").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO scheduled_sessions").WithArgs(sqlmock.AnyArg(), 1, start, models.ScheduledSessionPending).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO scheduled_sessions").WithArgs(sqlmock.AnyArg(), 2, start.AddDate(0, 0, 7), models.ScheduledSessionPending).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	class := &models.Class{Name: "Algorithms", StartDate: start, TotalSessions: 2, MaxAbsences: 1}
	schedule := weeklySchedule(start, 2)
	require.NoError(t, repo.CreateWithSchedule(context.Background(), class, schedule))
	assert.NotEmpty(t, class.ID)
	assert.Equal(t, class.ID, schedule[1].ClassID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRepositoryCreateRollsBackOnScheduleFailure(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewClassRepository(db)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO classes").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO scheduled_sessions").WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	err := repo.CreateWithSchedule(context.Background(), &models.Class{Name: "x", StartDate: start, TotalSessions: 1}, weeklySchedule(start, 1))
	require.ErrorIs(t, err, sql.ErrConnDone)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRepositoryReplaceScheduleRejectsWhenSessionsExist(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewClassRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM classes WHERE id = \$1 FOR UPDATE`).WithArgs("class-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("class-1"))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM attendance_sessions`).WithArgs("class-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	start := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	err := repo.ReplaceSchedule(context.Background(), &models.Class{ID: "class-1", StartDate: start, TotalSessions: 3}, weeklySchedule(start, 3))
	require.ErrorIs(t, err, ErrScheduleInUse)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRepositoryReplaceSchedule(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewClassRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM classes`).WithArgs("class-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("class-1"))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM attendance_sessions`).WithArgs("class-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(`DELETE FROM scheduled_sessions`).WithArgs("class-1").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`UPDATE classes SET start_date`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO scheduled_sessions").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	start := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	err := repo.ReplaceSchedule(context.Background(), &models.Class{ID: "class-1", StartDate: start, TotalSessions: 1}, weeklySchedule(start, 1))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
