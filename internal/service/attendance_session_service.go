package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/face-attendance-api/internal/dto"
	"github.com/noah-isme/face-attendance-api/internal/facematch"
	"github.com/noah-isme/face-attendance-api/internal/models"
	"github.com/noah-isme/face-attendance-api/internal/repository"
	appErrors "github.com/noah-isme/face-attendance-api/pkg/errors"
)

type attendanceSessionStore interface {
	Create(ctx context.Context, session *models.AttendanceSession) error
	FindByID(ctx context.Context, id string) (*models.AttendanceSession, error)
	ListByClass(ctx context.Context, classID string) ([]models.AttendanceSession, error)
	Complete(ctx context.Context, id string, closedAt time.Time, aggregate repository.SessionAggregator) (*models.AttendanceSession, error)
}

type attendanceRecordStore interface {
	Upsert(ctx context.Context, record *models.AttendanceRecord) (*models.AttendanceRecord, error)
	ListBySession(ctx context.Context, sessionID string) ([]models.AttendanceRecord, error)
}

type rosterSource interface {
	Candidates(ctx context.Context, classID string) ([]facematch.Candidate, error)
	IsEnrolled(ctx context.Context, classID, studentID string) (bool, error)
}

// AttendanceSessionService runs the open, record, complete lifecycle of class meetings.
// Concurrent callers are serialised by the storage layer: one open session per meeting,
// one record per student, and completion locking out late writes.
type AttendanceSessionService struct {
	sessions  attendanceSessionStore
	records   attendanceRecordStore
	classes   classFinder
	roster    rosterSource
	stats     classStatsInvalidator
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewAttendanceSessionService constructs the service. stats and metrics may be nil.
func NewAttendanceSessionService(
	sessions attendanceSessionStore,
	records attendanceRecordStore,
	classes classFinder,
	roster rosterSource,
	stats classStatsInvalidator,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
) *AttendanceSessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceSessionService{
		sessions:  sessions,
		records:   records,
		classes:   classes,
		roster:    roster,
		stats:     stats,
		metrics:   metrics,
		validator: registerAttendanceValidations(validate),
		logger:    logger,
		now:       time.Now,
	}
}

// Open starts attendance taking for one scheduled meeting of a class.
func (s *AttendanceSessionService) Open(ctx context.Context, classID string, req dto.OpenSessionRequest) (*models.AttendanceSession, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid session payload")
	}
	if err := s.ensureClass(ctx, classID); err != nil {
		return nil, err
	}
	if req.SessionNumber < 1 {
		return nil, appErrors.ErrUnknownSession
	}

	session := &models.AttendanceSession{
		ClassID:       classID,
		SessionNumber: req.SessionNumber,
		OpenedAt:      s.now().UTC(),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		switch {
		case errors.Is(err, repository.ErrOpenSessionExists):
			return nil, appErrors.ErrSessionAlreadyOpen
		case errors.Is(err, repository.ErrScheduledSessionCompleted):
			return nil, appErrors.ErrSessionCompleted
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.ErrUnknownSession
		}
		return nil, appErrors.Storage(err, "failed to open session")
	}

	s.metrics.ObserveSessionTransition(models.SessionStatusOpen)
	s.logger.Info("attendance session opened",
		zap.String("session_id", session.ID),
		zap.String("class_id", classID),
		zap.Int("session_number", session.SessionNumber),
	)
	return session, nil
}

// RecordPresence writes a presence fact for the session. With a descriptor the student
// is identified by matching against the class roster; a miss is returned as an unmatched
// result and writes nothing. Without one the request names the student explicitly.
func (s *AttendanceSessionService) RecordPresence(ctx context.Context, sessionID string, req dto.RecordPresenceRequest) (*dto.PresenceResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid presence payload")
	}
	if req.IsFace() && (req.StudentID != "" || req.Method != "") {
		return nil, appErrors.Clone(appErrors.ErrValidation, "send either a descriptor or a student_id, not both")
	}

	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.IsOpen() {
		return nil, appErrors.ErrSessionNotOpen
	}

	if req.IsFace() {
		return s.recordByFace(ctx, session, req)
	}
	return s.recordManually(ctx, session, req)
}

func (s *AttendanceSessionService) recordByFace(ctx context.Context, session *models.AttendanceSession, req dto.RecordPresenceRequest) (*dto.PresenceResult, error) {
	candidates, err := s.roster.Candidates(ctx, session.ClassID)
	if err != nil {
		return nil, err
	}

	result, err := facematch.Match(req.Descriptor, candidates)
	switch {
	case errors.Is(err, appErrors.ErrNoMatch):
		s.metrics.ObserveMatch(MatchOutcomeRejected, result)
		s.logger.Debug("face not matched",
			zap.String("session_id", session.ID),
			zap.Float64("best_distance", result.Distance),
		)
		// the nearest rejected student is not disclosed
		result.StudentID = ""
		return &dto.PresenceResult{Matched: false, Match: &result}, nil
	case err != nil:
		s.metrics.ObserveMatch(MatchOutcomeInvalid, result)
		return nil, err
	}
	s.metrics.ObserveMatch(MatchOutcomeAccepted, result)

	confidence, distance := result.Confidence, result.Distance
	record, err := s.upsert(ctx, &models.AttendanceRecord{
		SessionID:       session.ID,
		StudentID:       result.StudentID,
		Present:         true,
		Method:          models.RecordMethodFace,
		MatchConfidence: &confidence,
		MatchDistance:   &distance,
		Note:            strings.TrimSpace(req.Note),
	})
	if err != nil {
		return nil, err
	}
	return &dto.PresenceResult{Recorded: true, Matched: true, Match: &result, Record: record}, nil
}

func (s *AttendanceSessionService) recordManually(ctx context.Context, session *models.AttendanceSession, req dto.RecordPresenceRequest) (*dto.PresenceResult, error) {
	studentID := strings.TrimSpace(req.StudentID)
	if studentID == "" || req.Present == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student_id and present are required without a descriptor")
	}
	enrolled, err := s.roster.IsEnrolled(ctx, session.ClassID, studentID)
	if err != nil {
		return nil, err
	}
	if !enrolled {
		return nil, appErrors.ErrStudentNotEnrolled
	}

	method := models.RecordMethodManual
	if req.Method != "" {
		method = models.RecordMethod(req.Method)
	}
	record, err := s.upsert(ctx, &models.AttendanceRecord{
		SessionID: session.ID,
		StudentID: studentID,
		Present:   *req.Present,
		Method:    method,
		Note:      strings.TrimSpace(req.Note),
	})
	if err != nil {
		return nil, err
	}
	return &dto.PresenceResult{Recorded: true, Record: record}, nil
}

func (s *AttendanceSessionService) upsert(ctx context.Context, record *models.AttendanceRecord) (*models.AttendanceRecord, error) {
	record.RecordedAt = s.now().UTC()
	stored, err := s.records.Upsert(ctx, record)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrSessionClosed):
			// completed between the status check and the write
			return nil, appErrors.ErrSessionNotOpen
		case errors.Is(err, sql.ErrNoRows):
			return nil, sessionNotFound()
		}
		return nil, appErrors.Storage(err, "failed to record presence")
	}
	s.metrics.ObservePresenceRecord(stored.Method)
	s.logger.Info("presence recorded",
		zap.String("session_id", stored.SessionID),
		zap.String("student_id", stored.StudentID),
		zap.Bool("present", stored.Present),
		zap.String("method", string(stored.Method)),
	)
	return stored, nil
}

// Complete closes an open session, persisting its stats snapshot and marking the
// scheduled meeting completed in one transaction. A second call fails with
// SESSION_NOT_OPEN and leaves the stored snapshot untouched.
func (s *AttendanceSessionService) Complete(ctx context.Context, sessionID string) (*models.AttendanceSession, error) {
	if !isEntityID(sessionID) {
		return nil, sessionNotFound()
	}
	session, err := s.sessions.Complete(ctx, sessionID, s.now(), SessionStatsForRoster)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrSessionClosed):
			return nil, appErrors.ErrSessionNotOpen
		case errors.Is(err, sql.ErrNoRows):
			return nil, sessionNotFound()
		}
		return nil, appErrors.Storage(err, "failed to complete session")
	}

	if s.stats != nil {
		s.stats.Invalidate(ctx, session.ClassID)
	}
	s.metrics.ObserveSessionTransition(models.SessionStatusCompleted)
	s.logger.Info("attendance session completed",
		zap.String("session_id", session.ID),
		zap.String("class_id", session.ClassID),
		zap.Int("session_number", session.SessionNumber),
		zap.Int("present", session.PresentCount),
		zap.Int("total", session.TotalStudents),
	)
	return session, nil
}

// Get returns a session with its records.
func (s *AttendanceSessionService) Get(ctx context.Context, sessionID string) (*dto.SessionDetail, error) {
	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	records, err := s.records.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to list records")
	}
	if records == nil {
		records = []models.AttendanceRecord{}
	}
	return &dto.SessionDetail{AttendanceSession: *session, Records: records}, nil
}

// ListRecords returns the presence ledger of a session.
func (s *AttendanceSessionService) ListRecords(ctx context.Context, sessionID string) ([]models.AttendanceRecord, error) {
	if _, err := s.loadSession(ctx, sessionID); err != nil {
		return nil, err
	}
	records, err := s.records.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to list records")
	}
	if records == nil {
		records = []models.AttendanceRecord{}
	}
	return records, nil
}

// ListByClass returns every session opened for a class.
func (s *AttendanceSessionService) ListByClass(ctx context.Context, classID string) ([]models.AttendanceSession, error) {
	if err := s.ensureClass(ctx, classID); err != nil {
		return nil, err
	}
	sessions, err := s.sessions.ListByClass(ctx, classID)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to list sessions")
	}
	if sessions == nil {
		sessions = []models.AttendanceSession{}
	}
	return sessions, nil
}

func (s *AttendanceSessionService) loadSession(ctx context.Context, sessionID string) (*models.AttendanceSession, error) {
	if !isEntityID(sessionID) {
		return nil, sessionNotFound()
	}
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sessionNotFound()
		}
		return nil, appErrors.Storage(err, "failed to load session")
	}
	return session, nil
}

func (s *AttendanceSessionService) ensureClass(ctx context.Context, classID string) error {
	if !isEntityID(classID) {
		return classNotFound()
	}
	if _, err := s.classes.FindByID(ctx, classID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return classNotFound()
		}
		return appErrors.Storage(err, "failed to load class")
	}
	return nil
}
