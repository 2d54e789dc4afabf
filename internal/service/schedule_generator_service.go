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
	"github.com/noah-isme/face-attendance-api/internal/models"
	"github.com/noah-isme/face-attendance-api/internal/repository"
	appErrors "github.com/noah-isme/face-attendance-api/pkg/errors"
)

const (
	scheduleDateLayout = "2006-01-02"
	// MaxScheduleSessions bounds a single schedule to ten years of weekly meetings.
	MaxScheduleSessions = 520
)

// GenerateWeeklySchedule returns count meetings numbered 1..count, dated start, start+7d,
// start+14d and so on, all pending. The time of day is dropped.
func GenerateWeeklySchedule(start time.Time, count int) ([]models.ScheduledSession, error) {
	if start.IsZero() {
		return nil, appErrors.Clone(appErrors.ErrInvalidScheduleInput, "start date is required")
	}
	if count < 1 || count > MaxScheduleSessions {
		return nil, appErrors.Clone(appErrors.ErrInvalidScheduleInput, "total sessions must be between 1 and 520")
	}

	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	schedule := make([]models.ScheduledSession, count)
	for i := range schedule {
		schedule[i] = models.ScheduledSession{
			SessionNumber: i + 1,
			Date:          day.AddDate(0, 0, 7*i),
			Status:        models.ScheduledSessionPending,
		}
	}
	return schedule, nil
}

// ParseScheduleDate parses a YYYY-MM-DD start date.
func ParseScheduleDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, appErrors.Clone(appErrors.ErrInvalidScheduleInput, "start date is required")
	}
	t, err := time.Parse(scheduleDateLayout, raw)
	if err != nil {
		return time.Time{}, appErrors.Wrap(err, appErrors.ErrInvalidScheduleInput.Code, appErrors.ErrInvalidScheduleInput.Status, "start date must use YYYY-MM-DD")
	}
	return t, nil
}

type classScheduleStore interface {
	CreateWithSchedule(ctx context.Context, class *models.Class, schedule []models.ScheduledSession) error
	ReplaceSchedule(ctx context.Context, class *models.Class, schedule []models.ScheduledSession) error
	FindByID(ctx context.Context, id string) (*models.Class, error)
	ListSchedule(ctx context.Context, classID string) ([]models.ScheduledSession, error)
}

type classStatsInvalidator interface {
	Invalidate(ctx context.Context, classID string)
}

// ScheduleGeneratorService creates classes and owns their session schedule.
type ScheduleGeneratorService struct {
	repo      classScheduleStore
	stats     classStatsInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewScheduleGeneratorService constructs the service. stats may be nil.
func NewScheduleGeneratorService(repo classScheduleStore, stats classStatsInvalidator, validate *validator.Validate, logger *zap.Logger) *ScheduleGeneratorService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleGeneratorService{repo: repo, stats: stats, validator: validate, logger: logger}
}

// CreateClass stores a class together with its generated schedule.
func (s *ScheduleGeneratorService) CreateClass(ctx context.Context, req dto.CreateClassRequest) (*models.ClassDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid class payload")
	}
	start, err := ParseScheduleDate(req.StartDate)
	if err != nil {
		return nil, err
	}
	schedule, err := GenerateWeeklySchedule(start, req.TotalSessions)
	if err != nil {
		return nil, err
	}

	class := &models.Class{
		Name:          strings.TrimSpace(req.Name),
		StartDate:     schedule[0].Date,
		TotalSessions: req.TotalSessions,
		MaxAbsences:   MaxAbsences(req.TotalSessions),
	}
	if err := s.repo.CreateWithSchedule(ctx, class, schedule); err != nil {
		return nil, appErrors.Storage(err, "failed to create class")
	}
	s.logger.Info("class created",
		zap.String("class_id", class.ID),
		zap.Int("total_sessions", class.TotalSessions),
		zap.Int("max_absences", class.MaxAbsences),
	)
	return &models.ClassDetail{Class: *class, Schedule: schedule}, nil
}

// Get returns a class with its ordered schedule.
func (s *ScheduleGeneratorService) Get(ctx context.Context, classID string) (*models.ClassDetail, error) {
	class, err := s.findClass(ctx, classID)
	if err != nil {
		return nil, err
	}
	schedule, err := s.repo.ListSchedule(ctx, classID)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to load schedule")
	}
	return &models.ClassDetail{Class: *class, Schedule: schedule}, nil
}

// Regenerate replaces the schedule and the derived absence threshold. It is refused once
// any attendance session exists for the class.
func (s *ScheduleGeneratorService) Regenerate(ctx context.Context, classID string, req dto.RegenerateScheduleRequest) (*models.ClassDetail, error) {
	class, err := s.findClass(ctx, classID)
	if err != nil {
		return nil, err
	}
	start, err := ParseScheduleDate(req.StartDate)
	if err != nil {
		return nil, err
	}
	schedule, err := GenerateWeeklySchedule(start, req.TotalSessions)
	if err != nil {
		return nil, err
	}

	class.StartDate = schedule[0].Date
	class.TotalSessions = req.TotalSessions
	class.MaxAbsences = MaxAbsences(req.TotalSessions)
	if err := s.repo.ReplaceSchedule(ctx, class, schedule); err != nil {
		switch {
		case errors.Is(err, repository.ErrScheduleInUse):
			return nil, appErrors.ErrScheduleLocked
		case errors.Is(err, sql.ErrNoRows):
			return nil, classNotFound()
		}
		return nil, appErrors.Storage(err, "failed to regenerate schedule")
	}
	if s.stats != nil {
		s.stats.Invalidate(ctx, classID)
	}
	s.logger.Info("schedule regenerated", zap.String("class_id", classID), zap.Int("total_sessions", class.TotalSessions))
	return &models.ClassDetail{Class: *class, Schedule: schedule}, nil
}

func (s *ScheduleGeneratorService) findClass(ctx context.Context, classID string) (*models.Class, error) {
	if !isEntityID(classID) {
		return nil, classNotFound()
	}
	class, err := s.repo.FindByID(ctx, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, classNotFound()
		}
		return nil, appErrors.Storage(err, "failed to load class")
	}
	return class, nil
}
