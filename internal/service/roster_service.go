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

type faceProfileStore interface {
	Upsert(ctx context.Context, profile *models.StudentFaceProfile) (*models.StudentFaceProfile, error)
	ListByClass(ctx context.Context, classID string) ([]models.StudentFaceProfile, error)
	ListRoster(ctx context.Context, classID string) ([]models.RosterEntry, error)
	IsEnrolled(ctx context.Context, classID, studentID string) (bool, error)
}

type classFinder interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

// RosterService manages enrolled students and serves match candidates.
type RosterService struct {
	profiles  faceProfileStore
	classes   classFinder
	cache     *CacheService
	ttl       time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRosterService constructs the roster service. cache may be nil.
func NewRosterService(profiles faceProfileStore, classes classFinder, cache *CacheService, ttl time.Duration, validate *validator.Validate, logger *zap.Logger) *RosterService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RosterService{
		profiles:  profiles,
		classes:   classes,
		cache:     cache,
		ttl:       ttl,
		validator: registerAttendanceValidations(validate),
		logger:    logger,
	}
}

// Enroll adds a student to the class roster or replaces their descriptor.
func (s *RosterService) Enroll(ctx context.Context, classID, studentID string, req dto.UpsertProfileRequest) (*models.StudentFaceProfile, error) {
	studentID = strings.TrimSpace(studentID)
	if studentID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student id is required")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid profile payload")
	}
	if !isEntityID(classID) {
		return nil, classNotFound()
	}

	stored, err := s.profiles.Upsert(ctx, &models.StudentFaceProfile{
		ClassID:     classID,
		StudentID:   studentID,
		StudentName: strings.TrimSpace(req.StudentName),
		Descriptor:  req.Descriptor,
		ImageURL:    req.ImageURL,
	})
	if err != nil {
		if errors.Is(err, repository.ErrClassNotFound) {
			return nil, classNotFound()
		}
		return nil, appErrors.Storage(err, "failed to store face profile")
	}

	// Both the candidate list and the rollup depend on roster membership.
	s.cache.Invalidate(ctx, RosterCacheKey(classID), StatsCacheKey(classID))
	s.logger.Info("face profile enrolled",
		zap.String("class_id", classID),
		zap.String("student_id", studentID),
		zap.Bool("has_descriptor", stored.HasValidDescriptor()),
	)
	return stored, nil
}

// List returns the class roster without descriptor vectors.
func (s *RosterService) List(ctx context.Context, classID string) ([]models.RosterEntry, error) {
	if err := s.ensureClass(ctx, classID); err != nil {
		return nil, err
	}
	entries, err := s.profiles.ListRoster(ctx, classID)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to list roster")
	}
	return entries, nil
}

// Candidates returns the matchable roster in enrollment order. Students without a
// valid descriptor are left out.
func (s *RosterService) Candidates(ctx context.Context, classID string) ([]facematch.Candidate, error) {
	key := RosterCacheKey(classID)
	var cached []facematch.Candidate
	gen, hit := s.cache.Get(ctx, key, &cached)
	if hit {
		return cached, nil
	}

	profiles, err := s.profiles.ListByClass(ctx, classID)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to load roster")
	}
	candidates := make([]facematch.Candidate, 0, len(profiles))
	for _, p := range profiles {
		if !p.HasValidDescriptor() {
			continue
		}
		candidates = append(candidates, facematch.Candidate{StudentID: p.StudentID, Descriptor: p.Descriptor})
	}
	s.cache.Set(ctx, key, gen, candidates, s.ttl)
	return candidates, nil
}

// IsEnrolled reports roster membership, descriptor or not.
func (s *RosterService) IsEnrolled(ctx context.Context, classID, studentID string) (bool, error) {
	ok, err := s.profiles.IsEnrolled(ctx, classID, studentID)
	if err != nil {
		return false, appErrors.Storage(err, "failed to check enrollment")
	}
	return ok, nil
}

func (s *RosterService) ensureClass(ctx context.Context, classID string) error {
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
