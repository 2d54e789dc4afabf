package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/face-attendance-api/internal/models"
	appErrors "github.com/noah-isme/face-attendance-api/pkg/errors"
	"github.com/noah-isme/face-attendance-api/pkg/jobs"
)

type completedPresenceReader interface {
	ListCompletedPresence(ctx context.Context, classID string) ([]models.CompletedSessionPresence, error)
}

type rosterLister interface {
	ListRoster(ctx context.Context, classID string) ([]models.RosterEntry, error)
}

type refreshQueue interface {
	Enqueue(key string) error
}

// StatsService serves the per-class rollup, cached in Redis and refreshed in the
// background after sessions complete.
type StatsService struct {
	classes  classFinder
	sessions completedPresenceReader
	roster   rosterLister
	cache    *CacheService
	ttl      time.Duration
	metrics  *MetricsService
	queue    refreshQueue
	logger   *zap.Logger
	now      func() time.Time
}

// NewStatsService constructs the stats service. cache and metrics may be nil.
func NewStatsService(classes classFinder, sessions completedPresenceReader, roster rosterLister, cache *CacheService, ttl time.Duration, metrics *MetricsService, logger *zap.Logger) *StatsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatsService{
		classes:  classes,
		sessions: sessions,
		roster:   roster,
		cache:    cache,
		ttl:      ttl,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// UseQueue routes post-completion refreshes through a background queue. Without one the
// cached rollup is only dropped and rebuilt on the next read.
func (s *StatsService) UseQueue(q refreshQueue) {
	s.queue = q
}

// ClassStats returns the rollup for a class across its completed sessions.
func (s *StatsService) ClassStats(ctx context.Context, classID string) (*models.ClassStats, error) {
	if !isEntityID(classID) {
		return nil, classNotFound()
	}
	var cached models.ClassStats
	gen, hit := s.cache.Get(ctx, StatsCacheKey(classID), &cached)
	if hit {
		return &cached, nil
	}
	stats, err := s.compute(ctx, classID)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, StatsCacheKey(classID), gen, stats, s.ttl)
	return stats, nil
}

// Invalidate retires the cached rollup and schedules a rebuild when a queue is attached.
func (s *StatsService) Invalidate(ctx context.Context, classID string) {
	s.cache.Invalidate(ctx, StatsCacheKey(classID))
	if s.queue == nil || !s.cache.Enabled() {
		return
	}
	if err := s.queue.Enqueue(classID); err != nil {
		s.logger.Warn("stats refresh not queued", zap.String("class_id", classID), zap.Error(err))
	}
}

// HandleRefresh is the queue handler that recomputes and caches one class rollup.
func (s *StatsService) HandleRefresh(ctx context.Context, job jobs.Job) error {
	gen := s.cache.Generation(ctx, StatsCacheKey(job.Key))
	stats, err := s.compute(ctx, job.Key)
	s.metrics.ObserveStatsRefresh(err)
	if err != nil {
		return err
	}
	s.cache.Set(ctx, StatsCacheKey(job.Key), gen, stats, s.ttl)
	s.logger.Debug("class stats refreshed", zap.String("class_id", job.Key), zap.Int("completed_sessions", stats.CompletedSessions))
	return nil
}

func (s *StatsService) compute(ctx context.Context, classID string) (*models.ClassStats, error) {
	class, err := s.classes.FindByID(ctx, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, classNotFound()
		}
		return nil, appErrors.Storage(err, "failed to load class")
	}
	roster, err := s.roster.ListRoster(ctx, classID)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to load roster")
	}
	completed, err := s.sessions.ListCompletedPresence(ctx, classID)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to load completed sessions")
	}
	stats := ComputeClassStats(*class, roster, completed, s.now())
	return &stats, nil
}
