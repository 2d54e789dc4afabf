package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/face-attendance-api/pkg/errors"
)

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Incr(ctx context.Context, key string) (int64, error)
}

// RosterCacheKey is the cache key of a class roster.
func RosterCacheKey(classID string) string { return "roster:" + classID }

// StatsCacheKey is the cache key of a class rollup.
func StatsCacheKey(classID string) string { return "stats:" + classID }

func generationKey(key string) string { return "gen:" + key }

func versionedKey(key string, gen int64) string { return key + ":" + strconv.FormatInt(gen, 10) }

// noGeneration marks a read whose result must not be stored.
const noGeneration int64 = -1

// CacheService fronts the roster and rollup caches. Failures are logged and reported as
// misses; the database stays the source of truth.
//
// Values live under a per-key generation. Invalidate bumps the generation, so a value
// computed from a read that started before the bump is stored under a generation nobody
// reads anymore and cannot shadow the fresh data.
type CacheService struct {
	repo       CacheRepository
	metrics    *MetricsService
	defaultTTL time.Duration
	logger     *zap.Logger
	enabled    bool
}

// NewCacheService constructs a cache service.
func NewCacheService(repo CacheRepository, metrics *MetricsService, defaultTTL time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if defaultTTL <= 0 {
		defaultTTL = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, defaultTTL: defaultTTL, logger: logger, enabled: enabled}
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

func (s *CacheService) generation(ctx context.Context, key string) int64 {
	var gen int64
	err := s.repo.Get(ctx, generationKey(key), &gen)
	switch {
	case err == nil:
		return gen
	case errors.Is(err, appErrors.ErrCacheMiss):
		return 0
	}
	s.logger.Warn("cache generation read failed", zap.String("key", key), zap.Error(err))
	return noGeneration
}

// Get loads the current value of key into dest. On a miss it returns the generation the
// caller must hand to Set once it has rebuilt the value.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) (int64, bool) {
	if !s.Enabled() {
		return noGeneration, false
	}
	start := time.Now()
	gen := s.generation(ctx, key)
	if gen == noGeneration {
		s.metrics.RecordCacheOperation(false, time.Since(start))
		return noGeneration, false
	}
	err := s.repo.Get(ctx, versionedKey(key, gen), dest)
	s.metrics.RecordCacheOperation(err == nil, time.Since(start))
	if err != nil && !errors.Is(err, appErrors.ErrCacheMiss) {
		s.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
	}
	return gen, err == nil
}

// Generation returns the current generation of key for callers that rebuild a value
// without reading it first.
func (s *CacheService) Generation(ctx context.Context, key string) int64 {
	if !s.Enabled() {
		return noGeneration
	}
	return s.generation(ctx, key)
}

// Set stores value under generation gen of key. A non-positive ttl uses the default.
func (s *CacheService) Set(ctx context.Context, key string, gen int64, value interface{}, ttl time.Duration) {
	if !s.Enabled() || gen < 0 {
		return
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	start := time.Now()
	err := s.repo.Set(ctx, versionedKey(key, gen), value, ttl)
	s.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// Invalidate moves every key to a new generation. Call it after the underlying data has
// been committed.
func (s *CacheService) Invalidate(ctx context.Context, keys ...string) {
	if !s.Enabled() {
		return
	}
	for _, key := range keys {
		if _, err := s.repo.Incr(ctx, generationKey(key)); err != nil {
			s.logger.Warn("cache invalidate failed", zap.String("key", key), zap.Error(err))
		}
	}
}
