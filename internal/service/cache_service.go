package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/course-scheduler/pkg/errors"
)

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CacheService orchestrates cache operations and related metrics.
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
		defaultTTL = 15 * time.Minute
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

// Get attempts to retrieve a cached entry. It returns true when the cache was hit.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !s.Enabled() {
		return false, nil
	}
	start := time.Now()
	err := s.repo.Get(ctx, key, dest)
	s.metrics.RecordCacheOperation(err == nil, time.Since(start))
	if err != nil {
		if errors.Is(err, appErrors.ErrCacheMiss) {
			return false, nil
		}
		s.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		return false, err
	}
	return true, nil
}

// Set stores the value in cache.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !s.Enabled() {
		return nil
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	if err := s.repo.Set(ctx, key, value, ttl); err != nil {
		s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
		return err
	}
	return nil
}

// Invalidate removes cached values for the provided pattern.
func (s *CacheService) Invalidate(ctx context.Context, pattern string) error {
	if !s.Enabled() {
		return nil
	}
	if err := s.repo.DeleteByPattern(ctx, pattern); err != nil {
		s.logger.Warn("cache invalidate failed", zap.String("pattern", pattern), zap.Error(err))
		return err
	}
	return nil
}

type cachedYearLevel struct {
	Level int  `json:"level"`
	OK    bool `json:"ok"`
}

// CachedYearLevelResolver fronts a YearLevelResolver with the cache. Year
// levels only change when a curriculum is edited, so entries live for the
// cache TTL. Cache failures fall back to the underlying resolver.
type CachedYearLevelResolver struct {
	next  YearLevelResolver
	cache *CacheService
}

// NewCachedYearLevelResolver wraps next with cache.
func NewCachedYearLevelResolver(next YearLevelResolver, cache *CacheService) *CachedYearLevelResolver {
	return &CachedYearLevelResolver{next: next, cache: cache}
}

// ResolveYearLevel implements YearLevelResolver.
func (r *CachedYearLevelResolver) ResolveYearLevel(ctx context.Context, curriculumSubjectID string) (int, bool, error) {
	key := yearLevelCacheKey(curriculumSubjectID)
	var cached cachedYearLevel
	if hit, err := r.cache.Get(ctx, key, &cached); err == nil && hit {
		return cached.Level, cached.OK, nil
	}

	level, ok, err := r.next.ResolveYearLevel(ctx, curriculumSubjectID)
	if err != nil {
		return 0, false, err
	}
	_ = r.cache.Set(ctx, key, cachedYearLevel{Level: level, OK: ok}, 0)
	return level, ok, nil
}

// Invalidate drops every cached year level.
func (r *CachedYearLevelResolver) Invalidate(ctx context.Context) error {
	return r.cache.Invalidate(ctx, yearLevelCacheKey("*"))
}

func yearLevelCacheKey(curriculumSubjectID string) string {
	return fmt.Sprintf("year_level:%s", curriculumSubjectID)
}
