package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"quizierra/internal/cache"
	"quizierra/internal/domain"
	"quizierra/internal/logger"

	"go.uber.org/zap"
)

const (
	skillCacheService = "adaptive"
	skillCacheObject  = "skill"
)

// skillCache is a best-effort read-through cache of user skills. A nil domain.Cache
// disables it; failures are logged and never surface to callers.
type skillCache struct {
	cache domain.Cache
	ttl   time.Duration
}

func newSkillCache(c domain.Cache, ttl time.Duration) *skillCache {
	return &skillCache{cache: c, ttl: ttl}
}

func skillCacheKey(userID string) string {
	return cache.GenerateCacheKey(skillCacheService, skillCacheObject, userID)
}

func (s *skillCache) get(ctx context.Context, userID string) (float64, bool) {
	if s == nil || s.cache == nil {
		return 0, false
	}
	key := skillCacheKey(userID)
	raw, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrCacheMiss) {
			logger.Get().Warn("Skill cache read failed", zap.String("key", key), zap.Error(err))
		}
		return 0, false
	}
	skill, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		logger.Get().Warn("Discarding malformed cached skill", zap.String("key", key), zap.String("value", raw))
		s.invalidate(ctx, userID)
		return 0, false
	}
	return skill, true
}

func (s *skillCache) set(ctx context.Context, userID string, skill float64) {
	if s == nil || s.cache == nil {
		return
	}
	key := skillCacheKey(userID)
	if err := s.cache.Set(ctx, key, strconv.FormatFloat(skill, 'g', -1, 64), s.ttl); err != nil {
		logger.Get().Warn("Skill cache write failed", zap.String("key", key), zap.Error(err))
		// A stale entry is worse than none.
		s.invalidate(ctx, userID)
	}
}

func (s *skillCache) invalidate(ctx context.Context, userID string) {
	if s == nil || s.cache == nil {
		return
	}
	key := skillCacheKey(userID)
	if err := s.cache.Delete(ctx, key); err != nil {
		logger.Get().Warn("Skill cache invalidation failed", zap.String("key", key), zap.Error(err))
	}
}
