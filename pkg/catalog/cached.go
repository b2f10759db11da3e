package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/jordanlanch/storefront/pkg/cache"
	"github.com/jordanlanch/storefront/pkg/logger"
	"github.com/jordanlanch/storefront/pkg/metrics"
)

const cacheKey = "catalog:items"

// CachedSource keeps the last successful load of a Source in Redis so that restarts do not
// have to hit the billing provider each time.
type CachedSource struct {
	next    Source
	cache   *cache.Client
	ttl     time.Duration
	logger  logger.Logger
	metrics *metrics.Metrics
}

// NewCachedSource wraps next with a Redis cache.
func NewCachedSource(next Source, c *cache.Client, ttl time.Duration, log logger.Logger, m *metrics.Metrics) *CachedSource {
	return &CachedSource{next: next, cache: c, ttl: ttl, logger: log, metrics: m}
}

// Load implements Source. Cache failures fall through to the wrapped source.
func (s *CachedSource) Load(ctx context.Context) ([]Item, error) {
	var items []Item
	err := s.cache.GetJSON(ctx, cacheKey, &items)
	if err == nil && len(items) > 0 {
		s.metrics.RecordCacheHit("catalog")
		return items, nil
	}
	if err != nil && !errors.Is(err, cache.ErrMiss) {
		s.logger.Warn("catalog cache read failed", "error", err)
	}
	s.metrics.RecordCacheMiss("catalog")

	items, err = s.next.Load(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.cache.SetJSON(ctx, cacheKey, items, s.ttl); err != nil {
		s.logger.Warn("catalog cache write failed", "error", err)
	}
	return items, nil
}
