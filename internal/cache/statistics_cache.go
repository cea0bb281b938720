package cache

import (
	"context"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/smallbiznis/oceandata/internal/dataset/domain"
)

const (
	defaultStatisticsTTL = 30 * time.Second
	statisticsKey        = "statistics"
)

// StatisticsLoader computes fresh statistics on a cache miss.
type StatisticsLoader func(ctx context.Context) (*domain.Statistics, error)

// StatisticsCache keeps the last computed statistics for a short TTL.
type StatisticsCache struct {
	store *gocache.Cache
	group singleflight.Group
	ttl   time.Duration
	// generation is bumped on every invalidation; a load that started
	// under an older generation must not be stored.
	generation atomic.Uint64
}

// NewStatisticsCache returns an in-memory cache with the default TTL.
func NewStatisticsCache() *StatisticsCache {
	return NewStatisticsCacheWithTTL(defaultStatisticsTTL)
}

func NewStatisticsCacheWithTTL(ttl time.Duration) *StatisticsCache {
	if ttl <= 0 {
		ttl = defaultStatisticsTTL
	}
	return &StatisticsCache{
		store: gocache.New(ttl, 2*ttl),
		ttl:   ttl,
	}
}

// Get returns the cached statistics or computes them with load.
// Concurrent misses share one load call.
func (c *StatisticsCache) Get(ctx context.Context, load StatisticsLoader) (*domain.Statistics, error) {
	if cached, ok := c.store.Get(statisticsKey); ok {
		if stats, ok := cached.(*domain.Statistics); ok {
			return stats, nil
		}
	}

	value, err, _ := c.group.Do(statisticsKey, func() (any, error) {
		generation := c.generation.Load()
		stats, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if c.generation.Load() == generation {
			c.store.Set(statisticsKey, stats, c.ttl)
		}
		return stats, nil
	})
	if err != nil {
		return nil, err
	}
	return value.(*domain.Statistics), nil
}

// InvalidateStatistics drops the cached value. Callers arriving after it do
// not join a load that was already running.
func (c *StatisticsCache) InvalidateStatistics() {
	c.generation.Add(1)
	c.group.Forget(statisticsKey)
	c.store.Delete(statisticsKey)
}

var _ domain.StatisticsInvalidator = (*StatisticsCache)(nil)
