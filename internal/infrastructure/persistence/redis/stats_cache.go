package redis

import (
	"context"
	"time"

	"github.com/drivehub/admin-console/internal/domain/console"
)

// StatsSnapshot is the cached form of the dashboard counters.
type StatsSnapshot struct {
	Revision uint64        `json:"revision"`
	Stats    console.Stats `json:"stats"`
	CachedAt time.Time     `json:"cachedAt"`
}

// StatsCache keeps the latest stats snapshot in Redis so that dashboards
// outside the process can read counters without calling the console.
type StatsCache struct {
	cache *Cache
	ttl   time.Duration
	now   func() time.Time
}

// NewStatsCache creates a StatsCache. A non-positive ttl uses TTLStatsSnapshot.
func NewStatsCache(cache *Cache, ttl time.Duration) *StatsCache {
	if ttl <= 0 {
		ttl = TTLStatsSnapshot
	}
	return &StatsCache{cache: cache, ttl: ttl, now: time.Now}
}

// WriteStats stores stats unless a newer revision is already cached. Writers
// on different instances race safely: the comparison happens inside Redis.
func (s *StatsCache) WriteStats(ctx context.Context, stats console.Stats, revision uint64) error {
	_, err := s.cache.SetIfNewer(ctx, KeyStats, revision, StatsSnapshot{
		Revision: revision,
		Stats:    stats,
		CachedAt: s.now().UTC(),
	}, s.ttl)
	return err
}

// ReadStats returns the cached snapshot or ErrCacheMiss.
func (s *StatsCache) ReadStats(ctx context.Context) (StatsSnapshot, error) {
	var snap StatsSnapshot
	if err := s.cache.Get(ctx, KeyStats, &snap); err != nil {
		return StatsSnapshot{}, err
	}
	return snap, nil
}

// Invalidate drops the cached snapshot.
func (s *StatsCache) Invalidate(ctx context.Context) error {
	return s.cache.Delete(ctx, KeyStats)
}
