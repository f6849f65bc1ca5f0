package csvstore

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/gridsage/gridsage/internal/adapter/ristretto"
	"github.com/gridsage/gridsage/internal/domain/energy"
)

const snapshotKey = "snapshot"

// CachedStore wraps a Store with a TTL snapshot cache so reload-per-query
// does not hit disk on every tool call. Concurrent cache misses share a
// single reload via singleflight.
type CachedStore struct {
	inner *Store
	cache *ristretto.SnapshotCache
	ttl   time.Duration
	group singleflight.Group
}

// NewCached creates a CachedStore. A zero TTL disables caching entirely and
// every Load goes to disk, matching the naive reload-per-query policy.
func NewCached(inner *Store, cache *ristretto.SnapshotCache, ttl time.Duration) *CachedStore {
	return &CachedStore{inner: inner, cache: cache, ttl: ttl}
}

// Load returns the cached snapshot when fresh, otherwise performs one shared
// reload and publishes the complete new snapshot before any reader sees it.
func (c *CachedStore) Load(ctx context.Context) (*energy.Snapshot, error) {
	if c.ttl <= 0 || c.cache == nil {
		return c.inner.Load(ctx)
	}

	if snap, ok := c.cache.Get(snapshotKey); ok {
		return snap, nil
	}

	v, err, _ := c.group.Do(snapshotKey, func() (any, error) {
		snap, err := c.inner.Load(ctx)
		if err != nil {
			return nil, err
		}
		c.cache.Set(snapshotKey, snap, c.ttl)
		return snap, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*energy.Snapshot), nil
}
