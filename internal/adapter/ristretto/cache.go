// Package ristretto implements the in-process snapshot cache using
// dgraph-io/ristretto.
package ristretto

import (
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/gridsage/gridsage/internal/domain/energy"
)

// SnapshotCache caches loaded record-table snapshots. Values are immutable
// pointers, so a reload publishes a complete new snapshot and readers never
// observe a partially-updated table.
type SnapshotCache struct {
	c *ristretto.Cache[string, *energy.Snapshot]
}

// New creates a snapshot cache bounded to maxSizeMB of record data.
func New(maxSizeMB int64) (*SnapshotCache, error) {
	maxCost := maxSizeMB * 1024 * 1024
	c, err := ristretto.NewCache(&ristretto.Config[string, *energy.Snapshot]{
		NumCounters: 1 << 10, // the cache holds a handful of snapshots at most
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &SnapshotCache{c: c}, nil
}

// Get retrieves a snapshot from the cache.
func (sc *SnapshotCache) Get(key string) (*energy.Snapshot, bool) {
	return sc.c.Get(key)
}

// Set stores a snapshot with the given TTL, costed by its row count.
func (sc *SnapshotCache) Set(key string, snap *energy.Snapshot, ttl time.Duration) {
	cost := int64(len(snap.Intervals)+len(snap.Bills))*64 + 1
	sc.c.SetWithTTL(key, snap, cost, ttl)
	sc.c.Wait()
}

// Close shuts down the cache and releases resources.
func (sc *SnapshotCache) Close() {
	sc.c.Close()
}
