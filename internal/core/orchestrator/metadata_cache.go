package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/kk7453603/ragcore/internal/core/ports"
)

// metadataCache is the shared store-metadata snapshot read by the planner
// and the subtask executor. Entries are read-mostly with a TTL and guarded
// by a mutex only at refresh; one process-wide instance is reused across
// turns, so a turn never refreshes more than once per TTL window.
type metadataCache struct {
	ttl time.Duration

	mu        sync.RWMutex
	snapshot  ports.StoreMetadata
	fetchedAt time.Time
	loaded    bool
}

func newMetadataCache(ttl time.Duration) *metadataCache {
	if ttl <= 0 {
		ttl = 300 * time.Second
	}
	return &metadataCache{ttl: ttl}
}

// Get returns the cached snapshot under a shared read lock if still fresh,
// else refreshes it from the store under the exclusive lock.
func (c *metadataCache) Get(ctx context.Context, store ports.Store) (ports.StoreMetadata, error) {
	c.mu.RLock()
	if c.loaded && time.Since(c.fetchedAt) < c.ttl {
		snapshot := c.snapshot
		c.mu.RUnlock()
		return snapshot, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loaded && time.Since(c.fetchedAt) < c.ttl {
		return c.snapshot, nil
	}

	meta, err := store.GetMetadata(ctx)
	if err != nil {
		if c.loaded {
			// Serve stale metadata rather than fail the turn on a transient
			// metadata-refresh error.
			return c.snapshot, nil
		}
		return ports.StoreMetadata{}, err
	}

	c.snapshot = meta
	c.fetchedAt = time.Now()
	c.loaded = true
	return c.snapshot, nil
}
