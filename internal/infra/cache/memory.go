package cache

import (
	"context"
	"sync"
)

// MemoryCache is a set-backed in-process Cache, useful for tests and
// for development mode when no Redis is configured. It satisfies the
// same concurrency contract as RedisCache: concurrent set-add is safe.
type MemoryCache struct {
	mu        sync.RWMutex
	published map[string]map[string]struct{}
	notified  map[string]struct{}
}

// NewMemoryCache returns an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		published: make(map[string]map[string]struct{}),
		notified:  make(map[string]struct{}),
	}
}

func (c *MemoryCache) MarkPublished(_ context.Context, chainID, globalID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	set, ok := c.published[chainID]
	if !ok {
		set = make(map[string]struct{})
		c.published[chainID] = set
	}
	set[globalID] = struct{}{}
	return nil
}

func (c *MemoryCache) IsOnChain(_ context.Context, chainID, globalID string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.published[chainID][globalID]
	return ok, nil
}

func (c *MemoryCache) MissingChains(ctx context.Context, globalID string, allChainIDs []string) ([]string, error) {
	var missing []string
	for _, chainID := range allChainIDs {
		onChain, _ := c.IsOnChain(ctx, chainID, globalID)
		if !onChain {
			missing = append(missing, chainID)
		}
	}
	return missing, nil
}

func (c *MemoryCache) MarkNotified(_ context.Context, globalID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notified[globalID] = struct{}{}
	return nil
}

func (c *MemoryCache) IsNotified(_ context.Context, globalID string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.notified[globalID]
	return ok, nil
}

func (c *MemoryCache) Stats(_ context.Context, chainIDs []string) (Stats, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	stats := Stats{PublishedByChain: make(map[string]int64, len(chainIDs))}
	for _, chainID := range chainIDs {
		stats.PublishedByChain[chainID] = int64(len(c.published[chainID]))
	}
	stats.NotifiedCount = int64(len(c.notified))
	return stats, nil
}

func (c *MemoryCache) Ping(_ context.Context) error {
	return nil
}

func (c *MemoryCache) Close() error {
	return nil
}
