// Package memory is an in-process freshness cache for single-node runs and
// tests. Expired entries are dropped lazily on read and by Sweep.
package memory

import (
	"context"
	"sync"
	"time"

	"hama-scanner/internal/freshness"
)

type item struct {
	entry    freshness.CacheEntry
	expireAt time.Time // zero means no expiry
}

func (it *item) expired(now time.Time) bool {
	return !it.expireAt.IsZero() && now.After(it.expireAt)
}

// Cache implements freshness.Cache.
type Cache struct {
	mu   sync.RWMutex
	data map[string]*item
	now  func() time.Time
}

// New creates an empty cache. now may be nil.
func New(now func() time.Time) *Cache {
	if now == nil {
		now = time.Now
	}
	return &Cache{data: make(map[string]*item), now: now}
}

func (c *Cache) Get(_ context.Context, symbol string) (freshness.CacheEntry, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	it, ok := c.data[symbol]
	if !ok {
		return freshness.CacheEntry{}, false, nil
	}
	if it.expired(c.now()) {
		delete(c.data, symbol)
		return freshness.CacheEntry{}, false, nil
	}
	return it.entry, true, nil
}

func (c *Cache) Set(_ context.Context, entry freshness.CacheEntry, retention time.Duration) error {
	it := &item{entry: entry}
	if retention > 0 {
		it.expireAt = c.now().Add(retention)
	}
	c.mu.Lock()
	c.data[entry.Symbol] = it
	c.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// Sweep removes expired entries and returns how many were dropped.
func (c *Cache) Sweep() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k, it := range c.data {
		if it.expired(now) {
			delete(c.data, k)
			n++
		}
	}
	return n
}

// RunSweeper calls Sweep every interval until ctx is done.
func (c *Cache) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Sweep()
		}
	}
}
