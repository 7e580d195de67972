package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	goredis "github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"hama-scanner/internal/freshness"
	"hama-scanner/internal/logger"
	"hama-scanner/internal/metrics"
)

const defaultMaxPending = 10000

type pendingSet struct {
	entry     freshness.CacheEntry
	retention time.Duration
}

// Cache stores freshness entries as JSON strings under hama:snapshot:{symbol}.
// Calls go through a circuit breaker. While it is open, Set keeps the newest
// entry per symbol in memory and flushes them once the breaker closes.
type Cache struct {
	client *goredis.Client
	cb     *CircuitBreaker
	log    zerolog.Logger

	mu         sync.Mutex
	pending    map[string]pendingSet
	maxPending int
}

// NewCache wraps client. mt may be nil.
func NewCache(client *goredis.Client, cb *CircuitBreaker, mt *metrics.Metrics) *Cache {
	c := &Cache{
		client:     client,
		cb:         cb,
		log:        logger.Component("redis-cache"),
		pending:    make(map[string]pendingSet),
		maxPending: defaultMaxPending,
	}

	prev := cb.OnStateChange
	cb.OnStateChange = func(from, to State) {
		if prev != nil {
			prev(from, to)
		}
		mt.SetBreakerState(int(to), to == StateOpen)
		if to == StateClosed {
			go c.flush()
		}
	}
	return c
}

// Get returns the cached entry for symbol. A missing key is found=false.
func (c *Cache) Get(ctx context.Context, symbol string) (freshness.CacheEntry, bool, error) {
	var raw []byte
	err := c.cb.Execute(func() error {
		b, err := c.client.Get(ctx, snapshotKey(symbol)).Bytes()
		if errors.Is(err, goredis.Nil) {
			return nil
		}
		raw = b
		return err
	})
	if err != nil {
		return freshness.CacheEntry{}, false, fmt.Errorf("redis get %s: %w", symbol, err)
	}
	if raw == nil {
		return freshness.CacheEntry{}, false, nil
	}

	var e freshness.CacheEntry
	if err := sonic.Unmarshal(raw, &e); err != nil {
		// Corrupt entries are treated as misses so the refresher overwrites them.
		c.log.Warn().Err(err).Str("symbol", symbol).Msg("undecodable cache entry")
		return freshness.CacheEntry{}, false, nil
	}
	return e, true, nil
}

// Set writes entry. When the breaker is open the write is buffered and nil
// is returned.
func (c *Cache) Set(ctx context.Context, entry freshness.CacheEntry, retention time.Duration) error {
	data, err := sonic.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode %s: %w", entry.Symbol, err)
	}

	err = c.cb.Execute(func() error {
		return c.client.Set(ctx, snapshotKey(entry.Symbol), data, retention).Err()
	})
	if errors.Is(err, ErrCircuitOpen) {
		c.buffer(entry, retention)
		return nil
	}
	if err != nil {
		return fmt.Errorf("redis set %s: %w", entry.Symbol, err)
	}
	return nil
}

// Pending returns the number of buffered writes.
func (c *Cache) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *Cache) buffer(entry freshness.CacheEntry, retention time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.pending[entry.Symbol]; !ok && len(c.pending) >= c.maxPending {
		c.log.Warn().Str("symbol", entry.Symbol).Msg("pending buffer full, dropping write")
		return
	}
	c.pending[entry.Symbol] = pendingSet{entry: entry, retention: retention}
}

// flush writes buffered entries in one pipeline. Entries that fail stay
// buffered only if no newer write replaced them.
func (c *Cache) flush() {
	c.mu.Lock()
	batch := c.pending
	c.pending = make(map[string]pendingSet)
	c.mu.Unlock()

	if len(batch) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pipe := c.client.Pipeline()
	for sym, p := range batch {
		data, err := sonic.Marshal(p.entry)
		if err != nil {
			continue
		}
		pipe.Set(ctx, snapshotKey(sym), data, p.retention)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		c.log.Error().Err(err).Int("count", len(batch)).Msg("flush failed, re-buffering")
		c.mu.Lock()
		for sym, p := range batch {
			if _, newer := c.pending[sym]; !newer {
				c.pending[sym] = p
			}
		}
		c.mu.Unlock()
		return
	}
	c.log.Info().Int("count", len(batch)).Msg("flushed buffered cache writes")
}
