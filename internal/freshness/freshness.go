// Package freshness decides whether a cached indicator snapshot is stale and
// drives batch recomputation of the stale ones.
package freshness

import (
	"context"
	"time"

	"hama-scanner/internal/indicator"
)

// CacheEntry is one cached snapshot. ComputedAt is RFC 3339 (nanosecond
// precision) so entries written by other processes can be checked too.
type CacheEntry struct {
	Symbol     string             `json:"symbol"`
	Snapshot   indicator.Snapshot `json:"snapshot"`
	ComputedAt string             `json:"computed_at"`
}

// NewEntry stamps snap with at.
func NewEntry(snap indicator.Snapshot, at time.Time) CacheEntry {
	return CacheEntry{
		Symbol:     snap.Symbol,
		Snapshot:   snap,
		ComputedAt: at.UTC().Format(time.RFC3339Nano),
	}
}

// Cache stores snapshots by symbol. Get returns found=false for a miss;
// err is reserved for backend failures. A zero retention on Set keeps the
// entry until overwritten.
type Cache interface {
	Get(ctx context.Context, symbol string) (CacheEntry, bool, error)
	Set(ctx context.Context, entry CacheEntry, retention time.Duration) error
}

// Lookup is the synchronous cache probe ShouldUpdate consults.
type Lookup func(symbol string) (CacheEntry, bool)

// Policy is the staleness rule.
type Policy struct {
	now func() time.Time
}

// NewPolicy returns a Policy using now, or time.Now when nil.
func NewPolicy(now func() time.Time) Policy {
	if now == nil {
		now = time.Now
	}
	return Policy{now: now}
}

// ShouldUpdate reports whether symbol needs recomputation: on a miss, on a
// missing or unparsable ComputedAt, or when the entry is strictly older
// than ttl.
func (p Policy) ShouldUpdate(symbol string, lookup Lookup, ttl time.Duration) bool {
	entry, found := lookup(symbol)
	if !found {
		return true
	}
	computedAt, err := time.Parse(time.RFC3339Nano, entry.ComputedAt)
	if err != nil {
		return true
	}
	return p.clock().Sub(computedAt) > ttl
}

func (p Policy) clock() time.Time {
	if p.now == nil {
		return time.Now()
	}
	return p.now()
}
