package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hama-scanner/internal/freshness"
	"hama-scanner/internal/indicator"
)

func TestCache_GetSetExpiry(t *testing.T) {
	now := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	c := New(func() time.Time { return now })
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, freshness.NewEntry(indicator.Snapshot{Symbol: "BTCUSDT"}, now), time.Minute))
	require.NoError(t, c.Set(ctx, freshness.NewEntry(indicator.Snapshot{Symbol: "ETHUSDT"}, now), 0))

	e, ok, _ := c.Get(ctx, "BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, "BTCUSDT", e.Snapshot.Symbol)

	now = now.Add(2 * time.Minute)
	_, ok, _ = c.Get(ctx, "BTCUSDT")
	assert.False(t, ok, "expired")
	_, ok, _ = c.Get(ctx, "ETHUSDT")
	assert.True(t, ok, "zero retention never expires")
}

func TestCache_Sweep(t *testing.T) {
	now := time.Unix(0, 0)
	c := New(func() time.Time { return now })
	ctx := context.Background()
	for _, s := range []string{"A", "B", "C"} {
		c.Set(ctx, freshness.CacheEntry{Symbol: s}, time.Second)
	}
	c.Set(ctx, freshness.CacheEntry{Symbol: "D"}, time.Hour)

	now = now.Add(time.Minute)
	assert.Equal(t, 3, c.Sweep())
	assert.Equal(t, 1, c.Len())
}

func TestCache_WithPolicy(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	clock := func() time.Time { return now }
	c := New(clock)
	ctx := context.Background()
	c.Set(ctx, freshness.NewEntry(indicator.Snapshot{Symbol: "SOL"}, now), 0)

	p := freshness.NewPolicy(clock)
	lookup := func(sym string) (freshness.CacheEntry, bool) {
		e, ok, _ := c.Get(ctx, sym)
		return e, ok
	}

	assert.False(t, p.ShouldUpdate("SOL", lookup, 5*time.Minute))
	now = now.Add(5*time.Minute + time.Second)
	assert.True(t, p.ShouldUpdate("SOL", lookup, 5*time.Minute))
	assert.True(t, p.ShouldUpdate("ADA", lookup, 5*time.Minute))
}
