package freshness

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"hama-scanner/internal/indicator"
	"hama-scanner/internal/logger"
	"hama-scanner/internal/metrics"
	"hama-scanner/internal/model"
	"hama-scanner/internal/strategy"
)

// RefresherConfig controls a smart refresh run.
type RefresherConfig struct {
	TTL time.Duration
	// Retention is how long the cache keeps an entry; 0 keeps it forever.
	Retention time.Duration
	Timeframe string
	BarLimit  int
	Workers   int
}

// Refresher recomputes only the symbols whose cached snapshot is stale.
type Refresher struct {
	cache   Cache
	source  model.BarSource
	params  indicator.Params
	policy  Policy
	cfg     RefresherConfig
	metrics *metrics.Metrics
	log     zerolog.Logger
}

// NewRefresher wires a Refresher. mt may be nil.
func NewRefresher(cache Cache, source model.BarSource, params indicator.Params, policy Policy, cfg RefresherConfig, mt *metrics.Metrics) *Refresher {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Refresher{
		cache:   cache,
		source:  source,
		params:  params,
		policy:  policy,
		cfg:     cfg,
		metrics: mt,
		log:     logger.Component("refresher"),
	}
}

// Partition splits symbols into stale and fresh, preserving input order.
// A cache read error counts as a miss.
func (r *Refresher) Partition(ctx context.Context, symbols []string) (stale, fresh []string) {
	lookup := func(sym string) (CacheEntry, bool) {
		e, ok, err := r.cache.Get(ctx, sym)
		if err != nil {
			r.log.Warn().Err(err).Str("symbol", sym).Msg("cache read failed, treating as stale")
			return CacheEntry{}, false
		}
		return e, ok
	}

	for _, sym := range symbols {
		if r.policy.ShouldUpdate(sym, lookup, r.cfg.TTL) {
			stale = append(stale, sym)
		} else {
			fresh = append(fresh, sym)
		}
	}

	r.metrics.ObservePartition(len(stale), len(fresh))
	r.log.Info().
		Int("total", len(symbols)).
		Int("needs_update", len(stale)).
		Int("fresh", len(fresh)).
		Msg("smart refresh partition")
	return stale, fresh
}

// Report is the outcome of Run.
type Report struct {
	Stale   []string
	Fresh   []string
	Updated []string
	Failed  map[string]error
}

// Run partitions symbols and recomputes the stale ones concurrently,
// writing each result through the cache. Per-symbol failures are collected
// in the report; Run only returns an error when ctx is cancelled.
func (r *Refresher) Run(ctx context.Context, symbols []string) (Report, error) {
	stale, fresh := r.Partition(ctx, symbols)
	rep := Report{Stale: stale, Fresh: fresh, Failed: map[string]error{}}

	errs := make([]error, len(stale))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)
	for i, sym := range stale {
		i, sym := i, sym
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			errs[i] = r.refreshOne(gctx, sym)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return rep, err
	}

	for i, sym := range stale {
		if errs[i] != nil {
			rep.Failed[sym] = errs[i]
			continue
		}
		rep.Updated = append(rep.Updated, sym)
	}

	r.log.Info().
		Int("updated", len(rep.Updated)).
		Int("failed", len(rep.Failed)).
		Int("skipped", len(fresh)).
		Msg("smart refresh complete")
	return rep, ctx.Err()
}

func (r *Refresher) refreshOne(ctx context.Context, sym string) error {
	bars, err := r.source.Fetch(ctx, sym, r.cfg.Timeframe, r.cfg.BarLimit)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", sym, err)
	}
	ev, err := strategy.Analyze(sym, bars, r.params)
	if err != nil {
		if errors.Is(err, indicator.ErrInsufficientData) {
			r.log.Debug().Str("symbol", sym).Int("bars", len(bars)).Msg("insufficient data")
		}
		return err
	}
	entry := NewEntry(ev.Snapshot, r.policy.clock())
	if err := r.cache.Set(ctx, entry, r.cfg.Retention); err != nil {
		return fmt.Errorf("cache set %s: %w", sym, err)
	}
	return nil
}
