// Package marketdata composes bar and gainers collaborators.
package marketdata

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"hama-scanner/internal/logger"
	"hama-scanner/internal/model"
)

// ErrNoSources is returned by an empty Chain.
var ErrNoSources = errors.New("marketdata: no bar sources configured")

// NamedSource is a BarSource with a label for logs.
type NamedSource struct {
	Name   string
	Source model.BarSource
}

// Chain tries each source in order and returns the first successful fetch.
// A source that returns fewer bars than MinBars counts as a failure, so a
// sparse local store falls through to a fuller provider.
type Chain struct {
	sources []NamedSource
	minBars int
	log     zerolog.Logger
}

// NewChain builds a fallback chain. minBars <= 0 accepts any non-error result.
func NewChain(minBars int, sources ...NamedSource) *Chain {
	return &Chain{sources: sources, minBars: minBars, log: logger.Component("marketdata")}
}

// Fetch implements model.BarSource.
func (c *Chain) Fetch(ctx context.Context, symbol, timeframe string, limit int) ([]model.Bar, error) {
	if len(c.sources) == 0 {
		return nil, ErrNoSources
	}

	var errs []error
	for _, s := range c.sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		bars, err := s.Source.Fetch(ctx, symbol, timeframe, limit)
		if err == nil && len(bars) >= c.minBars {
			return bars, nil
		}
		if err == nil {
			err = fmt.Errorf("only %d bars, want %d", len(bars), c.minBars)
		}
		c.log.Debug().Err(err).Str("source", s.Name).Str("symbol", symbol).Msg("source failed, trying next")
		errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
	}
	return nil, errors.Join(errs...)
}

// StaticGainers serves a fixed list, ordered by change descending. Used for
// a configured watch list and in tests.
type StaticGainers struct {
	mu   sync.RWMutex
	list []model.Gainer
}

// NewStaticGainers creates a provider from symbols with zero change.
func NewStaticGainers(marketType model.MarketType, symbols ...string) *StaticGainers {
	g := &StaticGainers{}
	list := make([]model.Gainer, 0, len(symbols))
	for _, s := range symbols {
		if s = strings.TrimSpace(s); s != "" {
			list = append(list, model.Gainer{Symbol: strings.ToUpper(s), MarketType: marketType})
		}
	}
	g.Set(list)
	return g
}

// Set replaces the list.
func (g *StaticGainers) Set(list []model.Gainer) {
	sorted := append([]model.Gainer(nil), list...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ChangePct > sorted[j].ChangePct })
	g.mu.Lock()
	g.list = sorted
	g.mu.Unlock()
}

// TopGainers implements model.GainersProvider.
func (g *StaticGainers) TopGainers(_ context.Context, limit int, marketType model.MarketType) ([]model.Gainer, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]model.Gainer, 0, limit)
	for _, gn := range g.list {
		if len(out) >= limit {
			break
		}
		if gn.MarketType == "" || gn.MarketType == marketType {
			gn.MarketType = marketType
			out = append(out, gn)
		}
	}
	return out, nil
}
