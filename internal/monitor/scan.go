package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"hama-scanner/internal/indicator"
	"hama-scanner/internal/logger"
	"hama-scanner/internal/model"
	"hama-scanner/internal/strategy"
)

type outcome int

const (
	outcomeChecked outcome = iota
	outcomeCooldown
	outcomeFetchFailed
	outcomeInsufficient
	outcomeFailed
	outcomeDiscarded
	outcomeSignal
	outcomeCancelled
)

type target struct {
	state SymbolState
	gen   uint64
}

// ScanOnce runs one tick: every monitored symbol is checked, then gainers
// are auto-fetched if due. Per-symbol failures are logged and counted, never
// returned. Concurrent calls are serialised.
func (m *Monitor) ScanOnce(ctx context.Context) ScanResult {
	m.scanMu.Lock()
	defer m.scanMu.Unlock()

	start := time.Now()

	m.mu.RLock()
	settings := m.settings
	targets := make([]target, 0, len(m.symbols))
	for _, e := range m.symbols {
		targets = append(targets, target{state: e.state, gen: e.gen})
	}
	m.mu.RUnlock()

	outcomes := make([]outcome, len(targets))
	for i := range outcomes {
		outcomes[i] = outcomeCancelled
	}

	var g errgroup.Group
	g.SetLimit(settings.Workers)
	for i, tg := range targets {
		i, tg := i, tg
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			outcomes[i] = m.checkSymbol(ctx, settings, tg)
			return nil
		})
	}
	g.Wait()

	var res ScanResult
	for _, o := range outcomes {
		switch o {
		case outcomeChecked:
			res.Checked++
		case outcomeSignal:
			res.Checked++
			res.Signals++
		case outcomeCooldown:
			res.Cooldown++
		case outcomeFetchFailed:
			res.FetchFailed++
		case outcomeInsufficient:
			res.Insufficient++
		case outcomeFailed:
			res.Failed++
		case outcomeDiscarded:
			res.Discarded++
		}
	}

	if ctx.Err() == nil {
		res.AutoAdded = m.autoFetch(ctx, settings)
	}

	m.mu.Lock()
	m.lastScanAt = m.now()
	m.mu.Unlock()

	res.Duration = time.Since(start)
	m.metrics.ObserveScan(res.Duration)

	m.log.Debug().
		Int("symbols", len(targets)).
		Int("checked", res.Checked).
		Int("signals", res.Signals).
		Int("cooldown", res.Cooldown).
		Int("fetch_failed", res.FetchFailed).
		Int("insufficient", res.Insufficient).
		Int("auto_added", res.AutoAdded).
		Dur("took", res.Duration).
		Msg("scan complete")
	return res
}

func (m *Monitor) checkSymbol(ctx context.Context, settings Settings, tg target) outcome {
	if ctx.Err() != nil {
		return outcomeCancelled
	}

	sym := tg.state.Symbol
	now := m.now()
	log := logger.Ctx(logger.WithTraceID(ctx, logger.GenerateTraceID(sym, now)), m.log)

	if tg.state.inCooldown(now, settings.cooldown()) {
		m.metrics.IncCooldownSkip()
		return outcomeCooldown
	}

	bars, err := m.source.Fetch(ctx, sym, settings.Timeframe, settings.BarLimit)
	if err != nil {
		err = fmt.Errorf("%w: %s: %w", ErrFetchFailure, sym, err)
		log.Warn().Err(err).Str("symbol", sym).Msg("skipping symbol this tick")
		m.metrics.IncFetchFailure()
		return outcomeFetchFailed
	}

	computeStart := time.Now()
	ev, err := strategy.Analyze(sym, bars, m.params)
	m.metrics.ObserveCompute(time.Since(computeStart))
	if err != nil {
		if errors.Is(err, indicator.ErrInsufficientData) {
			log.Debug().Err(err).Str("symbol", sym).Msg("insufficient data")
			m.metrics.IncInsufficientData()
			if !m.commit(tg, now, nil, nil) {
				return outcomeDiscarded
			}
			return outcomeInsufficient
		}
		log.Error().Err(err).Str("symbol", sym).Msg("indicator computation failed")
		return outcomeFailed
	}

	snap := ev.Snapshot
	var sig *model.Signal
	if ev.CrossAtLatest() && ev.Snapshot.LastCross != tg.state.LastSignalType {
		bar, _ := ev.CrossBar()
		sig = &model.Signal{
			ID:          uuid.NewString(),
			Symbol:      sym,
			MarketType:  tg.state.MarketType,
			Direction:   snap.LastCross,
			Price:       bar.Close,
			CandleClose: snap.CandleClose,
			MAValue:     snap.MAValue,
			Timestamp:   bar.Time(),
			Description: strategy.Describe(snap.LastCross, snap.CandleClose, snap.MAValue),
		}
	}

	if !m.commit(tg, now, &snap, sig) {
		log.Debug().Str("symbol", sym).Msg("symbol removed mid-tick, result discarded")
		m.metrics.IncDiscarded()
		return outcomeDiscarded
	}
	if sig == nil {
		return outcomeChecked
	}

	log.Info().
		Str("symbol", sym).
		Str("direction", string(sig.Direction)).
		Float64("price", sig.Price).
		Float64("candle_close", sig.CandleClose).
		Float64("ma", sig.MAValue).
		Float64("deviation_pct", snap.DeviationPct).
		Str("trend", string(snap.Trend)).
		Msg("signal")
	m.metrics.IncSignal(string(sig.Direction))
	m.notify(ctx, *sig)
	return outcomeSignal
}

// commit writes a check result back if the symbol is still monitored under
// the same generation. snap == nil updates lastCheckAt only.
func (m *Monitor) commit(tg target, now time.Time, snap *indicator.Snapshot, sig *model.Signal) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.symbols[tg.state.Symbol]
	if !ok || e.gen != tg.gen {
		return false
	}

	e.state.LastCheckAt = now
	if snap != nil {
		e.state.LastSnapshot = snap
	}
	if sig != nil {
		e.state.LastSignalType = sig.Direction
		e.state.LastSignalAt = now

		before := m.history.Trimmed()
		m.history.Push(*sig)
		m.metrics.AddHistoryTrimmed(m.history.Trimmed() - before)
	}
	return true
}

// notify calls every sink in order. A failing or panicking sink is logged
// and does not affect the others.
func (m *Monitor) notify(ctx context.Context, sig model.Signal) {
	for _, s := range m.sinks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					m.log.Error().
						Str("sink", s.Name()).
						Str("signal_id", sig.ID).
						Interface("panic", r).
						Msg("sink panicked")
					m.metrics.IncSinkFailure(s.Name())
				}
			}()
			if err := s.Notify(ctx, sig); err != nil {
				m.log.Warn().
					Err(err).
					Str("sink", s.Name()).
					Str("signal_id", sig.ID).
					Msg("sink failed")
				m.metrics.IncSinkFailure(s.Name())
			}
		}()
	}
}

// autoFetch adds top gainers when enabled and due. Returns how many symbols
// were added.
func (m *Monitor) autoFetch(ctx context.Context, settings Settings) int {
	if !settings.AutoFetchGainers || m.gainers == nil {
		return 0
	}

	now := m.now()
	m.mu.RLock()
	last := m.lastAutoFetch
	m.mu.RUnlock()
	if !last.IsZero() && now.Sub(last) < settings.autoFetchInterval() {
		return 0
	}

	list, err := m.gainers.TopGainers(ctx, settings.AutoFetchLimit, settings.AutoFetchMarketType)

	added := 0
	m.mu.Lock()
	m.lastAutoFetch = now
	if err == nil {
		for _, g := range list {
			if added >= settings.AutoFetchLimit {
				break
			}
			sym := normalize(g.Symbol)
			if sym == "" {
				continue
			}
			if _, ok := m.symbols[sym]; ok {
				continue
			}
			mt := g.MarketType
			if mt == "" {
				mt = settings.AutoFetchMarketType
			}
			m.addLocked(sym, mt)
			added++
		}
	}
	n := len(m.symbols)
	m.mu.Unlock()

	m.metrics.AddAutoFetch(added, err)
	m.metrics.SetMonitored(n)
	if err != nil {
		m.log.Warn().Err(err).Msg("gainers fetch failed")
		return 0
	}
	m.log.Info().Int("received", len(list)).Int("added", added).Msg("auto-fetched gainers")
	return added
}
