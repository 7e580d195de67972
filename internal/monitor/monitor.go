// Package monitor runs the periodic HAMA crossover scan over a set of symbols.
//
// A single mutex guards the symbol map, the signal history and the settings.
// Per-symbol checks run outside the lock and commit their results under it,
// so AddSymbol, RemoveSymbol and Configure are linearizable with respect to
// a running tick.
package monitor

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"hama-scanner/internal/indicator"
	"hama-scanner/internal/logger"
	"hama-scanner/internal/metrics"
	"hama-scanner/internal/model"
	"hama-scanner/internal/ringbuf"
)

const (
	// HistoryCap is the number of signals held before trimming.
	HistoryCap = 1000
	// HistoryKeep is the number of newest signals kept after a trim.
	HistoryKeep = 500
	// MaxRecentSignals caps GetRecentSignals regardless of the requested limit.
	MaxRecentSignals = 200
	// DefaultRecentSignals is used when GetRecentSignals gets limit <= 0.
	DefaultRecentSignals = 50

	defaultStopTimeout = 5 * time.Second
)

// Monitor owns the monitored symbol set and the scan loop.
type Monitor struct {
	source  model.BarSource
	gainers model.GainersProvider
	params  indicator.Params
	sinks   []model.SignalSink
	metrics *metrics.Metrics
	log     zerolog.Logger
	now     func() time.Time

	stopTimeout time.Duration

	mu            sync.RWMutex
	settings      Settings
	symbols       map[string]*entry
	history       *ringbuf.History[model.Signal]
	nextGen       uint64
	lastScanAt    time.Time
	lastAutoFetch time.Time

	// scanMu serialises ticks between the loop and direct ScanOnce callers.
	scanMu sync.Mutex

	lifeMu sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithSettings replaces DefaultSettings. Validated by New.
func WithSettings(s Settings) Option {
	return func(m *Monitor) { m.settings = s }
}

// WithGainers enables auto-fetch from p when Settings.AutoFetchGainers is set.
func WithGainers(p model.GainersProvider) Option {
	return func(m *Monitor) { m.gainers = p }
}

// WithSinks registers signal sinks, called in order after each signal is recorded.
func WithSinks(sinks ...model.SignalSink) Option {
	return func(m *Monitor) { m.sinks = append(m.sinks, sinks...) }
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Monitor) { m.metrics = mt }
}

func WithLogger(l zerolog.Logger) Option {
	return func(m *Monitor) { m.log = l }
}

// WithClock overrides time.Now for cooldown and auto-fetch decisions.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

// WithStopTimeout bounds how long Stop waits for the loop to exit.
func WithStopTimeout(d time.Duration) Option {
	return func(m *Monitor) { m.stopTimeout = d }
}

// New creates a stopped Monitor.
func New(source model.BarSource, params indicator.Params, opts ...Option) (*Monitor, error) {
	if source == nil {
		return nil, fmt.Errorf("%w: nil bar source", ErrInvalidConfiguration)
	}
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}

	m := &Monitor{
		source:      source,
		params:      params,
		log:         logger.Component("monitor"),
		now:         time.Now,
		stopTimeout: defaultStopTimeout,
		settings:    DefaultSettings(),
		symbols:     make(map[string]*entry),
		history:     ringbuf.New[model.Signal](HistoryCap, HistoryKeep),
	}
	for _, o := range opts {
		o(m)
	}
	if err := m.settings.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Params returns the indicator parameters in use.
func (m *Monitor) Params() indicator.Params {
	return m.params
}

// ── Lifecycle ──

// Start launches the scan loop. The first tick runs immediately. Returns
// false if the loop was already running.
func (m *Monitor) Start(ctx context.Context) bool {
	m.lifeMu.Lock()
	defer m.lifeMu.Unlock()

	if m.runningLocked() {
		return false
	}

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	m.cancel = cancel
	m.done = done

	go m.loop(loopCtx, done)
	m.log.Info().Msg("monitor started")
	return true
}

// Stop cancels the scan loop and waits up to the stop timeout for it to
// exit. Returns false if the monitor was not running.
func (m *Monitor) Stop() bool {
	m.lifeMu.Lock()
	defer m.lifeMu.Unlock()

	if !m.runningLocked() {
		if m.cancel != nil {
			m.cancel()
			m.cancel = nil
		}
		return false
	}

	m.cancel()
	select {
	case <-m.done:
		m.log.Info().Msg("monitor stopped")
	case <-time.After(m.stopTimeout):
		m.log.Warn().Dur("timeout", m.stopTimeout).Msg("scan loop did not exit in time")
	}
	m.cancel = nil
	return true
}

// Running reports whether the scan loop is active.
func (m *Monitor) Running() bool {
	m.lifeMu.Lock()
	defer m.lifeMu.Unlock()
	return m.runningLocked()
}

func (m *Monitor) runningLocked() bool {
	if m.cancel == nil || m.done == nil {
		return false
	}
	select {
	case <-m.done:
		return false
	default:
		return true
	}
}

func (m *Monitor) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		m.ScanOnce(ctx)

		// Interval is re-read every tick so Configure applies to the next wait.
		m.mu.RLock()
		interval := m.settings.checkInterval()
		m.mu.RUnlock()
		timer.Reset(interval)
	}
}

// ── Symbol set ──

// AddSymbol inserts or overwrites the state for symbol. Overwriting resets
// the state and discards any in-flight result for the previous entry.
func (m *Monitor) AddSymbol(symbol string, marketType model.MarketType) error {
	sym := normalize(symbol)
	if sym == "" {
		return fmt.Errorf("%w: empty symbol", ErrInvalidConfiguration)
	}
	if marketType == "" {
		marketType = model.MarketSpot
	}
	if marketType != model.MarketSpot && marketType != model.MarketFutures {
		return fmt.Errorf("%w: unknown market type %q", ErrInvalidConfiguration, marketType)
	}

	m.mu.Lock()
	m.addLocked(sym, marketType)
	n := len(m.symbols)
	m.mu.Unlock()

	m.metrics.SetMonitored(n)
	m.log.Info().Str("symbol", sym).Str("market", string(marketType)).Msg("symbol added")
	return nil
}

func (m *Monitor) addLocked(sym string, marketType model.MarketType) {
	m.nextGen++
	m.symbols[sym] = &entry{
		gen: m.nextGen,
		state: SymbolState{
			Symbol:         sym,
			MarketType:     marketType,
			AddedAt:        m.now(),
			LastSignalType: model.DirectionNone,
		},
	}
}

// RemoveSymbol deletes symbol. Returns false if it was not monitored.
func (m *Monitor) RemoveSymbol(symbol string) bool {
	sym := normalize(symbol)

	m.mu.Lock()
	_, ok := m.symbols[sym]
	delete(m.symbols, sym)
	n := len(m.symbols)
	m.mu.Unlock()

	if ok {
		m.metrics.SetMonitored(n)
		m.log.Info().Str("symbol", sym).Msg("symbol removed")
	}
	return ok
}

// Symbols returns copies of every symbol state, sorted by symbol.
func (m *Monitor) Symbols() []SymbolState {
	m.mu.RLock()
	out := make([]SymbolState, 0, len(m.symbols))
	for _, e := range m.symbols {
		out = append(out, e.state)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Symbol returns a copy of one symbol's state.
func (m *Monitor) Symbol(symbol string) (SymbolState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.symbols[normalize(symbol)]
	if !ok {
		return SymbolState{}, false
	}
	return e.state, true
}

// ── Settings & queries ──

// Configure validates and applies s. On error nothing changes. Running ticks
// finish with the settings they started with.
func (m *Monitor) Configure(s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	m.settings = s
	m.mu.Unlock()

	m.log.Info().
		Int("check_interval_s", s.CheckIntervalSeconds).
		Int("cooldown_s", s.SignalCooldownSeconds).
		Bool("auto_fetch", s.AutoFetchGainers).
		Int("auto_fetch_interval_s", s.AutoFetchIntervalSeconds).
		Int("auto_fetch_limit", s.AutoFetchLimit).
		Msg("monitor configured")
	return nil
}

// Settings returns the current settings.
func (m *Monitor) Settings() Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings
}

// GetStatus returns a snapshot of the monitor state.
func (m *Monitor) GetStatus() Status {
	running := m.Running()

	m.mu.RLock()
	defer m.mu.RUnlock()
	return Status{
		Running:          running,
		SymbolCount:      len(m.symbols),
		TotalSignals:     m.history.Len(),
		CheckInterval:    m.settings.checkInterval(),
		SignalCooldown:   m.settings.cooldown(),
		AutoFetchGainers: m.settings.AutoFetchGainers,
		LastScanAt:       m.lastScanAt,
		LastAutoFetchAt:  m.lastAutoFetch,
	}
}

// GetRecentSignals returns up to limit signals, newest first. limit is
// clamped to MaxRecentSignals; limit <= 0 means DefaultRecentSignals.
func (m *Monitor) GetRecentSignals(limit int) []model.Signal {
	if limit <= 0 {
		limit = DefaultRecentSignals
	}
	if limit > MaxRecentSignals {
		limit = MaxRecentSignals
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.history.Recent(limit)
}

func normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
