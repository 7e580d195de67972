package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"hama-scanner/internal/logger"
)

// Metrics holds all Prometheus metrics for the scanner.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	ScanDur          prometheus.Histogram
	ScansTotal       prometheus.Counter
	SymbolsChecked   prometheus.Counter
	SymbolsMonitored prometheus.Gauge

	// Per-symbol outcomes within a tick
	CooldownSkips       prometheus.Counter
	FetchFailures       prometheus.Counter
	InsufficientData    prometheus.Counter
	DiscardedResults    prometheus.Counter
	IndicatorComputeDur prometheus.Histogram

	// Signals
	SignalsTotal   *prometheus.CounterVec // labels: direction
	SinkFailures   *prometheus.CounterVec // labels: sink
	HistoryTrimmed prometheus.Counter

	// Auto-fetch of gainers
	AutoFetchAdded  prometheus.Counter
	AutoFetchErrors prometheus.Counter

	// Smart refresh partitions
	RefreshPartition *prometheus.CounterVec // labels: partition=stale|fresh

	// Cache circuit breaker
	CacheCircuitBreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	CacheCircuitBreakerTrips prometheus.Counter
}

// NewMetrics creates all collectors and registers them with reg.
// Pass prometheus.DefaultRegisterer in production and a fresh registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ScanDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "scanner_scan_duration_seconds",
			Help:    "Wall time of one monitor tick",
			Buckets: prometheus.DefBuckets,
		}),
		ScansTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scanner_scans_total",
			Help: "Total monitor ticks executed",
		}),
		SymbolsChecked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scanner_symbols_checked_total",
			Help: "Symbols whose indicator was computed",
		}),
		SymbolsMonitored: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scanner_symbols_monitored",
			Help: "Symbols currently in the monitored set",
		}),
		CooldownSkips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scanner_cooldown_skips_total",
			Help: "Symbol checks skipped because the signal cooldown had not expired",
		}),
		FetchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scanner_fetch_failures_total",
			Help: "Bar source failures",
		}),
		InsufficientData: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scanner_insufficient_data_total",
			Help: "Symbol checks skipped for too few bars",
		}),
		DiscardedResults: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scanner_discarded_results_total",
			Help: "Check results dropped because the symbol was removed mid-tick",
		}),
		IndicatorComputeDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "scanner_indicator_compute_duration_seconds",
			Help:    "HAMA engine + crossover latency per symbol",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01},
		}),
		SignalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scanner_signals_total",
			Help: "Signals emitted (by direction)",
		}, []string{"direction"}),
		SinkFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scanner_sink_failures_total",
			Help: "Signal sink errors and panics (by sink)",
		}, []string{"sink"}),
		HistoryTrimmed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scanner_history_trimmed_total",
			Help: "Signals dropped from the bounded history",
		}),
		AutoFetchAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scanner_autofetch_added_total",
			Help: "Symbols added from the gainers list",
		}),
		AutoFetchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scanner_autofetch_errors_total",
			Help: "Gainers provider failures",
		}),
		RefreshPartition: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scanner_refresh_symbols_total",
			Help: "Smart refresh partition sizes (stale|fresh)",
		}, []string{"partition"}),
		CacheCircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scanner_cache_circuit_breaker_state",
			Help: "Cache circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		CacheCircuitBreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scanner_cache_circuit_breaker_trips_total",
			Help: "Times the cache circuit breaker opened",
		}),
	}

	reg.MustRegister(
		m.ScanDur,
		m.ScansTotal,
		m.SymbolsChecked,
		m.SymbolsMonitored,
		m.CooldownSkips,
		m.FetchFailures,
		m.InsufficientData,
		m.DiscardedResults,
		m.IndicatorComputeDur,
		m.SignalsTotal,
		m.SinkFailures,
		m.HistoryTrimmed,
		m.AutoFetchAdded,
		m.AutoFetchErrors,
		m.RefreshPartition,
		m.CacheCircuitBreakerState,
		m.CacheCircuitBreakerTrips,
	)

	return m
}

func (m *Metrics) ObserveScan(d time.Duration) {
	if m == nil {
		return
	}
	m.ScansTotal.Inc()
	m.ScanDur.Observe(d.Seconds())
}

func (m *Metrics) ObserveCompute(d time.Duration) {
	if m == nil {
		return
	}
	m.SymbolsChecked.Inc()
	m.IndicatorComputeDur.Observe(d.Seconds())
}

func (m *Metrics) SetMonitored(n int) {
	if m == nil {
		return
	}
	m.SymbolsMonitored.Set(float64(n))
}

func (m *Metrics) IncCooldownSkip() {
	if m != nil {
		m.CooldownSkips.Inc()
	}
}

func (m *Metrics) IncFetchFailure() {
	if m != nil {
		m.FetchFailures.Inc()
	}
}

func (m *Metrics) IncInsufficientData() {
	if m != nil {
		m.InsufficientData.Inc()
	}
}

func (m *Metrics) IncDiscarded() {
	if m != nil {
		m.DiscardedResults.Inc()
	}
}

func (m *Metrics) IncSignal(direction string) {
	if m != nil {
		m.SignalsTotal.WithLabelValues(direction).Inc()
	}
}

func (m *Metrics) IncSinkFailure(sink string) {
	if m != nil {
		m.SinkFailures.WithLabelValues(sink).Inc()
	}
}

func (m *Metrics) AddHistoryTrimmed(n uint64) {
	if m != nil && n > 0 {
		m.HistoryTrimmed.Add(float64(n))
	}
}

func (m *Metrics) AddAutoFetch(added int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.AutoFetchErrors.Inc()
	}
	m.AutoFetchAdded.Add(float64(added))
}

func (m *Metrics) ObservePartition(stale, fresh int) {
	if m == nil {
		return
	}
	m.RefreshPartition.WithLabelValues("stale").Add(float64(stale))
	m.RefreshPartition.WithLabelValues("fresh").Add(float64(fresh))
}

// SetBreakerState records a circuit breaker transition; opening counts as a trip.
func (m *Metrics) SetBreakerState(state int, tripped bool) {
	if m == nil {
		return
	}
	m.CacheCircuitBreakerState.Set(float64(state))
	if tripped {
		m.CacheCircuitBreakerTrips.Inc()
	}
}

// HealthStatus represents the system health.
type HealthStatus struct {
	mu sync.RWMutex

	MonitorRunning bool      `json:"monitor_running"`
	LastScanAt     time.Time `json:"last_scan_at"`
	SymbolCount    int       `json:"symbol_count"`
	RedisConnected bool      `json:"redis_connected"`
	SQLiteOK       bool      `json:"sqlite_ok"`

	// Liveness probe results
	RedisLatencyMs  float64   `json:"redis_latency_ms"`
	SQLiteLatencyMs float64   `json:"sqlite_latency_ms"`
	LastCheckAt     time.Time `json:"last_check_at"`
	StartedAt       time.Time `json:"started_at"`

	// Which dependencies were configured; unconfigured ones do not degrade health.
	redisEnabled  bool
	sqliteEnabled bool
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{
		StartedAt: time.Now(),
	}
}

// RecordScan notes a finished monitor tick.
func (h *HealthStatus) RecordScan(running bool, symbols int, at time.Time) {
	h.mu.Lock()
	h.MonitorRunning = running
	h.SymbolCount = symbols
	h.LastScanAt = at
	h.mu.Unlock()
}

func (h *HealthStatus) SetMonitorRunning(v bool) {
	h.mu.Lock()
	h.MonitorRunning = v
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.redisEnabled = true
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite pings the database and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.sqliteEnabled = true
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks. Either client may be nil.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				if sqlDB != nil {
					h.CheckSQLite(probeCtx, sqlDB)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK

	redisDown := h.redisEnabled && !h.RedisConnected
	sqliteDown := h.sqliteEnabled && !h.SQLiteOK
	if !h.MonitorRunning || redisDown || sqliteDown {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}
	if !h.MonitorRunning && (redisDown || sqliteDown) {
		overallStatus = "unhealthy"
	}

	scanAge := ""
	if !h.LastScanAt.IsZero() {
		scanAge = time.Since(h.LastScanAt).Round(time.Millisecond).String()
	}

	status := struct {
		Status          string  `json:"status"`
		Uptime          string  `json:"uptime"`
		MonitorRunning  bool    `json:"monitor_running"`
		LastScanAt      string  `json:"last_scan_at"`
		ScanAge         string  `json:"scan_age"`
		SymbolCount     int     `json:"symbol_count"`
		RedisConnected  bool    `json:"redis_connected"`
		RedisLatencyMs  float64 `json:"redis_latency_ms"`
		SQLiteOK        bool    `json:"sqlite_ok"`
		SQLiteLatencyMs float64 `json:"sqlite_latency_ms"`
		LastCheckAt     string  `json:"last_check_at"`
	}{
		Status:          overallStatus,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		MonitorRunning:  h.MonitorRunning,
		LastScanAt:      h.LastScanAt.Format(time.RFC3339),
		ScanAge:         scanAge,
		SymbolCount:     h.SymbolCount,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		LastCheckAt:     h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz, plus any extra
// handlers registered before Start.
type Server struct {
	health *HealthStatus
	addr   string
	mux    *http.ServeMux
	srv    *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus, gatherer prometheus.Gatherer) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.Handle("/healthz", health)

	return &Server{
		health: health,
		addr:   addr,
		mux:    mux,
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Handle mounts an extra handler (e.g. the websocket gateway).
func (s *Server) Handle(pattern string, h http.Handler) {
	s.mux.Handle(pattern, h)
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	log := logger.Component("metrics")
	go func() {
		log.Info().Str("addr", s.addr).Msg("server listening")
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
