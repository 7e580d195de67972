// Package scanner wires the monitor to its collaborators and manages the
// process lifecycle.
package scanner

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"hama-scanner/config"
	"hama-scanner/internal/freshness"
	"hama-scanner/internal/gateway"
	"hama-scanner/internal/logger"
	"hama-scanner/internal/marketdata"
	"hama-scanner/internal/marketdata/resample"
	"hama-scanner/internal/metrics"
	"hama-scanner/internal/model"
	"hama-scanner/internal/monitor"
	"hama-scanner/internal/notification"
	"hama-scanner/internal/store/memory"
	redisstore "hama-scanner/internal/store/redis"
	sqlitestore "hama-scanner/internal/store/sqlite"
)

const (
	livenessInterval = 15 * time.Second
	statusInterval   = 10 * time.Second
	pruneInterval    = time.Hour
	sinkTimeout      = 10 * time.Second
)

// Service is the top-level orchestrator: it owns every connection and
// background loop and shuts them down in reverse order.
type Service struct {
	cfg *config.Config
	log zerolog.Logger

	registry *prometheus.Registry
	prom     *metrics.Metrics
	health   *metrics.HealthStatus

	store   *sqlitestore.Store
	bars    *sqlitestore.BarStore
	journal *sqlitestore.Journal
	rdb     *goredis.Client

	cache     freshness.Cache
	memCache  *memory.Cache
	refresher *freshness.Refresher
	hub       *gateway.Hub
	monitor   *monitor.Monitor

	closers []io.Closer
	async   []*notification.AsyncSink
}

// New opens storage, builds the sinks and constructs a stopped monitor.
func New(ctx context.Context, cfg *config.Config) (*Service, error) {
	svc := &Service{
		cfg:      cfg,
		log:      logger.Component("scanner"),
		registry: prometheus.NewRegistry(),
		health:   metrics.NewHealthStatus(),
	}
	svc.prom = metrics.NewMetrics(svc.registry)

	if err := svc.openStorage(ctx); err != nil {
		svc.Close()
		return nil, err
	}

	params := cfg.Params()
	sources := []marketdata.NamedSource{{Name: "sqlite", Source: svc.bars}}
	if base := cfg.SQLite.BaseTimeframe; base != "" && base != cfg.Monitor.Timeframe {
		rs, err := resample.NewSource(svc.bars, base, time.Now)
		if err != nil {
			svc.Close()
			return nil, err
		}
		sources = append(sources, marketdata.NamedSource{Name: "sqlite-" + base, Source: rs})
	}
	source := marketdata.NewChain(params.RequiredBars(), sources...)

	svc.refresher = freshness.NewRefresher(svc.cache, source, params,
		freshness.NewPolicy(time.Now),
		freshness.RefresherConfig{
			TTL:       cfg.Refresh.TTL,
			Retention: cfg.Refresh.Retention,
			Timeframe: cfg.Monitor.Timeframe,
			BarLimit:  cfg.Monitor.BarLimit,
			Workers:   cfg.Refresh.Workers,
		}, svc.prom)

	sinks, err := svc.buildSinks()
	if err != nil {
		svc.Close()
		return nil, err
	}

	opts := []monitor.Option{
		monitor.WithSettings(cfg.Monitor),
		monitor.WithSinks(sinks...),
		monitor.WithMetrics(svc.prom),
	}
	if svc.rdb != nil {
		opts = append(opts, monitor.WithGainers(redisstore.NewGainers(svc.rdb)))
	}
	svc.monitor, err = monitor.New(source, params, opts...)
	if err != nil {
		svc.Close()
		return nil, err
	}

	for _, s := range cfg.Symbols {
		sym, mt := ParseSymbol(s)
		if err := svc.monitor.AddSymbol(sym, mt); err != nil {
			svc.Close()
			return nil, fmt.Errorf("scanner: symbol %q: %w", s, err)
		}
	}
	return svc, nil
}

func (svc *Service) openStorage(ctx context.Context) error {
	var err error
	svc.store, err = sqlitestore.Open(svc.cfg.SQLite.Path)
	if err != nil {
		return err
	}
	svc.bars = sqlitestore.NewBarStore(svc.store)
	svc.journal = sqlitestore.NewJournal(svc.store, svc.cfg.SQLite.JournalKeep)

	if svc.cfg.Redis.Addr == "" {
		svc.log.Info().Msg("redis not configured, using in-process snapshot cache")
		svc.memCache = memory.New(time.Now)
		svc.cache = svc.memCache
		return nil
	}

	svc.rdb, err = redisstore.Connect(ctx, redisstore.Config{
		Addr:     svc.cfg.Redis.Addr,
		Password: svc.cfg.Redis.Password,
		DB:       svc.cfg.Redis.DB,
	})
	if err != nil {
		return err
	}
	cb := redisstore.NewCircuitBreaker(svc.cfg.Redis.BreakerFailures, svc.cfg.Redis.BreakerReset)
	svc.cache = redisstore.NewCache(svc.rdb, cb, svc.prom)
	return nil
}

// buildSinks assembles delivery in order: durable stores first, then
// live push, then network notifiers behind async queues.
func (svc *Service) buildSinks() ([]model.SignalSink, error) {
	cfg := svc.cfg
	sinks := []model.SignalSink{svc.journal}

	if svc.rdb != nil {
		cb := redisstore.NewCircuitBreaker(cfg.Redis.BreakerFailures, cfg.Redis.BreakerReset)
		sinks = append(sinks, redisstore.NewPublisher(svc.rdb, cb))
	}
	if cfg.Gateway.Enabled {
		svc.hub = gateway.NewHub(cfg.Gateway.ReplaySize)
		sinks = append(sinks, svc.hub)
	}

	sinks = append(sinks, notification.NewAlertSink("log", notification.NewLogNotifier()))

	if cfg.Telegram.Token != "" {
		tg, err := notification.NewTelegramNotifier(cfg.Telegram.Token, cfg.Telegram.ChatID)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, svc.queued(notification.NewAlertSink("telegram", tg)))
	}
	if cfg.Webhook.URL != "" {
		wh := notification.NewWebhookNotifier(cfg.Webhook.URL)
		sinks = append(sinks, svc.queued(notification.NewAlertSink("webhook", wh)))
	}
	if len(cfg.Kafka.Brokers) > 0 {
		ks, err := notification.NewKafkaSink(notification.KafkaConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
		})
		if err != nil {
			return nil, err
		}
		svc.closers = append(svc.closers, ks)
		sinks = append(sinks, svc.queued(ks))
	}
	return sinks, nil
}

func (svc *Service) queued(s model.SignalSink) model.SignalSink {
	a := notification.NewAsyncSink(s, config.AsyncQueue, sinkTimeout, svc.prom)
	svc.async = append(svc.async, a)
	return a
}

// Monitor exposes the underlying monitor.
func (svc *Service) Monitor() *monitor.Monitor { return svc.monitor }

// Refresher exposes the snapshot refresher.
func (svc *Service) Refresher() *freshness.Refresher { return svc.refresher }

// Bars exposes the local bar store.
func (svc *Service) Bars() *sqlitestore.BarStore { return svc.bars }

// Run starts every background loop and blocks until ctx is cancelled.
func (svc *Service) Run(ctx context.Context) error {
	cfg := svc.cfg

	srv := metrics.NewServer(cfg.MetricsAddr, svc.health, svc.registry)
	if svc.hub != nil {
		srv.Handle("/ws", svc.hub)
		if cfg.Gateway.RelayRedis && svc.rdb != nil {
			go svc.hub.RelayFromRedis(ctx, svc.rdb)
		}
	}
	srv.Start()

	var sqlDB *sql.DB
	if svc.store != nil {
		sqlDB = svc.store.DB()
	}
	svc.health.StartLivenessChecker(ctx, svc.rdb, sqlDB, livenessInterval)
	if svc.memCache != nil {
		go svc.memCache.RunSweeper(ctx, cfg.Refresh.Interval)
	}

	go svc.refreshLoop(ctx)
	go svc.statusLoop(ctx)
	go svc.pruneLoop(ctx)

	svc.monitor.Start(ctx)
	svc.health.SetMonitorRunning(true)

	st := svc.monitor.GetStatus()
	svc.log.Info().
		Str("preset", svc.monitor.Params().Name).
		Int("symbols", st.SymbolCount).
		Dur("interval", st.CheckInterval).
		Dur("cooldown", st.SignalCooldown).
		Bool("auto_fetch", st.AutoFetchGainers).
		Str("metrics", cfg.MetricsAddr).
		Msg("scanner running")

	<-ctx.Done()
	svc.log.Info().Msg("shutdown signal received")

	svc.monitor.Stop()
	svc.health.SetMonitorRunning(false)

	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Stop(shutCtx)

	svc.Close()
	svc.log.Info().Msg("shutdown complete")
	return nil
}

// RefreshOnce runs one freshness pass over the monitored symbols.
func (svc *Service) RefreshOnce(ctx context.Context) (freshness.Report, error) {
	states := svc.monitor.Symbols()
	names := make([]string, len(states))
	for i, s := range states {
		names[i] = s.Symbol
	}
	return svc.refresher.Run(ctx, names)
}

func (svc *Service) refreshLoop(ctx context.Context) {
	ticker := time.NewTicker(svc.cfg.Refresh.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rep, err := svc.RefreshOnce(ctx)
			if err != nil {
				svc.log.Warn().Err(err).Msg("refresh pass aborted")
				continue
			}
			svc.log.Debug().Int("stale", len(rep.Stale)).Int("updated", len(rep.Updated)).
				Int("failed", len(rep.Failed)).Msg("refresh pass done")
		}
	}
}

func (svc *Service) statusLoop(ctx context.Context) {
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st := svc.monitor.GetStatus()
			svc.health.RecordScan(st.Running, st.SymbolCount, st.LastScanAt)
		}
	}
}

func (svc *Service) pruneLoop(ctx context.Context) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := svc.journal.Prune(ctx)
			if err != nil {
				svc.log.Warn().Err(err).Msg("journal prune failed")
			} else if n > 0 {
				svc.log.Info().Int64("deleted", n).Msg("journal pruned")
			}
		}
	}
}

// Close drains async sinks and closes connections. Safe on a partially
// built Service.
func (svc *Service) Close() {
	for _, a := range svc.async {
		a.Close()
	}
	svc.async = nil
	for _, c := range svc.closers {
		if err := c.Close(); err != nil {
			svc.log.Warn().Err(err).Msg("close failed")
		}
	}
	svc.closers = nil
	if svc.rdb != nil {
		svc.rdb.Close()
		svc.rdb = nil
	}
	if svc.store != nil {
		svc.store.Close()
		svc.store = nil
	}
}

// ParseSymbol splits "BTCUSDT" or "BTCUSDT:futures" into a symbol and
// market type. The market type defaults to spot.
func ParseSymbol(s string) (string, model.MarketType) {
	sym, mt, ok := strings.Cut(s, ":")
	if !ok {
		return s, model.MarketSpot
	}
	return sym, model.MarketType(strings.ToLower(mt))
}
