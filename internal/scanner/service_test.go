package scanner

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hama-scanner/config"
	"hama-scanner/internal/model"
	"hama-scanner/internal/monitor"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		LogLevel:    "info",
		MetricsAddr: "127.0.0.1:0",
		Preset:      "hama100",
		Symbols:     []string{"BTCUSDT", "ETHUSDT:FUTURES"},
		SQLite:      config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "bars.db"), JournalKeep: 100},
		Monitor:     monitor.DefaultSettings(),
		Refresh:     config.RefreshConfig{TTL: time.Minute, Retention: time.Hour, Interval: time.Minute, Workers: 2},
		Gateway:     config.GatewayConfig{Enabled: true, ReplaySize: 10},
	}
}

func ramp(n int) []model.Bar {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]model.Bar, n)
	for i := range bars {
		p := 100 + float64(i)*0.5
		bars[i] = model.Bar{
			Timestamp: start.Add(time.Duration(i) * time.Hour).UnixMilli(),
			Open:      p - 0.2, High: p + 1, Low: p - 1, Close: p, Volume: 10,
		}
	}
	return bars
}

func TestParseSymbol(t *testing.T) {
	sym, mt := ParseSymbol("BTCUSDT")
	assert.Equal(t, "BTCUSDT", sym)
	assert.Equal(t, model.MarketSpot, mt)

	sym, mt = ParseSymbol("ETHUSDT:FUTURES")
	assert.Equal(t, "ETHUSDT", sym)
	assert.Equal(t, model.MarketFutures, mt)
}

func TestNew_WiresMonitor(t *testing.T) {
	svc, err := New(context.Background(), testConfig(t))
	require.NoError(t, err)
	defer svc.Close()

	st := svc.Monitor().GetStatus()
	assert.Equal(t, 2, st.SymbolCount)
	assert.False(t, st.Running)

	eth, ok := svc.Monitor().Symbol("ETHUSDT")
	require.True(t, ok)
	assert.Equal(t, model.MarketFutures, eth.MarketType)
}

func TestNew_RejectsBadSymbol(t *testing.T) {
	cfg := testConfig(t)
	cfg.Symbols = []string{"BTCUSDT:margin"}
	_, err := New(context.Background(), cfg)
	assert.Error(t, err)
}

func TestRefreshOnce(t *testing.T) {
	svc, err := New(context.Background(), testConfig(t))
	require.NoError(t, err)
	defer svc.Close()

	ctx := context.Background()
	require.NoError(t, svc.Bars().WriteBars(ctx, "BTCUSDT", "1h", ramp(300)))
	require.NoError(t, svc.Bars().WriteBars(ctx, "ETHUSDT", "1h", ramp(20)))

	rep, err := svc.RefreshOnce(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"BTCUSDT", "ETHUSDT"}, rep.Stale)
	assert.Equal(t, []string{"BTCUSDT"}, rep.Updated)
	assert.Contains(t, rep.Failed, "ETHUSDT")

	// Second pass finds BTCUSDT fresh.
	rep, err = svc.RefreshOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"BTCUSDT"}, rep.Fresh)
}

func TestScanThroughService(t *testing.T) {
	svc, err := New(context.Background(), testConfig(t))
	require.NoError(t, err)
	defer svc.Close()

	ctx := context.Background()
	require.NoError(t, svc.Bars().WriteBars(ctx, "BTCUSDT", "1h", ramp(300)))

	res := svc.Monitor().ScanOnce(ctx)
	assert.Equal(t, 1, res.Checked)
	assert.Equal(t, 1, res.FetchFailed)

	btc, ok := svc.Monitor().Symbol("BTCUSDT")
	require.True(t, ok)
	require.NotNil(t, btc.LastSnapshot)
	assert.Equal(t, "BTCUSDT", btc.LastSnapshot.Symbol)
}

func TestResampledFallback(t *testing.T) {
	cfg := testConfig(t)
	cfg.Symbols = []string{"BTCUSDT"}
	cfg.SQLite.BaseTimeframe = "15m"
	svc, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer svc.Close()

	// Only 15m bars are stored: 4 per hour for 200 hours, all in the past.
	base := make([]model.Bar, 800)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range base {
		p := 100 + float64(i)*0.1
		base[i] = model.Bar{
			Timestamp: start.Add(time.Duration(i) * 15 * time.Minute).UnixMilli(),
			Open:      p, High: p + 0.5, Low: p - 0.5, Close: p, Volume: 1,
		}
	}
	ctx := context.Background()
	require.NoError(t, svc.Bars().WriteBars(ctx, "BTCUSDT", "15m", base))

	res := svc.Monitor().ScanOnce(ctx)
	assert.Equal(t, 1, res.Checked)
	assert.Zero(t, res.FetchFailed)
}
