package strategy

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hama-scanner/internal/indicator"
	"hama-scanner/internal/model"
)

func TestDetectCross(t *testing.T) {
	nan := math.NaN()
	tests := []struct {
		name    string
		candle  []float64
		ma      []float64
		wantDir model.Direction
		wantIdx int
	}{
		{"equal on both samples is not a cross", []float64{10, 10}, []float64{10, 10}, model.DirectionNone, -1},
		{"equal earlier, above later is up", []float64{10, 11}, []float64{10, 10}, model.DirectionUp, 1},
		{"equal earlier, below later is down", []float64{10, 9}, []float64{10, 10}, model.DirectionDown, 1},
		{"below to above", []float64{9, 9.5, 10.5}, []float64{10, 10, 10}, model.DirectionUp, 2},
		{"above to below", []float64{11, 10.5, 9.5}, []float64{10, 10, 10}, model.DirectionDown, 2},
		{"latest cross wins", []float64{9, 11, 12, 9}, []float64{10, 10, 10, 10}, model.DirectionDown, 3},
		{"older cross still reported", []float64{9, 11, 12, 13}, []float64{10, 10, 10, 10}, model.DirectionUp, 1},
		{"no cross while always above", []float64{11, 12, 13}, []float64{10, 10, 10}, model.DirectionNone, -1},
		{"undefined pairs are skipped", []float64{9, 11, 12}, []float64{nan, nan, 10}, model.DirectionNone, -1},
		{"single sample", []float64{9}, []float64{10}, model.DirectionNone, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir, idx := DetectCross(tt.candle, tt.ma)
			assert.Equal(t, tt.wantDir, dir)
			assert.Equal(t, tt.wantIdx, idx)
		})
	}
}

func TestDeviationPct(t *testing.T) {
	assert.InDelta(t, 1.0, DeviationPct(101, 100), 1e-12)
	assert.InDelta(t, 1.0, DeviationPct(99, 100), 1e-12)
	assert.Equal(t, 0.0, DeviationPct(5, 0))
	assert.Equal(t, 0.0, DeviationPct(5, math.NaN()))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		cc    float64
		ma    float64
		cross model.Direction
		dev   float64
		want  indicator.Trend
	}{
		{"up", 101, 100, model.DirectionUp, 1, indicator.TrendUp},
		{"up below min deviation", 100.05, 100, model.DirectionUp, 0.05, indicator.TrendSideways},
		{"up but candle under ma", 99, 100, model.DirectionUp, 1, indicator.TrendSideways},
		{"down", 99, 100, model.DirectionDown, 1, indicator.TrendDown},
		{"down but candle over ma", 101, 100, model.DirectionDown, 1, indicator.TrendSideways},
		{"no cross", 101, 100, model.DirectionNone, 1, indicator.TrendSideways},
		{"exactly min deviation", 100.1, 100, model.DirectionUp, 0.1, indicator.TrendUp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.cc, tt.ma, tt.cross, tt.dev, 0.1))
		})
	}
}

// stepParams keeps the candle close unsmoothed so crossings are easy to place.
func stepParams() indicator.Params {
	return indicator.Params{
		Name:            "test",
		Open:            indicator.MASpec{Type: indicator.EMA, Period: 3},
		High:            indicator.MASpec{Type: indicator.EMA, Period: 3},
		Low:             indicator.MASpec{Type: indicator.EMA, Period: 3},
		Close:           indicator.MASpec{Type: indicator.SMA, Period: 1},
		MA:              indicator.MASpec{Type: indicator.SMA, Period: 20},
		BollingerLen:    400,
		BollingerMult:   2,
		MinDeviationPct: 0.1,
	}
}

func flatThenRamp(n, rampAt int) []model.Bar {
	bars := make([]model.Bar, n)
	prev := 100.0
	for i := range bars {
		c := 100.0
		if i >= rampAt {
			c = 110 + float64(i-rampAt)
		}
		bars[i] = model.Bar{Timestamp: int64(i) * 3_600_000, Open: prev, High: max(prev, c), Low: min(prev, c), Close: c, Volume: 1}
		prev = c
	}
	return bars
}

func TestAnalyze_CrossAtLatest(t *testing.T) {
	bars := flatThenRamp(101, 100)
	ev, err := Analyze("SOLUSDT", bars, stepParams())
	require.NoError(t, err)

	assert.Equal(t, 100, ev.CrossIndex)
	assert.True(t, ev.CrossAtLatest())
	assert.Equal(t, model.DirectionUp, ev.Snapshot.LastCross)
	assert.Equal(t, indicator.TrendUp, ev.Snapshot.Trend)
	assert.Greater(t, ev.Snapshot.DeviationPct, 0.1)
	assert.Nil(t, ev.Snapshot.Bollinger)

	bar, ok := ev.CrossBar()
	require.True(t, ok)
	assert.Equal(t, bars[100].Timestamp, bar.Timestamp)
}

func TestAnalyze_CrossInPast(t *testing.T) {
	ev, err := Analyze("SOLUSDT", flatThenRamp(110, 100), stepParams())
	require.NoError(t, err)

	assert.Equal(t, 100, ev.CrossIndex)
	assert.False(t, ev.CrossAtLatest())
	assert.Equal(t, model.DirectionUp, ev.Snapshot.LastCross)
}

func TestAnalyze_Flat(t *testing.T) {
	ev, err := Analyze("X", flatThenRamp(50, 1000), stepParams())
	require.NoError(t, err)
	assert.Equal(t, -1, ev.CrossIndex)
	assert.Equal(t, model.DirectionNone, ev.Snapshot.LastCross)
	assert.Equal(t, indicator.TrendSideways, ev.Snapshot.Trend)
	assert.Equal(t, 0.0, ev.Snapshot.DeviationPct)
}

func TestDescribe(t *testing.T) {
	assert.Contains(t, Describe(model.DirectionUp, 101, 100), "cross up")
	assert.Contains(t, Describe(model.DirectionDown, 99, 100), "cross down")
}
