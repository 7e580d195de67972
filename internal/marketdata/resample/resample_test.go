package resample

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hama-scanner/internal/model"
)

var t0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

// minuteBars returns n one-minute bars starting at start with close = index.
func minuteBars(start time.Time, n int) []model.Bar {
	bars := make([]model.Bar, n)
	for i := range bars {
		p := float64(i)
		bars[i] = model.Bar{
			Timestamp: start.Add(time.Duration(i) * time.Minute).UnixMilli(),
			Open:      p, High: p + 1, Low: p - 1, Close: p, Volume: 1,
		}
	}
	return bars
}

func TestParseTimeframe(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
		ok   bool
	}{
		{"1m", time.Minute, true},
		{"15m", 15 * time.Minute, true},
		{"4h", 4 * time.Hour, true},
		{"1d", 24 * time.Hour, true},
		{"1w", 7 * 24 * time.Hour, true},
		{"0h", 0, false},
		{"h", 0, false},
		{"5s", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, err := ParseTimeframe(tt.in)
		if !tt.ok {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestBars_MergesBuckets(t *testing.T) {
	in := minuteBars(t0, 10)
	out := Bars(in, 5*time.Minute, t0.Add(time.Hour))
	require.Len(t, out, 2)

	first := out[0]
	assert.Equal(t, t0.UnixMilli(), first.Timestamp)
	assert.Equal(t, 0.0, first.Open)
	assert.Equal(t, 5.0, first.High) // bar 4: 4+1
	assert.Equal(t, -1.0, first.Low)
	assert.Equal(t, 4.0, first.Close)
	assert.Equal(t, 5.0, first.Volume)

	assert.Equal(t, t0.Add(5*time.Minute).UnixMilli(), out[1].Timestamp)
	assert.Equal(t, 9.0, out[1].Close)
}

func TestBars_DropsFormingBucket(t *testing.T) {
	in := minuteBars(t0, 7)
	// Second bucket [5m,10m) has not ended at t0+7m.
	out := Bars(in, 5*time.Minute, t0.Add(7*time.Minute))
	require.Len(t, out, 1)
	assert.Equal(t, t0.UnixMilli(), out[0].Timestamp)

	assert.Empty(t, Bars(nil, time.Hour, t0))
}

type sliceSource struct {
	bars      []model.Bar
	lastLimit int
	lastTF    string
}

func (s *sliceSource) Fetch(_ context.Context, _, tf string, limit int) ([]model.Bar, error) {
	s.lastLimit, s.lastTF = limit, tf
	if limit < len(s.bars) {
		return s.bars[len(s.bars)-limit:], nil
	}
	return s.bars, nil
}

func TestSource_Fetch(t *testing.T) {
	base := &sliceSource{bars: minuteBars(t0.Add(3*time.Minute), 120)}
	now := t0.Add(3*time.Minute + 120*time.Minute)
	src, err := NewSource(base, "1m", func() time.Time { return now })
	require.NoError(t, err)

	bars, err := src.Fetch(context.Background(), "BTCUSDT", "15m", 100)
	require.NoError(t, err)
	assert.Equal(t, "1m", base.lastTF)
	assert.Equal(t, 102*15, base.lastLimit)

	// Base spans 00:03..02:02. The partial 00:00 bucket and the forming
	// 02:00 bucket are dropped, leaving 00:15..01:45.
	require.Len(t, bars, 7)
	assert.Equal(t, t0.Add(15*time.Minute).UnixMilli(), bars[0].Timestamp)
	assert.Equal(t, t0.Add(105*time.Minute).UnixMilli(), bars[6].Timestamp)

	bars, err = src.Fetch(context.Background(), "BTCUSDT", "15m", 3)
	require.NoError(t, err)
	require.Len(t, bars, 3)
	assert.Equal(t, t0.Add(105*time.Minute).UnixMilli(), bars[2].Timestamp)
}

func TestSource_PassThroughAndErrors(t *testing.T) {
	base := &sliceSource{bars: minuteBars(t0, 10)}
	src, err := NewSource(base, "1m", nil)
	require.NoError(t, err)

	bars, err := src.Fetch(context.Background(), "X", "1m", 5)
	require.NoError(t, err)
	assert.Len(t, bars, 5)

	_, err = src.Fetch(context.Background(), "X", "90s", 5)
	assert.Error(t, err)

	src, err = NewSource(base, "1h", nil)
	require.NoError(t, err)
	_, err = src.Fetch(context.Background(), "X", "90m", 5)
	assert.Error(t, err, "not a multiple")
	_, err = src.Fetch(context.Background(), "X", "30m", 5)
	assert.Error(t, err, "finer than base")

	_, err = NewSource(base, "bogus", nil)
	assert.Error(t, err)
}
