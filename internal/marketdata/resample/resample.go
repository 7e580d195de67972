// Package resample builds higher-timeframe bars from a base timeframe.
// Buckets are aligned to the Unix epoch (bucket = ts - ts%tf), so daily bars
// start at 00:00 UTC.
package resample

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"hama-scanner/internal/model"
)

// maxBaseBars caps a single base fetch so a large ratio cannot ask the
// store for an unbounded range.
const maxBaseBars = 50000

// ParseTimeframe parses "15m", "1h", "4h", "1d" or "1w".
func ParseTimeframe(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return 0, fmt.Errorf("resample: bad timeframe %q", s)
	}
	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("resample: bad timeframe %q", s)
	}
	var unit time.Duration
	switch s[len(s)-1] {
	case 'm':
		unit = time.Minute
	case 'h':
		unit = time.Hour
	case 'd':
		unit = 24 * time.Hour
	case 'w':
		unit = 7 * 24 * time.Hour
	default:
		return 0, fmt.Errorf("resample: bad timeframe unit in %q", s)
	}
	return time.Duration(n) * unit, nil
}

// Bars merges bars into tf buckets. Input must be ascending. A trailing
// bucket whose end is after now is still forming and is dropped.
func Bars(bars []model.Bar, tf time.Duration, now time.Time) []model.Bar {
	tfMs := tf.Milliseconds()
	if tfMs <= 0 || len(bars) == 0 {
		return nil
	}

	out := make([]model.Bar, 0, len(bars)/2+1)
	var cur model.Bar
	started := false
	for _, b := range bars {
		bucket := b.Timestamp - b.Timestamp%tfMs
		if started && bucket == cur.Timestamp {
			cur.High = max(cur.High, b.High)
			cur.Low = min(cur.Low, b.Low)
			cur.Close = b.Close
			cur.Volume += b.Volume
			continue
		}
		if started {
			out = append(out, cur)
		}
		cur = model.Bar{Timestamp: bucket, Open: b.Open, High: b.High, Low: b.Low, Close: b.Close, Volume: b.Volume}
		started = true
	}

	if cur.Timestamp+tfMs <= now.UnixMilli() {
		out = append(out, cur)
	}
	return out
}

// Source serves any multiple of its base timeframe by resampling base bars.
type Source struct {
	base   model.BarSource
	baseTF string
	baseD  time.Duration
	now    func() time.Time
}

// NewSource wraps base, which must serve baseTimeframe bars.
func NewSource(base model.BarSource, baseTimeframe string, now func() time.Time) (*Source, error) {
	d, err := ParseTimeframe(baseTimeframe)
	if err != nil {
		return nil, err
	}
	if now == nil {
		now = time.Now
	}
	return &Source{base: base, baseTF: baseTimeframe, baseD: d, now: now}, nil
}

// Fetch implements model.BarSource.
func (s *Source) Fetch(ctx context.Context, symbol, timeframe string, limit int) ([]model.Bar, error) {
	if timeframe == s.baseTF {
		return s.base.Fetch(ctx, symbol, timeframe, limit)
	}
	tf, err := ParseTimeframe(timeframe)
	if err != nil {
		return nil, err
	}
	if tf < s.baseD || tf%s.baseD != 0 {
		return nil, fmt.Errorf("resample: %s is not a multiple of %s", timeframe, s.baseTF)
	}

	ratio := int(tf / s.baseD)
	// One extra bucket covers a partial leading bucket and the forming one.
	n := min((limit+2)*ratio, maxBaseBars)
	base, err := s.base.Fetch(ctx, symbol, s.baseTF, n)
	if err != nil {
		return nil, err
	}

	bars := Bars(base, tf, s.now())
	// The first bucket may be partial when the base window starts mid-bucket.
	if len(bars) > 0 && len(base) > 0 && base[0].Timestamp != bars[0].Timestamp {
		bars = bars[1:]
	}
	if len(bars) > limit {
		bars = bars[len(bars)-limit:]
	}
	return bars, nil
}
