package indicator

import (
	"errors"
	"fmt"
	"time"

	"hama-scanner/internal/model"
)

// ErrInsufficientData is returned when fewer bars are supplied than the
// configured periods require. No partial result accompanies it.
var ErrInsufficientData = errors.New("indicator: insufficient data")

// Trend is the classified state of the HAMA candle relative to its MA.
type Trend string

const (
	TrendUp       Trend = "UP"
	TrendDown     Trend = "DOWN"
	TrendSideways Trend = "SIDEWAYS"
)

// Snapshot is the per-symbol output of one computation cycle.
// Trend and LastCross are filled in by the caller from crossover detection;
// Compute leaves them as Sideways/None.
type Snapshot struct {
	Symbol       string          `json:"symbol"`
	AsOf         time.Time       `json:"as_of"`
	CandleOpen   float64         `json:"candle_open"`
	CandleHigh   float64         `json:"candle_high"`
	CandleLow    float64         `json:"candle_low"`
	CandleClose  float64         `json:"candle_close"`
	MAValue      float64         `json:"ma_value"`
	MALength     int             `json:"ma_length"`
	MAType       MAType          `json:"ma_type"`
	Bollinger    *Bollinger      `json:"bollinger,omitempty"`
	Trend        Trend           `json:"trend"`
	LastCross    model.Direction `json:"last_cross"`
	DeviationPct float64         `json:"deviation_pct"`
}

// SyntheticSource holds the Heikin-Ashi style inputs fed to the smoothers.
type SyntheticSource struct {
	Open  []float64
	High  []float64
	Low   []float64
	Close []float64
}

// Synthesize derives the synthetic source series from raw bars.
//
//	open[0]  = bar open; open[i] = (open[i-1] + close[i-1]) / 2
//	high[i]  = max(high, close)
//	low[i]   = min(low, close)
//	close[i] = (open + high + low + close) / 4
func Synthesize(bars []model.Bar) SyntheticSource {
	n := len(bars)
	src := SyntheticSource{
		Open:  make([]float64, n),
		High:  make([]float64, n),
		Low:   make([]float64, n),
		Close: make([]float64, n),
	}
	for i, b := range bars {
		if i == 0 {
			src.Open[i] = b.Open
		} else {
			prev := bars[i-1]
			src.Open[i] = (prev.Open + prev.Close) / 2
		}
		src.High[i] = max(b.High, b.Close)
		src.Low[i] = min(b.Low, b.Close)
		src.Close[i] = (b.Open + b.High + b.Low + b.Close) / 4
	}
	return src
}

// Series is the full-length output of the engine, index-aligned with bars.
type Series struct {
	Bars        []model.Bar
	CandleOpen  []float64
	CandleHigh  []float64
	CandleLow   []float64
	CandleClose []float64
	MA          []float64
	Bollinger   *Bollinger // bands at the latest index; nil when not enough bars
}

// Latest returns the index of the newest bar.
func (s *Series) Latest() int { return len(s.Bars) - 1 }

// ComputeSeries runs the HAMA engine over bars and returns every series.
func ComputeSeries(bars []model.Bar, p Params) (*Series, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if need := p.RequiredBars(); len(bars) < need {
		return nil, fmt.Errorf("%w: have %d bars, need %d", ErrInsufficientData, len(bars), need)
	}

	src := Synthesize(bars)
	closes := model.Closes(bars)

	s := &Series{
		Bars:        bars,
		CandleOpen:  ComputeMA(src.Open, p.Open.Period, p.Open.Type),
		CandleHigh:  ComputeMA(src.High, p.High.Period, p.High.Type),
		CandleLow:   ComputeMA(src.Low, p.Low.Period, p.Low.Type),
		CandleClose: ComputeMA(src.Close, p.Close.Period, p.Close.Type),
		MA:          ComputeMA(closes, p.MA.Period, p.MA.Type),
	}
	if p.BollingerLen > 0 {
		if bb, ok := BollingerAt(closes, p.BollingerLen, p.BollingerMult); ok {
			s.Bollinger = &bb
		}
	}
	return s, nil
}

// Compute returns the raw indicator snapshot at the latest bar.
func Compute(symbol string, bars []model.Bar, p Params) (Snapshot, error) {
	s, err := ComputeSeries(bars, p)
	if err != nil {
		return Snapshot{}, err
	}
	return s.Snapshot(symbol, p), nil
}

// Snapshot extracts the latest-index values of s.
func (s *Series) Snapshot(symbol string, p Params) Snapshot {
	i := s.Latest()
	return Snapshot{
		Symbol:      symbol,
		AsOf:        s.Bars[i].Time(),
		CandleOpen:  s.CandleOpen[i],
		CandleHigh:  s.CandleHigh[i],
		CandleLow:   s.CandleLow[i],
		CandleClose: s.CandleClose[i],
		MAValue:     s.MA[i],
		MALength:    p.MA.Period,
		MAType:      p.MA.Type,
		Bollinger:   s.Bollinger,
		Trend:       TrendSideways,
		LastCross:   model.DirectionNone,
	}
}
