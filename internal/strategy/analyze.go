package strategy

import (
	"fmt"

	"hama-scanner/internal/indicator"
	"hama-scanner/internal/model"
)

// Evaluation is the combined engine + detector output for one symbol.
type Evaluation struct {
	Snapshot indicator.Snapshot
	Series   *indicator.Series

	// CrossIndex is the bar index of the most recent cross, -1 if none.
	CrossIndex int
}

// CrossAtLatest reports whether the most recent cross happened on the newest bar.
func (e Evaluation) CrossAtLatest() bool {
	return e.CrossIndex >= 0 && e.Series != nil && e.CrossIndex == e.Series.Latest()
}

// CrossBar returns the bar at which the most recent cross happened.
func (e Evaluation) CrossBar() (model.Bar, bool) {
	if e.CrossIndex < 0 || e.Series == nil {
		return model.Bar{}, false
	}
	return e.Series.Bars[e.CrossIndex], true
}

// Analyze computes the HAMA snapshot for bars and fills in the crossover
// direction, deviation and trend.
func Analyze(symbol string, bars []model.Bar, p indicator.Params) (Evaluation, error) {
	series, err := indicator.ComputeSeries(bars, p)
	if err != nil {
		return Evaluation{}, err
	}

	snap := series.Snapshot(symbol, p)
	ev := Evaluation{Snapshot: snap, Series: series, CrossIndex: -1}

	// MA still warming up at the latest bar: report sideways, no cross.
	if !indicator.Defined(snap.MAValue) || !indicator.Defined(snap.CandleClose) {
		return ev, nil
	}

	dir, idx := DetectCross(series.CandleClose, series.MA)
	dev := DeviationPct(snap.CandleClose, snap.MAValue)

	ev.CrossIndex = idx
	ev.Snapshot.LastCross = dir
	ev.Snapshot.DeviationPct = dev
	ev.Snapshot.Trend = Classify(snap.CandleClose, snap.MAValue, dir, dev, p.MinDeviationPct)
	return ev, nil
}

// Describe renders a one-line human description of a cross.
func Describe(dir model.Direction, candleClose, ma float64) string {
	switch dir {
	case model.DirectionUp:
		return fmt.Sprintf("HAMA cross up: candle %.6g > MA %.6g", candleClose, ma)
	case model.DirectionDown:
		return fmt.Sprintf("HAMA cross down: candle %.6g < MA %.6g", candleClose, ma)
	default:
		return "no cross"
	}
}
