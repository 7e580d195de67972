// Package strategy turns HAMA indicator series into crossover events and a
// trend classification.
//
// A cross up at index i means the smoothed candle close moved from at-or-below
// the MA at i-1 to strictly above it at i. A cross down is the mirror. Only
// the most recent cross matters; older history is ignored.
package strategy

import (
	"math"

	"hama-scanner/internal/indicator"
	"hama-scanner/internal/model"
)

// DetectCross scans consecutive pairs backward from the latest index and
// returns the most recent crossover of candleClose over ma with the index of
// the later sample. Pairs where either series is undefined are skipped.
// Returns (DirectionNone, -1) when no cross exists in the window.
func DetectCross(candleClose, ma []float64) (model.Direction, int) {
	n := min(len(candleClose), len(ma))
	for i := n - 1; i >= 1; i-- {
		pc, pm := candleClose[i-1], ma[i-1]
		cc, cm := candleClose[i], ma[i]
		if !indicator.Defined(pc) || !indicator.Defined(pm) || !indicator.Defined(cc) || !indicator.Defined(cm) {
			continue
		}

		// Cross up: at-or-below → strictly above
		if pc <= pm && cc > cm {
			return model.DirectionUp, i
		}
		// Cross down: at-or-above → strictly below
		if pc >= pm && cc < cm {
			return model.DirectionDown, i
		}
	}
	return model.DirectionNone, -1
}

// DeviationPct is |candleClose - ma| / ma × 100. Zero when ma is zero or
// either input is undefined.
func DeviationPct(candleClose, ma float64) float64 {
	if ma == 0 || !indicator.Defined(candleClose) || !indicator.Defined(ma) {
		return 0
	}
	return math.Abs(candleClose-ma) / math.Abs(ma) * 100
}
