package strategy

import (
	"hama-scanner/internal/indicator"
	"hama-scanner/internal/model"
)

// Classify derives the trend state. Up needs the candle at or above the MA,
// a most recent cross up, and deviation of at least minDeviationPct; Down is
// the mirror. Anything else is Sideways.
func Classify(candleClose, ma float64, lastCross model.Direction, deviationPct, minDeviationPct float64) indicator.Trend {
	if deviationPct < minDeviationPct {
		return indicator.TrendSideways
	}
	switch lastCross {
	case model.DirectionUp:
		if candleClose >= ma {
			return indicator.TrendUp
		}
	case model.DirectionDown:
		if candleClose <= ma {
			return indicator.TrendDown
		}
	}
	return indicator.TrendSideways
}
