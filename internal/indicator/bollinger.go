package indicator

import "math"

const (
	// SqueezeWidth marks bands narrower than this (relative to basis) as a squeeze.
	SqueezeWidth = 0.1
	// ExpansionWidth marks bands wider than this as an expansion.
	ExpansionWidth = 0.15
)

// Bollinger is the band envelope at one index.
type Bollinger struct {
	Upper     float64 `json:"upper"`
	Basis     float64 `json:"basis"`
	Lower     float64 `json:"lower"`
	Width     float64 `json:"width"`
	Squeeze   bool    `json:"squeeze"`
	Expansion bool    `json:"expansion"`
}

// StdDevSeries returns the rolling sample standard deviation (n-1 divisor)
// of series over n samples. out[i] is NaN for i < n-1; a window of one
// sample has zero deviation.
func StdDevSeries(series []float64, n int) []float64 {
	out := nanSeries(len(series))
	if n <= 0 {
		return out
	}
	for i := n - 1; i < len(series); i++ {
		if n == 1 {
			out[i] = 0
			continue
		}
		mean := windowMean(series, i, n)
		var ss float64
		for k := i - n + 1; k <= i; k++ {
			d := series[k] - mean
			ss += d * d
		}
		out[i] = math.Sqrt(ss / float64(n-1))
	}
	return out
}

// BollingerAt computes the bands at the latest index of closes.
// ok is false when closes is shorter than n.
func BollingerAt(closes []float64, n int, mult float64) (Bollinger, bool) {
	if n <= 0 || len(closes) < n {
		return Bollinger{}, false
	}
	last := len(closes) - 1
	basis := windowMean(closes, last, n)
	dev := StdDevSeries(closes[len(closes)-n:], n)[n-1]

	b := Bollinger{
		Basis: basis,
		Upper: basis + dev*mult,
		Lower: basis - dev*mult,
	}
	if basis != 0 {
		b.Width = (b.Upper - b.Lower) / basis
	}
	b.Squeeze = b.Width < SqueezeWidth
	b.Expansion = b.Width > ExpansionWidth
	return b, true
}
