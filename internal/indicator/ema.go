package indicator

// EMASeries calculates the Exponential Moving Average of series.
//
// Seeded with the first sample (no SMA warm-up) and updated with
// EMA[i] = α·x[i] + (1-α)·EMA[i-1], α = 2/(n+1). Every index is defined.
func EMASeries(series []float64, n int) []float64 {
	out := make([]float64, len(series))
	if len(series) == 0 {
		return out
	}
	if n <= 0 {
		return nanSeries(len(series))
	}

	multiplier := 2.0 / float64(n+1)
	out[0] = series[0]
	for i := 1; i < len(series); i++ {
		// EMA formula: EMA = (Price * multiplier) + (EMA_prev * (1 - multiplier))
		out[i] = series[i]*multiplier + out[i-1]*(1-multiplier)
	}
	return out
}
