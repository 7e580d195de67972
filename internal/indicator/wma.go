package indicator

// WMASeries calculates the linearly Weighted Moving Average of series.
// The newest sample in the window has weight n, the oldest weight 1.
// out[i] is NaN for i < n-1.
func WMASeries(series []float64, n int) []float64 {
	out := nanSeries(len(series))
	if n <= 0 {
		return out
	}

	denom := float64(n*(n+1)) / 2
	for i := n - 1; i < len(series); i++ {
		var num float64
		start := i - n + 1
		for k := 0; k < n; k++ {
			num += series[start+k] * float64(k+1)
		}
		out[i] = num / denom
	}
	return out
}
