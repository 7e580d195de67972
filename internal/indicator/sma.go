package indicator

// SMASeries calculates the Simple Moving Average of series over a rolling
// window of n samples. out[i] is NaN for i < n-1.
// Uses a running sum so the whole series is O(len).
func SMASeries(series []float64, n int) []float64 {
	out := nanSeries(len(series))
	if n <= 0 {
		return out
	}

	var sum float64
	for i, v := range series {
		sum += v
		if i >= n {
			// Subtract the value leaving the window
			sum -= series[i-n]
		}
		if i >= n-1 {
			out[i] = sum / float64(n)
		}
	}
	return out
}

// windowMean returns mean(series[i-n+1..i]) recomputed from scratch.
// Used where drift from a running sum must be avoided (stddev).
func windowMean(series []float64, i, n int) float64 {
	var sum float64
	for k := i - n + 1; k <= i; k++ {
		sum += series[k]
	}
	return sum / float64(n)
}
