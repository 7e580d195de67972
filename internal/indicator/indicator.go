// Package indicator provides the HAMA indicator math over bar series.
//
// HAMA is a Heikin-Ashi style synthetic candle whose open/high/low/close are
// each smoothed by a configurable moving average, paired with a long-period
// moving average of the raw close and a Bollinger Band envelope.
//
// Everything in this package is a pure function of its inputs: no clock, no
// randomness, no shared state.
package indicator

import (
	"fmt"
	"math"
	"strings"
)

// MAType is the moving-average kernel applied to a series.
type MAType int

const (
	SMA MAType = iota + 1
	EMA
	WMA
)

func (t MAType) String() string {
	switch t {
	case SMA:
		return "SMA"
	case EMA:
		return "EMA"
	case WMA:
		return "WMA"
	default:
		return "UNKNOWN"
	}
}

// Valid reports whether t is one of the known kernels.
func (t MAType) Valid() bool {
	return t == SMA || t == EMA || t == WMA
}

// ParseMAType converts "SMA"/"EMA"/"WMA" (any case) to an MAType.
func ParseMAType(s string) (MAType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "SMA":
		return SMA, nil
	case "EMA":
		return EMA, nil
	case "WMA":
		return WMA, nil
	}
	return 0, fmt.Errorf("indicator: unknown MA type %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (t MAType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("indicator: invalid MA type %d", int(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *MAType) UnmarshalText(b []byte) error {
	v, err := ParseMAType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// ComputeMA applies the kernel of the given type to series with period n.
// The result has the same length as series; SMA and WMA leave the first n-1
// entries as NaN, EMA is defined from index 0.
func ComputeMA(series []float64, n int, t MAType) []float64 {
	switch t {
	case SMA:
		return SMASeries(series, n)
	case EMA:
		return EMASeries(series, n)
	case WMA:
		return WMASeries(series, n)
	default:
		return nanSeries(len(series))
	}
}

// WarmUp returns the number of leading undefined samples the kernel produces.
func (t MAType) WarmUp(n int) int {
	if t == EMA || n <= 1 {
		return 0
	}
	return n - 1
}

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// Defined reports whether v holds a computed value.
func Defined(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
