package indicator

import (
	"fmt"
	"sort"
	"strings"
)

// MASpec pairs a kernel with its period.
type MASpec struct {
	Type   MAType `json:"type" yaml:"type"`
	Period int    `json:"period" yaml:"period"`
}

func (s MASpec) String() string {
	return s.Type.String() + "_" + itoa(s.Period)
}

// Params configures one HAMA computation. Callers always pass a preset in;
// the engine never assumes one.
type Params struct {
	Name            string  `json:"name" yaml:"name"`
	Open            MASpec  `json:"open" yaml:"open"`
	High            MASpec  `json:"high" yaml:"high"`
	Low             MASpec  `json:"low" yaml:"low"`
	Close           MASpec  `json:"close" yaml:"close"`
	MA              MASpec  `json:"ma" yaml:"ma"`
	BollingerLen    int     `json:"bollinger_len" yaml:"bollinger_len"`
	BollingerMult   float64 `json:"bollinger_mult" yaml:"bollinger_mult"`
	MinDeviationPct float64 `json:"min_deviation_pct" yaml:"min_deviation_pct"`
}

// Named presets. Both are valid configurations of the same indicator.
const (
	PresetHAMA100 = "hama100"
	PresetHAMA55  = "hama55"
)

var presets = map[string]Params{
	PresetHAMA100: {
		Name:            PresetHAMA100,
		Open:            MASpec{EMA, 45},
		High:            MASpec{EMA, 20},
		Low:             MASpec{EMA, 20},
		Close:           MASpec{WMA, 40},
		MA:              MASpec{WMA, 100},
		BollingerLen:    400,
		BollingerMult:   2.0,
		MinDeviationPct: 0.1,
	},
	PresetHAMA55: {
		Name:            PresetHAMA55,
		Open:            MASpec{EMA, 25},
		High:            MASpec{EMA, 20},
		Low:             MASpec{EMA, 20},
		Close:           MASpec{WMA, 20},
		MA:              MASpec{WMA, 55},
		BollingerLen:    400,
		BollingerMult:   2.0,
		MinDeviationPct: 0.1,
	},
}

// Preset returns a copy of the named parameter preset.
func Preset(name string) (Params, error) {
	p, ok := presets[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Params{}, fmt.Errorf("indicator: unknown preset %q (known: %s)", name, strings.Join(PresetNames(), ", "))
	}
	return p, nil
}

// PresetNames lists the registered presets in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for n := range presets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Validate checks kernel types and periods.
func (p Params) Validate() error {
	for _, c := range []struct {
		label string
		spec  MASpec
	}{
		{"open", p.Open}, {"high", p.High}, {"low", p.Low}, {"close", p.Close}, {"ma", p.MA},
	} {
		if !c.spec.Type.Valid() {
			return fmt.Errorf("indicator: %s: invalid MA type", c.label)
		}
		if c.spec.Period <= 0 {
			return fmt.Errorf("indicator: %s: period must be > 0, got %d", c.label, c.spec.Period)
		}
	}
	if p.BollingerLen < 0 {
		return fmt.Errorf("indicator: bollinger_len must be >= 0, got %d", p.BollingerLen)
	}
	if p.MinDeviationPct < 0 {
		return fmt.Errorf("indicator: min_deviation_pct must be >= 0, got %v", p.MinDeviationPct)
	}
	return nil
}

// RequiredBars is the minimum number of bars Compute accepts: the larger of
// the MA period and the candle-close period, extended by any other candle
// component whose kernel has a warm-up gap.
func (p Params) RequiredBars() int {
	n := max(p.MA.Period, p.Close.Period)
	for _, s := range []MASpec{p.Open, p.High, p.Low} {
		if s.Type != EMA && s.Period > n {
			n = s.Period
		}
	}
	return n
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	buf := [20]byte{}
	i := len(buf)
	neg := n < 0
	if neg {
		n = -n
	}
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
