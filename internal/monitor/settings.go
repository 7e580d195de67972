package monitor

import (
	"errors"
	"fmt"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"

	"hama-scanner/internal/model"
)

var (
	// ErrInvalidConfiguration is returned by Configure and New when a setting
	// is out of range. The existing configuration is left untouched.
	ErrInvalidConfiguration = errors.New("monitor: invalid configuration")

	// ErrFetchFailure wraps bar source errors. It is logged, never returned
	// from a tick.
	ErrFetchFailure = errors.New("monitor: bar fetch failed")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Settings are the runtime knobs of a Monitor.
type Settings struct {
	CheckIntervalSeconds     int              `yaml:"check_interval_seconds" json:"check_interval_seconds" default:"60" validate:"min=10"`
	SignalCooldownSeconds    int              `yaml:"signal_cooldown_seconds" json:"signal_cooldown_seconds" default:"3600" validate:"min=0"`
	AutoFetchGainers         bool             `yaml:"auto_fetch_gainers" json:"auto_fetch_gainers"`
	AutoFetchIntervalSeconds int              `yaml:"auto_fetch_interval_seconds" json:"auto_fetch_interval_seconds" default:"3600" validate:"min=60"`
	AutoFetchLimit           int              `yaml:"auto_fetch_limit" json:"auto_fetch_limit" default:"20" validate:"min=1,max=100"`
	AutoFetchMarketType      model.MarketType `yaml:"auto_fetch_market_type" json:"auto_fetch_market_type" default:"spot" validate:"oneof=spot futures"`

	// Bar request shape for every symbol.
	Timeframe string `yaml:"timeframe" json:"timeframe" default:"1h" validate:"required"`
	BarLimit  int    `yaml:"bar_limit" json:"bar_limit" default:"500" validate:"min=1,max=5000"`

	// Workers bounds per-symbol parallelism within one tick.
	Workers int `yaml:"workers" json:"workers" default:"4" validate:"min=1,max=64"`
}

// DefaultSettings returns Settings populated from the struct defaults.
func DefaultSettings() Settings {
	var s Settings
	if err := defaults.Set(&s); err != nil {
		panic(fmt.Sprintf("monitor: bad default tags: %v", err))
	}
	return s
}

// Validate checks every field's range.
func (s Settings) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}
	return nil
}

func (s Settings) checkInterval() time.Duration {
	return time.Duration(s.CheckIntervalSeconds) * time.Second
}

func (s Settings) cooldown() time.Duration {
	return time.Duration(s.SignalCooldownSeconds) * time.Second
}

func (s Settings) autoFetchInterval() time.Duration {
	return time.Duration(s.AutoFetchIntervalSeconds) * time.Second
}
