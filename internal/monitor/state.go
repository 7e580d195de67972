package monitor

import (
	"time"

	"hama-scanner/internal/indicator"
	"hama-scanner/internal/model"
)

// SymbolState is the per-symbol record kept by the monitor. Values returned
// from the monitor are copies.
type SymbolState struct {
	Symbol         string              `json:"symbol"`
	MarketType     model.MarketType    `json:"market_type"`
	AddedAt        time.Time           `json:"added_at"`
	LastCheckAt    time.Time           `json:"last_check_at"`
	LastSignalType model.Direction     `json:"last_signal_type"`
	LastSignalAt   time.Time           `json:"last_signal_at"`
	LastSnapshot   *indicator.Snapshot `json:"last_snapshot,omitempty"`
}

// inCooldown reports whether a signal was emitted less than d before now.
func (s *SymbolState) inCooldown(now time.Time, d time.Duration) bool {
	if s.LastSignalAt.IsZero() {
		return false
	}
	return now.Sub(s.LastSignalAt) < d
}

// entry pairs a state with the generation it was created in. A re-added
// symbol gets a new generation, so results computed for the old one are
// discarded.
type entry struct {
	state SymbolState
	gen   uint64
}

// Status is a point-in-time view of the monitor.
type Status struct {
	Running        bool          `json:"running"`
	SymbolCount    int           `json:"symbol_count"`
	TotalSignals   int           `json:"total_signals"`
	CheckInterval  time.Duration `json:"check_interval"`
	SignalCooldown time.Duration `json:"signal_cooldown"`

	AutoFetchGainers bool      `json:"auto_fetch_gainers"`
	LastScanAt       time.Time `json:"last_scan_at"`
	LastAutoFetchAt  time.Time `json:"last_auto_fetch_at"`
}

// ScanResult summarises one tick.
type ScanResult struct {
	Checked      int           `json:"checked"`
	Cooldown     int           `json:"cooldown"`
	FetchFailed  int           `json:"fetch_failed"`
	Insufficient int           `json:"insufficient"`
	Failed       int           `json:"failed"`
	Discarded    int           `json:"discarded"`
	Signals      int           `json:"signals"`
	AutoAdded    int           `json:"auto_added"`
	Duration     time.Duration `json:"duration"`
}
