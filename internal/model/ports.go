package model

import "context"

// ── Collaborator Port Interfaces ──
// These decouple the scanner core from concrete data providers and delivery
// channels. Implementations live in marketdata, store and notification.

// BarSource supplies bars for a symbol in ascending timestamp order.
type BarSource interface {
	// Fetch returns up to limit most recent bars of the given timeframe.
	// Any failure (network, rate limit, unknown symbol) is returned as error.
	Fetch(ctx context.Context, symbol, timeframe string, limit int) ([]Bar, error)
}

// BarSourceFunc adapts a plain function to BarSource.
type BarSourceFunc func(ctx context.Context, symbol, timeframe string, limit int) ([]Bar, error)

// Fetch calls f.
func (f BarSourceFunc) Fetch(ctx context.Context, symbol, timeframe string, limit int) ([]Bar, error) {
	return f(ctx, symbol, timeframe, limit)
}

// GainersProvider returns the current top gainers for a market type.
type GainersProvider interface {
	TopGainers(ctx context.Context, limit int, marketType MarketType) ([]Gainer, error)
}

// SignalSink receives signals after they are recorded.
type SignalSink interface {
	// Name identifies the sink in logs and metrics.
	Name() string

	// Notify delivers a signal. Errors are logged by the caller, never retried.
	Notify(ctx context.Context, sig Signal) error
}
