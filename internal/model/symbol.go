package model

// MarketType distinguishes the venue segment a symbol trades on.
type MarketType string

const (
	MarketSpot    MarketType = "spot"
	MarketFutures MarketType = "futures"
)

// Gainer is one entry of a top-gainers list.
type Gainer struct {
	Symbol     string     `json:"symbol"`
	MarketType MarketType `json:"market_type"`
	ChangePct  float64    `json:"change_pct"`
}
