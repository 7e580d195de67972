package model

import (
	"encoding/json"
	"time"
)

// Direction is the side of a crossover. DirectionNone means no cross.
type Direction string

const (
	DirectionNone Direction = "NONE"
	DirectionUp   Direction = "UP"
	DirectionDown Direction = "DOWN"
)

// Opposite returns the mirrored direction.
func (d Direction) Opposite() Direction {
	switch d {
	case DirectionUp:
		return DirectionDown
	case DirectionDown:
		return DirectionUp
	default:
		return DirectionNone
	}
}

// Signal is an emitted crossover event. Never mutated after creation.
type Signal struct {
	ID          string     `json:"id"`
	Symbol      string     `json:"symbol"`
	MarketType  MarketType `json:"market_type"`
	Direction   Direction  `json:"direction"`
	Price       float64    `json:"price"`        // raw close of the crossing bar
	CandleClose float64    `json:"candle_close"` // smoothed candle close
	MAValue     float64    `json:"ma_value"`
	Timestamp   time.Time  `json:"timestamp"` // time of the crossing bar
	Description string     `json:"description"`
}

// JSON returns the JSON-encoded signal.
func (s *Signal) JSON() []byte {
	b, _ := json.Marshal(s)
	return b
}
