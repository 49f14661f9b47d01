package projection

import (
	"time"

	"github.com/google/uuid"
)

// Pair is an unordered asset pair with a fixed orientation: Base is token0,
// Quote is token1. Prices are quoted as token1 per token0.
type Pair struct {
	Base  string `json:"base"`
	Quote string `json:"quote"`
}

// Side is the direction of an order or trade relative to the pair's base asset.
type Side int32

const (
	SideBuy Side = iota
	SideSell
)

func (s Side) String() string {
	if s == SideBuy {
		return "buy"
	}
	return "sell"
}

// MarshalJSON renders the side as its string form.
func (s Side) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// Direction classifies a trade's price against the chronologically
// preceding trade: up for the first trade or a price >= the previous one.
type Direction int32

const (
	DirectionUp Direction = iota
	DirectionDown
)

func (d Direction) String() string {
	if d == DirectionUp {
		return "up"
	}
	return "down"
}

// MarshalJSON renders the direction as its string form.
func (d Direction) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// BookOrder is an open order normalized to the pair.
type BookOrder struct {
	ID        uint64    `json:"id"`
	Maker     uuid.UUID `json:"maker"`
	Side      Side      `json:"side"`
	Amount0   uint64    `json:"amount0"` // base asset
	Amount1   uint64    `json:"amount1"` // quote asset
	Price     float64   `json:"price"`   // amount1/amount0, 5 decimals
	Timestamp int64     `json:"timestamp"`
}

// Book is the open order book for a pair, each side sorted descending by
// price with id-ascending tie-break.
type Book struct {
	Buys  []BookOrder `json:"buys"`
	Sells []BookOrder `json:"sells"`
}

// TapeEntry is one trade on the tape.
type TapeEntry struct {
	ID        uint64    `json:"id"`
	Maker     uuid.UUID `json:"maker"`
	Filler    uuid.UUID `json:"filler"`
	Side      Side      `json:"side"` // side of the maker's order
	Amount0   uint64    `json:"amount0"`
	Amount1   uint64    `json:"amount1"`
	Price     float64   `json:"price"`
	Direction Direction `json:"direction"`
	Timestamp int64     `json:"timestamp"`
}

// Candle is one OHLC bucket of the hourly price series.
type Candle struct {
	Start time.Time `json:"start"` // bucket start, UTC
	Open  float64   `json:"open"`
	High  float64   `json:"high"`
	Low   float64   `json:"low"`
	Close float64   `json:"close"`
}

// AccountTrade is a trade annotated relative to one account's role:
// the maker's buy is the filler's sell and vice versa.
type AccountTrade struct {
	ID        uint64  `json:"id"`
	Side      Side    `json:"side"`
	Amount0   uint64  `json:"amount0"`
	Amount1   uint64  `json:"amount1"`
	Price     float64 `json:"price"`
	Timestamp int64   `json:"timestamp"`
}
