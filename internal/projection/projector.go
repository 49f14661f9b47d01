package projection

import (
	"math"
	"sort"
	"time"

	"DexLedger/internal/event"

	"github.com/google/uuid"
)

// The projector derives every read model purely from the event log. It
// trusts nothing but the log: an order is open iff its id appears in an
// Order event and in neither a Cancel nor a Trade event. Given the same log
// contents it always produces identical output.

const pricePrecision = 100000

// roundPrice rounds amount1/amount0 to 5 decimal digits, half away from zero.
func roundPrice(amount1, amount0 uint64) float64 {
	return math.Round(float64(amount1)/float64(amount0)*pricePrecision) / pricePrecision
}

// normalize orients an order's terms to the pair: token0 is the base asset.
// An order giving token0 sells the base; an order wanting it buys.
func normalize(pair Pair, tokenGet string, amountGet uint64, tokenGive string, amountGive uint64) (side Side, amount0, amount1 uint64) {
	if tokenGive == pair.Base {
		return SideSell, amountGive, amountGet
	}
	return SideBuy, amountGet, amountGive
}

func matchesPair(pair Pair, tokenGet, tokenGive string) bool {
	return (tokenGet == pair.Base && tokenGive == pair.Quote) ||
		(tokenGet == pair.Quote && tokenGive == pair.Base)
}

// OpenOrders returns, in log order, every Order event whose id appears in
// neither a Cancel nor a Trade event.
func OpenOrders(envs []event.Envelope) []event.Order {
	closed := make(map[uint64]bool)
	for _, env := range envs {
		switch evt := env.Event.(type) {
		case *event.Cancel:
			closed[evt.ID] = true
		case *event.Trade:
			closed[evt.ID] = true
		}
	}

	var open []event.Order
	for _, env := range envs {
		if evt, ok := env.Event.(*event.Order); ok && !closed[evt.ID] {
			open = append(open, *evt)
		}
	}
	return open
}

// OrderBook derives the open order book for a pair. Each side is sorted
// descending by price; ties break by order id ascending for determinism.
func OrderBook(envs []event.Envelope, pair Pair) Book {
	var book Book

	for _, o := range OpenOrders(envs) {
		if !matchesPair(pair, o.TokenGet, o.TokenGive) {
			continue
		}

		side, a0, a1 := normalize(pair, o.TokenGet, o.AmountGet, o.TokenGive, o.AmountGive)
		entry := BookOrder{
			ID:        o.ID,
			Maker:     o.Maker,
			Side:      side,
			Amount0:   a0,
			Amount1:   a1,
			Price:     roundPrice(a1, a0),
			Timestamp: o.Timestamp,
		}

		if side == SideBuy {
			book.Buys = append(book.Buys, entry)
		} else {
			book.Sells = append(book.Sells, entry)
		}
	}

	sortBookSide(book.Buys)
	sortBookSide(book.Sells)
	return book
}

func sortBookSide(side []BookOrder) {
	sort.Slice(side, func(i, j int) bool {
		if side[i].Price != side[j].Price {
			return side[i].Price > side[j].Price
		}
		return side[i].ID < side[j].ID
	})
}

// tradesAscending collects a pair's trades in chronological order
// (timestamp ascending, order id ascending on ties).
func tradesAscending(envs []event.Envelope, pair Pair) []event.Trade {
	var trades []event.Trade
	for _, env := range envs {
		if evt, ok := env.Event.(*event.Trade); ok && matchesPair(pair, evt.TokenGet, evt.TokenGive) {
			trades = append(trades, *evt)
		}
	}

	sort.Slice(trades, func(i, j int) bool {
		if trades[i].Timestamp != trades[j].Timestamp {
			return trades[i].Timestamp < trades[j].Timestamp
		}
		return trades[i].ID < trades[j].ID
	})
	return trades
}

// Tape derives the trade tape for a pair, newest first. Each entry carries
// an uptick/downtick direction against the chronologically preceding trade;
// the first observation is always up.
func Tape(envs []event.Envelope, pair Pair) []TapeEntry {
	trades := tradesAscending(envs, pair)
	if len(trades) == 0 {
		return nil
	}

	entries := make([]TapeEntry, 0, len(trades))
	prevPrice := 0.0

	for i, t := range trades {
		side, a0, a1 := normalize(pair, t.TokenGet, t.AmountGet, t.TokenGive, t.AmountGive)
		price := roundPrice(a1, a0)

		dir := DirectionUp
		if i > 0 && price < prevPrice {
			dir = DirectionDown
		}
		prevPrice = price

		entries = append(entries, TapeEntry{
			ID:        t.ID,
			Maker:     t.Maker,
			Filler:    t.Filler,
			Side:      side,
			Amount0:   a0,
			Amount1:   a1,
			Price:     price,
			Direction: dir,
			Timestamp: t.Timestamp,
		})
	}

	// Classification runs oldest-first; display is newest-first.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries
}

// Candles derives the hourly OHLC series for a pair, buckets ascending by
// start time. Bucket boundaries floor the trade timestamp to the UTC hour.
func Candles(envs []event.Envelope, pair Pair) []Candle {
	trades := tradesAscending(envs, pair)
	if len(trades) == 0 {
		return nil
	}

	type bucket struct {
		start  time.Time
		prices []float64
	}

	byHour := make(map[int64]*bucket)
	var starts []int64

	for _, t := range trades {
		_, a0, a1 := normalize(pair, t.TokenGet, t.AmountGet, t.TokenGive, t.AmountGive)
		price := roundPrice(a1, a0)

		start := time.Unix(t.Timestamp, 0).UTC().Truncate(time.Hour)
		key := start.Unix()
		b, ok := byHour[key]
		if !ok {
			b = &bucket{start: start}
			byHour[key] = b
			starts = append(starts, key)
		}
		b.prices = append(b.prices, price)
	}

	sort.Slice(starts, func(i, j int) bool { return starts[i] < starts[j] })

	candles := make([]Candle, 0, len(starts))
	for _, key := range starts {
		b := byHour[key]

		c := Candle{
			Start: b.start,
			Open:  b.prices[0],
			High:  b.prices[0],
			Low:   b.prices[0],
			Close: b.prices[len(b.prices)-1],
		}
		for _, p := range b.prices {
			if p > c.High {
				c.High = p
			}
			if p < c.Low {
				c.Low = p
			}
		}
		candles = append(candles, c)
	}
	return candles
}

// AccountOpenOrders returns the account's open orders on the pair,
// annotated buy/sell and sorted newest first.
func AccountOpenOrders(envs []event.Envelope, pair Pair, account uuid.UUID) []BookOrder {
	var mine []BookOrder
	for _, o := range OpenOrders(envs) {
		if o.Maker != account || !matchesPair(pair, o.TokenGet, o.TokenGive) {
			continue
		}

		side, a0, a1 := normalize(pair, o.TokenGet, o.AmountGet, o.TokenGive, o.AmountGive)
		mine = append(mine, BookOrder{
			ID:        o.ID,
			Maker:     o.Maker,
			Side:      side,
			Amount0:   a0,
			Amount1:   a1,
			Price:     roundPrice(a1, a0),
			Timestamp: o.Timestamp,
		})
	}

	sort.Slice(mine, func(i, j int) bool {
		if mine[i].Timestamp != mine[j].Timestamp {
			return mine[i].Timestamp > mine[j].Timestamp
		}
		return mine[i].ID > mine[j].ID
	})
	return mine
}

// AccountTrades returns trades where the account took either role, with the
// side expressed relative to that account: the maker's buy is the filler's
// sell and vice versa. Sorted newest first.
func AccountTrades(envs []event.Envelope, pair Pair, account uuid.UUID) []AccountTrade {
	var mine []AccountTrade
	for _, t := range tradesAscending(envs, pair) {
		if t.Maker != account && t.Filler != account {
			continue
		}

		makerSide, a0, a1 := normalize(pair, t.TokenGet, t.AmountGet, t.TokenGive, t.AmountGive)

		side := makerSide
		if t.Filler == account && t.Maker != account {
			if makerSide == SideBuy {
				side = SideSell
			} else {
				side = SideBuy
			}
		}

		mine = append(mine, AccountTrade{
			ID:        t.ID,
			Side:      side,
			Amount0:   a0,
			Amount1:   a1,
			Price:     roundPrice(a1, a0),
			Timestamp: t.Timestamp,
		})
	}

	sort.Slice(mine, func(i, j int) bool {
		if mine[i].Timestamp != mine[j].Timestamp {
			return mine[i].Timestamp > mine[j].Timestamp
		}
		return mine[i].ID > mine[j].ID
	})
	return mine
}
