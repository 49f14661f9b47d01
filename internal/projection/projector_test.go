package projection_test

import (
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"

	"DexLedger/internal/event"
	"DexLedger/internal/projection"
)

var (
	alice = uuid.MustParse("550e8400-e29b-41d4-a716-446655440001")
	bob   = uuid.MustParse("550e8400-e29b-41d4-a716-446655440002")

	ethDai = projection.Pair{Base: "ETH", Quote: "DAI"}
)

// --- Envelope builders ---

func orderEnv(seq, id uint64, maker uuid.UUID, tokenGet string, amountGet uint64, tokenGive string, amountGive uint64, ts int64) event.Envelope {
	return event.Envelope{
		Sequence: seq,
		Type:     event.TypeOrder,
		Event: &event.Order{
			ID: id, Maker: maker,
			TokenGet: tokenGet, AmountGet: amountGet,
			TokenGive: tokenGive, AmountGive: amountGive,
			Timestamp: ts,
		},
	}
}

func cancelEnv(seq, id uint64, maker uuid.UUID, ts int64) event.Envelope {
	return event.Envelope{
		Sequence: seq,
		Type:     event.TypeCancel,
		Event:    &event.Cancel{ID: id, Maker: maker, Timestamp: ts},
	}
}

func tradeEnv(seq, id uint64, maker, filler uuid.UUID, tokenGet string, amountGet uint64, tokenGive string, amountGive uint64, ts int64) event.Envelope {
	return event.Envelope{
		Sequence: seq,
		Type:     event.TypeTrade,
		Event: &event.Trade{
			ID: id, Filler: filler, Maker: maker,
			TokenGet: tokenGet, AmountGet: amountGet,
			TokenGive: tokenGive, AmountGive: amountGive,
			Timestamp: ts,
		},
	}
}

// --- OpenOrders ---

func TestOpenOrders_SetDifference(t *testing.T) {
	log := []event.Envelope{
		orderEnv(1, 1, alice, "DAI", 3000, "ETH", 100, 1000),
		orderEnv(2, 2, alice, "DAI", 3100, "ETH", 100, 1001),
		orderEnv(3, 3, bob, "ETH", 100, "DAI", 2900, 1002),
		cancelEnv(4, 2, alice, 1003),
		tradeEnv(5, 3, bob, alice, "ETH", 100, "DAI", 2900, 1004),
	}

	open := projection.OpenOrders(log)
	if len(open) != 1 {
		t.Fatalf("got %d open orders, want 1", len(open))
	}
	if open[0].ID != 1 {
		t.Errorf("open order id = %d, want 1", open[0].ID)
	}
}

// --- OrderBook ---

func TestOrderBook_NormalizationAndSorting(t *testing.T) {
	log := []event.Envelope{
		// Gives ETH (base): sells at 3000/100 = 30.
		orderEnv(1, 1, alice, "DAI", 3000, "ETH", 100, 1000),
		// Wants ETH (base): buys at 2900/100 = 29.
		orderEnv(2, 2, bob, "ETH", 100, "DAI", 2900, 1001),
		// Second buy at the same price: id breaks the tie.
		orderEnv(3, 3, bob, "ETH", 200, "DAI", 5800, 1002),
		// Higher buy sorts first.
		orderEnv(4, 4, bob, "ETH", 100, "DAI", 3100, 1003),
		// Different pair: excluded.
		orderEnv(5, 5, bob, "XRP", 100, "DAI", 50, 1004),
	}

	book := projection.OrderBook(log, ethDai)

	if len(book.Sells) != 1 {
		t.Fatalf("got %d sells, want 1", len(book.Sells))
	}
	s := book.Sells[0]
	if s.Side != projection.SideSell || s.Amount0 != 100 || s.Amount1 != 3000 || s.Price != 30 {
		t.Errorf("sell entry = %+v, want sell 100/3000 at 30", s)
	}

	if len(book.Buys) != 3 {
		t.Fatalf("got %d buys, want 3", len(book.Buys))
	}
	wantIDs := []uint64{4, 2, 3}
	for i, want := range wantIDs {
		if book.Buys[i].ID != want {
			t.Errorf("buys[%d].ID = %d, want %d", i, book.Buys[i].ID, want)
		}
	}
	if book.Buys[0].Price != 31 || book.Buys[1].Price != 29 || book.Buys[2].Price != 29 {
		t.Errorf("buy prices = %v, %v, %v, want 31, 29, 29",
			book.Buys[0].Price, book.Buys[1].Price, book.Buys[2].Price)
	}
}

func TestOrderBook_PriceRounding(t *testing.T) {
	log := []event.Envelope{
		// 1/3 rounds to 0.33333.
		orderEnv(1, 1, alice, "DAI", 1, "ETH", 3, 1000),
		// 2/3 rounds to 0.66667.
		orderEnv(2, 2, alice, "DAI", 2, "ETH", 3, 1001),
	}

	book := projection.OrderBook(log, ethDai)
	if len(book.Sells) != 2 {
		t.Fatalf("got %d sells, want 2", len(book.Sells))
	}
	if book.Sells[0].Price != 0.66667 {
		t.Errorf("price = %v, want 0.66667", book.Sells[0].Price)
	}
	if book.Sells[1].Price != 0.33333 {
		t.Errorf("price = %v, want 0.33333", book.Sells[1].Price)
	}
}

// --- Tape ---

func TestTape_DirectionClassification(t *testing.T) {
	log := []event.Envelope{
		tradeEnv(1, 1, alice, bob, "DAI", 3000, "ETH", 100, 1000), // 30, first: up
		tradeEnv(2, 2, alice, bob, "DAI", 3000, "ETH", 100, 1001), // 30, equal: up
		tradeEnv(3, 3, alice, bob, "DAI", 2500, "ETH", 100, 1002), // 25, lower: down
		tradeEnv(4, 4, alice, bob, "DAI", 2800, "ETH", 100, 1003), // 28, higher: up
	}

	tape := projection.Tape(log, ethDai)
	if len(tape) != 4 {
		t.Fatalf("got %d entries, want 4", len(tape))
	}

	// Newest first.
	wantIDs := []uint64{4, 3, 2, 1}
	wantDirs := []projection.Direction{
		projection.DirectionUp,
		projection.DirectionDown,
		projection.DirectionUp,
		projection.DirectionUp,
	}
	for i := range tape {
		if tape[i].ID != wantIDs[i] {
			t.Errorf("tape[%d].ID = %d, want %d", i, tape[i].ID, wantIDs[i])
		}
		if tape[i].Direction != wantDirs[i] {
			t.Errorf("tape[%d].Direction = %v, want %v", i, tape[i].Direction, wantDirs[i])
		}
	}
}

func TestTape_EmptyForQuietPair(t *testing.T) {
	log := []event.Envelope{
		tradeEnv(1, 1, alice, bob, "XRP", 100, "DAI", 50, 1000),
	}
	if tape := projection.Tape(log, ethDai); tape != nil {
		t.Errorf("got %d entries, want none", len(tape))
	}
}

// --- Candles ---

func TestCandles_HourlyBuckets(t *testing.T) {
	hourA := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC).Unix()
	hourB := time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC).Unix()

	log := []event.Envelope{
		tradeEnv(1, 1, alice, bob, "DAI", 3000, "ETH", 100, hourA+60),  // 30
		tradeEnv(2, 2, alice, bob, "DAI", 2500, "ETH", 100, hourA+120), // 25
		tradeEnv(3, 3, alice, bob, "DAI", 2800, "ETH", 100, hourB+30),  // 28
	}

	candles := projection.Candles(log, ethDai)
	if len(candles) != 2 {
		t.Fatalf("got %d candles, want 2", len(candles))
	}

	a := candles[0]
	if a.Start.Unix() != hourA {
		t.Errorf("bucket start = %v, want hour boundary", a.Start)
	}
	if a.Open != 30 || a.High != 30 || a.Low != 25 || a.Close != 25 {
		t.Errorf("candle A = %+v, want O30 H30 L25 C25", a)
	}

	b := candles[1]
	if b.Start.Unix() != hourB {
		t.Errorf("bucket start = %v, want hour boundary", b.Start)
	}
	if b.Open != 28 || b.High != 28 || b.Low != 28 || b.Close != 28 {
		t.Errorf("candle B = %+v, want flat 28", b)
	}
}

// --- Account views ---

func TestAccountOpenOrders_FilterAndOrder(t *testing.T) {
	log := []event.Envelope{
		orderEnv(1, 1, alice, "DAI", 3000, "ETH", 100, 1000),
		orderEnv(2, 2, bob, "DAI", 3000, "ETH", 100, 1001),
		orderEnv(3, 3, alice, "ETH", 100, "DAI", 2900, 1002),
		cancelEnv(4, 1, alice, 1003),
	}

	mine := projection.AccountOpenOrders(log, ethDai, alice)
	if len(mine) != 1 {
		t.Fatalf("got %d orders, want 1", len(mine))
	}
	if mine[0].ID != 3 || mine[0].Side != projection.SideBuy {
		t.Errorf("entry = %+v, want order 3 buy", mine[0])
	}
}

func TestAccountTrades_RoleRelativeSide(t *testing.T) {
	// Alice's order gives ETH: she sells. Bob fills: he buys.
	log := []event.Envelope{
		tradeEnv(1, 1, alice, bob, "DAI", 3000, "ETH", 100, 1000),
	}

	aliceTrades := projection.AccountTrades(log, ethDai, alice)
	if len(aliceTrades) != 1 || aliceTrades[0].Side != projection.SideSell {
		t.Errorf("alice trades = %+v, want one sell", aliceTrades)
	}

	bobTrades := projection.AccountTrades(log, ethDai, bob)
	if len(bobTrades) != 1 || bobTrades[0].Side != projection.SideBuy {
		t.Errorf("bob trades = %+v, want one buy", bobTrades)
	}

	if other := projection.AccountTrades(log, ethDai, uuid.New()); other != nil {
		t.Errorf("stranger trades = %+v, want none", other)
	}
}

func TestAccountTrades_NewestFirst(t *testing.T) {
	log := []event.Envelope{
		tradeEnv(1, 1, alice, bob, "DAI", 3000, "ETH", 100, 1000),
		tradeEnv(2, 2, alice, bob, "DAI", 2500, "ETH", 100, 1005),
		tradeEnv(3, 3, alice, bob, "DAI", 2800, "ETH", 100, 1001),
	}

	mine := projection.AccountTrades(log, ethDai, alice)
	wantIDs := []uint64{2, 3, 1}
	for i, want := range wantIDs {
		if mine[i].ID != want {
			t.Errorf("trades[%d].ID = %d, want %d", i, mine[i].ID, want)
		}
	}
}

// --- Determinism ---

func TestProjections_Deterministic(t *testing.T) {
	log := []event.Envelope{
		orderEnv(1, 1, alice, "DAI", 3000, "ETH", 100, 1000),
		orderEnv(2, 2, bob, "ETH", 100, "DAI", 2900, 1001),
		tradeEnv(3, 1, alice, bob, "DAI", 3000, "ETH", 100, 1002),
		cancelEnv(4, 2, bob, 1003),
	}

	if !reflect.DeepEqual(projection.OrderBook(log, ethDai), projection.OrderBook(log, ethDai)) {
		t.Error("order book not deterministic")
	}
	if !reflect.DeepEqual(projection.Tape(log, ethDai), projection.Tape(log, ethDai)) {
		t.Error("tape not deterministic")
	}
	if !reflect.DeepEqual(projection.Candles(log, ethDai), projection.Candles(log, ethDai)) {
		t.Error("candles not deterministic")
	}
	if !reflect.DeepEqual(projection.AccountTrades(log, ethDai, alice), projection.AccountTrades(log, ethDai, alice)) {
		t.Error("account trades not deterministic")
	}
}
