package core_test

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"DexLedger/internal/asset"
	"DexLedger/internal/core"
	"DexLedger/internal/event"
)

// newBareExchange builds an exchange with the same config as newTestExchange
// but no minted balances: rebuild applies events verbatim, so the token
// books play no part.
func newBareExchange(t *testing.T, feePercent uint64) (*core.Exchange, *asset.Registry) {
	t.Helper()

	registry := asset.NewRegistry()
	registry.Register(asset.NewToken("ETH", 18))
	registry.Register(asset.NewToken("DAI", 18))

	ex, err := core.NewExchange(core.Config{
		FeeRecipient: fees,
		FeePercent:   feePercent,
		Clock:        func() time.Time { return time.Unix(1_700_000_000, 0) },
	}, registry, event.NewLog(), nil, nil, nil)
	if err != nil {
		t.Fatalf("new exchange: %v", err)
	}
	return ex, registry
}

// runScenario drives a deposit/order/fill/cancel/withdraw sequence.
func runScenario(t *testing.T, te *testExchange) {
	t.Helper()
	mustDeposit(t, te.ex, "ETH", alice, 100)
	mustDeposit(t, te.ex, "DAI", bob, 6060)
	id1 := mustMakeOrder(t, te.ex, "DAI", 3000, "ETH", 100, alice)
	id2 := mustMakeOrder(t, te.ex, "ETH", 100, "DAI", 3000, bob)
	if err := te.ex.FillOrder(id1, bob); err != nil {
		t.Fatalf("fill: %v", err)
	}
	if err := te.ex.CancelOrder(id2, bob); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := te.ex.Withdraw("DAI", alice, 1000); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
}

func TestRebuildFromLog_Equivalence(t *testing.T) {
	te := newTestExchange(t, 1)
	runScenario(t, te)

	rebuilt, _ := newBareExchange(t, 1)
	if err := rebuilt.RebuildFromLog(te.ex.Events()); err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	if rebuilt.Sequence() != te.ex.Sequence() {
		t.Errorf("sequence = %d, want %d", rebuilt.Sequence(), te.ex.Sequence())
	}
	if rebuilt.StateHash() != te.ex.StateHash() {
		t.Error("rebuilt state hash differs from live state hash")
	}
	if rebuilt.OrderCount() != te.ex.OrderCount() {
		t.Errorf("order count = %d, want %d", rebuilt.OrderCount(), te.ex.OrderCount())
	}

	for _, sym := range []string{"ETH", "DAI"} {
		if got, want := rebuilt.BalanceOf(sym, alice), te.ex.BalanceOf(sym, alice); got != want {
			t.Errorf("alice %s = %d, want %d", sym, got, want)
		}
		if got, want := rebuilt.BalanceOf(sym, bob), te.ex.BalanceOf(sym, bob); got != want {
			t.Errorf("bob %s = %d, want %d", sym, got, want)
		}
		if got, want := rebuilt.BalanceOf(sym, fees), te.ex.BalanceOf(sym, fees); got != want {
			t.Errorf("fees %s = %d, want %d", sym, got, want)
		}
	}

	if !rebuilt.IsOrderFilled(1) {
		t.Error("order 1 should be filled after rebuild")
	}
	if !rebuilt.IsOrderCancelled(2) {
		t.Error("order 2 should be cancelled after rebuild")
	}
}

func TestRebuildFromLog_ContinuesChain(t *testing.T) {
	te := newTestExchange(t, 1)
	mustDeposit(t, te.ex, "ETH", alice, 100)

	rebuilt, reg := newBareExchange(t, 1)
	if err := rebuilt.RebuildFromLog(te.ex.Events()); err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	// Back custody with what the rebuilt escrow records, the way recovery
	// does, so outward transfers work.
	tok, _ := reg.Get("ETH")
	total, err := rebuilt.EscrowTotal("ETH")
	if err != nil {
		t.Fatalf("escrow total: %v", err)
	}
	tok.Mint(rebuilt.CustodyAccount(), total)

	// The same next operation on both instances yields the same hash.
	if err := te.ex.Withdraw("ETH", alice, 40); err != nil {
		t.Fatalf("withdraw live: %v", err)
	}
	if err := rebuilt.Withdraw("ETH", alice, 40); err != nil {
		t.Fatalf("withdraw rebuilt: %v", err)
	}
	if rebuilt.StateHash() != te.ex.StateHash() {
		t.Error("hash chains diverged after identical operation")
	}
}

func TestRebuildFromLog_DetectsSequenceGap(t *testing.T) {
	te := newTestExchange(t, 1)
	mustDeposit(t, te.ex, "ETH", alice, 100)
	mustDeposit(t, te.ex, "ETH", bob, 100)

	envs := te.ex.Events()
	envs = []event.Envelope{envs[0], envs[1]}
	envs[1].Sequence = 5

	rebuilt, _ := newBareExchange(t, 1)
	err := rebuilt.RebuildFromLog(envs)
	if err == nil || !strings.Contains(err.Error(), "sequence gap") {
		t.Errorf("got %v, want sequence gap error", err)
	}
}

func TestRebuildFromLog_DetectsHashMismatch(t *testing.T) {
	te := newTestExchange(t, 1)
	mustDeposit(t, te.ex, "ETH", alice, 100)

	envs := te.ex.Events()
	envs[0].StateHash[0] ^= 0xff

	rebuilt, _ := newBareExchange(t, 1)
	err := rebuilt.RebuildFromLog(envs)
	if err == nil || !strings.Contains(err.Error(), "state hash mismatch") {
		t.Errorf("got %v, want state hash mismatch error", err)
	}
}

func TestSnapshot_RoundTrip(t *testing.T) {
	te := newTestExchange(t, 1)
	runScenario(t, te)

	snap := te.ex.CreateSnapshotState()
	if snap.Sequence != te.ex.Sequence() {
		t.Errorf("snapshot sequence = %d, want %d", snap.Sequence, te.ex.Sequence())
	}
	if snap.StateHash != te.ex.StateHash() {
		t.Error("snapshot hash differs from live hash")
	}

	restored, _ := newBareExchange(t, 1)
	restored.RestoreFromSnapshot(snap)

	if restored.Sequence() != te.ex.Sequence() {
		t.Errorf("restored sequence = %d, want %d", restored.Sequence(), te.ex.Sequence())
	}
	if restored.StateHash() != te.ex.StateHash() {
		t.Error("restored hash differs from live hash")
	}
	for _, sym := range []string{"ETH", "DAI"} {
		if got, want := restored.BalanceOf(sym, alice), te.ex.BalanceOf(sym, alice); got != want {
			t.Errorf("alice %s = %d, want %d", sym, got, want)
		}
	}
	if !restored.IsOrderFilled(1) || !restored.IsOrderCancelled(2) {
		t.Error("order statuses lost in snapshot round trip")
	}
	if restored.OrderCount() != te.ex.OrderCount() {
		t.Errorf("order count = %d, want %d", restored.OrderCount(), te.ex.OrderCount())
	}
}

// rawEnvelope builds an envelope with zero hashes, which skip the chain
// verification during rebuild.
func rawEnvelope(seq uint64, evt event.Event) event.Envelope {
	return event.Envelope{
		Sequence:  seq,
		Type:      evt.Type(),
		Timestamp: time.Unix(1_700_000_000, 0),
		Event:     evt,
	}
}

func TestRebuildFromLog_RejectsOverflowingTrade(t *testing.T) {
	// A trade whose amountGet plus fee wraps uint64 must abort the rebuild
	// instead of silently minting escrow units.
	rebuilt, _ := newBareExchange(t, 10)

	huge := uint64(math.MaxUint64 - 15)
	envs := []event.Envelope{
		rawEnvelope(1, &event.Deposit{Asset: "ETH", User: alice, Amount: 100, ResultingBalance: 100}),
		rawEnvelope(2, &event.Order{ID: 1, Maker: alice, TokenGet: "DAI", AmountGet: huge, TokenGive: "ETH", AmountGive: 100, Timestamp: 1_700_000_000}),
		rawEnvelope(3, &event.Trade{ID: 1, Filler: bob, TokenGet: "DAI", AmountGet: huge, TokenGive: "ETH", AmountGive: 100, Maker: alice, Timestamp: 1_700_000_000}),
	}

	err := rebuilt.RebuildFromLog(envs)
	if err == nil || !strings.Contains(err.Error(), "overflow") {
		t.Fatalf("got %v, want settlement overflow error", err)
	}
}

func TestFillOrder_RejectsCreditOverflow(t *testing.T) {
	// The maker's DAI balance sits close enough to the ceiling that being
	// credited the order's proceeds would wrap.
	rebuilt, _ := newBareExchange(t, 1)
	envs := []event.Envelope{
		rawEnvelope(1, &event.Deposit{Asset: "DAI", User: alice, Amount: math.MaxUint64 - 400, ResultingBalance: math.MaxUint64 - 400}),
		rawEnvelope(2, &event.Deposit{Asset: "ETH", User: alice, Amount: 100, ResultingBalance: 100}),
		rawEnvelope(3, &event.Deposit{Asset: "DAI", User: bob, Amount: 505, ResultingBalance: 505}),
		rawEnvelope(4, &event.Order{ID: 1, Maker: alice, TokenGet: "DAI", AmountGet: 500, TokenGive: "ETH", AmountGive: 100, Timestamp: 1_700_000_000}),
	}
	if err := rebuilt.RebuildFromLog(envs); err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	err := rebuilt.FillOrder(1, bob)
	if !errors.Is(err, core.ErrAmountOverflow) {
		t.Fatalf("got %v, want ErrAmountOverflow", err)
	}
	// Nothing moved and the order stays open.
	if got := rebuilt.BalanceOf("DAI", bob); got != 505 {
		t.Errorf("filler DAI = %d, want 505", got)
	}
	if got := rebuilt.BalanceOf("ETH", alice); got != 100 {
		t.Errorf("maker ETH = %d, want 100", got)
	}
	if rebuilt.IsOrderFilled(1) {
		t.Error("order must stay open")
	}
}
