package main

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"DexLedger/internal/asset"
	"DexLedger/internal/core"
	"DexLedger/internal/event"
	"DexLedger/internal/observability"
	"DexLedger/internal/persistence"
	"DexLedger/internal/testutil"
)

var testMetrics = observability.NewMetrics()

// A snapshot recorded past the durable log's head means events were lost
// after the snapshot was taken. Recovery must refuse to start rather than
// serve from a truncated history.
func TestRecoverState_RejectsSnapshotBeyondHead(t *testing.T) {
	testutil.RequireIntegration(t)
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	if err := persistence.NewMigrator(db, "../../migrations").Up(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	owner := uuid.MustParse("550e8400-e29b-41d4-a716-446655440001")
	feeRecipient := uuid.MustParse("550e8400-e29b-41d4-a716-4466554400ff")

	newExchange := func() (*core.Exchange, *asset.Registry) {
		eth := asset.NewToken("ETH", 18)
		registry := asset.NewRegistry()
		registry.Register(eth)
		ex, err := core.NewExchange(core.Config{
			FeeRecipient: feeRecipient,
			FeePercent:   1,
			Clock:        func() time.Time { return time.Unix(1_700_000_000, 0) },
		}, registry, event.NewLog(), nil, nil, nil)
		if err != nil {
			t.Fatalf("new exchange: %v", err)
		}
		return ex, registry
	}

	scratch, registry := newExchange()
	eth, _ := registry.Get("ETH")
	eth.Mint(owner, 100)
	eth.Approve(owner, scratch.CustodyAccount(), 100)
	if err := scratch.Deposit("ETH", owner, 100); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	rows := make([]persistence.EventRow, 0, 1)
	for _, env := range scratch.Events() {
		row, err := persistence.RowFromEnvelope(env)
		if err != nil {
			t.Fatalf("row from envelope: %v", err)
		}
		rows = append(rows, row)
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin tx: %v", err)
	}
	if err := persistence.NewEventLogWriter(db).WriteEventBatch(ctx, tx, rows); err != nil {
		t.Fatalf("write batch: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	hash := scratch.StateHash()
	snap := &persistence.SnapshotData{
		Sequence:  999,
		StateHash: hash[:],
		CreatedAt: time.Unix(1_700_000_000, 0).UTC(),
	}
	if err := persistence.NewSnapshotManager(db).SaveSnapshot(ctx, snap); err != nil {
		t.Fatalf("save snapshot: %v", err)
	}

	ex, registry := newExchange()
	logger := observability.NewLogger("test")
	err = recoverState(ctx, db, ex, registry, testMetrics, logger)
	if err == nil {
		t.Fatal("recovery accepted a snapshot beyond the log head")
	}
	if !strings.Contains(err.Error(), "event log is truncated") {
		t.Errorf("error = %v, want truncated-log failure", err)
	}
}
