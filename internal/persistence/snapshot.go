package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SnapshotManager persists periodic state snapshots so a restart can verify
// replay integrity without a full recomputation of the hash chain offline.
type SnapshotManager struct {
	db *sql.DB
}

// SnapshotData is the serialized form of the exchange's in-memory state.
type SnapshotData struct {
	Sequence    uint64            `json:"sequence"`
	StateHash   []byte            `json:"state_hash"`
	Balances    []BalanceSnapshot `json:"balances"`
	Orders      []OrderSnapshot   `json:"orders"`
	NextOrderID uint64            `json:"next_order_id"`
	CreatedAt   time.Time         `json:"created_at"`
}

// BalanceSnapshot is one escrow balance entry.
type BalanceSnapshot struct {
	Asset  string    `json:"asset"`
	Owner  uuid.UUID `json:"owner"`
	Amount uint64    `json:"amount"`
}

// OrderSnapshot is one order with its lifecycle flag.
type OrderSnapshot struct {
	ID         uint64    `json:"id"`
	Maker      uuid.UUID `json:"maker"`
	TokenGet   string    `json:"token_get"`
	AmountGet  uint64    `json:"amount_get"`
	TokenGive  string    `json:"token_give"`
	AmountGive uint64    `json:"amount_give"`
	Timestamp  int64     `json:"timestamp"`
	Status     int32     `json:"status"`
}

func NewSnapshotManager(db *sql.DB) *SnapshotManager {
	return &SnapshotManager{db: db}
}

// SaveSnapshot persists a snapshot to Postgres.
func (sm *SnapshotManager) SaveSnapshot(ctx context.Context, snap *SnapshotData) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	_, err = sm.db.ExecContext(ctx, `
		INSERT INTO event_log.snapshots (sequence, state_hash, data, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (sequence) DO NOTHING
	`, int64(snap.Sequence), snap.StateHash, data, snap.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// LoadLatestSnapshot returns the newest snapshot, or nil when none exists.
func (sm *SnapshotManager) LoadLatestSnapshot(ctx context.Context) (*SnapshotData, error) {
	var data []byte
	err := sm.db.QueryRowContext(ctx, `
		SELECT data FROM event_log.snapshots
		ORDER BY sequence DESC
		LIMIT 1
	`).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query latest snapshot: %w", err)
	}

	var snap SnapshotData
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

// PruneSnapshots deletes all but the newest keep snapshots.
func (sm *SnapshotManager) PruneSnapshots(ctx context.Context, keep int) error {
	_, err := sm.db.ExecContext(ctx, `
		DELETE FROM event_log.snapshots
		WHERE sequence NOT IN (
			SELECT sequence FROM event_log.snapshots
			ORDER BY sequence DESC
			LIMIT $1
		)
	`, keep)
	return err
}
