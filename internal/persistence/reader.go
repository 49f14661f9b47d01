package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"DexLedger/internal/event"
)

// Reader loads the durable event log for startup replay and history queries.
type Reader struct {
	db *sql.DB
}

func NewReader(db *sql.DB) *Reader {
	return &Reader{db: db}
}

// LoadEvents returns all events with sequence > cursor, in order.
func (r *Reader) LoadEvents(ctx context.Context, cursor uint64) ([]event.Envelope, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT sequence, event_type, payload, state_hash, prev_hash, timestamp
		FROM event_log.events
		WHERE sequence > $1
		ORDER BY sequence ASC
	`, int64(cursor))
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var envs []event.Envelope
	for rows.Next() {
		var row EventRow
		if err := rows.Scan(
			&row.Sequence, &row.EventType, &row.Payload,
			&row.StateHash, &row.PrevHash, &row.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}

		env, err := EnvelopeFromRow(row)
		if err != nil {
			return nil, err
		}
		envs = append(envs, env)
	}
	return envs, rows.Err()
}

// LastSequence returns the highest durably written sequence, 0 when empty.
func (r *Reader) LastSequence(ctx context.Context) (uint64, error) {
	var seq sql.NullInt64
	err := r.db.QueryRowContext(ctx,
		`SELECT MAX(sequence) FROM event_log.events`,
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("query last sequence: %w", err)
	}
	if !seq.Valid {
		return 0, nil
	}
	return uint64(seq.Int64), nil
}
