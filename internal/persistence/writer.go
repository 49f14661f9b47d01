package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"DexLedger/internal/event"
)

// EventLogWriter writes events to Postgres using multi-row batch inserts.
// Inserts are idempotent on sequence, so a replayed flush after a crash is
// harmless.
type EventLogWriter struct {
	db *sql.DB
}

// EventRow represents a row in event_log.events.
type EventRow struct {
	Sequence  int64
	EventType string
	Payload   []byte // JSON-encoded event payload
	StateHash []byte
	PrevHash  []byte
	Timestamp time.Time
}

func NewEventLogWriter(db *sql.DB) *EventLogWriter {
	return &EventLogWriter{db: db}
}

// RowFromEnvelope converts a committed envelope to its durable row form.
func RowFromEnvelope(env event.Envelope) (EventRow, error) {
	payload, err := json.Marshal(env.Event)
	if err != nil {
		return EventRow{}, fmt.Errorf("marshal payload seq %d: %w", env.Sequence, err)
	}

	stateHash := make([]byte, 32)
	copy(stateHash, env.StateHash[:])
	prevHash := make([]byte, 32)
	copy(prevHash, env.PrevHash[:])

	return EventRow{
		Sequence:  int64(env.Sequence),
		EventType: env.Type.String(),
		Payload:   payload,
		StateHash: stateHash,
		PrevHash:  prevHash,
		Timestamp: env.Timestamp,
	}, nil
}

// EnvelopeFromRow reverses RowFromEnvelope, decoding the payload into its
// typed event.
func EnvelopeFromRow(row EventRow) (event.Envelope, error) {
	var evt event.Event
	switch row.EventType {
	case event.TypeDeposit.String():
		evt = &event.Deposit{}
	case event.TypeWithdraw.String():
		evt = &event.Withdraw{}
	case event.TypeOrder.String():
		evt = &event.Order{}
	case event.TypeCancel.String():
		evt = &event.Cancel{}
	case event.TypeTrade.String():
		evt = &event.Trade{}
	default:
		return event.Envelope{}, fmt.Errorf("unknown event type %q at seq %d", row.EventType, row.Sequence)
	}

	if err := json.Unmarshal(row.Payload, evt); err != nil {
		return event.Envelope{}, fmt.Errorf("decode payload seq %d: %w", row.Sequence, err)
	}

	env := event.Envelope{
		Sequence:  uint64(row.Sequence),
		Type:      evt.Type(),
		Timestamp: row.Timestamp,
		Event:     evt,
	}
	copy(env.StateHash[:], row.StateHash)
	copy(env.PrevHash[:], row.PrevHash)
	return env, nil
}

// WriteEventBatch writes a batch of events to event_log.events inside the
// given transaction.
func (w *EventLogWriter) WriteEventBatch(ctx context.Context, tx *sql.Tx, events []EventRow) error {
	if len(events) == 0 {
		return nil
	}

	query := `INSERT INTO event_log.events
		(sequence, event_type, payload, state_hash, prev_hash, timestamp)
		VALUES `

	values := make([]string, 0, len(events))
	args := make([]interface{}, 0, len(events)*6)

	for i, e := range events {
		base := i * 6
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6,
		))
		args = append(args,
			e.Sequence, e.EventType, e.Payload, e.StateHash, e.PrevHash, e.Timestamp,
		)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (sequence) DO NOTHING" // Idempotent writes

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}
