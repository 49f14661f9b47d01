package persistence_test

import (
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"

	"DexLedger/internal/event"
	"DexLedger/internal/persistence"
)

var (
	user1 = uuid.MustParse("550e8400-e29b-41d4-a716-446655440001")
	user2 = uuid.MustParse("550e8400-e29b-41d4-a716-446655440002")
)

func envelopeFor(seq uint64, evt event.Event) event.Envelope {
	env := event.Envelope{
		Sequence:  seq,
		Type:      evt.Type(),
		Timestamp: time.Unix(1_700_000_000, 0).UTC(),
		Event:     evt,
	}
	for i := range env.StateHash {
		env.StateHash[i] = byte(seq)
		env.PrevHash[i] = byte(seq - 1)
	}
	return env
}

func TestRowCodec_RoundTrip(t *testing.T) {
	payloads := []event.Event{
		&event.Deposit{Asset: "ETH", User: user1, Amount: 500, ResultingBalance: 500},
		&event.Withdraw{Asset: "DAI", User: user1, Amount: 100, ResultingBalance: 400},
		&event.Order{ID: 1, Maker: user1, TokenGet: "DAI", AmountGet: 3000, TokenGive: "ETH", AmountGive: 100, Timestamp: 1700000000},
		&event.Cancel{ID: 1, Maker: user1, TokenGet: "DAI", AmountGet: 3000, TokenGive: "ETH", AmountGive: 100, Timestamp: 1700000001},
		&event.Trade{ID: 1, Filler: user2, Maker: user1, TokenGet: "DAI", AmountGet: 3000, TokenGive: "ETH", AmountGive: 100, Timestamp: 1700000002},
	}

	for i, payload := range payloads {
		env := envelopeFor(uint64(i)+1, payload)

		row, err := persistence.RowFromEnvelope(env)
		if err != nil {
			t.Fatalf("%T: to row: %v", payload, err)
		}
		if row.EventType != env.Type.String() {
			t.Errorf("%T: event type %q, want %q", payload, row.EventType, env.Type.String())
		}

		back, err := persistence.EnvelopeFromRow(row)
		if err != nil {
			t.Fatalf("%T: from row: %v", payload, err)
		}

		if back.Sequence != env.Sequence || back.Type != env.Type {
			t.Errorf("%T: header mismatch: got seq=%d type=%v", payload, back.Sequence, back.Type)
		}
		if back.StateHash != env.StateHash || back.PrevHash != env.PrevHash {
			t.Errorf("%T: hash mismatch after round trip", payload)
		}
		if !back.Timestamp.Equal(env.Timestamp) {
			t.Errorf("%T: timestamp %v, want %v", payload, back.Timestamp, env.Timestamp)
		}
		if !reflect.DeepEqual(back.Event, env.Event) {
			t.Errorf("%T: payload mismatch:\n got %+v\nwant %+v", payload, back.Event, env.Event)
		}
	}
}

func TestEnvelopeFromRow_UnknownType(t *testing.T) {
	row := persistence.EventRow{
		Sequence:  1,
		EventType: "FundingTick",
		Payload:   []byte(`{}`),
	}
	if _, err := persistence.EnvelopeFromRow(row); err == nil {
		t.Fatal("unknown event type must fail")
	}
}
