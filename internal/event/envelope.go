package event

import (
	"time"
)

// Type discriminator for event payloads
type Type int32

const (
	TypeUnknown Type = iota
	TypeDeposit
	TypeWithdraw
	TypeOrder
	TypeCancel
	TypeTrade
)

func (t Type) String() string {
	switch t {
	case TypeDeposit:
		return "Deposit"
	case TypeWithdraw:
		return "Withdraw"
	case TypeOrder:
		return "Order"
	case TypeCancel:
		return "Cancel"
	case TypeTrade:
		return "Trade"
	default:
		return "Unknown"
	}
}

// Envelope wraps every event in the log
type Envelope struct {
	// Global monotonic sequence assigned by the exchange, starting at 1
	Sequence uint64

	// Event type discriminator
	Type Type

	// Commit time of the triggering operation
	Timestamp time.Time

	// Event-specific payload
	Event Event

	// SHA-256 of the balances touched by this event, chained
	StateHash [32]byte

	// Previous event's state hash (chain integrity)
	PrevHash [32]byte
}

// Event is the interface all event payloads implement
type Event interface {
	// Type returns the discriminator
	Type() Type
}
