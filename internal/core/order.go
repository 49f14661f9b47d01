package core

import (
	"github.com/google/uuid"
)

// OrderStatus is the lifecycle flag of an order. Filled and Cancelled are
// mutually exclusive terminal states; no transition is reversible.
type OrderStatus int32

const (
	OrderOpen OrderStatus = iota
	OrderFilled
	OrderCancelled
)

func (s OrderStatus) String() string {
	switch s {
	case OrderOpen:
		return "open"
	case OrderFilled:
		return "filled"
	case OrderCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Order is a limit order against escrowed balances. All fields except Status
// are fixed at creation.
type Order struct {
	ID         uint64
	Maker      uuid.UUID
	TokenGet   string
	AmountGet  uint64
	TokenGive  string
	AmountGive uint64
	Timestamp  int64 // unix seconds, creation time
	Status     OrderStatus
}
