package event

import "github.com/google/uuid"

// Deposit records a successful transfer of custody into the ledger.
type Deposit struct {
	Asset            string    `json:"asset"`
	User             uuid.UUID `json:"user"`
	Amount           uint64    `json:"amount"`
	ResultingBalance uint64    `json:"resulting_balance"`
}

func (d *Deposit) Type() Type { return TypeDeposit }

// Withdraw records a successful transfer of custody out of the ledger.
type Withdraw struct {
	Asset            string    `json:"asset"`
	User             uuid.UUID `json:"user"`
	Amount           uint64    `json:"amount"`
	ResultingBalance uint64    `json:"resulting_balance"`
}

func (w *Withdraw) Type() Type { return TypeWithdraw }

// Order records the creation of an open limit order.
type Order struct {
	ID         uint64    `json:"id"`
	Maker      uuid.UUID `json:"maker"`
	TokenGet   string    `json:"token_get"`
	AmountGet  uint64    `json:"amount_get"`
	TokenGive  string    `json:"token_give"`
	AmountGive uint64    `json:"amount_give"`
	Timestamp  int64     `json:"timestamp"` // unix seconds, order creation time
}

func (o *Order) Type() Type { return TypeOrder }

// Cancel records the maker cancelling one of their open orders.
// Field layout matches Order; Timestamp is the cancellation time.
type Cancel struct {
	ID         uint64    `json:"id"`
	Maker      uuid.UUID `json:"maker"`
	TokenGet   string    `json:"token_get"`
	AmountGet  uint64    `json:"amount_get"`
	TokenGive  string    `json:"token_give"`
	AmountGive uint64    `json:"amount_give"`
	Timestamp  int64     `json:"timestamp"`
}

func (c *Cancel) Type() Type { return TypeCancel }

// Trade records an open order being filled by a counterparty.
// Filler is the taker paying AmountGet (+fee) of TokenGet; Maker is the
// order's creator. Timestamp is the fill time.
type Trade struct {
	ID         uint64    `json:"id"`
	Filler     uuid.UUID `json:"filler"`
	TokenGet   string    `json:"token_get"`
	AmountGet  uint64    `json:"amount_get"`
	TokenGive  string    `json:"token_give"`
	AmountGive uint64    `json:"amount_give"`
	Maker      uuid.UUID `json:"maker"`
	Timestamp  int64     `json:"timestamp"`
}

func (t *Trade) Type() Type { return TypeTrade }
