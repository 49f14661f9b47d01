package query

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"DexLedger/internal/projection"
)

// BalanceResponse is a user's escrowed balance for one asset.
type BalanceResponse struct {
	User         uuid.UUID `json:"user"`
	Asset        string    `json:"asset"`
	Balance      uint64    `json:"balance"`
	AsOfSequence uint64    `json:"as_of_sequence"`
}

// OrderResponse is a single order with its lifecycle status.
type OrderResponse struct {
	ID           uint64    `json:"id"`
	Maker        uuid.UUID `json:"maker"`
	TokenGet     string    `json:"token_get"`
	AmountGet    uint64    `json:"amount_get"`
	TokenGive    string    `json:"token_give"`
	AmountGive   uint64    `json:"amount_give"`
	Timestamp    int64     `json:"timestamp"`
	Status       string    `json:"status"`
	AsOfSequence uint64    `json:"as_of_sequence"`
}

// OrderBookResponse is the open order book for a pair.
type OrderBookResponse struct {
	Pair         projection.Pair `json:"pair"`
	Book         projection.Book `json:"book"`
	AsOfSequence uint64          `json:"as_of_sequence"`
}

// TradesResponse is the trade tape for a pair, newest first.
type TradesResponse struct {
	Pair         projection.Pair        `json:"pair"`
	Trades       []projection.TapeEntry `json:"trades"`
	AsOfSequence uint64                 `json:"as_of_sequence"`
}

// CandlesResponse is the hourly OHLC series for a pair.
type CandlesResponse struct {
	Pair         projection.Pair     `json:"pair"`
	Candles      []projection.Candle `json:"candles"`
	AsOfSequence uint64              `json:"as_of_sequence"`
}

// AccountOrdersResponse is one account's open orders on a pair.
type AccountOrdersResponse struct {
	Pair         projection.Pair        `json:"pair"`
	Account      uuid.UUID              `json:"account"`
	Orders       []projection.BookOrder `json:"orders"`
	AsOfSequence uint64                 `json:"as_of_sequence"`
}

// AccountTradesResponse is one account's trade history on a pair.
type AccountTradesResponse struct {
	Pair         projection.Pair           `json:"pair"`
	Account      uuid.UUID                 `json:"account"`
	Trades       []projection.AccountTrade `json:"trades"`
	AsOfSequence uint64                    `json:"as_of_sequence"`
}

// EventRecord is one persisted event as stored in the durable log.
type EventRecord struct {
	Sequence  uint64          `json:"sequence"`
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
	StateHash []byte          `json:"state_hash"`
	PrevHash  []byte          `json:"prev_hash"`
	Timestamp time.Time       `json:"timestamp"`
}

// EventHistoryResponse is a page of the durable event log.
type EventHistoryResponse struct {
	Events     []EventRecord `json:"events"`
	NextCursor uint64        `json:"next_cursor"`
}

// LedgerInfoResponse summarizes the ledger's configuration and head state.
type LedgerInfoResponse struct {
	Sequence     uint64    `json:"sequence"`
	StateHash    []byte    `json:"state_hash"`
	OrderCount   uint64    `json:"order_count"`
	FeePercent   uint64    `json:"fee_percent"`
	FeeRecipient uuid.UUID `json:"fee_recipient"`
	Assets       []string  `json:"assets"`
}
