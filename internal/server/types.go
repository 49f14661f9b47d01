package server

import "github.com/google/uuid"

// FundingRequest moves escrow in or out for one user and asset.
type FundingRequest struct {
	Asset  string    `json:"asset"`
	User   uuid.UUID `json:"user"`
	Amount uint64    `json:"amount"`
}

// FundingResponse reports the resulting escrow balance.
type FundingResponse struct {
	Asset   string    `json:"asset"`
	User    uuid.UUID `json:"user"`
	Balance uint64    `json:"balance"`
}

// MakeOrderRequest places a limit order.
type MakeOrderRequest struct {
	TokenGet   string    `json:"token_get"`
	AmountGet  uint64    `json:"amount_get"`
	TokenGive  string    `json:"token_give"`
	AmountGive uint64    `json:"amount_give"`
	Maker      uuid.UUID `json:"maker"`
}

// OrderActionRequest cancels or fills an existing order. Caller is the
// maker for cancels and the filler for fills.
type OrderActionRequest struct {
	Caller uuid.UUID `json:"caller"`
}

// OrderActionResponse reports the order's new status.
type OrderActionResponse struct {
	OrderID uint64 `json:"order_id"`
	Status  string `json:"status"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
