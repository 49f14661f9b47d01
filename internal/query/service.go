package query

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"DexLedger/internal/core"
	"DexLedger/internal/event"
	"DexLedger/internal/observability"
	"DexLedger/internal/projection"
)

// asOf is the sequence of the last event in a log snapshot.
func asOf(envs []event.Envelope) uint64 {
	if len(envs) == 0 {
		return 0
	}
	return envs[len(envs)-1].Sequence
}

// ErrOrderNotFound is returned when an order id has never been assigned.
var ErrOrderNotFound = errors.New("order not found")

// Service answers read-only queries. Live state and projections come from
// the in-memory exchange; event history is paged out of PostgreSQL so a
// reader never forces the full log through one response. All responses carry
// as_of_sequence for freshness semantics.
type Service struct {
	ex      *core.Exchange
	db      *sql.DB
	metrics *observability.Metrics
	logger  zerolog.Logger
}

func NewService(ex *core.Exchange, db *sql.DB, metrics *observability.Metrics) *Service {
	return &Service{
		ex:      ex,
		db:      db,
		metrics: metrics,
		logger:  observability.NewLogger("query"),
	}
}

// GetInfo returns the ledger's configuration and head state.
func (s *Service) GetInfo() LedgerInfoResponse {
	defer s.timeQuery("info")()
	hash := s.ex.StateHash()
	return LedgerInfoResponse{
		Sequence:     s.ex.Sequence(),
		StateHash:    hash[:],
		OrderCount:   s.ex.OrderCount(),
		FeePercent:   s.ex.FeePercent(),
		FeeRecipient: s.ex.FeeRecipient(),
		Assets:       s.ex.AssetSymbols(),
	}
}

// GetBalance returns a user's escrowed balance for one asset.
func (s *Service) GetBalance(user uuid.UUID, asset string) BalanceResponse {
	defer s.timeQuery("balance")()
	return BalanceResponse{
		User:         user,
		Asset:        asset,
		Balance:      s.ex.BalanceOf(asset, user),
		AsOfSequence: s.ex.Sequence(),
	}
}

// GetOrder returns one order with its lifecycle status.
func (s *Service) GetOrder(orderID uint64) (OrderResponse, error) {
	defer s.timeQuery("order")()
	order, ok := s.ex.GetOrder(orderID)
	if !ok {
		return OrderResponse{}, ErrOrderNotFound
	}
	return OrderResponse{
		ID:           order.ID,
		Maker:        order.Maker,
		TokenGet:     order.TokenGet,
		AmountGet:    order.AmountGet,
		TokenGive:    order.TokenGive,
		AmountGive:   order.AmountGive,
		Timestamp:    order.Timestamp,
		Status:       order.Status.String(),
		AsOfSequence: s.ex.Sequence(),
	}, nil
}

// GetOrderBook returns the open order book for a pair.
func (s *Service) GetOrderBook(pair projection.Pair) OrderBookResponse {
	defer s.timeQuery("order_book")()
	envs := s.ex.Events()
	return OrderBookResponse{
		Pair:         pair,
		Book:         projection.OrderBook(envs, pair),
		AsOfSequence: asOf(envs),
	}
}

// GetTrades returns the trade tape for a pair, newest first.
func (s *Service) GetTrades(pair projection.Pair) TradesResponse {
	defer s.timeQuery("trades")()
	envs := s.ex.Events()
	return TradesResponse{
		Pair:         pair,
		Trades:       projection.Tape(envs, pair),
		AsOfSequence: asOf(envs),
	}
}

// GetCandles returns the hourly OHLC series for a pair.
func (s *Service) GetCandles(pair projection.Pair) CandlesResponse {
	defer s.timeQuery("candles")()
	envs := s.ex.Events()
	return CandlesResponse{
		Pair:         pair,
		Candles:      projection.Candles(envs, pair),
		AsOfSequence: asOf(envs),
	}
}

// GetAccountOrders returns one account's open orders on a pair, newest first.
func (s *Service) GetAccountOrders(pair projection.Pair, account uuid.UUID) AccountOrdersResponse {
	defer s.timeQuery("account_orders")()
	envs := s.ex.Events()
	return AccountOrdersResponse{
		Pair:         pair,
		Account:      account,
		Orders:       projection.AccountOpenOrders(envs, pair, account),
		AsOfSequence: asOf(envs),
	}
}

// GetAccountTrades returns one account's trade history on a pair, newest first.
func (s *Service) GetAccountTrades(pair projection.Pair, account uuid.UUID) AccountTradesResponse {
	defer s.timeQuery("account_trades")()
	envs := s.ex.Events()
	return AccountTradesResponse{
		Pair:         pair,
		Account:      account,
		Trades:       projection.AccountTrades(envs, pair, account),
		AsOfSequence: asOf(envs),
	}
}

// GetEventHistory pages the durable event log from PostgreSQL, starting
// after cursor, at most limit rows. NextCursor is the sequence of the last
// returned event, zero when the page is empty.
func (s *Service) GetEventHistory(ctx context.Context, cursor uint64, limit int) (EventHistoryResponse, error) {
	defer s.timeQuery("event_history")()
	if limit <= 0 || limit > 1000 {
		limit = 1000
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT sequence, event_type, payload, state_hash, prev_hash, timestamp
		FROM event_log.events
		WHERE sequence > $1
		ORDER BY sequence ASC
		LIMIT $2
	`, int64(cursor), limit)
	if err != nil {
		s.metrics.QueryErrors.WithLabelValues("event_history").Inc()
		return EventHistoryResponse{}, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	resp := EventHistoryResponse{Events: []EventRecord{}}
	for rows.Next() {
		var rec EventRecord
		var seq int64
		if err := rows.Scan(&seq, &rec.EventType, &rec.Payload, &rec.StateHash, &rec.PrevHash, &rec.Timestamp); err != nil {
			s.metrics.QueryErrors.WithLabelValues("event_history").Inc()
			return EventHistoryResponse{}, fmt.Errorf("scan event: %w", err)
		}
		rec.Sequence = uint64(seq)
		resp.Events = append(resp.Events, rec)
		resp.NextCursor = rec.Sequence
	}
	if err := rows.Err(); err != nil {
		s.metrics.QueryErrors.WithLabelValues("event_history").Inc()
		return EventHistoryResponse{}, fmt.Errorf("iterate events: %w", err)
	}
	return resp, nil
}

func (s *Service) timeQuery(name string) func() {
	s.metrics.QueryRequests.WithLabelValues(name).Inc()
	start := time.Now()
	return func() {
		s.metrics.QueryDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}
}
