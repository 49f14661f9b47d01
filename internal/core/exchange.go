package core

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"DexLedger/internal/asset"
	"DexLedger/internal/event"
	"DexLedger/internal/ledger"
	"DexLedger/internal/observability"

	"github.com/google/uuid"
)

// Config is consumed once at construction. FeePercent is fixed for the
// lifetime of the exchange; the creation-time fee divisibility check in
// MakeOrder therefore never goes stale by fill time.
type Config struct {
	// FeeRecipient is credited the protocol fee on every fill.
	FeeRecipient uuid.UUID

	// FeePercent is an integer 0-100.
	FeePercent uint64

	// CustodyAccount is the exchange's own identity in the asset books.
	// Zero value means a fresh identity is allocated.
	CustodyAccount uuid.UUID

	// Clock supplies operation timestamps. Defaults to time.Now.
	// The write path never reads the wall clock directly.
	Clock func() time.Time
}

// Output carries a committed envelope to the persistence and publish workers.
type Output struct {
	Envelope event.Envelope
}

// Exchange is the custodial write path: the balance ledger and the order
// state machine behind one lock. Every mutating operation checks its
// preconditions, applies its balance moves, transitions order state and
// appends exactly one event as a single indivisible unit; any precondition
// failure leaves all state untouched and appends nothing.
type Exchange struct {
	mu sync.Mutex

	cfg     Config
	custody uuid.UUID

	assets   *asset.Registry
	balances *ledger.Table

	orders      map[uint64]*Order
	nextOrderID uint64

	log      *event.Log
	sequence uint64
	hasher   *StateHasher

	// Blocking send: the exchange stalls until the persistence worker
	// drains, so no committed event is ever lost.
	persistChan chan<- Output

	// Non-blocking send with drop: publish consumers re-read the log
	// if they fall behind.
	publishChan chan<- Output

	metrics *observability.Metrics
}

// NewExchange builds an exchange over the given asset registry and event log.
// persistChan, publishChan and metrics may be nil.
func NewExchange(
	cfg Config,
	assets *asset.Registry,
	log *event.Log,
	persistChan, publishChan chan<- Output,
	metrics *observability.Metrics,
) (*Exchange, error) {
	if cfg.FeePercent > 100 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidFeePercent, cfg.FeePercent)
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	custody := cfg.CustodyAccount
	if custody == uuid.Nil {
		custody = uuid.New()
	}

	return &Exchange{
		cfg:         cfg,
		custody:     custody,
		assets:      assets,
		balances:    ledger.NewTable(),
		orders:      make(map[uint64]*Order),
		log:         log,
		hasher:      NewStateHasher(),
		persistChan: persistChan,
		publishChan: publishChan,
		metrics:     metrics,
	}, nil
}

// CustodyAccount returns the exchange's identity in the asset books.
// Depositors approve this account before calling Deposit.
func (e *Exchange) CustodyAccount() uuid.UUID { return e.custody }

// FeePercent returns the configured fee rate.
func (e *Exchange) FeePercent() uint64 { return e.cfg.FeePercent }

// FeeRecipient returns the configured fee account.
func (e *Exchange) FeeRecipient() uuid.UUID { return e.cfg.FeeRecipient }

// AssetSymbols returns the symbols of all registered assets.
func (e *Exchange) AssetSymbols() []string { return e.assets.Symbols() }

// Deposit pulls amount of an asset from the owner into custody and credits
// the owner's escrow balance.
func (e *Exchange) Deposit(assetSym string, owner uuid.UUID, amount uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.timeOp("deposit")()

	if amount == 0 {
		return e.reject("deposit", ErrInvalidAmount)
	}

	tok, ok := e.assets.Get(assetSym)
	if !ok {
		return e.reject("deposit", fmt.Errorf("%w: %s", ErrUnknownAsset, assetSym))
	}

	// Checked before the asset moves so a refusal leaves both books intact.
	if e.balances.Balance(assetSym, owner) > math.MaxUint64-amount {
		return e.reject("deposit", fmt.Errorf("%w: deposit %d %s", ErrAmountOverflow, amount, assetSym))
	}

	// The asset layer enforces its own funds/allowance invariants; a
	// refusal here means nothing has moved anywhere.
	if err := tok.TransferFrom(e.custody, owner, e.custody, amount); err != nil {
		return e.reject("deposit", fmt.Errorf("%w: %v", ErrTransferRejected, err))
	}

	newBalance, _ := e.balances.Credit(assetSym, owner, amount)

	e.commit("deposit", &event.Deposit{
		Asset:            assetSym,
		User:             owner,
		Amount:           amount,
		ResultingBalance: newBalance,
	}, []ledger.Key{{Asset: assetSym, Owner: owner}})

	return nil
}

// Withdraw debits the owner's escrow balance and pushes amount of the asset
// back out of custody. The decrement and the event append are one atomic
// commit: if the outward transfer is refused, the decrement is rolled back
// before the lock is released and is never observable.
func (e *Exchange) Withdraw(assetSym string, owner uuid.UUID, amount uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.timeOp("withdraw")()

	if amount == 0 {
		return e.reject("withdraw", ErrInvalidAmount)
	}

	tok, ok := e.assets.Get(assetSym)
	if !ok {
		return e.reject("withdraw", fmt.Errorf("%w: %s", ErrUnknownAsset, assetSym))
	}

	newBalance, err := e.balances.Debit(assetSym, owner, amount)
	if err != nil {
		return e.reject("withdraw", fmt.Errorf("%w: %v", ErrInsufficientBalance, err))
	}

	if err := tok.Transfer(e.custody, owner, amount); err != nil {
		e.balances.Credit(assetSym, owner, amount)
		return e.reject("withdraw", fmt.Errorf("%w: %v", ErrTransferRejected, err))
	}

	e.commit("withdraw", &event.Withdraw{
		Asset:            assetSym,
		User:             owner,
		Amount:           amount,
		ResultingBalance: newBalance,
	}, []ledger.Key{{Asset: assetSym, Owner: owner}})

	return nil
}

// BalanceOf returns the escrowed balance for (asset, owner). Never fails;
// unknown keys read as 0.
func (e *Exchange) BalanceOf(assetSym string, owner uuid.UUID) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.balances.Balance(assetSym, owner)
}

// MakeOrder creates an open limit order: the maker offers amountGive of
// tokenGive for amountGet of tokenGet. No balance moves at creation; only
// availability of the offered balance gates it.
func (e *Exchange) MakeOrder(tokenGet string, amountGet uint64, tokenGive string, amountGive uint64, maker uuid.UUID) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.timeOp("make_order")()

	if amountGet == 0 || amountGive == 0 {
		return 0, e.reject("make_order", ErrInvalidAmount)
	}
	if _, ok := e.assets.Get(tokenGet); !ok {
		return 0, e.reject("make_order", fmt.Errorf("%w: %s", ErrUnknownAsset, tokenGet))
	}
	if _, ok := e.assets.Get(tokenGive); !ok {
		return 0, e.reject("make_order", fmt.Errorf("%w: %s", ErrUnknownAsset, tokenGive))
	}

	if e.balances.Balance(tokenGive, maker) < amountGive {
		return 0, e.reject("make_order", fmt.Errorf("%w: maker %s offers %d %s",
			ErrInsufficientBalance, maker, amountGive, tokenGive))
	}

	// The fee charged on fill must be an exact integer in the asset's
	// smallest unit. (x % 100) * p ≡ x * p (mod 100), without overflow.
	if (amountGet%100)*e.cfg.FeePercent%100 != 0 {
		return 0, e.reject("make_order", fmt.Errorf("%w: amountGet %d at %d%%",
			ErrInvalidFeeDivision, amountGet, e.cfg.FeePercent))
	}

	// The filler will owe amountGet plus the fee in one debit; an order
	// whose settlement sum wraps uint64 must never enter the book.
	if amountGet > math.MaxUint64-e.feeFor(amountGet) {
		return 0, e.reject("make_order", fmt.Errorf("%w: amountGet %d at %d%%",
			ErrAmountOverflow, amountGet, e.cfg.FeePercent))
	}

	e.nextOrderID++
	order := &Order{
		ID:         e.nextOrderID,
		Maker:      maker,
		TokenGet:   tokenGet,
		AmountGet:  amountGet,
		TokenGive:  tokenGive,
		AmountGive: amountGive,
		Timestamp:  e.cfg.Clock().Unix(),
		Status:     OrderOpen,
	}
	e.orders[order.ID] = order

	e.commit("make_order", &event.Order{
		ID:         order.ID,
		Maker:      order.Maker,
		TokenGet:   order.TokenGet,
		AmountGet:  order.AmountGet,
		TokenGive:  order.TokenGive,
		AmountGive: order.AmountGive,
		Timestamp:  order.Timestamp,
	}, nil)

	return order.ID, nil
}

// CancelOrder transitions an open order to Cancelled. Only the maker may
// cancel, and only once.
func (e *Exchange) CancelOrder(orderID uint64, caller uuid.UUID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.timeOp("cancel_order")()

	order, ok := e.orders[orderID]
	if !ok {
		return e.reject("cancel_order", fmt.Errorf("%w: id %d", ErrOrderNotFound, orderID))
	}
	if order.Maker != caller {
		return e.reject("cancel_order", fmt.Errorf("%w: order %d", ErrUnauthorized, orderID))
	}
	switch order.Status {
	case OrderFilled:
		return e.reject("cancel_order", fmt.Errorf("%w: id %d", ErrOrderAlreadyFilled, orderID))
	case OrderCancelled:
		return e.reject("cancel_order", fmt.Errorf("%w: id %d", ErrOrderAlreadyCancelled, orderID))
	}

	order.Status = OrderCancelled

	e.commit("cancel_order", &event.Cancel{
		ID:         order.ID,
		Maker:      order.Maker,
		TokenGet:   order.TokenGet,
		AmountGet:  order.AmountGet,
		TokenGive:  order.TokenGive,
		AmountGive: order.AmountGive,
		Timestamp:  e.cfg.Clock().Unix(),
	}, nil)

	return nil
}

// FillOrder settles an open order against the filler: the filler pays
// amountGet plus the protocol fee in tokenGet, the maker pays amountGive in
// tokenGive, the fee recipient collects the fee. All five balance moves, the
// state transition and the event append are one all-or-nothing commit.
func (e *Exchange) FillOrder(orderID uint64, filler uuid.UUID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.timeOp("fill_order")()

	order, ok := e.orders[orderID]
	if !ok {
		return e.reject("fill_order", fmt.Errorf("%w: id %d", ErrOrderNotFound, orderID))
	}
	switch order.Status {
	case OrderFilled:
		return e.reject("fill_order", fmt.Errorf("%w: id %d", ErrOrderAlreadyFilled, orderID))
	case OrderCancelled:
		return e.reject("fill_order", fmt.Errorf("%w: id %d", ErrOrderAlreadyCancelled, orderID))
	}

	// Exact by construction: MakeOrder rejected any amountGet for which
	// amountGet * feePercent does not divide by 100.
	feeAmount := e.feeFor(order.AmountGet)

	// MakeOrder refuses orders whose settlement sum wraps, but a replayed
	// log from an older build may still carry one.
	if order.AmountGet > math.MaxUint64-feeAmount {
		return e.reject("fill_order", fmt.Errorf("%w: order %d settlement sum",
			ErrAmountOverflow, orderID))
	}

	if e.balances.Balance(order.TokenGet, filler) < order.AmountGet+feeAmount {
		return e.reject("fill_order", fmt.Errorf("%w: filler %s needs %d %s",
			ErrInsufficientBalance, filler, order.AmountGet+feeAmount, order.TokenGet))
	}

	// The maker's offered balance may have dropped since creation.
	if e.balances.Balance(order.TokenGive, order.Maker) < order.AmountGive {
		return e.reject("fill_order", fmt.Errorf("%w: maker %s owes %d %s",
			ErrInsufficientBalance, order.Maker, order.AmountGive, order.TokenGive))
	}

	// No credit target may wrap either, or escrow units appear from nothing.
	if e.balances.Balance(order.TokenGet, order.Maker) > math.MaxUint64-order.AmountGet ||
		e.balances.Balance(order.TokenGet, e.cfg.FeeRecipient) > math.MaxUint64-feeAmount ||
		e.balances.Balance(order.TokenGive, filler) > math.MaxUint64-order.AmountGive {
		return e.reject("fill_order", fmt.Errorf("%w: order %d credit target",
			ErrAmountOverflow, orderID))
	}

	// All preconditions hold; none of these moves can fail.
	e.balances.Debit(order.TokenGet, filler, order.AmountGet+feeAmount)
	e.balances.Credit(order.TokenGet, order.Maker, order.AmountGet)
	e.balances.Credit(order.TokenGet, e.cfg.FeeRecipient, feeAmount)
	e.balances.Debit(order.TokenGive, order.Maker, order.AmountGive)
	e.balances.Credit(order.TokenGive, filler, order.AmountGive)

	order.Status = OrderFilled

	e.commit("fill_order", &event.Trade{
		ID:         order.ID,
		Filler:     filler,
		TokenGet:   order.TokenGet,
		AmountGet:  order.AmountGet,
		TokenGive:  order.TokenGive,
		AmountGive: order.AmountGive,
		Maker:      order.Maker,
		Timestamp:  e.cfg.Clock().Unix(),
	}, []ledger.Key{
		{Asset: order.TokenGet, Owner: filler},
		{Asset: order.TokenGet, Owner: order.Maker},
		{Asset: order.TokenGet, Owner: e.cfg.FeeRecipient},
		{Asset: order.TokenGive, Owner: order.Maker},
		{Asset: order.TokenGive, Owner: filler},
	})

	return nil
}

// feeFor computes amountGet * feePercent / 100 without overflow.
func (e *Exchange) feeFor(amountGet uint64) uint64 {
	p := e.cfg.FeePercent
	return amountGet/100*p + amountGet%100*p/100
}

// --- Query surface ---

// OrderCount returns the number of orders ever created.
func (e *Exchange) OrderCount() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.nextOrderID
}

// GetOrder returns a copy of the order with the given id.
func (e *Exchange) GetOrder(orderID uint64) (Order, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	order, ok := e.orders[orderID]
	if !ok {
		return Order{}, false
	}
	return *order, true
}

// IsOrderFilled reports whether the order reached the Filled terminal state.
func (e *Exchange) IsOrderFilled(orderID uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	order, ok := e.orders[orderID]
	return ok && order.Status == OrderFilled
}

// IsOrderCancelled reports whether the order reached the Cancelled terminal state.
func (e *Exchange) IsOrderCancelled(orderID uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	order, ok := e.orders[orderID]
	return ok && order.Status == OrderCancelled
}

// Events returns the full event history.
func (e *Exchange) Events() []event.Envelope {
	return e.log.ReadAll()
}

// EventsSince returns all events after the given cursor.
func (e *Exchange) EventsSince(cursor uint64) []event.Envelope {
	return e.log.ReadSince(cursor)
}

// Sequence returns the last committed event sequence.
func (e *Exchange) Sequence() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sequence
}

// StateHash returns the current state hash chain tip.
func (e *Exchange) StateHash() [32]byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hasher.GetPrevHash()
}

// EscrowTotal returns the sum of all recorded escrow balances for an asset.
// Fails only when the table is corrupt and the sum wraps uint64.
func (e *Exchange) EscrowTotal(assetSym string) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.balances.TotalForAsset(assetSym)
}

// ValidateConservation checks, for every registered asset, that recorded
// escrow does not exceed what the custody account actually holds.
func (e *Exchange) ValidateConservation() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	validator := ledger.NewInvariantValidator(e.balances)
	ref := asset.NewCustodyView(e.assets, e.custody)
	for _, sym := range e.assets.Symbols() {
		if err := validator.ValidateConservation(sym, ref); err != nil {
			return err
		}
	}
	return nil
}

// --- Commit machinery ---

// commit seals an operation: assigns the next sequence, extends the hash
// chain over the touched balances, appends to the log and emits to the
// workers. Called with the lock held, after all mutations succeeded.
func (e *Exchange) commit(op string, evt event.Event, ts []ledger.Key) {
	e.sequence++

	prevHash := e.hasher.GetPrevHash()
	stateHash := e.hasher.ComputeHash(e.sequence, e.stateDigest(ts))

	env := event.Envelope{
		Sequence:  e.sequence,
		Type:      evt.Type(),
		Timestamp: e.cfg.Clock(),
		Event:     evt,
		StateHash: stateHash,
		PrevHash:  prevHash,
	}

	e.log.Append(env)

	out := Output{Envelope: env}

	if e.persistChan != nil {
		e.persistChan <- out
	}

	if e.publishChan != nil {
		select {
		case e.publishChan <- out:
		default:
			if e.metrics != nil {
				e.metrics.PublishDrops.Inc()
			}
		}
	}

	if e.metrics != nil {
		e.metrics.OpsApplied.WithLabelValues(op).Inc()
		e.metrics.LogSequence.Set(float64(e.sequence))
	}
}

// stateDigest builds canonical bytes over the touched balance entries,
// sorted by path for determinism.
func (e *Exchange) stateDigest(touched []ledger.Key) []byte {
	if len(touched) == 0 {
		return nil
	}

	seen := make(map[ledger.Key]bool, len(touched))
	keys := make([]ledger.Key, 0, len(touched))
	for _, k := range touched {
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	sortKeysByPath(keys)

	digest := make([]byte, 0, len(keys)*64)
	for _, k := range keys {
		path := k.Path()
		digest = append(digest, byte(len(path)))
		digest = append(digest, []byte(path)...)
		digest = appendUint64LE(digest, e.balances.Balance(k.Asset, k.Owner))
	}
	return digest
}

func (e *Exchange) reject(op string, err error) error {
	if e.metrics != nil {
		e.metrics.OpsRejected.WithLabelValues(op, rejectionReason(err)).Inc()
	}
	return err
}

func (e *Exchange) timeOp(op string) func() {
	if e.metrics == nil {
		return func() {}
	}
	start := time.Now()
	return func() {
		e.metrics.OpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
}

func sortKeysByPath(keys []ledger.Key) {
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].Path() < keys[j].Path()
	})
}

func appendUint64LE(buf []byte, v uint64) []byte {
	return append(buf,
		byte(v),
		byte(v>>8),
		byte(v>>16),
		byte(v>>24),
		byte(v>>32),
		byte(v>>40),
		byte(v>>48),
		byte(v>>56),
	)
}
