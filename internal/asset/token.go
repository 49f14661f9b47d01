package asset

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Token is an in-process fungible token account book. The exchange treats it
// as an opaque asset reference: it enforces its own balance and allowance
// invariants and refuses transfers that would violate them.
type Token struct {
	symbol   string
	decimals uint8

	mu         sync.Mutex
	balances   map[uuid.UUID]uint64
	allowances map[uuid.UUID]map[uuid.UUID]uint64
}

var (
	ErrInsufficientFunds     = errors.New("asset: insufficient funds")
	ErrInsufficientAllowance = errors.New("asset: insufficient allowance")
)

func NewToken(symbol string, decimals uint8) *Token {
	return &Token{
		symbol:     symbol,
		decimals:   decimals,
		balances:   make(map[uuid.UUID]uint64),
		allowances: make(map[uuid.UUID]map[uuid.UUID]uint64),
	}
}

func (t *Token) Symbol() string { return t.symbol }

func (t *Token) Decimals() uint8 { return t.decimals }

// Mint credits newly issued units to an owner.
func (t *Token) Mint(owner uuid.UUID, amount uint64) {
	t.mu.Lock()
	t.balances[owner] += amount
	t.mu.Unlock()
}

// BalanceOf returns the owner's balance, 0 for unknown owners.
func (t *Token) BalanceOf(owner uuid.UUID) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.balances[owner]
}

// Transfer moves amount from the caller to the recipient.
func (t *Token) Transfer(from, to uuid.UUID, amount uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.transfer(from, to, amount)
}

// Approve grants spender the right to move up to amount from owner.
func (t *Token) Approve(owner, spender uuid.UUID, amount uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.allowances[owner] == nil {
		t.allowances[owner] = make(map[uuid.UUID]uint64)
	}
	t.allowances[owner][spender] = amount
}

// Allowance returns how much spender may still move from owner.
func (t *Token) Allowance(owner, spender uuid.UUID) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.allowances[owner][spender]
}

// TransferFrom moves amount from owner to recipient on behalf of spender,
// consuming allowance.
func (t *Token) TransferFrom(spender, owner, to uuid.UUID, amount uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	allowed := t.allowances[owner][spender]
	if allowed < amount {
		return fmt.Errorf("%w: %s spender %s has %d, needs %d",
			ErrInsufficientAllowance, t.symbol, spender, allowed, amount)
	}

	if err := t.transfer(owner, to, amount); err != nil {
		return err
	}

	t.allowances[owner][spender] = allowed - amount
	return nil
}

// TotalSupply returns the sum of all balances.
func (t *Token) TotalSupply() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	var total uint64
	for _, b := range t.balances {
		total += b
	}
	return total
}

func (t *Token) transfer(from, to uuid.UUID, amount uint64) error {
	if t.balances[from] < amount {
		return fmt.Errorf("%w: %s owner %s has %d, needs %d",
			ErrInsufficientFunds, t.symbol, from, t.balances[from], amount)
	}

	t.balances[from] -= amount
	t.balances[to] += amount
	return nil
}
