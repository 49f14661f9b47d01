package asset

import (
	"sync"

	"github.com/google/uuid"
)

// Registry resolves asset symbols to their token account books.
type Registry struct {
	mu     sync.RWMutex
	tokens map[string]*Token
}

func NewRegistry() *Registry {
	return &Registry{tokens: make(map[string]*Token)}
}

// Register adds a token under its symbol, replacing any previous entry.
func (r *Registry) Register(t *Token) {
	r.mu.Lock()
	r.tokens[t.Symbol()] = t
	r.mu.Unlock()
}

// Get returns the token for a symbol.
func (r *Registry) Get(symbol string) (*Token, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tokens[symbol]
	return t, ok
}

// Symbols returns all registered symbols.
func (r *Registry) Symbols() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.tokens))
	for s := range r.tokens {
		out = append(out, s)
	}
	return out
}

// CustodyView reports one account's holdings across the registry.
type CustodyView struct {
	reg     *Registry
	account uuid.UUID
}

func NewCustodyView(reg *Registry, account uuid.UUID) *CustodyView {
	return &CustodyView{reg: reg, account: account}
}

// CustodyHeld returns the account's token balance for an asset, zero for
// unknown symbols.
func (v *CustodyView) CustodyHeld(asset string) uint64 {
	t, ok := v.reg.Get(asset)
	if !ok {
		return 0
	}
	return t.BalanceOf(v.account)
}
