package ledger

import (
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"
)

// Key identifies a balance entry: one asset held in custody for one owner.
type Key struct {
	Asset string
	Owner uuid.UUID
}

// Path returns the string representation for storage and logging.
func (k Key) Path() string {
	return fmt.Sprintf("%s:%s", k.Asset, k.Owner)
}

// Table maintains the custodial balance entries.
// Not thread-safe; only the exchange writes it, under its own lock.
type Table struct {
	balances map[Key]uint64
}

func NewTable() *Table {
	return &Table{balances: make(map[Key]uint64)}
}

// Balance returns the entry for (asset, owner), 0 for unknown keys.
func (t *Table) Balance(asset string, owner uuid.UUID) uint64 {
	return t.balances[Key{Asset: asset, Owner: owner}]
}

// Credit increments a balance entry and returns the new balance.
// Fails without mutating if the entry would wrap uint64.
func (t *Table) Credit(asset string, owner uuid.UUID, amount uint64) (uint64, error) {
	k := Key{Asset: asset, Owner: owner}
	have := t.balances[k]
	if have > math.MaxUint64-amount {
		return 0, fmt.Errorf("balance %s: credit %d overflows %d", k.Path(), amount, have)
	}
	t.balances[k] = have + amount
	return t.balances[k], nil
}

// Debit decrements a balance entry and returns the new balance.
// Fails without mutating if the entry would go negative.
func (t *Table) Debit(asset string, owner uuid.UUID, amount uint64) (uint64, error) {
	k := Key{Asset: asset, Owner: owner}
	have := t.balances[k]
	if have < amount {
		return 0, fmt.Errorf("balance %s: have %d, need %d", k.Path(), have, amount)
	}
	t.balances[k] = have - amount
	return t.balances[k], nil
}

// TotalForAsset sums all owners' balances for an asset. Fails if the sum
// wraps uint64, which means the table itself is corrupt.
func (t *Table) TotalForAsset(asset string) (uint64, error) {
	var total uint64
	for k, b := range t.balances {
		if k.Asset != asset {
			continue
		}
		if total > math.MaxUint64-b {
			return 0, fmt.Errorf("asset %s: balance total overflows uint64", asset)
		}
		total += b
	}
	return total, nil
}

// Snapshot returns a copy of all balance entries.
func (t *Table) Snapshot() map[Key]uint64 {
	out := make(map[Key]uint64, len(t.balances))
	for k, v := range t.balances {
		out[k] = v
	}
	return out
}

// Restore replaces all entries with the given snapshot.
func (t *Table) Restore(balances map[Key]uint64) {
	t.balances = make(map[Key]uint64, len(balances))
	for k, v := range balances {
		t.balances[k] = v
	}
}

// SortedKeys returns all entry keys in deterministic path order.
func (t *Table) SortedKeys() []Key {
	keys := make([]Key, 0, len(t.balances))
	for k := range t.balances {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].Path() < keys[j].Path()
	})
	return keys
}
