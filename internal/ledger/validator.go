package ledger

import "fmt"

// CustodyReference reports how much of an asset an external reference
// actually holds for the ledger's custody account.
type CustodyReference interface {
	CustodyHeld(asset string) uint64
}

// InvariantValidator checks ledger invariants.
type InvariantValidator struct {
	table *Table
}

func NewInvariantValidator(table *Table) *InvariantValidator {
	return &InvariantValidator{table: table}
}

// ValidateConservation verifies that the sum of all owners' recorded
// balances for an asset does not exceed what custody actually holds.
func (v *InvariantValidator) ValidateConservation(asset string, ref CustodyReference) error {
	recorded, err := v.table.TotalForAsset(asset)
	if err != nil {
		return fmt.Errorf("conservation check for %s: %w", asset, err)
	}
	held := ref.CustodyHeld(asset)

	if recorded > held {
		return fmt.Errorf("conservation violated for %s: recorded %d exceeds custody %d",
			asset, recorded, held)
	}
	return nil
}
