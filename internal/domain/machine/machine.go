// Package machine ties the slots and the vault together for the one operation that
// touches both: settling a sale.
package machine

import (
	"context"
	"errors"

	"github.com/Zhima-Mochi/juice-vending/internal/domain/cash"
	"github.com/Zhima-Mochi/juice-vending/internal/domain/inventory"
	"github.com/shopspring/decimal"
)

var ErrInvalidSettlement = errors.New("machine: invalid settlement")

// Settlement sells Quantity units of ProductID and deposits Amount into the vault.
type Settlement struct {
	ProductID int
	Quantity  int
	Amount    decimal.Decimal
}

func (s Settlement) Validate() error {
	if s.ProductID <= 0 {
		return errors.Join(ErrInvalidSettlement, inventory.ErrNotFound)
	}
	if s.Quantity <= 0 {
		return errors.Join(ErrInvalidSettlement, inventory.ErrInvalidQuantity)
	}
	if s.Amount.IsNegative() {
		return errors.Join(ErrInvalidSettlement, cash.ErrNegativeAmount)
	}
	return nil
}

// Result is the machine state right after a settlement was committed.
type Result struct {
	RemainingStock int
	Balance        decimal.Decimal
}

// Snapshot is a consistent copy of every slot and the vault.
type Snapshot struct {
	Products []*inventory.Product
	Vault    *cash.Vault
}

// Store owns the machine state. Settle applies both halves of a sale or neither.
type Store interface {
	inventory.Repository
	cash.Repository
	Snapshot(ctx context.Context) (Snapshot, error)
	Settle(ctx context.Context, s Settlement) (Result, error)
}
