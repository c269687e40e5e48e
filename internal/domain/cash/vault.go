package cash

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var ErrNegativeAmount = errors.New("cash: amount must be zero or greater")

// DefaultOpeningBalance is the cash a vault opens with when none is configured.
var DefaultOpeningBalance = decimal.New(500000, -2)

// Vault is the register's cash on hand. Its balance never goes below zero.
type Vault struct {
	balance   decimal.Decimal
	updatedAt time.Time
}

func NewVault(opening decimal.Decimal) (*Vault, error) {
	if opening.IsNegative() {
		return nil, ErrNegativeAmount
	}
	return &Vault{balance: opening, updatedAt: time.Now().UTC()}, nil
}

func (v *Vault) Balance() decimal.Decimal { return v.balance }

func (v *Vault) UpdatedAt() time.Time { return v.updatedAt }

// Deposit adds amount to the balance.
func (v *Vault) Deposit(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return ErrNegativeAmount
	}
	v.balance = v.balance.Add(amount)
	v.updatedAt = time.Now().UTC()
	return nil
}

// CanCoverChange reports whether the vault holds at least change.
func (v *Vault) CanCoverChange(change decimal.Decimal) bool {
	return change.LessThanOrEqual(v.balance)
}

func (v *Vault) Clone() *Vault {
	if v == nil {
		return nil
	}
	clone := *v
	return &clone
}

type Repository interface {
	Vault(ctx context.Context) (*Vault, error)
}
