package inventory

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound          = errors.New("inventory: product not found")
	ErrInvalidQuantity   = errors.New("inventory: quantity must be greater than zero")
	ErrInvalidStock      = errors.New("inventory: stock must be zero or greater")
	ErrInvalidPrice      = errors.New("inventory: price must be zero or greater")
	ErrInsufficientStock = errors.New("inventory: insufficient stock")
	ErrOutOfStock        = errors.New("inventory: out of stock")
)

// DefaultQuantity is the stock a slot starts with when none is configured.
const DefaultQuantity = 50

// Slot holds one product's stock and unit price. The price is fixed at construction.
type Slot struct {
	quantity  int
	unitPrice decimal.Decimal
	updatedAt time.Time
}

func NewSlot(quantity int, unitPrice decimal.Decimal) (*Slot, error) {
	if quantity < 0 {
		return nil, ErrInvalidStock
	}
	if unitPrice.IsNegative() {
		return nil, ErrInvalidPrice
	}
	return &Slot{
		quantity:  quantity,
		unitPrice: unitPrice,
		updatedAt: time.Now().UTC(),
	}, nil
}

func (s *Slot) AvailableQuantity() int { return s.quantity }

func (s *Slot) UnitPrice() decimal.Decimal { return s.unitPrice }

func (s *Slot) HasStock() bool { return s.quantity > 0 }

func (s *Slot) UpdatedAt() time.Time { return s.updatedAt }

// Cost returns the price of count units.
func (s *Slot) Cost(count int) decimal.Decimal {
	return s.unitPrice.Mul(decimal.NewFromInt(int64(count)))
}

// Sell removes count units. The slot is left untouched when count is not in [1, AvailableQuantity()].
func (s *Slot) Sell(count int) error {
	if count <= 0 {
		return ErrInvalidQuantity
	}
	if count > s.quantity {
		return ErrInsufficientStock
	}
	s.quantity -= count
	s.touch()
	return nil
}

func (s *Slot) touch() {
	s.updatedAt = time.Now().UTC()
}

// Product is a catalog entry: a numbered, named slot.
type Product struct {
	ID   int
	Name string
	Slot *Slot
}

func NewProduct(id int, name string, slot *Slot) (*Product, error) {
	if id <= 0 {
		return nil, errors.New("inventory: product id must be greater than zero")
	}
	if name == "" {
		return nil, errors.New("inventory: product name is required")
	}
	if slot == nil {
		return nil, errors.New("inventory: product slot is required")
	}
	return &Product{ID: id, Name: name, Slot: slot}, nil
}

func (p *Product) Clone() *Product {
	if p == nil {
		return nil
	}
	clone := *p
	if p.Slot != nil {
		slot := *p.Slot
		clone.Slot = &slot
	}
	return &clone
}
