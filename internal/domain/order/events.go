package order

import (
	"time"

	"github.com/shopspring/decimal"
)

// SaleSettledEvent is emitted once stock and cash have both been committed for an order.
type SaleSettledEvent struct {
	OrderID        string
	ProductID      int
	ProductName    string
	Quantity       int
	Amount         decimal.Decimal
	Change         decimal.Decimal
	RemainingStock int
	VaultBalance   decimal.Decimal
	OccurredAt     time.Time
}

func (SaleSettledEvent) EventName() string { return "vending.sale_settled" }

func NewSaleSettledEvent(o *PendingOrder, remainingStock int, vaultBalance decimal.Decimal) SaleSettledEvent {
	return SaleSettledEvent{
		OrderID:        o.ID,
		ProductID:      o.ProductID,
		ProductName:    o.ProductName,
		Quantity:       o.Quantity,
		Amount:         o.TotalCost,
		Change:         o.Change(),
		RemainingStock: remainingStock,
		VaultBalance:   vaultBalance,
		OccurredAt:     time.Now().UTC(),
	}
}

// PurchaseCancelledEvent is emitted when the customer abandons an order before settlement.
type PurchaseCancelledEvent struct {
	OrderID    string
	ProductID  int
	Stage      Status
	OccurredAt time.Time
}

func (PurchaseCancelledEvent) EventName() string { return "vending.purchase_cancelled" }

func NewPurchaseCancelledEvent(o *PendingOrder) PurchaseCancelledEvent {
	return PurchaseCancelledEvent{
		OrderID:    o.ID,
		ProductID:  o.ProductID,
		Stage:      o.CancelledAt,
		OccurredAt: time.Now().UTC(),
	}
}
