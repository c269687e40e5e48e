package order

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidQuantity        = errors.New("order: quantity must be greater than zero")
	ErrInvalidPrice           = errors.New("order: unit price must be zero or greater")
	ErrInsufficientPayment    = errors.New("order: tendered cash is below total cost")
	ErrInvalidStateTransition = errors.New("order: invalid state transition")
)

type Status string

const (
	StatusSlotChosen       Status = "slot_chosen"
	StatusAwaitingQuantity Status = "awaiting_quantity"
	StatusQuantityAccepted Status = "quantity_accepted"
	StatusAwaitingPayment  Status = "awaiting_payment"
	StatusPaymentAccepted  Status = "payment_accepted"
	StatusSettled          Status = "settled"
	StatusCancelled        Status = "cancelled"
)

// PendingOrder is one purchase attempt, alive from slot selection until it is settled or cancelled.
type PendingOrder struct {
	ID          string
	ProductID   int
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
	TotalCost   decimal.Decimal
	Tendered    decimal.Decimal
	Status      Status
	// CancelledAt is the status the order was in when the customer cancelled.
	CancelledAt Status
	CreatedAt   time.Time
	UpdatedAt   time.Time

	state PurchaseState
}

func New(id string, productID int, productName string, unitPrice decimal.Decimal) (*PendingOrder, error) {
	if unitPrice.IsNegative() {
		return nil, ErrInvalidPrice
	}
	now := time.Now().UTC()
	o := &PendingOrder{
		ID:          id,
		ProductID:   productID,
		ProductName: productName,
		UnitPrice:   unitPrice,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	o.setState(slotChosenState{})
	return o, nil
}

// Change is what the customer gets back once payment has been accepted.
func (o *PendingOrder) Change() decimal.Decimal {
	if o.Tendered.LessThan(o.TotalCost) {
		return decimal.Zero
	}
	return o.Tendered.Sub(o.TotalCost)
}

func (o *PendingOrder) StockChecked() error {
	return o.apply(func(s PurchaseState) (PurchaseState, error) { return s.OnStockChecked(o) })
}

func (o *PendingOrder) AcceptQuantity(quantity int) error {
	return o.apply(func(s PurchaseState) (PurchaseState, error) { return s.OnQuantityAccepted(o, quantity) })
}

func (o *PendingOrder) RequestPayment() error {
	return o.apply(func(s PurchaseState) (PurchaseState, error) { return s.OnPaymentRequested(o) })
}

func (o *PendingOrder) AcceptPayment(tendered decimal.Decimal) error {
	return o.apply(func(s PurchaseState) (PurchaseState, error) { return s.OnPaymentAccepted(o, tendered) })
}

func (o *PendingOrder) Settle() error {
	return o.apply(func(s PurchaseState) (PurchaseState, error) { return s.OnSettled(o) })
}

func (o *PendingOrder) Cancel() error {
	return o.apply(func(s PurchaseState) (PurchaseState, error) { return s.OnCancelled(o) })
}

func (o *PendingOrder) apply(transition func(PurchaseState) (PurchaseState, error)) error {
	next, err := transition(o.currentState())
	if err != nil {
		return err
	}
	o.setState(next)
	return nil
}

func (o *PendingOrder) currentState() PurchaseState {
	if o.state == nil {
		o.state = stateFor(o.Status)
	}
	return o.state
}

func (o *PendingOrder) setState(s PurchaseState) {
	o.state = s
	o.Status = s.Status()
	o.UpdatedAt = time.Now().UTC()
}
