package order

import "github.com/shopspring/decimal"

// PurchaseState implements the state pattern for one purchase attempt.
type PurchaseState interface {
	Status() Status
	OnStockChecked(o *PendingOrder) (PurchaseState, error)
	OnQuantityAccepted(o *PendingOrder, quantity int) (PurchaseState, error)
	OnPaymentRequested(o *PendingOrder) (PurchaseState, error)
	OnPaymentAccepted(o *PendingOrder, tendered decimal.Decimal) (PurchaseState, error)
	OnSettled(o *PendingOrder) (PurchaseState, error)
	OnCancelled(o *PendingOrder) (PurchaseState, error)
}

// rejectAll refuses every transition; concrete states embed it and override the legal ones.
type rejectAll struct{}

func (rejectAll) OnStockChecked(*PendingOrder) (PurchaseState, error) {
	return nil, ErrInvalidStateTransition
}

func (rejectAll) OnQuantityAccepted(*PendingOrder, int) (PurchaseState, error) {
	return nil, ErrInvalidStateTransition
}

func (rejectAll) OnPaymentRequested(*PendingOrder) (PurchaseState, error) {
	return nil, ErrInvalidStateTransition
}

func (rejectAll) OnPaymentAccepted(*PendingOrder, decimal.Decimal) (PurchaseState, error) {
	return nil, ErrInvalidStateTransition
}

func (rejectAll) OnSettled(*PendingOrder) (PurchaseState, error) {
	return nil, ErrInvalidStateTransition
}

func (rejectAll) OnCancelled(*PendingOrder) (PurchaseState, error) {
	return nil, ErrInvalidStateTransition
}

type slotChosenState struct{ rejectAll }

func (slotChosenState) Status() Status { return StatusSlotChosen }

func (slotChosenState) OnStockChecked(*PendingOrder) (PurchaseState, error) {
	return awaitingQuantityState{}, nil
}

type awaitingQuantityState struct{ rejectAll }

func (awaitingQuantityState) Status() Status { return StatusAwaitingQuantity }

func (awaitingQuantityState) OnQuantityAccepted(o *PendingOrder, quantity int) (PurchaseState, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	o.Quantity = quantity
	o.TotalCost = o.UnitPrice.Mul(decimal.NewFromInt(int64(quantity)))
	return quantityAcceptedState{}, nil
}

func (awaitingQuantityState) OnCancelled(o *PendingOrder) (PurchaseState, error) {
	o.CancelledAt = StatusAwaitingQuantity
	return cancelledState{}, nil
}

type quantityAcceptedState struct{ rejectAll }

func (quantityAcceptedState) Status() Status { return StatusQuantityAccepted }

func (quantityAcceptedState) OnPaymentRequested(*PendingOrder) (PurchaseState, error) {
	return awaitingPaymentState{}, nil
}

type awaitingPaymentState struct{ rejectAll }

func (awaitingPaymentState) Status() Status { return StatusAwaitingPayment }

func (awaitingPaymentState) OnPaymentAccepted(o *PendingOrder, tendered decimal.Decimal) (PurchaseState, error) {
	if tendered.LessThan(o.TotalCost) {
		return nil, ErrInsufficientPayment
	}
	o.Tendered = tendered
	return paymentAcceptedState{}, nil
}

func (awaitingPaymentState) OnCancelled(o *PendingOrder) (PurchaseState, error) {
	o.CancelledAt = StatusAwaitingPayment
	return cancelledState{}, nil
}

type paymentAcceptedState struct{ rejectAll }

func (paymentAcceptedState) Status() Status { return StatusPaymentAccepted }

func (paymentAcceptedState) OnSettled(*PendingOrder) (PurchaseState, error) {
	return settledState{}, nil
}

type settledState struct{ rejectAll }

func (settledState) Status() Status { return StatusSettled }

type cancelledState struct{ rejectAll }

func (cancelledState) Status() Status { return StatusCancelled }

func stateFor(s Status) PurchaseState {
	switch s {
	case StatusAwaitingQuantity:
		return awaitingQuantityState{}
	case StatusQuantityAccepted:
		return quantityAcceptedState{}
	case StatusAwaitingPayment:
		return awaitingPaymentState{}
	case StatusPaymentAccepted:
		return paymentAcceptedState{}
	case StatusSettled:
		return settledState{}
	case StatusCancelled:
		return cancelledState{}
	default:
		return slotChosenState{}
	}
}
