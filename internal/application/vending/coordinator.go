// Package vending drives a customer through one purchase: choosing a product,
// entering a quantity, paying, and settling the sale against the machine store.
package vending

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/juice-vending/internal/application"
	"github.com/Zhima-Mochi/juice-vending/internal/application/validation"
	"github.com/Zhima-Mochi/juice-vending/internal/domain/inventory"
	"github.com/Zhima-Mochi/juice-vending/internal/domain/machine"
	"github.com/Zhima-Mochi/juice-vending/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/juice-vending/internal/domain/outbox"
	"github.com/Zhima-Mochi/juice-vending/internal/observability"
	"github.com/Zhima-Mochi/juice-vending/internal/observability/logctx"
	"github.com/Zhima-Mochi/juice-vending/internal/pkg/money"
	"github.com/shopspring/decimal"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	vendingService  = "vending"
	useCasePurchase = "vending.purchase"
	spanPrefix      = "UC."
	publishTimeout  = 300 * time.Millisecond
)

var (
	ErrUnknownProduct = errors.New("vending: unknown product")
	ErrStore          = errors.New("vending: machine store failure")
)

type PurchaseCommand struct {
	ProductID int
}

// Receipt describes a settled purchase. VaultBalance is the vault's true balance;
// ReportedBalance is the figure shown to the customer, VaultBalance less the change.
type Receipt struct {
	OrderID         string
	ProductID       int
	ProductName     string
	Quantity        int
	TotalCost       decimal.Decimal
	Tendered        decimal.Decimal
	Change          decimal.Decimal
	RemainingStock  int
	VaultBalance    decimal.Decimal
	ReportedBalance decimal.Decimal
}

var _ application.UseCase[PurchaseCommand, *Receipt] = (*Coordinator)(nil)

// Coordinator runs one purchase attempt from a chosen product to settlement.
type Coordinator struct {
	store       machine.Store
	validator   *validation.Validator
	prompter    application.Prompter
	notifier    application.Notifier
	publisher   domoutbox.Publisher
	idGenerator application.IDGenerator
	currency    string
	tel         observability.Observability

	log          observability.Logger
	reqCounter   observability.Counter   // usecase_requests_total{use_case,outcome}
	durHistogram observability.Histogram // usecase_duration_seconds{use_case}
	deposited    observability.Counter   // vending_cash_deposited_total
	stockGauge   observability.Gauge     // vending_slot_stock{product}
	balanceGauge observability.Gauge     // vending_vault_balance
}

func NewCoordinator(
	store machine.Store,
	prompter application.Prompter,
	notifier application.Notifier,
	publisher domoutbox.Publisher,
	idGen application.IDGenerator,
	currency string,
	tel observability.Observability,
) *Coordinator {
	if tel == nil {
		tel = observability.Nop()
	}
	metrics := tel.Metrics()
	return &Coordinator{
		store:        store,
		validator:    validation.New(prompter, notifier, currency, tel),
		prompter:     prompter,
		notifier:     notifier,
		publisher:    publisher,
		idGenerator:  idGen,
		currency:     currency,
		tel:          tel,
		log:          tel.Logger().With(observability.F("service", vendingService)),
		reqCounter:   metrics.Counter(observability.MUsecaseRequests),
		durHistogram: metrics.Histogram(observability.MUsecaseDuration),
		deposited:    metrics.Counter(observability.MCashDeposited),
		stockGauge:   metrics.Gauge(observability.MSlotStock),
		balanceGauge: metrics.Gauge(observability.MVaultBalance),
	}
}

// Execute sells the product named by cmd. It returns ErrUnknownProduct,
// inventory.ErrOutOfStock or validation.ErrCancelled when the attempt ends without
// a sale; in every such case the store is left untouched.
func (c *Coordinator) Execute(ctx context.Context, cmd PurchaseCommand) (_ *Receipt, err error) {
	ctx, logger := logctx.Enrich(ctx, c.log,
		observability.F("use_case", useCasePurchase),
		observability.F("product_id", cmd.ProductID),
	)

	ctx, span := c.tel.Tracer().Start(ctx, spanPrefix+"Purchase",
		attribute.String("use_case", useCasePurchase),
		attribute.Int("vending.product_id", cmd.ProductID),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"
	var o *order.PendingOrder
	var publishErr error

	defer func() {
		lat := time.Since(start).Seconds()

		if outcome == "error" {
			span.RecordError(err)
			span.SetStatus(codes.Error, statusText)
		} else {
			span.SetStatus(codes.Ok, statusText)
		}
		span.End()

		c.reqCounter.Add(1,
			observability.L("use_case", useCasePurchase),
			observability.L("outcome", outcome),
		)
		c.durHistogram.Observe(lat, observability.L("use_case", useCasePurchase))

		fields := []observability.Field{
			observability.F("outcome", outcome),
			observability.F("status", statusText),
			observability.F("latency_seconds", lat),
		}
		if o != nil {
			fields = append(fields,
				observability.F("order_id", o.ID),
				observability.F("order_status", string(o.Status)),
			)
		}
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			fields = append(fields,
				observability.F("trace_id", sc.TraceID().String()),
				observability.F("span_id", sc.SpanID().String()),
			)
		}
		if publishErr != nil {
			fields = append(fields, observability.F("event_publish_error", publishErr.Error()))
		}
		if err != nil && outcome == "error" {
			fields = append(fields, observability.F("error", err.Error()))
		}
		logger.Info("use_case_done", fields...)
	}()

	product, err := c.store.Get(ctx, cmd.ProductID)
	if errors.Is(err, inventory.ErrNotFound) {
		outcome, statusText = "rejected", "PRODUCT_UNKNOWN"
		return nil, fmt.Errorf("%w: %d", ErrUnknownProduct, cmd.ProductID)
	}
	if err != nil {
		outcome, statusText = "error", "STORE_READ_FAILED"
		return nil, fmt.Errorf("%w: %w", ErrStore, err)
	}
	slot := product.Slot
	span.SetAttributes(attribute.String("vending.product_name", product.Name))

	if !slot.HasStock() {
		outcome, statusText = "rejected", "OUT_OF_STOCK"
		return nil, inventory.ErrOutOfStock
	}

	o, err = order.New(c.idGenerator.NewID(), product.ID, product.Name, slot.UnitPrice())
	if err != nil {
		outcome, statusText = "error", "ORDER_CONSTRUCTION_FAILED"
		return nil, fmt.Errorf("vending: new order: %w", err)
	}
	if err = o.StockChecked(); err != nil {
		outcome, statusText = "error", "STATE_TRANSITION_FAILED"
		return nil, err
	}
	span.SetAttributes(attribute.String("order.id", o.ID))

	reply, err := c.prompter.PromptText(ctx, fmt.Sprintf(
		"Juice choice:\nID | ITEM NAME | ITEM QTY | ITEM PRICE\n%d | %s | %d | %s\nHow many items would you like to purchase?",
		product.ID, product.Name, slot.AvailableQuantity(), money.Label(c.currency, slot.UnitPrice()),
	))
	if err != nil {
		outcome, statusText = "error", "PROMPT_FAILED"
		return nil, fmt.Errorf("vending: prompt quantity: %w", err)
	}
	quantity, err := c.validator.Quantity(ctx, slot.AvailableQuantity(), reply)
	if errors.Is(err, validation.ErrCancelled) {
		outcome, statusText = "cancelled", "CANCELLED_AT_QUANTITY"
		publishErr = c.cancel(ctx, o)
		return nil, err
	}
	if err != nil {
		outcome, statusText = "error", "QUANTITY_INPUT_FAILED"
		return nil, err
	}
	if err = o.AcceptQuantity(quantity); err != nil {
		outcome, statusText = "error", "QUANTITY_INVALID"
		return nil, err
	}
	if err = o.RequestPayment(); err != nil {
		outcome, statusText = "error", "STATE_TRANSITION_FAILED"
		return nil, err
	}

	vault, err := c.store.Vault(ctx)
	if err != nil {
		outcome, statusText = "error", "STORE_READ_FAILED"
		return nil, fmt.Errorf("%w: %w", ErrStore, err)
	}
	reply, err = c.prompter.PromptText(ctx, fmt.Sprintf(
		"Total cost to pay: %s\nEnter amount to pay: %s",
		money.Label(c.currency, o.TotalCost), c.currency,
	))
	if err != nil {
		outcome, statusText = "error", "PROMPT_FAILED"
		return nil, fmt.Errorf("vending: prompt payment: %w", err)
	}
	tendered, err := c.validator.Payment(ctx, o.TotalCost, vault.Balance(), reply)
	if errors.Is(err, validation.ErrCancelled) {
		outcome, statusText = "cancelled", "CANCELLED_AT_PAYMENT"
		publishErr = c.cancel(ctx, o)
		return nil, err
	}
	if err != nil {
		outcome, statusText = "error", "PAYMENT_INPUT_FAILED"
		return nil, err
	}
	if err = o.AcceptPayment(tendered); err != nil {
		outcome, statusText = "error", "PAYMENT_INVALID"
		return nil, err
	}

	res, err := c.store.Settle(ctx, machine.Settlement{
		ProductID: o.ProductID,
		Quantity:  o.Quantity,
		Amount:    o.TotalCost,
	})
	if err != nil {
		outcome, statusText = "error", "SETTLEMENT_FAILED"
		return nil, fmt.Errorf("%w: %w", ErrStore, err)
	}
	if err = o.Settle(); err != nil {
		outcome, statusText = "error", "STATE_TRANSITION_FAILED"
		return nil, err
	}

	receipt := &Receipt{
		OrderID:         o.ID,
		ProductID:       o.ProductID,
		ProductName:     o.ProductName,
		Quantity:        o.Quantity,
		TotalCost:       o.TotalCost,
		Tendered:        o.Tendered,
		Change:          o.Change(),
		RemainingStock:  res.RemainingStock,
		VaultBalance:    res.Balance,
		ReportedBalance: res.Balance.Sub(o.Change()),
	}

	c.deposited.Add(o.TotalCost.InexactFloat64())
	c.stockGauge.Set(float64(res.RemainingStock), observability.L("product", o.ProductName))
	c.balanceGauge.Set(res.Balance.InexactFloat64())

	c.notifier.Notify(ctx, "Your change is: "+money.Label(c.currency, receipt.Change))
	c.notifier.Notify(ctx, "Current balance in register: "+money.Label(c.currency, receipt.ReportedBalance))

	logger.Info("purchase_settled",
		observability.F("order_id", o.ID),
		observability.F("quantity", o.Quantity),
		observability.F("total_cost", o.TotalCost),
		observability.F("change", receipt.Change),
		observability.F("remaining_stock", res.RemainingStock),
	)
	span.SetAttributes(
		attribute.Int("order.quantity", o.Quantity),
		attribute.String("order.total_cost", money.Format(o.TotalCost)),
		attribute.String("order.status", string(o.Status)),
	)
	span.AddEvent("order.settled", trace.WithAttributes(attribute.String("order.id", o.ID)))

	if publishErr = c.publish(ctx, order.NewSaleSettledEvent(o, res.RemainingStock, res.Balance)); publishErr != nil {
		statusText = "EVENT_PUBLISH_FAILED"
	}
	return receipt, nil
}

// ObserveMachine refreshes the stock and balance gauges from the store.
func (c *Coordinator) ObserveMachine(ctx context.Context) error {
	snap, err := c.store.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStore, err)
	}
	for _, p := range snap.Products {
		c.stockGauge.Set(float64(p.Slot.AvailableQuantity()), observability.L("product", p.Name))
	}
	c.balanceGauge.Set(snap.Vault.Balance().InexactFloat64())
	return nil
}

func (c *Coordinator) cancel(ctx context.Context, o *order.PendingOrder) error {
	if err := o.Cancel(); err != nil {
		return err
	}
	trace.SpanFromContext(ctx).AddEvent("order.cancelled",
		trace.WithAttributes(attribute.String("order.stage", string(o.CancelledAt))),
	)
	return c.publish(ctx, order.NewPurchaseCancelledEvent(o))
}

// publish is best effort: a failure is reported to the caller for logging but never
// undoes a settlement.
func (c *Coordinator) publish(ctx context.Context, e domoutbox.Event) error {
	if c.publisher == nil {
		return nil
	}
	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	return c.publisher.Publish(pubCtx, e)
}
