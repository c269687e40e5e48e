package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	domorder "github.com/Zhima-Mochi/juice-vending/internal/domain/order"
	"github.com/Zhima-Mochi/juice-vending/internal/observability"
	"github.com/Zhima-Mochi/juice-vending/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	inventoryService  = "inventory"
	useCaseWatchStock = "inventory.watch_stock"
	spanPrefix        = "UC."

	// DefaultLowStockThreshold is the remaining stock at or below which a product is reported low.
	DefaultLowStockThreshold = 5
)

var ErrInvalidEvent = errors.New("inventory: invalid sale event")

type Level string

const (
	LevelOK      Level = "ok"
	LevelLow     Level = "low"
	LevelSoldOut Level = "sold_out"
)

// StockAlert classifies a product's stock after a sale.
type StockAlert struct {
	ProductID int
	Product   string
	Remaining int
	Level     Level
}

// WatchStockUseCase tracks units sold and flags products running out.
type WatchStockUseCase struct {
	threshold int
	tracer    observability.Tracer
	log       observability.Logger

	reqCounter   observability.Counter   // usecase_requests_total{use_case,outcome}
	durHistogram observability.Histogram // usecase_duration_seconds{use_case}
	unitsSold    observability.Counter   // vending_units_sold_total{product}
}

func NewWatchStockUseCase(threshold int, tel observability.Observability) *WatchStockUseCase {
	if tel == nil {
		tel = observability.Nop()
	}
	if threshold < 0 {
		threshold = 0
	}
	metrics := tel.Metrics()
	return &WatchStockUseCase{
		threshold:    threshold,
		tracer:       tel.Tracer(),
		log:          tel.Logger().With(observability.F("service", inventoryService)),
		reqCounter:   metrics.Counter(observability.MUsecaseRequests),
		durHistogram: metrics.Histogram(observability.MUsecaseDuration),
		unitsSold:    metrics.Counter(observability.MUnitsSold),
	}
}

func (uc *WatchStockUseCase) Execute(ctx context.Context, evt domorder.SaleSettledEvent) (_ *StockAlert, err error) {
	ctx, span := uc.tracer.Start(ctx, spanPrefix+"WatchStock",
		attribute.String("use_case", useCaseWatchStock),
		attribute.Int("vending.product_id", evt.ProductID),
	)
	logger := logctx.FromOr(ctx, uc.log).With(
		observability.F("use_case", useCaseWatchStock),
		observability.F("order_id", evt.OrderID),
		observability.F("product", evt.ProductName),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"

	defer func() {
		lat := time.Since(start).Seconds()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, statusText)
		} else {
			span.SetStatus(codes.Ok, statusText)
		}
		span.End()

		uc.reqCounter.Add(1,
			observability.L("use_case", useCaseWatchStock),
			observability.L("outcome", outcome),
		)
		uc.durHistogram.Observe(lat, observability.L("use_case", useCaseWatchStock))
		logger.Debug("use_case_done",
			observability.F("outcome", outcome),
			observability.F("status", statusText),
			observability.F("latency_seconds", lat),
		)
	}()

	if evt.Quantity <= 0 {
		outcome, statusText = "error", "QUANTITY_INVALID"
		return nil, fmt.Errorf("%w: quantity %d", ErrInvalidEvent, evt.Quantity)
	}
	if evt.RemainingStock < 0 {
		outcome, statusText = "error", "STOCK_INVALID"
		return nil, fmt.Errorf("%w: remaining stock %d", ErrInvalidEvent, evt.RemainingStock)
	}

	uc.unitsSold.Add(float64(evt.Quantity), observability.L("product", evt.ProductName))

	alert := &StockAlert{
		ProductID: evt.ProductID,
		Product:   evt.ProductName,
		Remaining: evt.RemainingStock,
		Level:     uc.classify(evt.RemainingStock),
	}
	span.SetAttributes(
		attribute.Int("inventory.remaining", alert.Remaining),
		attribute.String("inventory.level", string(alert.Level)),
	)

	switch alert.Level {
	case LevelSoldOut:
		statusText = "SOLD_OUT"
		logger.Warn("sold_out", observability.F("product_id", alert.ProductID))
	case LevelLow:
		statusText = "LOW_STOCK"
		logger.Warn("low_stock",
			observability.F("product_id", alert.ProductID),
			observability.F("remaining", alert.Remaining),
			observability.F("threshold", uc.threshold),
		)
	}
	return alert, nil
}

func (uc *WatchStockUseCase) classify(remaining int) Level {
	switch {
	case remaining == 0:
		return LevelSoldOut
	case remaining <= uc.threshold:
		return LevelLow
	default:
		return LevelOK
	}
}
