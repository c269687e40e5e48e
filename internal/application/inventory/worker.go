package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/juice-vending/internal/application"
	domorder "github.com/Zhima-Mochi/juice-vending/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/juice-vending/internal/domain/outbox"
	"github.com/Zhima-Mochi/juice-vending/internal/observability"
	"github.com/Zhima-Mochi/juice-vending/internal/observability/logctx"
)

const workerService = "stock_watcher"

// Middleware decorates an event handler, e.g. to attach an event-scoped logger.
type Middleware func(domoutbox.Handler) domoutbox.Handler

// Worker feeds sale events from the bus into the stock watch use case.
type Worker struct {
	subscriber domoutbox.Subscriber
	useCase    application.UseCase[domorder.SaleSettledEvent, *StockAlert]
	middleware []Middleware

	log          observability.Logger
	reqCounter   observability.Counter   // usecase_requests_total{use_case,outcome}
	durHistogram observability.Histogram // usecase_duration_seconds{use_case}
}

func NewWorker(
	subscriber domoutbox.Subscriber,
	useCase application.UseCase[domorder.SaleSettledEvent, *StockAlert],
	tel observability.Observability,
	middleware ...Middleware,
) *Worker {
	if tel == nil {
		tel = observability.Nop()
	}
	metrics := tel.Metrics()
	return &Worker{
		subscriber:   subscriber,
		useCase:      useCase,
		middleware:   middleware,
		log:          tel.Logger().With(observability.F("service", workerService)),
		reqCounter:   metrics.Counter(observability.MUsecaseRequests),
		durHistogram: metrics.Histogram(observability.MUsecaseDuration),
	}
}

func (w *Worker) Start() {
	if w.subscriber == nil || w.useCase == nil {
		return
	}
	w.subscriber.Subscribe(domorder.SaleSettledEvent{}.EventName(), w.wrap(w.handleSaleSettled))
	w.subscriber.Subscribe(domorder.PurchaseCancelledEvent{}.EventName(), w.wrap(w.handlePurchaseCancelled))
}

func (w *Worker) wrap(h domoutbox.Handler) domoutbox.Handler {
	for i := len(w.middleware) - 1; i >= 0; i-- {
		h = w.middleware[i](h)
	}
	return h
}

func (w *Worker) handleSaleSettled(ctx context.Context, e domoutbox.Event) error {
	const useCase = "inventory.worker.sale_settled"
	evt, ok := e.(domorder.SaleSettledEvent)
	if !ok {
		w.observe(useCase, "ignored", 0)
		return nil
	}

	start := time.Now()
	outcome := "success"
	defer func() { w.observe(useCase, outcome, time.Since(start).Seconds()) }()

	if _, err := w.useCase.Execute(ctx, evt); err != nil {
		outcome = "error"
		return fmt.Errorf("worker: watch stock: %w", err)
	}
	return nil
}

func (w *Worker) handlePurchaseCancelled(ctx context.Context, e domoutbox.Event) error {
	evt, ok := e.(domorder.PurchaseCancelledEvent)
	if !ok {
		return nil
	}
	logctx.FromOr(ctx, w.log).Info("purchase_cancelled",
		observability.F("order_id", evt.OrderID),
		observability.F("product_id", evt.ProductID),
		observability.F("stage", string(evt.Stage)),
	)
	return nil
}

func (w *Worker) observe(useCase, outcome string, latencySeconds float64) {
	w.reqCounter.Add(1,
		observability.L("use_case", useCase),
		observability.L("outcome", outcome),
	)
	w.durHistogram.Observe(latencySeconds, observability.L("use_case", useCase))
}
