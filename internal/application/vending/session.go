package vending

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Zhima-Mochi/juice-vending/internal/application"
	"github.com/Zhima-Mochi/juice-vending/internal/application/validation"
	"github.com/Zhima-Mochi/juice-vending/internal/domain/inventory"
	"github.com/Zhima-Mochi/juice-vending/internal/observability"
	"github.com/Zhima-Mochi/juice-vending/internal/observability/logctx"
)

const (
	WelcomeNotice  = "Fruit Juice Machine"
	FarewellNotice = "Thank you for using the Fruit Juice Machine!"
	ContinuePrompt = "Do you like to purchase again? (Y/N)"

	invalidChoiceNotice = "The inputted choice is invalid. Please try again."
	outOfStockNotice    = "Sorry, this product is out of stock."
)

var continueOptions = []string{"Yes", "No"}

// Select shows the catalog and runs purchases until one settles. Invalid choices,
// sold-out products and purchases cancelled midway return to the catalog; cancelling
// the catalog itself returns validation.ErrCancelled.
func (c *Coordinator) Select(ctx context.Context) (*Receipt, error) {
	logger := logctx.FromOr(ctx, c.log)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		products, err := c.store.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrStore, err)
		}

		reply, err := c.prompter.PromptText(ctx, catalog(products))
		if err != nil {
			return nil, fmt.Errorf("vending: prompt choice: %w", err)
		}
		if !reply.Given {
			return nil, validation.ErrCancelled
		}

		id, err := strconv.Atoi(strings.TrimSpace(reply.Text))
		if err != nil {
			logger.Info("choice_rejected", observability.F("input", reply.Text))
			c.notifier.Notify(ctx, invalidChoiceNotice)
			continue
		}

		receipt, err := c.Execute(ctx, PurchaseCommand{ProductID: id})
		switch {
		case err == nil:
			return receipt, nil
		case errors.Is(err, ErrUnknownProduct):
			c.notifier.Notify(ctx, invalidChoiceNotice)
		case errors.Is(err, inventory.ErrOutOfStock):
			c.notifier.Notify(ctx, outOfStockNotice)
		case errors.Is(err, validation.ErrCancelled):
		default:
			return nil, err
		}
	}
}

func catalog(products []*inventory.Product) string {
	var b strings.Builder
	b.WriteString("Select from the juices available:\nID | ITEM NAME | ITEM QTY\n")
	for _, p := range products {
		fmt.Fprintf(&b, "%d | %s | %d\n", p.ID, p.Name, p.Slot.AvailableQuantity())
	}
	b.WriteString("\nEnter juice choice (input num)")
	return b.String()
}

// Session is the customer-facing loop: welcome, purchase rounds separated by a
// continue prompt, farewell.
type Session struct {
	coordinator *Coordinator
	prompter    application.Prompter
	notifier    application.Notifier
	log         observability.Logger
}

func NewSession(coordinator *Coordinator, prompter application.Prompter, notifier application.Notifier, tel observability.Observability) *Session {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Session{
		coordinator: coordinator,
		prompter:    prompter,
		notifier:    notifier,
		log:         tel.Logger().With(observability.F("component", "session")),
	}
}

// Run blocks until the customer declines to continue or cancels the continue prompt.
// Only failures of the input source or the store end it early.
func (s *Session) Run(ctx context.Context) error {
	ctx = logctx.With(ctx, s.log)
	if err := s.coordinator.ObserveMachine(ctx); err != nil {
		return err
	}

	s.notifier.Notify(ctx, WelcomeNotice)
	s.log.Info("session_started")

	rounds, sales := 0, 0
	for {
		rounds++
		receipt, err := s.coordinator.Select(ctx)
		switch {
		case err == nil:
			sales++
			s.log.Debug("round_settled", observability.F("order_id", receipt.OrderID))
		case errors.Is(err, validation.ErrCancelled):
			s.log.Debug("round_cancelled")
		default:
			s.log.Error("session_aborted", observability.F("error", err))
			return err
		}

		idx, ok, err := s.prompter.PromptChoice(ctx, ContinuePrompt, continueOptions)
		if err != nil {
			s.log.Error("session_aborted", observability.F("error", err))
			return fmt.Errorf("vending: prompt continue: %w", err)
		}
		if !ok || idx != 0 {
			break
		}
	}

	s.notifier.Notify(ctx, FarewellNotice)
	s.log.Info("session_ended",
		observability.F("rounds", rounds),
		observability.F("sales", sales),
	)
	return nil
}
