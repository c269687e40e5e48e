// Package validation turns raw customer input into an accepted quantity or payment.
// Rejected input is reported to the customer and asked for again until it is valid
// or the customer cancels.
package validation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Zhima-Mochi/juice-vending/internal/application"
	"github.com/Zhima-Mochi/juice-vending/internal/observability"
	"github.com/Zhima-Mochi/juice-vending/internal/observability/logctx"
	"github.com/Zhima-Mochi/juice-vending/internal/pkg/money"
	"github.com/shopspring/decimal"
)

var (
	ErrParse              = errors.New("validation: malformed input")
	ErrRange              = errors.New("validation: value out of range")
	ErrInsufficientChange = errors.New("validation: register cannot cover change")
	// ErrCancelled is the normal exit when the customer dismisses a prompt.
	ErrCancelled = errors.New("validation: cancelled")
)

const (
	promptQuantity = "quantity"
	promptPayment  = "payment"

	reasonParse  = "parse"
	reasonRange  = "range"
	reasonChange = "insufficient_change"
)

// CheckQuantity accepts raw when it is an integer within [1, stock].
func CheckQuantity(stock int, raw string) (int, error) {
	q, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not an integer", ErrParse, raw)
	}
	if q < 1 || q > stock {
		return q, fmt.Errorf("%w: %d is outside 1..%d", ErrRange, q, stock)
	}
	return q, nil
}

// CheckPayment accepts raw when it covers cost and the change it leaves can be paid
// out of balance. The parsed amount is returned alongside ErrRange and
// ErrInsufficientChange so callers can report it.
func CheckPayment(cost, balance decimal.Decimal, raw string) (decimal.Decimal, error) {
	tendered, err := money.Parse(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %w", ErrParse, err)
	}
	if tendered.LessThan(cost) {
		return tendered, fmt.Errorf("%w: %s is below cost %s", ErrRange, money.Format(tendered), money.Format(cost))
	}
	if change := tendered.Sub(cost); change.GreaterThan(balance) {
		return tendered, fmt.Errorf("%w: change %s exceeds balance %s", ErrInsufficientChange, money.Format(change), money.Format(balance))
	}
	return tendered, nil
}

// Validator runs the ask-again loops on top of CheckQuantity and CheckPayment.
type Validator struct {
	prompter application.Prompter
	notifier application.Notifier
	currency string

	log        observability.Logger
	rejections observability.Counter // vending_input_rejections_total{prompt,reason}
}

func New(prompter application.Prompter, notifier application.Notifier, currency string, tel observability.Observability) *Validator {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Validator{
		prompter:   prompter,
		notifier:   notifier,
		currency:   currency,
		log:        tel.Logger().With(observability.F("component", "order_validator")),
		rejections: tel.Metrics().Counter(observability.MInputRejections),
	}
}

// Quantity validates reply against stock, asking again until the customer enters a
// quantity in [1, stock] or cancels. stock must be positive.
func (v *Validator) Quantity(ctx context.Context, stock int, reply application.Reply) (int, error) {
	if stock < 1 {
		return 0, fmt.Errorf("%w: no stock to choose from", ErrRange)
	}
	logger := logctx.FromOr(ctx, v.log)
	retry := fmt.Sprintf("Enter quantity (1 to %d):", stock)

	for {
		if !reply.Given {
			return 0, ErrCancelled
		}
		q, err := CheckQuantity(stock, reply.Text)
		if err == nil {
			return q, nil
		}

		reason := reasonRange
		notice := fmt.Sprintf("Please enter a valid quantity between 1 and %d.", stock)
		if errors.Is(err, ErrParse) {
			reason = reasonParse
			notice = "Invalid input. Please enter a valid integer."
		}
		v.reject(logger, promptQuantity, reason, reply.Text)
		v.notifier.Notify(ctx, notice)

		if reply, err = v.ask(ctx, retry); err != nil {
			return 0, err
		}
	}
}

// Payment validates reply against cost and the vault balance, asking again until the
// customer tenders enough cash that the register can also make change for, or cancels.
func (v *Validator) Payment(ctx context.Context, cost, balance decimal.Decimal, reply application.Reply) (decimal.Decimal, error) {
	logger := logctx.FromOr(ctx, v.log)
	retry := fmt.Sprintf("Enter amount to pay (at least %s): %s", money.Label(v.currency, cost), v.currency)

	for {
		if !reply.Given {
			return decimal.Zero, ErrCancelled
		}
		tendered, err := CheckPayment(cost, balance, reply.Text)
		if err == nil {
			return tendered, nil
		}

		var reason, notice string
		switch {
		case errors.Is(err, ErrParse):
			reason, notice = reasonParse, "Invalid input. Please enter a valid cash amount."
		case errors.Is(err, ErrInsufficientChange):
			reason = reasonChange
			notice = fmt.Sprintf("Insufficient cash in the register to give change of %s. Please enter a different amount.",
				money.Label(v.currency, tendered.Sub(cost)))
		default:
			reason = reasonRange
			notice = "Please enter an amount greater than or equal to " + money.Label(v.currency, cost)
		}
		v.reject(logger, promptPayment, reason, reply.Text)
		v.notifier.Notify(ctx, notice)

		if reply, err = v.ask(ctx, retry); err != nil {
			return decimal.Zero, err
		}
	}
}

func (v *Validator) ask(ctx context.Context, message string) (application.Reply, error) {
	if err := ctx.Err(); err != nil {
		return application.Reply{}, err
	}
	reply, err := v.prompter.PromptText(ctx, message)
	if err != nil {
		return application.Reply{}, fmt.Errorf("validation: prompt: %w", err)
	}
	return reply, nil
}

func (v *Validator) reject(logger observability.Logger, prompt, reason, input string) {
	v.rejections.Add(1,
		observability.L("prompt", prompt),
		observability.L("reason", reason),
	)
	logger.Info(prompt+"_rejected",
		observability.F("reason", reason),
		observability.F("input", input),
	)
}
