// Package money parses and formats cash amounts. Amounts are decimals end to end;
// formatting is for display only.
package money

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrInvalidAmount = errors.New("money: invalid amount")

const (
	// MaxInputLength bounds the raw text Parse looks at.
	MaxInputLength = 32
	// MaxIntegerDigits bounds the whole part of an amount.
	MaxIntegerDigits = 15
	// MaxFractionDigits is the smallest unit a cash amount can carry.
	MaxFractionDigits = 2
)

// Parse reads a cash amount typed by a customer. Surrounding whitespace is ignored.
// Amounts with more than MaxIntegerDigits whole digits or more than
// MaxFractionDigits significant fraction digits are rejected, whatever their
// notation, so arithmetic on the result always stays small.
func Parse(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: empty input", ErrInvalidAmount)
	}
	if len(s) > MaxInputLength {
		return decimal.Zero, fmt.Errorf("%w: longer than %d characters", ErrInvalidAmount, MaxInputLength)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}

	// Work on the coefficient and exponent only: rescaling d itself costs
	// time proportional to the exponent.
	coef, exp := d.Coefficient(), d.Exponent()
	if coef.Sign() == 0 {
		return decimal.Zero, nil
	}
	ten, rem := big.NewInt(10), new(big.Int)
	for exp < 0 {
		q, r := new(big.Int).QuoRem(coef, ten, rem)
		if r.Sign() != 0 {
			break
		}
		coef, exp = q, exp+1
	}
	if exp < -MaxFractionDigits {
		return decimal.Zero, fmt.Errorf("%w: %q has more than %d decimal places", ErrInvalidAmount, raw, MaxFractionDigits)
	}
	digits := len(new(big.Int).Abs(coef).String())
	if int64(digits)+int64(exp) > MaxIntegerDigits {
		return decimal.Zero, fmt.Errorf("%w: %q is too large", ErrInvalidAmount, raw)
	}
	return decimal.NewFromBigInt(coef, exp), nil
}

// MustParse is like Parse but panics on malformed input. Intended for constants and tests.
func MustParse(raw string) decimal.Decimal {
	d, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return d
}

// Format renders d with exactly two fraction digits.
func Format(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// Label renders d prefixed with a currency label, e.g. "Php. 210.00".
func Label(currency string, d decimal.Decimal) string {
	if currency == "" {
		return Format(d)
	}
	return currency + " " + Format(d)
}
