package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is an exact fixed-point amount held as integer cents. All
// arithmetic and comparisons happen on cents; conversion to float64 is
// allowed only at the chart rendering boundary.
type Money struct {
	Cents int64
}

// Amounts follow the store's DECIMAL(10,2) shape: at most ten digits
// overall, at most two of them fractional.
const (
	maxAmountDigits   = 10
	maxFractionDigits = 2
	maxIntegralDigits = maxAmountDigits - maxFractionDigits
)

// ParseAmount converts a submitted decimal string into Money. The input
// must carry at most two fractional digits and at most ten digits in
// total; anything else is rejected, never rounded. "12.34" parses to
// 1234 cents, "12.345" is an error.
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	frac := 0
	if d.Exponent() < 0 {
		frac = int(-d.Exponent())
	}
	if frac > maxFractionDigits {
		return Money{}, ErrInvalidAmount
	}
	if int(d.NumDigits())-frac > maxIntegralDigits {
		return Money{}, ErrInvalidAmount
	}
	return Money{Cents: d.Shift(maxFractionDigits).IntPart()}, nil
}

// Add returns m + other.
func (m Money) Add(other Money) Money {
	return Money{Cents: m.Cents + other.Cents}
}

// Sub returns m - other.
func (m Money) Sub(other Money) Money {
	return Money{Cents: m.Cents - other.Cents}
}

// IsZero reports whether the amount is exactly zero.
func (m Money) IsZero() bool {
	return m.Cents == 0
}

// String formats the amount with two fractional digits, e.g. "12.34".
func (m Money) String() string {
	cents := m.Cents
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

// Float64 converts to a binary float for rendering only.
func (m Money) Float64() float64 {
	return float64(m.Cents) / 100.0
}
