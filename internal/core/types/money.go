// Package types provides common value types shared across domains.
package types

import (
	"github.com/shopspring/decimal"
)

// Money represents a monetary value with full precision.
// Uses decimal.Decimal to avoid floating-point errors.
type Money = decimal.Decimal

// MoneyScale is the number of fractional digits shown and stored for amounts.
const MoneyScale = 2

// MustMoney creates a Money value from a string, panics on error.
// Use only for constants and tests.
func MustMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Zero returns zero Money value.
func Zero() Money {
	return decimal.Zero
}

// LineTotal returns unitPrice × units.
func LineTotal(unitPrice Money, units int64) Money {
	return unitPrice.Mul(decimal.NewFromInt(units))
}

// FormatAmount renders m with exactly two decimals, e.g. "800.00".
func FormatAmount(m Money) string {
	return m.StringFixed(MoneyScale)
}

// FormatUSD renders m as "$800.00".
func FormatUSD(m Money) string {
	if m.IsNegative() {
		return "-$" + m.Abs().StringFixed(MoneyScale)
	}
	return "$" + m.StringFixed(MoneyScale)
}
