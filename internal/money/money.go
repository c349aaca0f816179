package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Cents is an amount in the smallest currency unit.
type Cents = int64

// DefaultSymbol is used when a formatter has no symbol configured.
const DefaultSymbol = "€"

// Format renders cents as a two-decimal amount prefixed with the currency symbol.
// It must only be used at the presentation boundary.
func Format(amount Cents, symbol string) string {
	if strings.TrimSpace(symbol) == "" {
		symbol = DefaultSymbol
	}
	value := decimal.New(amount, -2)
	if value.IsNegative() {
		return "-" + symbol + value.Neg().StringFixed(2)
	}
	return symbol + value.StringFixed(2)
}

// Formatter carries the display settings for a storefront currency.
type Formatter struct {
	Symbol string
}

// Format renders the amount with the formatter symbol.
func (f Formatter) Format(amount Cents) string {
	return Format(amount, f.Symbol)
}

// Units converts cents to display units. The result is for rendering only.
func Units(amount Cents) decimal.Decimal {
	return decimal.New(amount, -2)
}

// PercentOf returns amount*pct/100 rounded half-up to whole cents.
func PercentOf(amount Cents, pct int) Cents {
	if amount == 0 || pct == 0 {
		return 0
	}
	return decimal.NewFromInt(amount).
		Mul(decimal.NewFromInt(int64(pct))).
		Div(decimal.NewFromInt(100)).
		Round(0).
		IntPart()
}

// ClampPercent bounds a percentage to [0,100].
func ClampPercent(pct int) int {
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// NonNegative clamps negative amounts to zero.
func NonNegative(amount Cents) Cents {
	if amount < 0 {
		return 0
	}
	return amount
}
