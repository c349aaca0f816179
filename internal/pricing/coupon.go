package pricing

import "github.com/noah-isme/storefront-api/internal/money"

// CouponKind enumerates the basket-level coupon types.
type CouponKind string

const (
	// CouponAmountOff subtracts a flat amount in cents.
	CouponAmountOff CouponKind = "amount_off"
	// CouponPercentOff subtracts a percentage of the pre-discount subtotal.
	CouponPercentOff CouponKind = "percent_off"
)

// Valid reports whether k is a known coupon kind.
func (k CouponKind) Valid() bool {
	return k == CouponAmountOff || k == CouponPercentOff
}

// Coupon is the pricing view of an applied coupon.
type Coupon struct {
	Code       string
	Name       string
	Kind       CouponKind
	AmountOff  Money
	PercentOff int
}

// Amount returns the coupon discount for the given pre-discount subtotal.
// A nil coupon yields zero.
func (c *Coupon) Amount(subtotal Money) Money {
	if c == nil {
		return 0
	}
	switch c.Kind {
	case CouponAmountOff:
		return money.NonNegative(c.AmountOff)
	case CouponPercentOff:
		return money.PercentOf(money.NonNegative(subtotal), money.ClampPercent(c.PercentOff))
	default:
		return 0
	}
}
