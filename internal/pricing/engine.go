package pricing

import "github.com/noah-isme/storefront-api/internal/money"

// Money represents a monetary value stored in minor units.
type Money = money.Cents

// Default delivery policy values in cents.
const (
	DefaultDeliveryFee           Money = 500
	DefaultFreeShippingThreshold Money = 10000
)

// Item describes a line item used for pricing calculation.
type Item struct {
	ProductID string
	Qty       int
	UnitPrice Money
	Discount  DiscountSource
}

// Summary aggregates computed pricing components.
type Summary struct {
	Subtotal        Money `json:"subtotal"`
	ProductDiscount Money `json:"productDiscount"`
	CouponDiscount  Money `json:"couponDiscount"`
	Discount        Money `json:"discount"`
	DeliveryFee     Money `json:"deliveryFee"`
	Total           Money `json:"total"`
}

// Policy holds the delivery fee rule. The fee is waived only when the
// pre-discount subtotal is strictly greater than the threshold.
type Policy struct {
	DeliveryFee           Money
	FreeShippingThreshold Money
}

// DefaultPolicy returns the storefront's standard delivery rule.
func DefaultPolicy() Policy {
	return Policy{DeliveryFee: DefaultDeliveryFee, FreeShippingThreshold: DefaultFreeShippingThreshold}
}

// Fee returns the delivery fee for the given pre-discount subtotal.
func (p Policy) Fee(subtotal Money) Money {
	if subtotal > p.FreeShippingThreshold {
		return 0
	}
	return money.NonNegative(p.DeliveryFee)
}

// Compute calculates basket totals for the given items and optional coupon.
func Compute(items []Item, coupon *Coupon, policy Policy) Summary {
	var subtotal, productDiscount Money
	for _, it := range items {
		if it.Qty <= 0 {
			continue
		}
		unit := money.NonNegative(it.UnitPrice)
		qty := Money(it.Qty)
		subtotal += qty * unit
		productDiscount += qty * LineSaving(unit, it.Discount)
	}
	couponDiscount := coupon.Amount(subtotal)
	discount := productDiscount + couponDiscount
	fee := policy.Fee(subtotal)
	return Summary{
		Subtotal:        subtotal,
		ProductDiscount: productDiscount,
		CouponDiscount:  couponDiscount,
		Discount:        discount,
		DeliveryFee:     fee,
		Total:           money.NonNegative(subtotal - discount + fee),
	}
}

// LineSaving is the per-unit saving of a discount source, never negative.
func LineSaving(unitPrice Money, src DiscountSource) Money {
	unit := money.NonNegative(unitPrice)
	return money.NonNegative(unit - FinalPrice(unit, src))
}
