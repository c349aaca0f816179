package pricing

import "github.com/noah-isme/storefront-api/internal/money"

// DiscountKind tags which discount source applies to a product.
type DiscountKind uint8

const (
	// DiscountNone leaves the unit price unchanged.
	DiscountNone DiscountKind = iota
	// DiscountPercentage reduces the unit price by a percentage.
	DiscountPercentage
	// DiscountPromotional replaces the unit price with a fixed promotional price.
	DiscountPromotional
)

func (k DiscountKind) String() string {
	switch k {
	case DiscountPercentage:
		return "percentage"
	case DiscountPromotional:
		return "promotional"
	default:
		return "none"
	}
}

// DiscountSource is the product-level discount applied to a line.
// The zero value is DiscountNone.
type DiscountSource struct {
	Kind    DiscountKind
	Percent int
	Price   Money
}

// NoDiscount returns a source that keeps the unit price.
func NoDiscount() DiscountSource { return DiscountSource{} }

// PercentOff returns a percentage discount source.
func PercentOff(pct int) DiscountSource {
	return DiscountSource{Kind: DiscountPercentage, Percent: pct}
}

// Promotional returns a promotional price override.
func Promotional(price Money) DiscountSource {
	return DiscountSource{Kind: DiscountPromotional, Price: price}
}

// SourceFrom builds a discount source from the nullable product columns.
// A promotional price takes precedence over a discount percentage.
func SourceFrom(discountPercentage *int, promotionalPrice *Money) DiscountSource {
	switch {
	case promotionalPrice != nil:
		return Promotional(*promotionalPrice)
	case discountPercentage != nil:
		return PercentOff(*discountPercentage)
	default:
		return NoDiscount()
	}
}

// FinalPrice returns the effective unit price in cents. Percentages are
// clamped to [0,100] and rounded half-up; the result is never negative.
func FinalPrice(unitPrice Money, src DiscountSource) Money {
	switch src.Kind {
	case DiscountPromotional:
		return money.NonNegative(src.Price)
	case DiscountPercentage:
		pct := money.ClampPercent(src.Percent)
		return money.NonNegative(money.PercentOf(money.NonNegative(unitPrice), 100-pct))
	default:
		return money.NonNegative(unitPrice)
	}
}

// ComputeFinalPrice is FinalPrice for callers holding the nullable columns.
func ComputeFinalPrice(unitPrice Money, discountPercentage *int, promotionalPrice *Money) Money {
	return FinalPrice(unitPrice, SourceFrom(discountPercentage, promotionalPrice))
}
