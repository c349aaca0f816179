package pricing

import "github.com/noah-isme/storefront-api/internal/money"

// DisplaySummary is a Summary with formatted amounts for clients.
type DisplaySummary struct {
	Summary
	SubtotalDisplay        string `json:"subtotalDisplay"`
	ProductDiscountDisplay string `json:"productDiscountDisplay"`
	CouponDiscountDisplay  string `json:"couponDiscountDisplay"`
	DiscountDisplay        string `json:"discountDisplay"`
	DeliveryFeeDisplay     string `json:"deliveryFeeDisplay"`
	TotalDisplay           string `json:"totalDisplay"`
}

// Display formats s with f. The integer fields stay authoritative.
func Display(s Summary, f money.Formatter) DisplaySummary {
	return DisplaySummary{
		Summary:                s,
		SubtotalDisplay:        f.Format(s.Subtotal),
		ProductDiscountDisplay: f.Format(s.ProductDiscount),
		CouponDiscountDisplay:  f.Format(s.CouponDiscount),
		DiscountDisplay:        f.Format(s.Discount),
		DeliveryFeeDisplay:     f.Format(s.DeliveryFee),
		TotalDisplay:           f.Format(s.Total),
	}
}
