package basket

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/storefront-api/internal/coupon"
	"github.com/noah-isme/storefront-api/internal/db"
	"github.com/noah-isme/storefront-api/internal/money"
	"github.com/noah-isme/storefront-api/internal/pricing"
)

// Line is a basket line resolved against the live catalog.
type Line struct {
	ID                 uuid.UUID
	ProductID          uuid.UUID
	Name               string
	PictureURL         string
	Variant            string
	Quantity           int
	UnitPrice          money.Cents
	FinalPrice         money.Cents
	DiscountPercentage *int
	PromotionalPrice   *money.Cents
	Discount           pricing.DiscountSource
	// Available is false when the product was withdrawn after it was added.
	// Unavailable lines are excluded from the totals.
	Available bool
}

// Basket is a priced basket.
type Basket struct {
	ID        uuid.UUID
	OwnerID   *string
	Status    string
	ExpiresAt time.Time
	Lines     []Line
	Coupon    *coupon.Rule
	// CouponStale is set when the attached code no longer validates; the
	// totals then exclude it.
	CouponStale bool
	CouponCode  string
	Totals      pricing.Summary
}

// PricingItems returns the lines that take part in the totals.
func (b Basket) PricingItems() []pricing.Item {
	out := make([]pricing.Item, 0, len(b.Lines))
	for _, l := range b.Lines {
		if !l.Available {
			continue
		}
		out = append(out, pricing.Item{
			ProductID: l.ProductID.String(),
			Qty:       l.Quantity,
			UnitPrice: l.UnitPrice,
			Discount:  l.Discount,
		})
	}
	return out
}

// Price resolves rows against the catalog and coupon rules and computes totals.
func (s *Service) Price(ctx context.Context, row db.Basket, items []db.BasketItem) (Basket, error) {
	out := Basket{
		ID:        row.ID,
		OwnerID:   row.OwnerID,
		Status:    row.Status,
		ExpiresAt: row.ExpiresAt,
		Lines:     make([]Line, 0, len(items)),
	}
	if len(items) > 0 {
		ids := make([]uuid.UUID, 0, len(items))
		for _, it := range items {
			ids = append(ids, it.ProductID)
		}
		products, err := s.Products.GetMany(ctx, ids)
		if err != nil {
			return Basket{}, fmt.Errorf("resolve products: %w", err)
		}
		for _, it := range items {
			line := Line{ID: it.ID, ProductID: it.ProductID, Variant: it.Variant, Quantity: int(it.Quantity)}
			if p, ok := products[it.ProductID]; ok {
				line.Name = p.Name
				line.PictureURL = p.PictureURL
				line.UnitPrice = p.Price
				line.DiscountPercentage = p.DiscountPercentage
				line.PromotionalPrice = p.PromotionalPrice
				line.Discount = p.Discount()
				line.FinalPrice = p.FinalPrice()
				line.Available = p.Active
			}
			out.Lines = append(out.Lines, line)
		}
	}
	var applied *pricing.Coupon
	if row.CouponCode != nil && *row.CouponCode != "" {
		out.CouponCode = *row.CouponCode
		rule, err := s.Coupons.Lookup(ctx, *row.CouponCode)
		switch {
		case err == nil:
			out.Coupon = &rule
			applied = rule.Coupon()
		case errors.Is(err, coupon.ErrInvalidCoupon):
			out.CouponStale = true
		default:
			return Basket{}, fmt.Errorf("resolve coupon: %w", err)
		}
	}
	out.Totals = pricing.Compute(out.PricingItems(), applied, s.Policy)
	return out, nil
}
