package coupon

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/noah-isme/storefront-api/internal/db"
	"github.com/noah-isme/storefront-api/internal/money"
	"github.com/noah-isme/storefront-api/internal/pricing"
)

var (
	// ErrInvalidCoupon is returned for unknown or unusable coupon codes.
	ErrInvalidCoupon = errors.New("invalid coupon")
	// ErrCouponInactive is returned when the coupon is disabled or not yet valid.
	ErrCouponInactive = fmt.Errorf("coupon not active: %w", ErrInvalidCoupon)
	// ErrCouponExpired is returned when the coupon validity window has passed.
	ErrCouponExpired = fmt.Errorf("coupon expired: %w", ErrInvalidCoupon)
	// ErrUsageLimitReached indicates the coupon has exhausted its redemptions.
	ErrUsageLimitReached = fmt.Errorf("coupon usage limit reached: %w", ErrInvalidCoupon)
)

// Rule captures a coupon and its runtime constraints.
type Rule struct {
	Code       string             `json:"code"`
	Name       string             `json:"name"`
	Kind       pricing.CouponKind `json:"kind"`
	AmountOff  money.Cents        `json:"amountOff,omitempty"`
	PercentOff int                `json:"percentOff,omitempty"`
	ValidFrom  *time.Time         `json:"validFrom,omitempty"`
	ValidTo    *time.Time         `json:"validTo,omitempty"`
	UsageLimit *int32             `json:"usageLimit,omitempty"`
	UsedCount  int32              `json:"usedCount"`
	Active     bool               `json:"active"`
}

// Validate ensures the rule can be applied at the provided instant.
func (r Rule) Validate(now time.Time) error {
	if !r.Active || !r.Kind.Valid() {
		return ErrCouponInactive
	}
	if r.ValidFrom != nil && now.Before(*r.ValidFrom) {
		return ErrCouponInactive
	}
	if r.ValidTo != nil && now.After(*r.ValidTo) {
		return ErrCouponExpired
	}
	if r.UsageLimit != nil && *r.UsageLimit >= 0 && r.UsedCount >= *r.UsageLimit {
		return ErrUsageLimitReached
	}
	return nil
}

// Coupon returns the pricing view of the rule.
func (r Rule) Coupon() *pricing.Coupon {
	return &pricing.Coupon{
		Code:       r.Code,
		Name:       r.Name,
		Kind:       r.Kind,
		AmountOff:  r.AmountOff,
		PercentOff: r.PercentOff,
	}
}

// RuleFromModel converts a database row into a Rule.
func RuleFromModel(c db.Coupon) Rule {
	rule := Rule{
		Code:       c.Code,
		Name:       c.Name,
		Kind:       pricing.CouponKind(strings.ToLower(c.Kind)),
		ValidFrom:  c.ValidFrom,
		ValidTo:    c.ValidTo,
		UsageLimit: c.UsageLimit,
		UsedCount:  c.UsedCount,
		Active:     c.Active,
	}
	if c.AmountOff != nil {
		rule.AmountOff = *c.AmountOff
	}
	if c.PercentOff != nil {
		rule.PercentOff = int(*c.PercentOff)
	}
	return rule
}
