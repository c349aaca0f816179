package coupon

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/noah-isme/storefront-api/internal/db"
	"github.com/noah-isme/storefront-api/internal/money"
	"github.com/noah-isme/storefront-api/internal/pricing"
)

var (
	// ErrInvalidInput is returned when a coupon definition is malformed.
	ErrInvalidInput = errors.New("invalid coupon definition")
	// ErrDuplicateCode is returned when the coupon code already exists.
	ErrDuplicateCode = errors.New("coupon code already exists")
)

// Store captures the database methods required by the coupon service.
type Store interface {
	GetCouponByCode(ctx context.Context, code string) (db.Coupon, error)
	CreateCoupon(ctx context.Context, arg db.CreateCouponParams) (db.Coupon, error)
}

// Service looks up and validates coupons.
type Service struct {
	Store Store
	Now   func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Lookup returns the usable coupon for code or an error wrapping ErrInvalidCoupon.
func (s *Service) Lookup(ctx context.Context, code string) (Rule, error) {
	if s == nil || s.Store == nil {
		return Rule{}, errors.New("coupon service not configured")
	}
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return Rule{}, fmt.Errorf("code is required: %w", ErrInvalidCoupon)
	}
	row, err := s.Store.GetCouponByCode(ctx, trimmed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Rule{}, ErrInvalidCoupon
		}
		return Rule{}, fmt.Errorf("load coupon: %w", err)
	}
	rule := RuleFromModel(row)
	if err := rule.Validate(s.now()); err != nil {
		return Rule{}, err
	}
	return rule, nil
}

// CreateInput describes a new coupon.
type CreateInput struct {
	Code       string             `json:"code" validate:"required,max=64"`
	Name       string             `json:"name" validate:"required,max=200"`
	Kind       pricing.CouponKind `json:"kind" validate:"required,oneof=amount_off percent_off"`
	AmountOff  *int64             `json:"amountOff" validate:"omitempty,gt=0"`
	PercentOff *int32             `json:"percentOff" validate:"omitempty,gt=0,lte=100"`
	ValidFrom  *time.Time         `json:"validFrom"`
	ValidTo    *time.Time         `json:"validTo"`
	UsageLimit *int32             `json:"usageLimit" validate:"omitempty,gte=0"`
}

// Create stores a coupon after checking the kind-specific amount is present.
func (s *Service) Create(ctx context.Context, in CreateInput) (Rule, error) {
	if s == nil || s.Store == nil {
		return Rule{}, errors.New("coupon service not configured")
	}
	params := db.CreateCouponParams{
		Code:       strings.TrimSpace(in.Code),
		Name:       strings.TrimSpace(in.Name),
		Kind:       string(in.Kind),
		ValidFrom:  in.ValidFrom,
		ValidTo:    in.ValidTo,
		UsageLimit: in.UsageLimit,
	}
	if params.Code == "" || params.Name == "" {
		return Rule{}, fmt.Errorf("code and name are required: %w", ErrInvalidInput)
	}
	switch in.Kind {
	case pricing.CouponAmountOff:
		if in.AmountOff == nil || *in.AmountOff <= 0 {
			return Rule{}, fmt.Errorf("amountOff is required for amount_off coupons: %w", ErrInvalidInput)
		}
		params.AmountOff = in.AmountOff
	case pricing.CouponPercentOff:
		if in.PercentOff == nil || *in.PercentOff <= 0 || *in.PercentOff > 100 {
			return Rule{}, fmt.Errorf("percentOff must be within 1..100: %w", ErrInvalidInput)
		}
		params.PercentOff = in.PercentOff
	default:
		return Rule{}, fmt.Errorf("unknown coupon kind %q: %w", in.Kind, ErrInvalidInput)
	}
	if in.ValidFrom != nil && in.ValidTo != nil && in.ValidTo.Before(*in.ValidFrom) {
		return Rule{}, fmt.Errorf("validTo precedes validFrom: %w", ErrInvalidInput)
	}
	row, err := s.Store.CreateCoupon(ctx, params)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Rule{}, ErrDuplicateCode
		}
		return Rule{}, fmt.Errorf("create coupon: %w", err)
	}
	return RuleFromModel(row), nil
}

// PreviewResult describes the outcome of evaluating a coupon without mutating state.
type PreviewResult struct {
	Coupon  Rule            `json:"coupon"`
	Without pricing.Summary `json:"without"`
	With    pricing.Summary `json:"with"`
	Savings money.Cents     `json:"savings"`
}

// Preview performs a dry-run evaluation for the given items.
func (s *Service) Preview(ctx context.Context, code string, items []pricing.Item, policy pricing.Policy) (PreviewResult, error) {
	rule, err := s.Lookup(ctx, code)
	if err != nil {
		return PreviewResult{}, err
	}
	without := pricing.Compute(items, nil, policy)
	with := pricing.Compute(items, rule.Coupon(), policy)
	return PreviewResult{
		Coupon:  rule,
		Without: without,
		With:    with,
		Savings: without.Total - with.Total,
	}, nil
}
