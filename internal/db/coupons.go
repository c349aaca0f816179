package db

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const couponColumns = `id, code, name, kind, amount_off, percent_off, valid_from, valid_to, usage_limit, used_count, active, created_at`

func scanCoupon(row pgx.Row) (Coupon, error) {
	var c Coupon
	err := row.Scan(&c.ID, &c.Code, &c.Name, &c.Kind, &c.AmountOff, &c.PercentOff, &c.ValidFrom, &c.ValidTo, &c.UsageLimit, &c.UsedCount, &c.Active, &c.CreatedAt)
	return c, err
}

// GetCouponByCode looks a coupon up case-insensitively.
func (q *Queries) GetCouponByCode(ctx context.Context, code string) (Coupon, error) {
	row := q.db.QueryRow(ctx, `SELECT `+couponColumns+` FROM coupons WHERE LOWER(code) = LOWER($1)`, code)
	return scanCoupon(row)
}

type CreateCouponParams struct {
	Code       string
	Name       string
	Kind       string
	AmountOff  *int64
	PercentOff *int32
	ValidFrom  *time.Time
	ValidTo    *time.Time
	UsageLimit *int32
}

// CreateCoupon inserts a coupon.
func (q *Queries) CreateCoupon(ctx context.Context, arg CreateCouponParams) (Coupon, error) {
	row := q.db.QueryRow(ctx, `INSERT INTO coupons (id, code, name, kind, amount_off, percent_off, valid_from, valid_to, usage_limit)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING `+couponColumns,
		uuid.New(), arg.Code, arg.Name, arg.Kind, arg.AmountOff, arg.PercentOff, arg.ValidFrom, arg.ValidTo, arg.UsageLimit)
	return scanCoupon(row)
}

// IncrementCouponUsage bumps used_count for a redeemed coupon. It reports
// false when the usage limit was already reached.
func (q *Queries) IncrementCouponUsage(ctx context.Context, code string) (bool, error) {
	tag, err := q.db.Exec(ctx, `UPDATE coupons SET used_count = used_count + 1
WHERE LOWER(code) = LOWER($1) AND (usage_limit IS NULL OR used_count < usage_limit)`, code)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
