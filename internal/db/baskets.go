package db

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const basketColumns = `id, owner_id, coupon_code, status, created_at, updated_at, expires_at`

func scanBasket(row pgx.Row) (Basket, error) {
	var b Basket
	err := row.Scan(&b.ID, &b.OwnerID, &b.CouponCode, &b.Status, &b.CreatedAt, &b.UpdatedAt, &b.ExpiresAt)
	return b, err
}

type CreateBasketParams struct {
	OwnerID   *string
	ExpiresAt time.Time
}

// CreateBasket inserts an open basket.
func (q *Queries) CreateBasket(ctx context.Context, arg CreateBasketParams) (Basket, error) {
	row := q.db.QueryRow(ctx, `INSERT INTO baskets (id, owner_id, expires_at) VALUES ($1, $2, $3) RETURNING `+basketColumns,
		uuid.New(), arg.OwnerID, arg.ExpiresAt)
	return scanBasket(row)
}

// GetBasket loads a basket by id.
func (q *Queries) GetBasket(ctx context.Context, id uuid.UUID) (Basket, error) {
	return scanBasket(q.db.QueryRow(ctx, `SELECT `+basketColumns+` FROM baskets WHERE id = $1`, id))
}

// GetBasketForUpdate loads a basket and locks its row until the transaction ends.
func (q *Queries) GetBasketForUpdate(ctx context.Context, id uuid.UUID) (Basket, error) {
	return scanBasket(q.db.QueryRow(ctx, `SELECT `+basketColumns+` FROM baskets WHERE id = $1 FOR UPDATE`, id))
}

// TouchBasket extends the basket expiry.
func (q *Queries) TouchBasket(ctx context.Context, id uuid.UUID, expiresAt time.Time) error {
	_, err := q.db.Exec(ctx, `UPDATE baskets SET expires_at = $2, updated_at = NOW() WHERE id = $1`, id, expiresAt)
	return err
}

// SetBasketCoupon replaces the applied coupon code; nil clears it.
func (q *Queries) SetBasketCoupon(ctx context.Context, id uuid.UUID, code *string) error {
	_, err := q.db.Exec(ctx, `UPDATE baskets SET coupon_code = $2, updated_at = NOW() WHERE id = $1`, id, code)
	return err
}

// SetBasketStatus updates the basket lifecycle status.
func (q *Queries) SetBasketStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := q.db.Exec(ctx, `UPDATE baskets SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	return err
}

const basketItemColumns = `id, basket_id, product_id, variant, quantity, created_at`

func scanBasketItem(row pgx.Row) (BasketItem, error) {
	var it BasketItem
	err := row.Scan(&it.ID, &it.BasketID, &it.ProductID, &it.Variant, &it.Quantity, &it.CreatedAt)
	return it, err
}

// ListBasketItems returns basket lines in insertion order.
func (q *Queries) ListBasketItems(ctx context.Context, basketID uuid.UUID) ([]BasketItem, error) {
	rows, err := q.db.Query(ctx, `SELECT `+basketItemColumns+` FROM basket_items WHERE basket_id = $1 ORDER BY created_at, id`, basketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []BasketItem
	for rows.Next() {
		it, err := scanBasketItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// GetBasketItem loads a single basket line.
func (q *Queries) GetBasketItem(ctx context.Context, basketID, id uuid.UUID) (BasketItem, error) {
	return scanBasketItem(q.db.QueryRow(ctx, `SELECT `+basketItemColumns+` FROM basket_items WHERE basket_id = $1 AND id = $2`, basketID, id))
}

// FindBasketItem finds the line for a product/variant pair.
func (q *Queries) FindBasketItem(ctx context.Context, basketID, productID uuid.UUID, variant string) (BasketItem, error) {
	return scanBasketItem(q.db.QueryRow(ctx, `SELECT `+basketItemColumns+` FROM basket_items WHERE basket_id = $1 AND product_id = $2 AND variant = $3`, basketID, productID, variant))
}

type InsertBasketItemParams struct {
	BasketID  uuid.UUID
	ProductID uuid.UUID
	Variant   string
	Quantity  int32
}

// InsertBasketItem adds a new basket line.
func (q *Queries) InsertBasketItem(ctx context.Context, arg InsertBasketItemParams) (BasketItem, error) {
	row := q.db.QueryRow(ctx, `INSERT INTO basket_items (id, basket_id, product_id, variant, quantity) VALUES ($1, $2, $3, $4, $5) RETURNING `+basketItemColumns,
		uuid.New(), arg.BasketID, arg.ProductID, arg.Variant, arg.Quantity)
	return scanBasketItem(row)
}

// UpdateBasketItemQty sets the quantity of a basket line.
func (q *Queries) UpdateBasketItemQty(ctx context.Context, id uuid.UUID, qty int32) error {
	_, err := q.db.Exec(ctx, `UPDATE basket_items SET quantity = $2 WHERE id = $1`, id, qty)
	return err
}

// DeleteBasketItem removes a basket line.
func (q *Queries) DeleteBasketItem(ctx context.Context, basketID, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, `DELETE FROM basket_items WHERE basket_id = $1 AND id = $2`, basketID, id)
	return err
}
