package db

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const orderColumns = `id, buyer_id, basket_id, status, currency, subtotal, product_discount, coupon_discount, discount, delivery_fee, total, coupon_code, buyer_email, shipping_address, tracking_number, created_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.BuyerID, &o.BasketID, &o.Status, &o.Currency, &o.Subtotal, &o.ProductDiscount, &o.CouponDiscount,
		&o.Discount, &o.DeliveryFee, &o.Total, &o.CouponCode, &o.BuyerEmail, &o.ShippingAddress, &o.TrackingNumber, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

type CreateOrderParams struct {
	ID              uuid.UUID
	BuyerID         string
	BasketID        uuid.UUID
	Status          string
	Currency        string
	Subtotal        int64
	ProductDiscount int64
	CouponDiscount  int64
	Discount        int64
	DeliveryFee     int64
	Total           int64
	CouponCode      *string
	BuyerEmail      string
	ShippingAddress json.RawMessage
}

// CreateOrder inserts the order header.
func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, `INSERT INTO orders (id, buyer_id, basket_id, status, currency, subtotal, product_discount, coupon_discount, discount, delivery_fee, total, coupon_code, buyer_email, shipping_address)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
RETURNING `+orderColumns,
		arg.ID, arg.BuyerID, arg.BasketID, arg.Status, arg.Currency, arg.Subtotal, arg.ProductDiscount, arg.CouponDiscount,
		arg.Discount, arg.DeliveryFee, arg.Total, arg.CouponCode, arg.BuyerEmail, arg.ShippingAddress)
	return scanOrder(row)
}

type CreateOrderItemParams struct {
	OrderID            uuid.UUID
	ProductID          uuid.UUID
	Name               string
	PictureURL         string
	Variant            string
	UnitPrice          int64
	FinalPrice         int64
	Quantity           int32
	DiscountPercentage *int32
	PromotionalPrice   *int64
}

// CreateOrderItem inserts a frozen order line.
func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) error {
	_, err := q.db.Exec(ctx, `INSERT INTO order_items (id, order_id, product_id, name, picture_url, variant, unit_price, final_price, quantity, discount_percentage, promotional_price)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		uuid.New(), arg.OrderID, arg.ProductID, arg.Name, arg.PictureURL, arg.Variant, arg.UnitPrice, arg.FinalPrice, arg.Quantity, arg.DiscountPercentage, arg.PromotionalPrice)
	return err
}

// GetOrder loads an order by id.
func (q *Queries) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
}

// GetOrderForBuyer loads an order owned by buyerID.
func (q *Queries) GetOrderForBuyer(ctx context.Context, id uuid.UUID, buyerID string) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 AND buyer_id = $2`, id, buyerID))
}

// CountOrdersForBuyer counts a buyer's orders.
func (q *Queries) CountOrdersForBuyer(ctx context.Context, buyerID string) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, `SELECT COUNT(*) FROM orders WHERE buyer_id = $1`, buyerID).Scan(&n)
	return n, err
}

// ListOrdersForBuyer pages through a buyer's orders, newest first.
func (q *Queries) ListOrdersForBuyer(ctx context.Context, buyerID string, limit, offset int32) ([]Order, error) {
	rows, err := q.db.Query(ctx, `SELECT `+orderColumns+` FROM orders WHERE buyer_id = $1 ORDER BY created_at DESC, id LIMIT $2 OFFSET $3`, buyerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// ListOrdersAfter pages through all orders by id, for maintenance tools.
func (q *Queries) ListOrdersAfter(ctx context.Context, after uuid.UUID, limit int32) ([]Order, error) {
	rows, err := q.db.Query(ctx, `SELECT `+orderColumns+` FROM orders WHERE id > $1 ORDER BY id LIMIT $2`, after, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// ListOrderItems returns the frozen lines of an order.
func (q *Queries) ListOrderItems(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, `SELECT id, order_id, product_id, name, picture_url, variant, unit_price, final_price, quantity, discount_percentage, promotional_price
FROM order_items WHERE order_id = $1 ORDER BY name, id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Name, &it.PictureURL, &it.Variant, &it.UnitPrice, &it.FinalPrice,
			&it.Quantity, &it.DiscountPercentage, &it.PromotionalPrice); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// UpdateOrderStatus changes the order status only when it still equals from.
func (q *Queries) UpdateOrderStatus(ctx context.Context, id uuid.UUID, from, to string) (bool, error) {
	tag, err := q.db.Exec(ctx, `UPDATE orders SET status = $3, updated_at = NOW() WHERE id = $1 AND status = $2`, id, from, to)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

type UpdateOrderAmountsParams struct {
	ID              uuid.UUID
	Subtotal        int64
	ProductDiscount int64
	CouponDiscount  int64
	Discount        int64
	DeliveryFee     int64
	Total           int64
}

// UpdateOrderAmounts rewrites the monetary columns. Only data migrations use it.
func (q *Queries) UpdateOrderAmounts(ctx context.Context, arg UpdateOrderAmountsParams) error {
	_, err := q.db.Exec(ctx, `UPDATE orders SET subtotal = $2, product_discount = $3, coupon_discount = $4, discount = $5, delivery_fee = $6, total = $7, updated_at = NOW() WHERE id = $1`,
		arg.ID, arg.Subtotal, arg.ProductDiscount, arg.CouponDiscount, arg.Discount, arg.DeliveryFee, arg.Total)
	return err
}
