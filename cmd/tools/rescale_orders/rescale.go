package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/noah-isme/storefront-api/internal/db"
	"github.com/noah-isme/storefront-api/internal/events"
	"github.com/noah-isme/storefront-api/internal/money"
)

type store interface {
	events.EventStore
	ListOrdersAfter(ctx context.Context, after uuid.UUID, limit int32) ([]db.Order, error)
	ListOrderItems(ctx context.Context, orderID uuid.UUID) ([]db.OrderItem, error)
	UpdateOrderAmounts(ctx context.Context, arg db.UpdateOrderAmountsParams) error
}

type transactor interface {
	InTx(ctx context.Context, fn func(store) error) error
}

// itemsSubtotal is the pre-discount subtotal implied by the frozen lines.
func itemsSubtotal(items []db.OrderItem) money.Cents {
	var sum money.Cents
	for _, it := range items {
		sum += it.UnitPrice * money.Cents(it.Quantity)
	}
	return sum
}

// plan returns the corrected amounts for a legacy row whose header was
// scaled by 100 one time too many. Line items are trusted.
func plan(o db.Order, items []db.OrderItem) (db.UpdateOrderAmountsParams, bool) {
	if !money.LooksDoubleScaled(o.Subtotal, itemsSubtotal(items)) {
		return db.UpdateOrderAmountsParams{}, false
	}
	return db.UpdateOrderAmountsParams{
		ID:              o.ID,
		Subtotal:        money.Rescale(o.Subtotal),
		ProductDiscount: money.Rescale(o.ProductDiscount),
		CouponDiscount:  money.Rescale(o.CouponDiscount),
		Discount:        money.Rescale(o.Discount),
		DeliveryFee:     money.Rescale(o.DeliveryFee),
		Total:           money.Rescale(o.Total),
	}, true
}

type result struct {
	Scanned  int
	Rescaled int
}

type rescaler struct {
	Store  store
	Tx     transactor
	Bus    *events.Bus
	Batch  int32
	DryRun bool
	Logf   func(format string, args ...any)
}

func (r rescaler) run(ctx context.Context) (result, error) {
	var (
		res   result
		after = uuid.Nil
	)
	batch := r.Batch
	if batch <= 0 {
		batch = 500
	}
	for {
		orders, err := r.Store.ListOrdersAfter(ctx, after, batch)
		if err != nil {
			return res, fmt.Errorf("list orders: %w", err)
		}
		if len(orders) == 0 {
			return res, nil
		}
		for _, o := range orders {
			after = o.ID
			res.Scanned++
			items, err := r.Store.ListOrderItems(ctx, o.ID)
			if err != nil {
				return res, fmt.Errorf("list items of %s: %w", o.ID, err)
			}
			fix, ok := plan(o, items)
			if !ok {
				continue
			}
			res.Rescaled++
			r.logf("order %s: total %d -> %d", o.ID, o.Total, fix.Total)
			if r.DryRun {
				continue
			}
			if err := r.Tx.InTx(ctx, func(st store) error {
				if err := st.UpdateOrderAmounts(ctx, fix); err != nil {
					return err
				}
				_, err := r.Bus.WithStore(st).Record(ctx, events.TopicOrderRescaled, o.ID, map[string]any{
					"orderId":       o.ID.String(),
					"previousTotal": o.Total,
					"total":         fix.Total,
				})
				return err
			}); err != nil {
				return res, fmt.Errorf("rescale %s: %w", o.ID, err)
			}
		}
	}
}

func (r rescaler) logf(format string, args ...any) {
	if r.Logf != nil {
		r.Logf(format, args...)
	}
}
