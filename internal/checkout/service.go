package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/storefront-api/internal/basket"
	"github.com/noah-isme/storefront-api/internal/common"
	"github.com/noah-isme/storefront-api/internal/coupon"
	"github.com/noah-isme/storefront-api/internal/db"
	"github.com/noah-isme/storefront-api/internal/events"
	"github.com/noah-isme/storefront-api/internal/lock"
	"github.com/noah-isme/storefront-api/internal/obs"
	"github.com/noah-isme/storefront-api/internal/order"
)

var (
	// ErrUnauthenticated is returned when no buyer is attached to the request.
	ErrUnauthenticated = errors.New("buyer authentication required")
	// ErrEmptyBasket is returned when finalising a basket without lines.
	ErrEmptyBasket = errors.New("basket is empty")
	// ErrUnavailableItems is returned when a line refers to a withdrawn product.
	ErrUnavailableItems = errors.New("basket contains unavailable products")
)

// Store captures the queries a checkout transaction needs.
type Store interface {
	basket.Store
	events.EventStore
	SetBasketStatus(ctx context.Context, id uuid.UUID, status string) error
	CreateOrder(ctx context.Context, arg db.CreateOrderParams) (db.Order, error)
	CreateOrderItem(ctx context.Context, arg db.CreateOrderItemParams) error
	IncrementCouponUsage(ctx context.Context, code string) (bool, error)
}

// Transactor runs fn against a Store bound to one database transaction.
type Transactor interface {
	InTx(ctx context.Context, fn func(Store) error) error
}

type pgxTransactor struct {
	pool *pgxpool.Pool
}

// NewTransactor returns a Transactor backed by the pool.
func NewTransactor(pool *pgxpool.Pool) Transactor {
	return pgxTransactor{pool: pool}
}

func (t pgxTransactor) InTx(ctx context.Context, fn func(Store) error) error {
	return db.InTx(ctx, t.pool, func(q *db.Queries) error { return fn(q) })
}

// Input is the buyer information supplied at checkout. The buyer id always
// comes from the authenticated principal.
type Input struct {
	Email           string        `json:"email" validate:"required,email,max=254"`
	ShippingAddress order.Address `json:"shippingAddress" validate:"required"`
}

// Service freezes baskets into orders.
type Service struct {
	Tx       Transactor
	Baskets  *basket.Service
	Locker   lock.Locker
	LockTTL  time.Duration
	Events   *events.Bus
	Currency string
	Now      func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Finalize prices the basket one last time and persists the order snapshot,
// its lines, the coupon redemption and the basket closure atomically.
func (s *Service) Finalize(ctx context.Context, basketID uuid.UUID, in Input) (order.Order, error) {
	if s == nil || s.Tx == nil || s.Baskets == nil {
		return order.Order{}, errors.New("checkout service not configured")
	}
	buyerID, ok := common.BuyerID(ctx)
	if !ok {
		return order.Order{}, ErrUnauthenticated
	}
	buyer := order.Buyer{BuyerID: buyerID, Email: in.Email, ShippingAddress: in.ShippingAddress}
	if err := common.Validator().Struct(buyer); err != nil {
		return order.Order{}, common.NewAppError("VALIDATION_ERROR", "buyer details failed validation", http.StatusBadRequest, err).
			WithDetails(common.ValidationDetails(err))
	}
	address, err := json.Marshal(buyer.ShippingAddress)
	if err != nil {
		return order.Order{}, fmt.Errorf("encode address: %w", err)
	}

	var (
		out      order.Order
		recorded db.DomainEvent
	)
	err = s.Locker.WithLock(ctx, lock.BasketKey(basketID.String()), s.LockTTL, func(ctx context.Context) error {
		return s.Tx.InTx(ctx, func(st Store) error {
			row, err := st.GetBasketForUpdate(ctx, basketID)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return basket.ErrNotFound
				}
				return err
			}
			if err := s.Baskets.Mutable(ctx, row); err != nil {
				return err
			}
			rows, err := st.ListBasketItems(ctx, basketID)
			if err != nil {
				return err
			}
			if len(rows) == 0 {
				return ErrEmptyBasket
			}
			priced, err := s.Baskets.Price(ctx, row, rows)
			if err != nil {
				return err
			}
			if priced.CouponStale {
				return fmt.Errorf("coupon %s: %w", priced.CouponCode, coupon.ErrInvalidCoupon)
			}
			items := make([]order.Item, 0, len(priced.Lines))
			for _, l := range priced.Lines {
				if !l.Available {
					return ErrUnavailableItems
				}
				items = append(items, order.Item{
					ProductID:          l.ProductID,
					Name:               l.Name,
					PictureURL:         l.PictureURL,
					Variant:            l.Variant,
					UnitPrice:          l.UnitPrice,
					FinalPrice:         l.FinalPrice,
					Quantity:           l.Quantity,
					DiscountPercentage: l.DiscountPercentage,
					PromotionalPrice:   l.PromotionalPrice,
				})
			}
			code := ""
			if priced.Coupon != nil {
				code = priced.Coupon.Code
			}
			snap := order.Snapshot(basketID, priced.Totals, items, buyer, code, s.Currency, s.now())
			snap.ID = uuid.New()

			created, err := st.CreateOrder(ctx, db.CreateOrderParams{
				ID:              snap.ID,
				BuyerID:         snap.BuyerID,
				BasketID:        snap.BasketID,
				Status:          snap.Status,
				Currency:        snap.Currency,
				Subtotal:        snap.Subtotal,
				ProductDiscount: snap.ProductDiscount,
				CouponDiscount:  snap.CouponDiscount,
				Discount:        snap.Discount,
				DeliveryFee:     snap.DeliveryFee,
				Total:           snap.Total,
				CouponCode:      snap.CouponCode,
				BuyerEmail:      snap.BuyerEmail,
				ShippingAddress: address,
			})
			if err != nil {
				return fmt.Errorf("create order: %w", err)
			}
			for _, it := range snap.Items {
				if err := st.CreateOrderItem(ctx, db.CreateOrderItemParams{
					OrderID:            created.ID,
					ProductID:          it.ProductID,
					Name:               it.Name,
					PictureURL:         it.PictureURL,
					Variant:            it.Variant,
					UnitPrice:          it.UnitPrice,
					FinalPrice:         it.FinalPrice,
					Quantity:           int32(it.Quantity),
					DiscountPercentage: int32Ptr(it.DiscountPercentage),
					PromotionalPrice:   it.PromotionalPrice,
				}); err != nil {
					return fmt.Errorf("create order item: %w", err)
				}
			}
			if code != "" {
				ok, err := st.IncrementCouponUsage(ctx, code)
				if err != nil {
					return fmt.Errorf("redeem coupon: %w", err)
				}
				if !ok {
					return fmt.Errorf("coupon %s: %w", code, coupon.ErrUsageLimitReached)
				}
			}
			if err := st.SetBasketStatus(ctx, basketID, basket.StatusCheckedOut); err != nil {
				return fmt.Errorf("close basket: %w", err)
			}
			if s.Events != nil {
				recorded, err = s.Events.WithStore(st).Record(ctx, events.TopicOrderFinalized, created.ID, map[string]any{
					"orderId":  created.ID.String(),
					"basketId": basketID.String(),
					"buyerId":  buyerID,
					"total":    created.Total,
				})
				if err != nil {
					return err
				}
			}
			out = order.FromModel(created, nil)
			out.Items = snap.Items
			out.ShippingAddress = snap.ShippingAddress
			return nil
		})
	})
	obs.RecordOrderFinalized(out.Total, err)
	if err != nil {
		return order.Order{}, err
	}
	if s.Events != nil && recorded.ID != uuid.Nil {
		if err := s.Events.Dispatch(ctx, recorded); err != nil {
			obs.Logger(ctx, nil).Warn().Err(err).Str("order_id", out.ID.String()).Msg("order notification failed")
		}
	}
	return out, nil
}

func int32Ptr(v *int) *int32 {
	if v == nil {
		return nil
	}
	n := int32(*v)
	return &n
}
