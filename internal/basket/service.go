package basket

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/storefront-api/internal/catalog"
	"github.com/noah-isme/storefront-api/internal/common"
	"github.com/noah-isme/storefront-api/internal/coupon"
	"github.com/noah-isme/storefront-api/internal/db"
	"github.com/noah-isme/storefront-api/internal/lock"
	"github.com/noah-isme/storefront-api/internal/obs"
	"github.com/noah-isme/storefront-api/internal/pricing"
)

// Basket lifecycle statuses.
const (
	StatusOpen       = "open"
	StatusCheckedOut = "checked_out"
)

// MaxLineQuantity bounds the quantity of a single basket line.
const MaxLineQuantity = 999

var (
	// ErrNotFound indicates the requested basket or line could not be located.
	ErrNotFound = errors.New("basket not found")
	// ErrInvalidInput is returned when the provided payload is invalid.
	ErrInvalidInput = errors.New("invalid input")
	// ErrClosed is returned when mutating a basket that is no longer open.
	ErrClosed = errors.New("basket is closed")
	// ErrProductUnavailable is returned when adding a product that is not for sale.
	ErrProductUnavailable = errors.New("product unavailable")
)

// Store captures the basket queries used by the service.
type Store interface {
	CreateBasket(ctx context.Context, arg db.CreateBasketParams) (db.Basket, error)
	GetBasket(ctx context.Context, id uuid.UUID) (db.Basket, error)
	GetBasketForUpdate(ctx context.Context, id uuid.UUID) (db.Basket, error)
	TouchBasket(ctx context.Context, id uuid.UUID, expiresAt time.Time) error
	SetBasketCoupon(ctx context.Context, id uuid.UUID, code *string) error
	ListBasketItems(ctx context.Context, basketID uuid.UUID) ([]db.BasketItem, error)
	GetBasketItem(ctx context.Context, basketID, id uuid.UUID) (db.BasketItem, error)
	FindBasketItem(ctx context.Context, basketID, productID uuid.UUID, variant string) (db.BasketItem, error)
	InsertBasketItem(ctx context.Context, arg db.InsertBasketItemParams) (db.BasketItem, error)
	UpdateBasketItemQty(ctx context.Context, id uuid.UUID, qty int32) error
	DeleteBasketItem(ctx context.Context, basketID, id uuid.UUID) error
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

// Products resolves live catalog data.
type Products interface {
	Get(ctx context.Context, id uuid.UUID) (catalog.Product, error)
	GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]catalog.Product, error)
}

// Coupons resolves usable coupons.
type Coupons interface {
	Lookup(ctx context.Context, code string) (coupon.Rule, error)
}

// Service encapsulates basket domain operations. Totals are never stored;
// every read prices the basket against live catalog data.
type Service struct {
	Store    Store
	Tx       Transactor
	Products Products
	Coupons  Coupons
	Locker   lock.Locker
	Policy   pricing.Policy
	TTL      time.Duration
	LockTTL  time.Duration
	Now      func() time.Time
}

func (s *Service) ttl() time.Duration {
	if s == nil || s.TTL <= 0 {
		return 30 * 24 * time.Hour
	}
	return s.TTL
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) ready() error {
	if s == nil || s.Store == nil || s.Tx == nil || s.Products == nil || s.Coupons == nil {
		return errors.New("basket service not configured")
	}
	return nil
}

// Create opens a basket owned by the authenticated buyer, if any.
func (s *Service) Create(ctx context.Context) (Basket, error) {
	if err := s.ready(); err != nil {
		return Basket{}, err
	}
	var owner *string
	if buyer, ok := common.BuyerID(ctx); ok {
		owner = &buyer
	}
	row, err := s.Store.CreateBasket(ctx, db.CreateBasketParams{OwnerID: owner, ExpiresAt: s.now().Add(s.ttl())})
	obs.RecordBasketMutation("create", err)
	if err != nil {
		return Basket{}, fmt.Errorf("create basket: %w", err)
	}
	return s.Price(ctx, row, nil)
}

// Get returns the priced basket.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Basket, error) {
	if err := s.ready(); err != nil {
		return Basket{}, err
	}
	row, err := s.Store.GetBasket(ctx, id)
	if err != nil {
		return Basket{}, notFound(err)
	}
	if err := s.visible(ctx, row); err != nil {
		return Basket{}, err
	}
	items, err := s.Store.ListBasketItems(ctx, id)
	if err != nil {
		return Basket{}, fmt.Errorf("list basket items: %w", err)
	}
	return s.Price(ctx, row, items)
}

// AddItemInput describes an item to add.
type AddItemInput struct {
	ProductID uuid.UUID `json:"productId" validate:"required"`
	Variant   string    `json:"variant" validate:"max=64"`
	Quantity  int       `json:"quantity" validate:"required,gt=0,lte=999"`
}

// AddItem inserts a line or increments the matching product/variant line.
func (s *Service) AddItem(ctx context.Context, basketID uuid.UUID, in AddItemInput) (Basket, error) {
	if err := s.ready(); err != nil {
		return Basket{}, err
	}
	if in.Quantity <= 0 || in.Quantity > MaxLineQuantity {
		return Basket{}, fmt.Errorf("quantity must be within 1..%d: %w", MaxLineQuantity, ErrInvalidInput)
	}
	product, err := s.Products.Get(ctx, in.ProductID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return Basket{}, ErrProductUnavailable
		}
		return Basket{}, err
	}
	variant := strings.TrimSpace(in.Variant)
	return s.mutate(ctx, "add_item", basketID, func(st Store, b db.Basket) error {
		existing, err := st.FindBasketItem(ctx, b.ID, product.ID, variant)
		switch {
		case err == nil:
			qty := int(existing.Quantity) + in.Quantity
			if qty > MaxLineQuantity {
				return fmt.Errorf("quantity must be within 1..%d: %w", MaxLineQuantity, ErrInvalidInput)
			}
			return st.UpdateBasketItemQty(ctx, existing.ID, int32(qty))
		case errors.Is(err, pgx.ErrNoRows):
			_, err = st.InsertBasketItem(ctx, db.InsertBasketItemParams{
				BasketID:  b.ID,
				ProductID: product.ID,
				Variant:   variant,
				Quantity:  int32(in.Quantity),
			})
			return err
		default:
			return err
		}
	})
}

// UpdateItem sets the quantity of a line. Zero or negative quantities are rejected;
// use RemoveItem to delete.
func (s *Service) UpdateItem(ctx context.Context, basketID, itemID uuid.UUID, qty int) (Basket, error) {
	if err := s.ready(); err != nil {
		return Basket{}, err
	}
	if qty <= 0 || qty > MaxLineQuantity {
		return Basket{}, fmt.Errorf("quantity must be within 1..%d: %w", MaxLineQuantity, ErrInvalidInput)
	}
	return s.mutate(ctx, "update_item", basketID, func(st Store, b db.Basket) error {
		item, err := st.GetBasketItem(ctx, b.ID, itemID)
		if err != nil {
			return notFound(err)
		}
		return st.UpdateBasketItemQty(ctx, item.ID, int32(qty))
	})
}

// RemoveItem removes qty units of a line; qty <= 0 or at least the line
// quantity deletes the line.
func (s *Service) RemoveItem(ctx context.Context, basketID, itemID uuid.UUID, qty int) (Basket, error) {
	if err := s.ready(); err != nil {
		return Basket{}, err
	}
	return s.mutate(ctx, "remove_item", basketID, func(st Store, b db.Basket) error {
		item, err := st.GetBasketItem(ctx, b.ID, itemID)
		if err != nil {
			return notFound(err)
		}
		if qty <= 0 || qty >= int(item.Quantity) {
			return st.DeleteBasketItem(ctx, b.ID, item.ID)
		}
		return st.UpdateBasketItemQty(ctx, item.ID, item.Quantity-int32(qty))
	})
}

// ApplyCoupon validates code and attaches it, replacing any previous coupon.
func (s *Service) ApplyCoupon(ctx context.Context, basketID uuid.UUID, code string) (Basket, error) {
	if err := s.ready(); err != nil {
		return Basket{}, err
	}
	rule, err := s.Coupons.Lookup(ctx, code)
	if err != nil {
		if errors.Is(err, coupon.ErrInvalidCoupon) {
			obs.RecordCouponApply("invalid")
		} else {
			obs.RecordCouponApply("error")
		}
		return Basket{}, err
	}
	out, err := s.mutate(ctx, "apply_coupon", basketID, func(st Store, b db.Basket) error {
		code := rule.Code
		return st.SetBasketCoupon(ctx, b.ID, &code)
	})
	if err == nil {
		obs.RecordCouponApply("ok")
	}
	return out, err
}

// RemoveCoupon clears the applied coupon.
func (s *Service) RemoveCoupon(ctx context.Context, basketID uuid.UUID) (Basket, error) {
	if err := s.ready(); err != nil {
		return Basket{}, err
	}
	return s.mutate(ctx, "remove_coupon", basketID, func(st Store, b db.Basket) error {
		return st.SetBasketCoupon(ctx, b.ID, nil)
	})
}

// mutate runs fn under the basket lock inside a transaction holding the
// basket row lock, extends the expiry and returns the re-priced basket.
func (s *Service) mutate(ctx context.Context, op string, basketID uuid.UUID, fn func(Store, db.Basket) error) (Basket, error) {
	var (
		row   db.Basket
		items []db.BasketItem
	)
	err := s.Locker.WithLock(ctx, lock.BasketKey(basketID.String()), s.LockTTL, func(ctx context.Context) error {
		return s.Tx.InTx(ctx, func(st Store) error {
			b, err := st.GetBasketForUpdate(ctx, basketID)
			if err != nil {
				return notFound(err)
			}
			if err := s.Mutable(ctx, b); err != nil {
				return err
			}
			if err := fn(st, b); err != nil {
				return err
			}
			expires := s.now().Add(s.ttl())
			if err := st.TouchBasket(ctx, b.ID, expires); err != nil {
				return err
			}
			if row, err = st.GetBasket(ctx, b.ID); err != nil {
				return err
			}
			items, err = st.ListBasketItems(ctx, b.ID)
			return err
		})
	})
	obs.RecordBasketMutation(op, err)
	if err != nil {
		return Basket{}, err
	}
	return s.Price(ctx, row, items)
}

// Mutable reports whether the caller may change b.
func (s *Service) Mutable(ctx context.Context, b db.Basket) error {
	if err := s.visible(ctx, b); err != nil {
		return err
	}
	if b.Status != StatusOpen {
		return ErrClosed
	}
	return nil
}

// visible hides expired baskets and baskets owned by another buyer.
func (s *Service) visible(ctx context.Context, b db.Basket) error {
	if b.Status == StatusOpen && !b.ExpiresAt.IsZero() && b.ExpiresAt.Before(s.now()) {
		return ErrNotFound
	}
	if b.OwnerID != nil && *b.OwnerID != "" {
		buyer, ok := common.BuyerID(ctx)
		if !ok || buyer != *b.OwnerID {
			return ErrNotFound
		}
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
