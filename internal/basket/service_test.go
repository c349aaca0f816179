package basket

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storefront-api/internal/catalog"
	"github.com/noah-isme/storefront-api/internal/common"
	"github.com/noah-isme/storefront-api/internal/coupon"
	"github.com/noah-isme/storefront-api/internal/db"
	"github.com/noah-isme/storefront-api/internal/money"
	"github.com/noah-isme/storefront-api/internal/pricing"
)

type memStore struct {
	baskets map[uuid.UUID]db.Basket
	items   map[uuid.UUID]db.BasketItem
	order   []uuid.UUID
}

func newMemStore() *memStore {
	return &memStore{baskets: map[uuid.UUID]db.Basket{}, items: map[uuid.UUID]db.BasketItem{}}
}

func (m *memStore) CreateBasket(ctx context.Context, arg db.CreateBasketParams) (db.Basket, error) {
	b := db.Basket{ID: uuid.New(), OwnerID: arg.OwnerID, Status: StatusOpen, ExpiresAt: arg.ExpiresAt}
	m.baskets[b.ID] = b
	return b, nil
}

func (m *memStore) GetBasket(ctx context.Context, id uuid.UUID) (db.Basket, error) {
	b, ok := m.baskets[id]
	if !ok {
		return db.Basket{}, pgx.ErrNoRows
	}
	return b, nil
}

func (m *memStore) GetBasketForUpdate(ctx context.Context, id uuid.UUID) (db.Basket, error) {
	return m.GetBasket(ctx, id)
}

func (m *memStore) TouchBasket(ctx context.Context, id uuid.UUID, expiresAt time.Time) error {
	b := m.baskets[id]
	b.ExpiresAt = expiresAt
	m.baskets[id] = b
	return nil
}

func (m *memStore) SetBasketCoupon(ctx context.Context, id uuid.UUID, code *string) error {
	b := m.baskets[id]
	b.CouponCode = code
	m.baskets[id] = b
	return nil
}

func (m *memStore) ListBasketItems(ctx context.Context, basketID uuid.UUID) ([]db.BasketItem, error) {
	var out []db.BasketItem
	for _, id := range m.order {
		if it, ok := m.items[id]; ok && it.BasketID == basketID {
			out = append(out, it)
		}
	}
	return out, nil
}

func (m *memStore) GetBasketItem(ctx context.Context, basketID, id uuid.UUID) (db.BasketItem, error) {
	it, ok := m.items[id]
	if !ok || it.BasketID != basketID {
		return db.BasketItem{}, pgx.ErrNoRows
	}
	return it, nil
}

func (m *memStore) FindBasketItem(ctx context.Context, basketID, productID uuid.UUID, variant string) (db.BasketItem, error) {
	for _, it := range m.items {
		if it.BasketID == basketID && it.ProductID == productID && it.Variant == variant {
			return it, nil
		}
	}
	return db.BasketItem{}, pgx.ErrNoRows
}

func (m *memStore) InsertBasketItem(ctx context.Context, arg db.InsertBasketItemParams) (db.BasketItem, error) {
	it := db.BasketItem{ID: uuid.New(), BasketID: arg.BasketID, ProductID: arg.ProductID, Variant: arg.Variant, Quantity: arg.Quantity}
	m.items[it.ID] = it
	m.order = append(m.order, it.ID)
	return it, nil
}

func (m *memStore) UpdateBasketItemQty(ctx context.Context, id uuid.UUID, qty int32) error {
	it := m.items[id]
	it.Quantity = qty
	m.items[id] = it
	return nil
}

func (m *memStore) DeleteBasketItem(ctx context.Context, basketID, id uuid.UUID) error {
	delete(m.items, id)
	return nil
}

type memTx struct{ store *memStore }

func (t memTx) InTx(ctx context.Context, fn func(Store) error) error { return fn(t.store) }

type stubProducts map[uuid.UUID]catalog.Product

func (s stubProducts) Get(ctx context.Context, id uuid.UUID) (catalog.Product, error) {
	p, ok := s[id]
	if !ok || !p.Active {
		return catalog.Product{}, catalog.ErrNotFound
	}
	return p, nil
}

func (s stubProducts) GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]catalog.Product, error) {
	out := map[uuid.UUID]catalog.Product{}
	for _, id := range ids {
		if p, ok := s[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

type stubCoupons map[string]coupon.Rule

func (s stubCoupons) Lookup(ctx context.Context, code string) (coupon.Rule, error) {
	r, ok := s[code]
	if !ok {
		return coupon.Rule{}, coupon.ErrInvalidCoupon
	}
	return r, nil
}

func intPtr(v int) *int { return &v }

type fixture struct {
	svc      *Service
	store    *memStore
	products stubProducts
	coupons  stubCoupons
	shirt    uuid.UUID
	mug      uuid.UUID
	now      time.Time
}

func newFixture() *fixture {
	f := &fixture{
		store:    newMemStore(),
		products: stubProducts{},
		coupons: stubCoupons{
			"TEN":  {Code: "TEN", Name: "Ten percent", Kind: pricing.CouponPercentOff, PercentOff: 10, Active: true},
			"FLAT": {Code: "FLAT", Name: "Flat", Kind: pricing.CouponAmountOff, AmountOff: 750, Active: true},
		},
		shirt: uuid.New(),
		mug:   uuid.New(),
		now:   time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.products[f.shirt] = catalog.Product{ID: f.shirt, Name: "Shirt", Price: 5000, DiscountPercentage: intPtr(10), Active: true}
	promo := money.Cents(999)
	f.products[f.mug] = catalog.Product{ID: f.mug, Name: "Mug", Price: 1299, PromotionalPrice: &promo, Active: true}
	f.svc = &Service{
		Store:    f.store,
		Tx:       memTx{store: f.store},
		Products: f.products,
		Coupons:  f.coupons,
		Policy:   pricing.DefaultPolicy(),
		TTL:      time.Hour,
		Now:      func() time.Time { return f.now },
	}
	return f
}

func TestAddItemMergesSameProductAndVariant(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	b, err := f.svc.Create(ctx)
	require.NoError(t, err)

	_, err = f.svc.AddItem(ctx, b.ID, AddItemInput{ProductID: f.shirt, Variant: "M", Quantity: 1})
	require.NoError(t, err)
	b, err = f.svc.AddItem(ctx, b.ID, AddItemInput{ProductID: f.shirt, Variant: "M", Quantity: 1})
	require.NoError(t, err)
	require.Len(t, b.Lines, 1)
	require.Equal(t, 2, b.Lines[0].Quantity)

	b, err = f.svc.AddItem(ctx, b.ID, AddItemInput{ProductID: f.shirt, Variant: "L", Quantity: 1})
	require.NoError(t, err)
	require.Len(t, b.Lines, 2)
}

func TestBasketTotalsFollowPricingRules(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	b, _ := f.svc.Create(ctx)
	b, err := f.svc.AddItem(ctx, b.ID, AddItemInput{ProductID: f.shirt, Quantity: 2})
	require.NoError(t, err)
	require.Equal(t, pricing.Summary{
		Subtotal:        10000,
		ProductDiscount: 1000,
		Discount:        1000,
		DeliveryFee:     500,
		Total:           9500,
	}, b.Totals)
	require.Equal(t, money.Cents(4500), b.Lines[0].FinalPrice)

	b, err = f.svc.ApplyCoupon(ctx, b.ID, "TEN")
	require.NoError(t, err)
	require.Equal(t, money.Cents(1000), b.Totals.CouponDiscount)
	require.Equal(t, money.Cents(8500), b.Totals.Total)
	require.NotNil(t, b.Coupon)

	b, err = f.svc.RemoveCoupon(ctx, b.ID)
	require.NoError(t, err)
	require.Nil(t, b.Coupon)
	require.Equal(t, money.Cents(9500), b.Totals.Total)
}

func TestAddItemRejectsInvalidQuantity(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	b, _ := f.svc.Create(ctx)
	for _, qty := range []int{0, -1, MaxLineQuantity + 1} {
		_, err := f.svc.AddItem(ctx, b.ID, AddItemInput{ProductID: f.shirt, Quantity: qty})
		require.ErrorIs(t, err, ErrInvalidInput)
	}
	_, err := f.svc.UpdateItem(ctx, b.ID, uuid.New(), 0)
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestAddItemRequiresAvailableProduct(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	b, _ := f.svc.Create(ctx)
	_, err := f.svc.AddItem(ctx, b.ID, AddItemInput{ProductID: uuid.New(), Quantity: 1})
	require.ErrorIs(t, err, ErrProductUnavailable)
}

func TestRemoveItemPartialAndFull(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	b, _ := f.svc.Create(ctx)
	b, _ = f.svc.AddItem(ctx, b.ID, AddItemInput{ProductID: f.mug, Quantity: 3})
	itemID := b.Lines[0].ID

	b, err := f.svc.RemoveItem(ctx, b.ID, itemID, 2)
	require.NoError(t, err)
	require.Equal(t, 1, b.Lines[0].Quantity)

	b, err = f.svc.RemoveItem(ctx, b.ID, itemID, 0)
	require.NoError(t, err)
	require.Empty(t, b.Lines)
	require.Equal(t, money.Cents(500), b.Totals.Total)

	_, err = f.svc.RemoveItem(ctx, b.ID, itemID, 0)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateItemSetsQuantity(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	b, _ := f.svc.Create(ctx)
	b, _ = f.svc.AddItem(ctx, b.ID, AddItemInput{ProductID: f.shirt, Quantity: 1})
	b, err := f.svc.UpdateItem(ctx, b.ID, b.Lines[0].ID, 3)
	require.NoError(t, err)
	require.Equal(t, 3, b.Lines[0].Quantity)
	require.Equal(t, money.Cents(15000), b.Totals.Subtotal)
	require.Zero(t, b.Totals.DeliveryFee)
}

func TestApplyUnknownCoupon(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	b, _ := f.svc.Create(ctx)
	_, err := f.svc.ApplyCoupon(ctx, b.ID, "NOPE")
	require.ErrorIs(t, err, coupon.ErrInvalidCoupon)
	stored, _ := f.store.GetBasket(ctx, b.ID)
	require.Nil(t, stored.CouponCode)
}

func TestStaleCouponIsIgnoredInView(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	b, _ := f.svc.Create(ctx)
	b, _ = f.svc.AddItem(ctx, b.ID, AddItemInput{ProductID: f.shirt, Quantity: 1})
	_, err := f.svc.ApplyCoupon(ctx, b.ID, "FLAT")
	require.NoError(t, err)

	delete(f.coupons, "FLAT")
	b, err = f.svc.Get(ctx, b.ID)
	require.NoError(t, err)
	require.True(t, b.CouponStale)
	require.Equal(t, "FLAT", b.CouponCode)
	require.Zero(t, b.Totals.CouponDiscount)
}

func TestUnavailableLinesAreExcludedFromTotals(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	b, _ := f.svc.Create(ctx)
	b, _ = f.svc.AddItem(ctx, b.ID, AddItemInput{ProductID: f.shirt, Quantity: 1})
	b, _ = f.svc.AddItem(ctx, b.ID, AddItemInput{ProductID: f.mug, Quantity: 1})

	mug := f.products[f.mug]
	mug.Active = false
	f.products[f.mug] = mug

	b, err := f.svc.Get(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, b.Lines, 2)
	require.False(t, b.Lines[1].Available)
	require.Equal(t, money.Cents(5000), b.Totals.Subtotal)
	require.Len(t, b.PricingItems(), 1)
}

func TestBasketVisibility(t *testing.T) {
	f := newFixture()
	owned := common.WithPrincipal(context.Background(), common.Principal{BuyerID: "buyer-1"})
	b, err := f.svc.Create(owned)
	require.NoError(t, err)
	require.NotNil(t, b.OwnerID)

	_, err = f.svc.Get(owned, b.ID)
	require.NoError(t, err)

	other := common.WithPrincipal(context.Background(), common.Principal{BuyerID: "buyer-2"})
	_, err = f.svc.Get(other, b.ID)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = f.svc.Get(context.Background(), b.ID)
	require.ErrorIs(t, err, ErrNotFound)

	f.now = f.now.Add(2 * time.Hour)
	_, err = f.svc.Get(owned, b.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMutationsRequireOpenBasket(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	b, _ := f.svc.Create(ctx)
	row := f.store.baskets[b.ID]
	row.Status = StatusCheckedOut
	f.store.baskets[b.ID] = row

	_, err := f.svc.AddItem(ctx, b.ID, AddItemInput{ProductID: f.shirt, Quantity: 1})
	require.ErrorIs(t, err, ErrClosed)
	_, err = f.svc.ApplyCoupon(ctx, b.ID, "TEN")
	require.ErrorIs(t, err, ErrClosed)
}

func TestMutationExtendsExpiry(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	b, _ := f.svc.Create(ctx)
	f.now = f.now.Add(30 * time.Minute)
	b, err := f.svc.AddItem(ctx, b.ID, AddItemInput{ProductID: f.shirt, Quantity: 1})
	require.NoError(t, err)
	require.Equal(t, f.now.Add(time.Hour), b.ExpiresAt)
}

func TestUnconfiguredService(t *testing.T) {
	var svc *Service
	_, err := svc.Get(context.Background(), uuid.New())
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrNotFound))
}
