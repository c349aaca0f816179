package coupon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storefront-api/internal/catalog"
	"github.com/noah-isme/storefront-api/internal/db"
	"github.com/noah-isme/storefront-api/internal/pricing"
)

type stubStore struct {
	coupons map[string]db.Coupon
	created []db.CreateCouponParams
}

func (s *stubStore) GetCouponByCode(ctx context.Context, code string) (db.Coupon, error) {
	c, ok := s.coupons[strings.ToUpper(code)]
	if !ok {
		return db.Coupon{}, pgx.ErrNoRows
	}
	return c, nil
}

func (s *stubStore) CreateCoupon(ctx context.Context, arg db.CreateCouponParams) (db.Coupon, error) {
	if _, exists := s.coupons[strings.ToUpper(arg.Code)]; exists {
		return db.Coupon{}, &pgconn.PgError{Code: "23505"}
	}
	s.created = append(s.created, arg)
	c := db.Coupon{ID: uuid.New(), Code: arg.Code, Name: arg.Name, Kind: arg.Kind, AmountOff: arg.AmountOff, PercentOff: arg.PercentOff, Active: true}
	s.coupons[strings.ToUpper(arg.Code)] = c
	return c, nil
}

type stubProducts map[uuid.UUID]catalog.Product

func (s stubProducts) GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]catalog.Product, error) {
	out := map[uuid.UUID]catalog.Product{}
	for _, id := range ids {
		if p, ok := s[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func percentCoupon(code string, pct int32) db.Coupon {
	return db.Coupon{ID: uuid.New(), Code: code, Name: code, Kind: string(pricing.CouponPercentOff), PercentOff: &pct, Active: true}
}

func TestLookupUnknownCode(t *testing.T) {
	svc := &Service{Store: &stubStore{coupons: map[string]db.Coupon{}}}
	_, err := svc.Lookup(context.Background(), "NOPE")
	require.ErrorIs(t, err, ErrInvalidCoupon)

	_, err = svc.Lookup(context.Background(), "   ")
	require.ErrorIs(t, err, ErrInvalidCoupon)
}

func TestLookupExpired(t *testing.T) {
	c := percentCoupon("OLD", 10)
	past := time.Now().Add(-time.Hour)
	c.ValidTo = &past
	svc := &Service{Store: &stubStore{coupons: map[string]db.Coupon{"OLD": c}}}
	_, err := svc.Lookup(context.Background(), "old")
	require.ErrorIs(t, err, ErrCouponExpired)
}

func TestCreateRequiresKindAmount(t *testing.T) {
	svc := &Service{Store: &stubStore{coupons: map[string]db.Coupon{}}}
	_, err := svc.Create(context.Background(), CreateInput{Code: "X", Name: "X", Kind: pricing.CouponPercentOff})
	require.ErrorIs(t, err, ErrInvalidInput)

	pct := int32(15)
	rule, err := svc.Create(context.Background(), CreateInput{Code: "X", Name: "X", Kind: pricing.CouponPercentOff, PercentOff: &pct})
	require.NoError(t, err)
	require.Equal(t, 15, rule.PercentOff)

	_, err = svc.Create(context.Background(), CreateInput{Code: "x", Name: "X", Kind: pricing.CouponPercentOff, PercentOff: &pct})
	require.ErrorIs(t, err, ErrDuplicateCode)
}

func TestPreviewComputesSavings(t *testing.T) {
	svc := &Service{Store: &stubStore{coupons: map[string]db.Coupon{"TEN": percentCoupon("TEN", 10)}}}
	items := []pricing.Item{{ProductID: "a", Qty: 2, UnitPrice: 5000, Discount: pricing.PercentOff(10)}}
	res, err := svc.Preview(context.Background(), "TEN", items, pricing.DefaultPolicy())
	require.NoError(t, err)
	require.Equal(t, pricing.Money(9500), res.Without.Total)
	require.Equal(t, pricing.Money(8500), res.With.Total)
	require.Equal(t, pricing.Money(1000), res.Savings)
}

func TestPreviewHandler(t *testing.T) {
	pid := uuid.New()
	pct := 10
	h := &Handler{
		Svc:      &Service{Store: &stubStore{coupons: map[string]db.Coupon{"TEN": percentCoupon("TEN", 10)}}},
		Products: stubProducts{pid: {ID: pid, Name: "Mug", Price: 5000, DiscountPercentage: &pct, Active: true}},
		Policy:   pricing.DefaultPolicy(),
	}
	body := `{"code":"TEN","items":[{"productId":"` + pid.String() + `","quantity":2}]}`
	rec := httptest.NewRecorder()
	h.Preview(rec, httptest.NewRequest(http.MethodPost, "/api/v1/admin/coupons/preview", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data PreviewResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, pricing.Money(8500), resp.Data.With.Total)
}

func TestPreviewHandlerInvalidCoupon(t *testing.T) {
	pid := uuid.New()
	h := &Handler{
		Svc:      &Service{Store: &stubStore{coupons: map[string]db.Coupon{}}},
		Products: stubProducts{pid: {ID: pid, Price: 100, Active: true}},
		Policy:   pricing.DefaultPolicy(),
	}
	body := `{"code":"NOPE","items":[{"productId":"` + pid.String() + `","quantity":1}]}`
	rec := httptest.NewRecorder()
	h.Preview(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Contains(t, rec.Body.String(), "INVALID_COUPON")
}

func TestCreateHandlerValidation(t *testing.T) {
	h := &Handler{Svc: &Service{Store: &stubStore{coupons: map[string]db.Coupon{}}}}
	rec := httptest.NewRecorder()
	h.Create(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"code":"A","name":"A","kind":"free_money"}`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "VALIDATION_ERROR")
}
