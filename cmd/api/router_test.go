package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/noah-isme/storefront-api/internal/auth"
	"github.com/noah-isme/storefront-api/internal/basket"
	"github.com/noah-isme/storefront-api/internal/checkout"
	"github.com/noah-isme/storefront-api/internal/common"
	"github.com/noah-isme/storefront-api/internal/config"
	"github.com/noah-isme/storefront-api/internal/coupon"
	"github.com/noah-isme/storefront-api/internal/order"
	"github.com/noah-isme/storefront-api/internal/ratelimit"
)

func newTestRouter(t *testing.T) (http.Handler, *auth.Service) {
	t.Helper()
	svc, err := auth.NewService(auth.Config{Secret: "router-secret"})
	require.NoError(t, err)
	cfg := &config.Config{
		BodyLimitBytes:   1 << 10,
		SecurityHeaders:  true,
		CouponRateMax:    1,
		CouponRateWindow: time.Minute,
	}
	limiter := ratelimit.New(memory.NewStore(), cfg.CouponRateWindow, cfg.CouponRateMax)
	return newRouter(routerDeps{
		Config:      cfg,
		Logger:      zerolog.Nop(),
		Auth:        auth.Middleware{Service: svc},
		Baskets:     &basket.Handler{},
		Checkout:    &checkout.Handler{},
		Orders:      &order.Handler{},
		OrderAdmin:  &order.AdminHandler{},
		Coupons:     &coupon.Handler{},
		CouponLimit: limiter,
	}), svc
}

func bearer(t *testing.T, svc *auth.Service, roles ...string) string {
	t.Helper()
	token, err := svc.Sign(common.Principal{BuyerID: "buyer-1", Roles: roles}, time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

func TestLiveProbeCarriesSecurityHeaders(t *testing.T) {
	router, _ := newTestRouter(t)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestOrdersRequireAuthentication(t *testing.T) {
	router, _ := newTestRouter(t)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/baskets/6f1c1f4e-4b8b-4c55-9d5f-2b7d0f3f9a11/checkout", strings.NewReader(`{}`))
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminRoutesRequireRole(t *testing.T) {
	router, svc := newTestRouter(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/coupons", strings.NewReader(`{}`))
	req.Header.Set("Authorization", bearer(t, svc))
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/v1/admin/coupons", strings.NewReader(`{}`))
	req.Header.Set("Authorization", bearer(t, svc, auth.RoleAdmin))
	router.ServeHTTP(rec, req)
	require.NotEqual(t, http.StatusForbidden, rec.Code)
	require.NotEqual(t, http.StatusUnauthorized, rec.Code)
}

func TestCouponAttemptsAreRateLimited(t *testing.T) {
	router, _ := newTestRouter(t)
	path := "/api/v1/baskets/6f1c1f4e-4b8b-4c55-9d5f-2b7d0f3f9a11/coupon"

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{"code":"TEN"}`)))
	require.NotEqual(t, http.StatusTooManyRequests, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{"code":"TEN"}`)))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Contains(t, rec.Body.String(), "RATE_LIMITED")
}

func TestBodyLimitApplies(t *testing.T) {
	router, _ := newTestRouter(t)
	rec := httptest.NewRecorder()
	body := `{"code":"` + strings.Repeat("x", 2048) + `"}`
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/baskets", strings.NewReader(body)))
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}
