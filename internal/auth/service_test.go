package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storefront-api/internal/common"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService(Config{Secret: "test-secret", Issuer: "identity", Audience: "storefront", ClockSkew: time.Second})
	require.NoError(t, err)
	return svc
}

func TestParseAccessTokenRoundTrip(t *testing.T) {
	svc := newTestService(t)
	token, err := svc.Sign(common.Principal{BuyerID: "buyer-1", Email: "b@example.com", Roles: []string{"admin"}}, time.Minute)
	require.NoError(t, err)

	p, err := svc.ParseAccessToken(token)
	require.NoError(t, err)
	require.Equal(t, "buyer-1", p.BuyerID)
	require.Equal(t, "b@example.com", p.Email)
	require.True(t, p.HasRole(RoleAdmin))
}

func TestParseAccessTokenRejectsForeignSecret(t *testing.T) {
	other, err := NewService(Config{Secret: "other", Issuer: "identity", Audience: "storefront"})
	require.NoError(t, err)
	token, err := other.Sign(common.Principal{BuyerID: "buyer-1"}, time.Minute)
	require.NoError(t, err)

	_, err = newTestService(t).ParseAccessToken(token)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, http.StatusUnauthorized, appErr.HTTPStatus)
}

func TestParseAccessTokenExpired(t *testing.T) {
	svc := newTestService(t)
	issued := time.Now().Add(-time.Hour)
	svc.WithNow(func() time.Time { return issued })
	token, err := svc.Sign(common.Principal{BuyerID: "buyer-1"}, time.Minute)
	require.NoError(t, err)

	svc.WithNow(time.Now)
	_, err = svc.ParseAccessToken(token)
	require.Error(t, err)
}

func TestNewServiceRequiresSecret(t *testing.T) {
	_, err := NewService(Config{})
	require.Error(t, err)
}

func TestRequireAuthAndRole(t *testing.T) {
	svc := newTestService(t)
	mw := Middleware{Service: svc}
	handler := mw.RequireAuth(RequireRole(RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := common.BuyerID(r.Context())
		_, _ = w.Write([]byte(id))
	})))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	buyerToken, err := svc.Sign(common.Principal{BuyerID: "buyer-1"}, time.Minute)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+buyerToken)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	adminToken, err := svc.Sign(common.Principal{BuyerID: "admin-1", Roles: []string{"admin"}}, time.Minute)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "bearer "+adminToken)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "admin-1", rec.Body.String())
}

func TestAuthenticateIsOptional(t *testing.T) {
	mw := Middleware{Service: newTestService(t)}
	var authed bool
	handler := mw.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, authed = common.BuyerID(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	require.False(t, authed)
}
