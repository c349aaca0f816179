package basket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storefront-api/internal/money"
)

func newRouter(f *fixture) http.Handler {
	h := &Handler{Svc: f.svc, Formatter: money.Formatter{Symbol: "€"}}
	r := chi.NewRouter()
	r.Post("/baskets", h.Create)
	r.Get("/baskets/{id}", h.Get)
	r.Post("/baskets/{id}/items", h.AddItem)
	r.Patch("/baskets/{id}/items/{itemId}", h.UpdateItem)
	r.Delete("/baskets/{id}/items/{itemId}", h.RemoveItem)
	r.Post("/baskets/{id}/coupon", h.ApplyCoupon)
	r.Delete("/baskets/{id}/coupon", h.RemoveCoupon)
	return r
}

type errorEnvelope struct {
	Error struct {
		Code    string            `json:"code"`
		Details map[string]string `json:"details"`
	} `json:"error"`
}

func TestHandlerAddItemAndRead(t *testing.T) {
	f := newFixture()
	router := newRouter(f)
	b, err := f.svc.Create(context.Background())
	require.NoError(t, err)

	body := `{"productId":"` + f.shirt.String() + `","quantity":2}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/baskets/"+b.ID.String()+"/items", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/baskets/"+b.ID.String(), nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data struct {
			BasketID string `json:"basketId"`
			Items    []struct {
				Price      int64 `json:"price"`
				FinalPrice int64 `json:"finalPrice"`
				Quantity   int   `json:"quantity"`
			} `json:"items"`
			Totals struct {
				Subtotal     int64  `json:"subtotal"`
				DeliveryFee  int64  `json:"deliveryFee"`
				Total        int64  `json:"total"`
				TotalDisplay string `json:"totalDisplay"`
			} `json:"totals"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, b.ID.String(), resp.Data.BasketID)
	require.Len(t, resp.Data.Items, 1)
	require.Equal(t, int64(5000), resp.Data.Items[0].Price)
	require.Equal(t, int64(4500), resp.Data.Items[0].FinalPrice)
	require.Equal(t, int64(9500), resp.Data.Totals.Total)
	require.Equal(t, "€95.00", resp.Data.Totals.TotalDisplay)
}

func TestHandlerRejectsZeroQuantity(t *testing.T) {
	f := newFixture()
	router := newRouter(f)
	b, _ := f.svc.Create(context.Background())

	body := `{"productId":"` + f.shirt.String() + `","quantity":0}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/baskets/"+b.ID.String()+"/items", strings.NewReader(body)))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var env errorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	require.Contains(t, env.Error.Details, "quantity")
}

func TestHandlerInvalidCoupon(t *testing.T) {
	f := newFixture()
	router := newRouter(f)
	b, _ := f.svc.Create(context.Background())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/baskets/"+b.ID.String()+"/coupon", strings.NewReader(`{"code":"NOPE"}`)))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var env errorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.Equal(t, "INVALID_COUPON", env.Error.Code)
}

func TestHandlerRemoveItemQuantityParam(t *testing.T) {
	f := newFixture()
	router := newRouter(f)
	ctx := context.Background()
	b, _ := f.svc.Create(ctx)
	b, _ = f.svc.AddItem(ctx, b.ID, AddItemInput{ProductID: f.mug, Quantity: 2})
	path := "/baskets/" + b.ID.String() + "/items/" + b.Lines[0].ID.String()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, path+"?quantity=abc", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, path+"?quantity=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"quantity":1`)
}

func TestHandlerNotFoundAndBadID(t *testing.T) {
	f := newFixture()
	router := newRouter(f)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/baskets/not-a-uuid", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/baskets/6f1c1f4e-4b8b-4c55-9d5f-2b7d0f3f9a11", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}
