package checkout

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/noah-isme/storefront-api/internal/basket"
	"github.com/noah-isme/storefront-api/internal/common"
	"github.com/noah-isme/storefront-api/internal/coupon"
	"github.com/noah-isme/storefront-api/internal/lock"
	"github.com/noah-isme/storefront-api/internal/money"
	"github.com/noah-isme/storefront-api/internal/order"
)

// Handler exposes basket checkout.
type Handler struct {
	Svc       *Service
	Formatter money.Formatter
}

// Checkout finalises the basket into an order for the authenticated buyer.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout service not configured", nil)
		return
	}
	if _, ok := common.BuyerID(r.Context()); !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	basketID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid basket id", nil)
		return
	}
	var payload Input
	if err := common.DecodeJSON(r, &payload); err != nil {
		common.WriteAppError(w, err)
		return
	}
	o, err := h.Svc.Finalize(r.Context(), basketID, payload)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": order.Present(o, h.Formatter)})
}

func writeError(w http.ResponseWriter, err error) {
	if common.WriteAppError(w, err) {
		return
	}
	switch {
	case errors.Is(err, ErrUnauthenticated):
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
	case errors.Is(err, basket.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "basket not found", nil)
	case errors.Is(err, basket.ErrClosed):
		common.JSONError(w, http.StatusConflict, "BASKET_CLOSED", "basket is no longer open", nil)
	case errors.Is(err, ErrEmptyBasket):
		common.JSONError(w, http.StatusUnprocessableEntity, "EMPTY_BASKET", "basket is empty", nil)
	case errors.Is(err, ErrUnavailableItems):
		common.JSONError(w, http.StatusUnprocessableEntity, "PRODUCT_UNAVAILABLE", "basket contains unavailable products", nil)
	case errors.Is(err, coupon.ErrInvalidCoupon):
		common.JSONError(w, http.StatusUnprocessableEntity, "INVALID_COUPON", err.Error(), nil)
	case errors.Is(err, lock.ErrTimeout):
		common.JSONError(w, http.StatusConflict, "BASKET_BUSY", "basket is being modified, retry", nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout failed", nil)
	}
}
