package order

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/noah-isme/storefront-api/internal/common"
	"github.com/noah-isme/storefront-api/internal/money"
	"github.com/noah-isme/storefront-api/internal/pricing"
)

// Handler serves a buyer's own orders.
type Handler struct {
	Svc       *Service
	Formatter money.Formatter
}

// Response is the order read shape.
type Response struct {
	ID              uuid.UUID `json:"id"`
	Status          string    `json:"status"`
	Currency        string    `json:"currency"`
	CouponCode      *string   `json:"couponCode,omitempty"`
	TrackingNumber  *string   `json:"trackingNumber,omitempty"`
	OrderItems      []Item    `json:"orderItems"`
	ShippingAddress Address   `json:"shippingAddress"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
	pricing.DisplaySummary
}

// Present renders o with display strings next to the cent amounts.
func Present(o Order, f money.Formatter) Response {
	items := o.Items
	if items == nil {
		items = []Item{}
	}
	totals := o.Totals()
	totals.Total = o.GetTotal()
	return Response{
		ID:              o.ID,
		Status:          o.Status,
		Currency:        o.Currency,
		CouponCode:      o.CouponCode,
		TrackingNumber:  o.TrackingNumber,
		OrderItems:      items,
		ShippingAddress: o.ShippingAddress,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
		DisplaySummary:  pricing.Display(totals, f),
	}
}

// List returns the authenticated buyer's orders.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order service not configured", nil)
		return
	}
	buyerID, ok := common.BuyerID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	pg := common.PageFromRequest(r, 20)
	orders, total, err := h.Svc.ListForBuyer(r.Context(), buyerID, pg)
	if err != nil {
		writeError(w, err)
		return
	}
	pg.TotalItems = total
	out := make([]Response, 0, len(orders))
	for _, o := range orders {
		out = append(out, Present(o, h.Formatter))
	}
	w.Header().Set("X-Total-Count", strconv.FormatInt(total, 10))
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       out,
		"pagination": pg,
	})
}

// Get returns one of the buyer's orders.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order service not configured", nil)
		return
	}
	buyerID, ok := common.BuyerID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return
	}
	o, err := h.Svc.GetForBuyer(r.Context(), buyerID, id)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": Present(o, h.Formatter)})
}

// AdminHandler provides administrative order management endpoints.
type AdminHandler struct {
	Svc       *Service
	Formatter money.Formatter
}

type patchStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// PatchStatus updates the order status with state-machine validation.
func (h *AdminHandler) PatchStatus(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order service not configured", nil)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return
	}
	var req patchStatusRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteAppError(w, err)
		return
	}
	o, err := h.Svc.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": Present(o, h.Formatter)})
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
	case errors.Is(err, ErrUnknownStatus):
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "unsupported status", nil)
	case errors.Is(err, ErrInvalidTransition):
		common.JSONError(w, http.StatusConflict, "INVALID_STATE", err.Error(), nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order request failed", nil)
	}
}
