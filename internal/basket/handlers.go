package basket

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/noah-isme/storefront-api/internal/catalog"
	"github.com/noah-isme/storefront-api/internal/common"
	"github.com/noah-isme/storefront-api/internal/coupon"
	"github.com/noah-isme/storefront-api/internal/lock"
	"github.com/noah-isme/storefront-api/internal/money"
	"github.com/noah-isme/storefront-api/internal/pricing"
)

// Handler wires basket services to HTTP.
type Handler struct {
	Svc       *Service
	Formatter money.Formatter
}

type itemResponse struct {
	ID                 uuid.UUID    `json:"id"`
	ProductID          uuid.UUID    `json:"productId"`
	Name               string       `json:"name"`
	Price              money.Cents  `json:"price"`
	PriceDisplay       string       `json:"priceDisplay"`
	FinalPrice         money.Cents  `json:"finalPrice"`
	FinalPriceDisplay  string       `json:"finalPriceDisplay"`
	PictureURL         string       `json:"pictureUrl"`
	Variant            string       `json:"variant,omitempty"`
	Quantity           int          `json:"quantity"`
	DiscountPercentage *int         `json:"discountPercentage,omitempty"`
	PromotionalPrice   *money.Cents `json:"promotionalPrice,omitempty"`
	Available          bool         `json:"available"`
}

type couponResponse struct {
	Code       string       `json:"code"`
	Name       string       `json:"name"`
	AmountOff  *money.Cents `json:"amountOff,omitempty"`
	PercentOff *int         `json:"percentOff,omitempty"`
}

type basketResponse struct {
	BasketID    uuid.UUID              `json:"basketId"`
	Status      string                 `json:"status"`
	ExpiresAt   time.Time              `json:"expiresAt"`
	Items       []itemResponse         `json:"items"`
	Coupon      *couponResponse        `json:"coupon,omitempty"`
	CouponStale bool                   `json:"couponStale,omitempty"`
	Totals      pricing.DisplaySummary `json:"totals"`
}

func (h *Handler) present(b Basket) basketResponse {
	out := basketResponse{
		BasketID:    b.ID,
		Status:      b.Status,
		ExpiresAt:   b.ExpiresAt,
		Items:       make([]itemResponse, 0, len(b.Lines)),
		CouponStale: b.CouponStale,
		Totals:      pricing.Display(b.Totals, h.Formatter),
	}
	for _, l := range b.Lines {
		out.Items = append(out.Items, itemResponse{
			ID:                 l.ID,
			ProductID:          l.ProductID,
			Name:               l.Name,
			Price:              l.UnitPrice,
			PriceDisplay:       h.Formatter.Format(l.UnitPrice),
			FinalPrice:         l.FinalPrice,
			FinalPriceDisplay:  h.Formatter.Format(l.FinalPrice),
			PictureURL:         l.PictureURL,
			Variant:            l.Variant,
			Quantity:           l.Quantity,
			DiscountPercentage: l.DiscountPercentage,
			PromotionalPrice:   l.PromotionalPrice,
			Available:          l.Available,
		})
	}
	if b.Coupon != nil {
		c := &couponResponse{Code: b.Coupon.Code, Name: b.Coupon.Name}
		switch b.Coupon.Kind {
		case pricing.CouponAmountOff:
			amount := b.Coupon.AmountOff
			c.AmountOff = &amount
		case pricing.CouponPercentOff:
			pct := b.Coupon.PercentOff
			c.PercentOff = &pct
		}
		out.Coupon = c
	}
	return out
}

func (h *Handler) ready(w http.ResponseWriter) bool {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "basket service not configured", nil)
		return false
	}
	return true
}

// Create opens a new basket.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	b, err := h.Svc.Create(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": h.present(b)})
}

// Get returns basket contents with live totals.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	b, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": h.present(b)})
}

// AddItem adds a product to the basket.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var payload AddItemInput
	if err := common.DecodeJSON(r, &payload); err != nil {
		common.WriteAppError(w, err)
		return
	}
	b, err := h.Svc.AddItem(r.Context(), id, payload)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": h.present(b)})
}

type updateItemRequest struct {
	Quantity int `json:"quantity" validate:"required,gt=0,lte=999"`
}

// UpdateItem sets the quantity of a basket line.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	itemID, ok := pathUUID(w, r, "itemId")
	if !ok {
		return
	}
	var payload updateItemRequest
	if err := common.DecodeJSON(r, &payload); err != nil {
		common.WriteAppError(w, err)
		return
	}
	b, err := h.Svc.UpdateItem(r.Context(), id, itemID, payload.Quantity)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": h.present(b)})
}

// RemoveItem removes ?quantity=n units of a line, or the whole line.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	itemID, ok := pathUUID(w, r, "itemId")
	if !ok {
		return
	}
	qty := 0
	if raw := r.URL.Query().Get("quantity"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "quantity must be a positive integer", nil)
			return
		}
		qty = n
	}
	b, err := h.Svc.RemoveItem(r.Context(), id, itemID, qty)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": h.present(b)})
}

type applyCouponRequest struct {
	Code string `json:"code" validate:"required,max=64"`
}

// ApplyCoupon attaches a coupon code to the basket.
func (h *Handler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var payload applyCouponRequest
	if err := common.DecodeJSON(r, &payload); err != nil {
		common.WriteAppError(w, err)
		return
	}
	b, err := h.Svc.ApplyCoupon(r.Context(), id, payload.Code)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": h.present(b)})
}

// RemoveCoupon detaches the coupon.
func (h *Handler) RemoveCoupon(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	b, err := h.Svc.RemoveCoupon(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": h.present(b)})
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid "+name, nil)
		return uuid.Nil, false
	}
	return id, true
}

func writeError(w http.ResponseWriter, err error) {
	if common.WriteAppError(w, err) {
		return
	}
	switch {
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "basket not found", nil)
	case errors.Is(err, ErrInvalidInput):
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
	case errors.Is(err, ErrClosed):
		common.JSONError(w, http.StatusConflict, "BASKET_CLOSED", "basket is no longer open", nil)
	case errors.Is(err, ErrProductUnavailable), errors.Is(err, catalog.ErrNotFound):
		common.JSONError(w, http.StatusUnprocessableEntity, "PRODUCT_UNAVAILABLE", "product is not available", nil)
	case errors.Is(err, coupon.ErrInvalidCoupon):
		common.JSONError(w, http.StatusUnprocessableEntity, "INVALID_COUPON", err.Error(), nil)
	case errors.Is(err, lock.ErrTimeout):
		common.JSONError(w, http.StatusConflict, "BASKET_BUSY", "basket is being modified, retry", nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "basket request failed", nil)
	}
}
