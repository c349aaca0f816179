package coupon

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/noah-isme/storefront-api/internal/catalog"
	"github.com/noah-isme/storefront-api/internal/common"
	"github.com/noah-isme/storefront-api/internal/pricing"
)

// Products resolves live catalog data for previews.
type Products interface {
	GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]catalog.Product, error)
}

// Handler exposes administrative coupon endpoints.
type Handler struct {
	Svc      *Service
	Products Products
	Policy   pricing.Policy
}

type previewRequest struct {
	Code  string               `json:"code" validate:"required"`
	Items []previewRequestItem `json:"items" validate:"required,min=1,dive"`
}

type previewRequestItem struct {
	ProductID uuid.UUID `json:"productId" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,gt=0"`
}

// Create inserts a new coupon.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "coupon service not configured", nil)
		return
	}
	var payload CreateInput
	if err := common.DecodeJSON(r, &payload); err != nil {
		common.WriteAppError(w, err)
		return
	}
	rule, err := h.Svc.Create(r.Context(), payload)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": rule})
}

// Preview returns the simulated totals for a coupon without persisting state.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil || h.Products == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "coupon service not configured", nil)
		return
	}
	var req previewRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteAppError(w, err)
		return
	}
	items, err := h.resolveItems(r.Context(), req.Items)
	if err != nil {
		writeError(w, err)
		return
	}
	result, err := h.Svc.Preview(r.Context(), req.Code, items, h.Policy)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": result})
}

func (h *Handler) resolveItems(ctx context.Context, in []previewRequestItem) ([]pricing.Item, error) {
	ids := make([]uuid.UUID, 0, len(in))
	for _, it := range in {
		ids = append(ids, it.ProductID)
	}
	products, err := h.Products.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]pricing.Item, 0, len(in))
	for _, it := range in {
		p, ok := products[it.ProductID]
		if !ok {
			return nil, catalog.ErrNotFound
		}
		out = append(out, pricing.Item{
			ProductID: p.ID.String(),
			Qty:       it.Quantity,
			UnitPrice: p.Price,
			Discount:  p.Discount(),
		})
	}
	return out, nil
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidCoupon):
		common.JSONError(w, http.StatusUnprocessableEntity, "INVALID_COUPON", err.Error(), nil)
	case errors.Is(err, ErrInvalidInput):
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
	case errors.Is(err, ErrDuplicateCode):
		common.JSONError(w, http.StatusConflict, "CONFLICT", "coupon code already exists", nil)
	case errors.Is(err, catalog.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "PRODUCT_NOT_FOUND", "product not found", nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "coupon request failed", nil)
	}
}
