package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/noah-isme/storefront-api/internal/db"
	"github.com/noah-isme/storefront-api/internal/money"
	"github.com/noah-isme/storefront-api/internal/pricing"
)

// ErrNotFound indicates the product does not exist or is not for sale.
var ErrNotFound = errors.New("product not found")

// Product is the pricing-relevant view of a catalog product.
type Product struct {
	ID                 uuid.UUID    `json:"id"`
	Name               string       `json:"name"`
	PictureURL         string       `json:"pictureUrl"`
	Price              money.Cents  `json:"price"`
	DiscountPercentage *int         `json:"discountPercentage,omitempty"`
	PromotionalPrice   *money.Cents `json:"promotionalPrice,omitempty"`
	Active             bool         `json:"active"`
}

// Discount returns the product's discount source.
func (p Product) Discount() pricing.DiscountSource {
	return pricing.SourceFrom(p.DiscountPercentage, p.PromotionalPrice)
}

// FinalPrice is the effective unit price after the product discount.
func (p Product) FinalPrice() money.Cents {
	return pricing.FinalPrice(p.Price, p.Discount())
}

// Store is the persistence required by the catalog service.
type Store interface {
	GetProduct(ctx context.Context, id uuid.UUID) (db.Product, error)
	ListProductsByIDs(ctx context.Context, ids []uuid.UUID) ([]db.Product, error)
}

// Service resolves live product data through a read-through cache.
type Service struct {
	Store  Store
	Cache  *Cache
	Logger *zerolog.Logger
}

// Get returns an active product.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Product, error) {
	if s == nil || s.Store == nil {
		return Product{}, errors.New("catalog service not configured")
	}
	p, ok, err := s.Cache.Get(ctx, id)
	if err != nil {
		s.warn(err, "catalog cache read")
	}
	if !ok {
		row, err := s.Store.GetProduct(ctx, id)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return Product{}, ErrNotFound
			}
			return Product{}, fmt.Errorf("load product: %w", err)
		}
		p = FromModel(row)
		if err := s.Cache.Put(ctx, p); err != nil {
			s.warn(err, "catalog cache write")
		}
	}
	if !p.Active {
		return Product{}, ErrNotFound
	}
	return p, nil
}

// GetMany returns the products for ids keyed by id. Inactive products are
// included so existing basket lines keep their data; unknown ids are omitted.
func (s *Service) GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]Product, error) {
	if s == nil || s.Store == nil {
		return nil, errors.New("catalog service not configured")
	}
	ids = dedupe(ids)
	out, missing, err := s.Cache.GetMany(ctx, ids)
	if err != nil {
		s.warn(err, "catalog cache read")
	}
	if len(missing) == 0 {
		return out, nil
	}
	rows, err := s.Store.ListProductsByIDs(ctx, missing)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	loaded := make([]Product, 0, len(rows))
	for _, row := range rows {
		p := FromModel(row)
		out[p.ID] = p
		loaded = append(loaded, p)
	}
	if err := s.Cache.Put(ctx, loaded...); err != nil {
		s.warn(err, "catalog cache write")
	}
	return out, nil
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// FromModel converts a database row.
func FromModel(row db.Product) Product {
	p := Product{
		ID:         row.ID,
		Name:       row.Name,
		PictureURL: row.PictureURL,
		Price:      row.Price,
		Active:     row.Active,
	}
	if row.DiscountPercentage != nil {
		pct := int(*row.DiscountPercentage)
		p.DiscountPercentage = &pct
	}
	if row.PromotionalPrice != nil {
		promo := *row.PromotionalPrice
		p.PromotionalPrice = &promo
	}
	return p
}

func (s *Service) warn(err error, msg string) {
	if s.Logger == nil {
		return
	}
	s.Logger.Warn().Err(err).Msg(msg)
}
