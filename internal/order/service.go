package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/storefront-api/internal/common"
	"github.com/noah-isme/storefront-api/internal/db"
	"github.com/noah-isme/storefront-api/internal/events"
	"github.com/noah-isme/storefront-api/internal/obs"
)

// Store captures the order queries used by the service.
type Store interface {
	events.EventStore
	GetOrder(ctx context.Context, id uuid.UUID) (db.Order, error)
	GetOrderForBuyer(ctx context.Context, id uuid.UUID, buyerID string) (db.Order, error)
	CountOrdersForBuyer(ctx context.Context, buyerID string) (int64, error)
	ListOrdersForBuyer(ctx context.Context, buyerID string, limit, offset int32) ([]db.Order, error)
	ListOrderItems(ctx context.Context, orderID uuid.UUID) ([]db.OrderItem, error)
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, from, to string) (bool, error)
}

// Transactor runs fn against a Store bound to one database transaction.
type Transactor interface {
	InTx(ctx context.Context, fn func(Store) error) error
}

type pgxTransactor struct {
	pool *pgxpool.Pool
}

// NewTransactor returns a Transactor backed by the pool.
func NewTransactor(pool *pgxpool.Pool) Transactor {
	return pgxTransactor{pool: pool}
}

func (t pgxTransactor) InTx(ctx context.Context, fn func(Store) error) error {
	return db.InTx(ctx, t.pool, func(q *db.Queries) error { return fn(q) })
}

// Service serves buyer order reads and administrative status changes.
type Service struct {
	Store  Store
	Tx     Transactor
	Events *events.Bus
}

// ListForBuyer pages through the buyer's orders, newest first.
func (s *Service) ListForBuyer(ctx context.Context, buyerID string, page common.Page) ([]Order, int64, error) {
	if s == nil || s.Store == nil {
		return nil, 0, errors.New("order service not configured")
	}
	total, err := s.Store.CountOrdersForBuyer(ctx, buyerID)
	if err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}
	rows, err := s.Store.ListOrdersForBuyer(ctx, buyerID, int32(page.Size), int32(page.Offset()))
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	out := make([]Order, 0, len(rows))
	for _, row := range rows {
		items, err := s.Store.ListOrderItems(ctx, row.ID)
		if err != nil {
			return nil, 0, fmt.Errorf("list order items: %w", err)
		}
		out = append(out, FromModel(row, items))
	}
	return out, total, nil
}

// GetForBuyer returns one of the buyer's orders.
func (s *Service) GetForBuyer(ctx context.Context, buyerID string, id uuid.UUID) (Order, error) {
	if s == nil || s.Store == nil {
		return Order{}, errors.New("order service not configured")
	}
	row, err := s.Store.GetOrderForBuyer(ctx, id, buyerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, fmt.Errorf("load order: %w", err)
	}
	items, err := s.Store.ListOrderItems(ctx, row.ID)
	if err != nil {
		return Order{}, fmt.Errorf("list order items: %w", err)
	}
	return FromModel(row, items), nil
}

// UpdateStatus moves the order along its lifecycle and records an
// order.status_changed event in the same transaction.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, to string) (Order, error) {
	if s == nil || s.Tx == nil {
		return Order{}, errors.New("order service not configured")
	}
	if !KnownStatus(to) {
		return Order{}, ErrUnknownStatus
	}
	var (
		out      Order
		from     string
		recorded db.DomainEvent
	)
	err := s.Tx.InTx(ctx, func(st Store) error {
		row, err := st.GetOrder(ctx, id)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		from = row.Status
		if !CanTransition(from, to) {
			return fmt.Errorf("%s -> %s: %w", from, to, ErrInvalidTransition)
		}
		ok, err := st.UpdateOrderStatus(ctx, id, from, to)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("status changed concurrently: %w", ErrInvalidTransition)
		}
		if s.Events != nil {
			recorded, err = s.Events.WithStore(st).Record(ctx, events.TopicOrderStatusChanged, id, map[string]any{
				"orderId": id.String(),
				"from":    from,
				"to":      to,
			})
			if err != nil {
				return err
			}
		}
		if row, err = st.GetOrder(ctx, id); err != nil {
			return err
		}
		items, err := st.ListOrderItems(ctx, id)
		if err != nil {
			return err
		}
		out = FromModel(row, items)
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	obs.RecordStatusTransition(from, to)
	if s.Events != nil && recorded.ID != uuid.Nil {
		if err := s.Events.Dispatch(ctx, recorded); err != nil {
			obs.Logger(ctx, nil).Warn().Err(err).Str("order_id", id.String()).Msg("order status notification failed")
		}
	}
	return out, nil
}
