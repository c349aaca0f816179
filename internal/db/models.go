package db

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Product struct {
	ID                 uuid.UUID
	Name               string
	PictureURL         string
	Price              int64
	DiscountPercentage *int32
	PromotionalPrice   *int64
	Active             bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

type Coupon struct {
	ID         uuid.UUID
	Code       string
	Name       string
	Kind       string
	AmountOff  *int64
	PercentOff *int32
	ValidFrom  *time.Time
	ValidTo    *time.Time
	UsageLimit *int32
	UsedCount  int32
	Active     bool
	CreatedAt  time.Time
}

type Basket struct {
	ID         uuid.UUID
	OwnerID    *string
	CouponCode *string
	Status     string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	ExpiresAt  time.Time
}

type BasketItem struct {
	ID        uuid.UUID
	BasketID  uuid.UUID
	ProductID uuid.UUID
	Variant   string
	Quantity  int32
	CreatedAt time.Time
}

type Order struct {
	ID              uuid.UUID
	BuyerID         string
	BasketID        uuid.UUID
	Status          string
	Currency        string
	Subtotal        int64
	ProductDiscount int64
	CouponDiscount  int64
	Discount        int64
	DeliveryFee     int64
	Total           int64
	CouponCode      *string
	BuyerEmail      string
	ShippingAddress json.RawMessage
	TrackingNumber  *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type OrderItem struct {
	ID                 uuid.UUID
	OrderID            uuid.UUID
	ProductID          uuid.UUID
	Name               string
	PictureURL         string
	Variant            string
	UnitPrice          int64
	FinalPrice         int64
	Quantity           int32
	DiscountPercentage *int32
	PromotionalPrice   *int64
}

type DomainEvent struct {
	ID          uuid.UUID
	Topic       string
	AggregateID uuid.UUID
	Payload     json.RawMessage
	OccurredAt  time.Time
}
