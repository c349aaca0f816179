package order

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/storefront-api/internal/db"
	"github.com/noah-isme/storefront-api/internal/money"
	"github.com/noah-isme/storefront-api/internal/pricing"
)

// Order statuses.
const (
	StatusPending         = "pending"
	StatusPaymentReceived = "payment_received"
	StatusPaymentFailed   = "payment_failed"
	StatusProcessing      = "processing"
	StatusShipped         = "shipped"
	StatusDelivered       = "delivered"
	StatusCancelled       = "cancelled"
)

var (
	// ErrNotFound indicates the order does not exist or belongs to another buyer.
	ErrNotFound = errors.New("order not found")
	// ErrInvalidTransition is returned for status changes the lifecycle forbids.
	ErrInvalidTransition = errors.New("invalid order status transition")
	// ErrUnknownStatus is returned for status values outside the lifecycle.
	ErrUnknownStatus = errors.New("unknown order status")
)

var transitions = map[string][]string{
	StatusPending:         {StatusPaymentReceived, StatusPaymentFailed, StatusCancelled},
	StatusPaymentFailed:   {StatusPending, StatusCancelled},
	StatusPaymentReceived: {StatusProcessing},
	StatusProcessing:      {StatusShipped},
	StatusShipped:         {StatusDelivered},
}

// KnownStatus reports whether status is part of the lifecycle.
func KnownStatus(status string) bool {
	switch status {
	case StatusPending, StatusPaymentReceived, StatusPaymentFailed, StatusProcessing,
		StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Address is the shipping destination captured at checkout.
type Address struct {
	Name       string `json:"name" validate:"required,max=200"`
	Line1      string `json:"line1" validate:"required,max=200"`
	Line2      string `json:"line2,omitempty" validate:"max=200"`
	City       string `json:"city" validate:"required,max=100"`
	PostalCode string `json:"postalCode" validate:"required,max=20"`
	Country    string `json:"country" validate:"required,iso3166_1_alpha2"`
}

// Buyer identifies who placed the order.
type Buyer struct {
	BuyerID         string  `json:"buyerId" validate:"required"`
	Email           string  `json:"email" validate:"required,email"`
	ShippingAddress Address `json:"shippingAddress" validate:"required"`
}

// Item is a frozen order line.
type Item struct {
	ProductID          uuid.UUID    `json:"productId"`
	Name               string       `json:"name"`
	PictureURL         string       `json:"pictureUrl"`
	Variant            string       `json:"variant,omitempty"`
	UnitPrice          money.Cents  `json:"price"`
	FinalPrice         money.Cents  `json:"finalPrice"`
	Quantity           int          `json:"quantity"`
	DiscountPercentage *int         `json:"discountPercentage,omitempty"`
	PromotionalPrice   *money.Cents `json:"promotionalPrice,omitempty"`
}

// Order is an immutable pricing snapshot. Only Status, TrackingNumber and
// UpdatedAt change after creation.
type Order struct {
	ID              uuid.UUID
	BasketID        uuid.UUID
	BuyerID         string
	BuyerEmail      string
	Status          string
	Currency        string
	Subtotal        money.Cents
	ProductDiscount money.Cents
	CouponDiscount  money.Cents
	Discount        money.Cents
	DeliveryFee     money.Cents
	Total           money.Cents
	CouponCode      *string
	ShippingAddress Address
	TrackingNumber  *string
	Items           []Item
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// GetTotal recomputes the payable amount from the stored components.
func (o Order) GetTotal() money.Cents {
	return money.NonNegative(o.Subtotal + o.DeliveryFee - o.Discount)
}

// Totals returns the stored pricing components.
func (o Order) Totals() pricing.Summary {
	return pricing.Summary{
		Subtotal:        o.Subtotal,
		ProductDiscount: o.ProductDiscount,
		CouponDiscount:  o.CouponDiscount,
		Discount:        o.Discount,
		DeliveryFee:     o.DeliveryFee,
		Total:           o.Total,
	}
}

// Snapshot freezes basket totals, lines and buyer details into a pending order.
func Snapshot(basketID uuid.UUID, totals pricing.Summary, items []Item, buyer Buyer, couponCode string, currency string, now time.Time) Order {
	lines := make([]Item, len(items))
	copy(lines, items)
	o := Order{
		BasketID:        basketID,
		BuyerID:         buyer.BuyerID,
		BuyerEmail:      buyer.Email,
		Status:          StatusPending,
		Currency:        currency,
		Subtotal:        totals.Subtotal,
		ProductDiscount: totals.ProductDiscount,
		CouponDiscount:  totals.CouponDiscount,
		Discount:        totals.Discount,
		DeliveryFee:     totals.DeliveryFee,
		Total:           totals.Total,
		ShippingAddress: buyer.ShippingAddress,
		Items:           lines,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if couponCode != "" {
		code := couponCode
		o.CouponCode = &code
	}
	return o
}

// FromModel converts stored rows.
func FromModel(row db.Order, items []db.OrderItem) Order {
	o := Order{
		ID:              row.ID,
		BasketID:        row.BasketID,
		BuyerID:         row.BuyerID,
		BuyerEmail:      row.BuyerEmail,
		Status:          row.Status,
		Currency:        row.Currency,
		Subtotal:        row.Subtotal,
		ProductDiscount: row.ProductDiscount,
		CouponDiscount:  row.CouponDiscount,
		Discount:        row.Discount,
		DeliveryFee:     row.DeliveryFee,
		Total:           row.Total,
		CouponCode:      row.CouponCode,
		TrackingNumber:  row.TrackingNumber,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
		Items:           make([]Item, 0, len(items)),
	}
	if len(row.ShippingAddress) > 0 {
		_ = json.Unmarshal(row.ShippingAddress, &o.ShippingAddress)
	}
	for _, it := range items {
		line := Item{
			ProductID:        it.ProductID,
			Name:             it.Name,
			PictureURL:       it.PictureURL,
			Variant:          it.Variant,
			UnitPrice:        it.UnitPrice,
			FinalPrice:       it.FinalPrice,
			Quantity:         int(it.Quantity),
			PromotionalPrice: it.PromotionalPrice,
		}
		if it.DiscountPercentage != nil {
			pct := int(*it.DiscountPercentage)
			line.DiscountPercentage = &pct
		}
		o.Items = append(o.Items, line)
	}
	return o
}
