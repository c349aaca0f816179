package order

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storefront-api/internal/money"
	"github.com/noah-isme/storefront-api/internal/pricing"
)

func TestGetTotalMatchesComputedTotal(t *testing.T) {
	coupons := []*pricing.Coupon{
		nil,
		{Kind: pricing.CouponPercentOff, PercentOff: 15},
		{Kind: pricing.CouponAmountOff, AmountOff: 250},
		{Kind: pricing.CouponAmountOff, AmountOff: 1_000_000},
	}
	baskets := [][]pricing.Item{
		{},
		{{ProductID: "a", Qty: 2, UnitPrice: 5000, Discount: pricing.PercentOff(10)}},
		{{ProductID: "a", Qty: 1, UnitPrice: 1299, Discount: pricing.Promotional(999)}, {ProductID: "b", Qty: 4, UnitPrice: 2500}},
		{{ProductID: "a", Qty: 1, UnitPrice: 20000, Discount: pricing.PercentOff(100)}},
	}
	for _, items := range baskets {
		for _, c := range coupons {
			totals := pricing.Compute(items, c, pricing.DefaultPolicy())
			o := Snapshot(uuid.New(), totals, nil, Buyer{BuyerID: "b"}, "", "EUR", time.Now())
			require.Equal(t, totals.Total, o.GetTotal())
		}
	}
}

func TestSnapshotFreezesInputs(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	items := []Item{{ProductID: uuid.New(), Name: "Shirt", UnitPrice: 5000, FinalPrice: 4500, Quantity: 2}}
	totals := pricing.Summary{Subtotal: 10000, ProductDiscount: 1000, Discount: 1000, DeliveryFee: 500, Total: 9500}
	buyer := Buyer{BuyerID: "buyer-1", Email: "a@example.com", ShippingAddress: Address{Name: "A", City: "Berlin", Country: "DE"}}

	o := Snapshot(uuid.New(), totals, items, buyer, "TEN", "EUR", now)
	items[0].UnitPrice = 1

	require.Equal(t, StatusPending, o.Status)
	require.Equal(t, money.Cents(5000), o.Items[0].UnitPrice)
	require.Equal(t, totals, o.Totals())
	require.Equal(t, "TEN", *o.CouponCode)
	require.Equal(t, "Berlin", o.ShippingAddress.City)
	require.Equal(t, now, o.CreatedAt)

	require.Nil(t, Snapshot(uuid.New(), totals, items, buyer, "", "EUR", now).CouponCode)
}

func TestGetTotalClamps(t *testing.T) {
	o := Order{Subtotal: 300, Discount: 5000, DeliveryFee: 500}
	require.Equal(t, money.Cents(0), o.GetTotal())
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to string
		ok       bool
	}{
		{StatusPending, StatusPaymentReceived, true},
		{StatusPending, StatusPaymentFailed, true},
		{StatusPending, StatusCancelled, true},
		{StatusPaymentFailed, StatusPending, true},
		{StatusPaymentFailed, StatusCancelled, true},
		{StatusPaymentReceived, StatusProcessing, true},
		{StatusProcessing, StatusShipped, true},
		{StatusShipped, StatusDelivered, true},
		{StatusPending, StatusShipped, false},
		{StatusDelivered, StatusPending, false},
		{StatusCancelled, StatusPending, false},
		{StatusPaymentReceived, StatusCancelled, false},
		{StatusShipped, StatusShipped, false},
	}
	for _, tc := range cases {
		require.Equalf(t, tc.ok, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
	require.False(t, KnownStatus("lost"))
	require.True(t, KnownStatus(StatusCancelled))
}
