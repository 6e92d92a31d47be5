package domain_test

import (
	"testing"
	"time"

	"github.com/vladislavdragonenkov/infopharma/internal/domain"
)

// helper для создания базового заказа с одной позицией.
func makeOrder() domain.Order {
	now := time.Now().UTC()
	return domain.Order{
		ID:         "ORD1001",
		MerchantID: "M001",
		Status:     domain.OrderStatusPending,
		TotalMinor: 500,
		Items: []domain.OrderItem{
			{ProductID: "P001", Qty: 5, UnitPriceMinor: 100},
		},
		OrderDate: now,
		Version:   0,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestOrderValidateInvariants_Ok(t *testing.T) {
	order := makeOrder()
	if errs := order.ValidateInvariants(); len(errs) != 0 {
		t.Fatalf("expected no validation errors, got %v", errs)
	}
}

func TestOrderValidateInvariants_Errors(t *testing.T) {
	cases := []struct {
		name string
		mut  func(o *domain.Order)
	}{
		{
			name: "no merchant",
			mut: func(o *domain.Order) {
				o.MerchantID = ""
			},
		},
		{
			name: "no items",
			mut: func(o *domain.Order) {
				o.Items = nil
			},
		},
		{
			name: "product required",
			mut: func(o *domain.Order) {
				o.Items[0].ProductID = ""
			},
		},
		{
			name: "qty invalid",
			mut: func(o *domain.Order) {
				o.Items[0].Qty = 0
			},
		},
		{
			name: "price invalid",
			mut: func(o *domain.Order) {
				o.Items[0].UnitPriceMinor = -5
			},
		},
		{
			name: "total mismatch",
			mut: func(o *domain.Order) {
				o.TotalMinor = 999
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			order := makeOrder()
			tc.mut(&order)

			if len(order.ValidateInvariants()) == 0 {
				t.Fatalf("expected validation errors for case %s", tc.name)
			}
		})
	}
}

func TestItemsTotalMinor(t *testing.T) {
	items := []domain.OrderItem{
		{ProductID: "P001", Qty: 3, UnitPriceMinor: 250},
		{ProductID: "P002", Qty: 2, UnitPriceMinor: 1_000},
	}

	if got := domain.ItemsTotalMinor(items); got != 2_750 {
		t.Fatalf("expected total 2750, got %d", got)
	}
}

func TestOrderStatusCanAdvanceTo(t *testing.T) {
	cases := []struct {
		name string
		from domain.OrderStatus
		to   domain.OrderStatus
		want bool
	}{
		{name: "pending to dispatched", from: domain.OrderStatusPending, to: domain.OrderStatusDispatched, want: true},
		{name: "pending to delivered", from: domain.OrderStatusPending, to: domain.OrderStatusDelivered, want: true},
		{name: "dispatched to delivered", from: domain.OrderStatusDispatched, to: domain.OrderStatusDelivered, want: true},
		{name: "dispatched to pending", from: domain.OrderStatusDispatched, to: domain.OrderStatusPending, want: false},
		{name: "delivered to dispatched", from: domain.OrderStatusDelivered, to: domain.OrderStatusDispatched, want: false},
		{name: "cancel is not an advance", from: domain.OrderStatusPending, to: domain.OrderStatusCancelled, want: false},
		{name: "cancelled is terminal", from: domain.OrderStatusCancelled, to: domain.OrderStatusDispatched, want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.from.CanAdvanceTo(tc.to); got != tc.want {
				t.Fatalf("expected %v for %s -> %s, got %v", tc.want, tc.from, tc.to, got)
			}
		})
	}
}
