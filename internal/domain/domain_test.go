package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestOrderStatus_CanTransition(t *testing.T) {
	tests := []struct {
		from, to OrderStatus
		want     bool
	}{
		{OrderStatusPending, OrderStatusShipped, true},
		{OrderStatusPending, OrderStatusCanceled, true},
		{OrderStatusPending, OrderStatusDelivered, false},
		{OrderStatusShipped, OrderStatusDelivered, true},
		{OrderStatusShipped, OrderStatusCanceled, false},
		{OrderStatusDelivered, OrderStatusPending, false},
		{OrderStatusCanceled, OrderStatusPending, false},
		{OrderStatusPending, OrderStatusPending, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransition(tt.to))
		})
	}
}

func TestOrderStatus_Valid(t *testing.T) {
	assert.True(t, OrderStatusDelivered.Valid())
	assert.False(t, OrderStatus("P").Valid())
	assert.False(t, OrderStatus("").Valid())
}

func TestLinesCost_ExactDecimal(t *testing.T) {
	lines := []CartLine{
		{ProductID: 1, Price: decimal.RequireFromString("10.00"), Quantity: 2},
		{ProductID: 2, Price: decimal.RequireFromString("5.50"), Quantity: 1},
	}
	assert.True(t, decimal.RequireFromString("25.50").Equal(LinesCost(lines)))

	// 0.1 × 3 drifts in binary floating point.
	drift := []CartLine{{Price: decimal.RequireFromString("0.10"), Quantity: 3}}
	assert.Equal(t, "0.3", LinesCost(drift).String())

	assert.True(t, LinesCost(nil).IsZero())
}

func TestCart_Totals(t *testing.T) {
	cart := &Cart{Items: []CartItem{
		{Product: ProductSummary{ID: 1, Price: decimal.RequireFromString("3.33")}, Quantity: 3},
		{Product: ProductSummary{ID: 2, Price: decimal.RequireFromString("1.01")}, Quantity: 1},
	}}

	cart.Totals()

	assert.Equal(t, 2, cart.ItemsCount)
	assert.Equal(t, "9.99", cart.Items[0].TotalPrice.StringFixed(2))
	assert.Equal(t, "11.00", cart.TotalPrice.StringFixed(2))
}

func TestProduct_Validate(t *testing.T) {
	valid := Product{Name: "Mug", Slug: "mug", Price: decimal.RequireFromString("4.00"), Stock: 0}
	assert.NoError(t, valid.Validate())

	zeroPrice := valid
	zeroPrice.Price = decimal.Zero
	assert.ErrorIs(t, zeroPrice.Validate(), ErrInvalidPrice)

	negative := valid
	negative.Price = decimal.RequireFromString("-1")
	assert.ErrorIs(t, negative.Validate(), ErrInvalidPrice)

	noSlug := valid
	noSlug.Slug = " "
	assert.ErrorIs(t, noSlug.Validate(), ErrInvalidProduct)

	negativeStock := valid
	negativeStock.Stock = -1
	assert.ErrorIs(t, negativeStock.Validate(), ErrInvalidProduct)
}

func TestNewOrderPlacedEvent(t *testing.T) {
	order := &Order{
		ID:         7,
		CustomerID: 3,
		Cost:       decimal.RequireFromString("25.50"),
		Items: []OrderItem{
			{Product: ProductSummary{ID: 1}, UnitPrice: decimal.RequireFromString("10.00"), Quantity: 2},
		},
	}

	event := NewOrderPlacedEvent(order)

	assert.Equal(t, int64(7), event.OrderID)
	assert.Len(t, event.Items, 1)
	assert.Equal(t, int64(1), event.Items[0].ProductID)
	assert.Equal(t, 2, event.Items[0].Quantity)
}
