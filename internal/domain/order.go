package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCanceled  OrderStatus = "canceled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusShipped, OrderStatusDelivered, OrderStatusCanceled:
		return true
	}
	return false
}

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending: {OrderStatusShipped, OrderStatusCanceled},
	OrderStatusShipped: {OrderStatusDelivered},
}

// CanTransition reports whether an order in status s may move to next.
// Delivered and canceled orders are terminal.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// OrderItem is a price snapshot of one cart line taken at checkout.
type OrderItem struct {
	ID        int64           `json:"id"`
	Product   ProductSummary  `json:"product"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

// Subtotal is the line cost at the snapshotted price.
func (i OrderItem) Subtotal() decimal.Decimal {
	return LineTotal(i.UnitPrice, i.Quantity)
}

type Order struct {
	ID         int64           `json:"id"`
	CustomerID int64           `json:"customer"`
	PlacedAt   time.Time       `json:"placed_at"`
	Status     OrderStatus     `json:"status"`
	Items      []OrderItem     `json:"items"`
	Cost       decimal.Decimal `json:"cost"`
}
