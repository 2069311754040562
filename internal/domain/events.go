package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TopicOrderPlaced = "order.placed"
	TopicUserCreated = "user.created"
)

type OrderPlacedEvent struct {
	OrderID    int64             `json:"order_id"`
	CustomerID int64             `json:"customer_id"`
	Cost       decimal.Decimal   `json:"cost"`
	Items      []OrderPlacedLine `json:"items"`
	Timestamp  time.Time         `json:"timestamp"`
}

type OrderPlacedLine struct {
	ProductID int64           `json:"product_id"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

func NewOrderPlacedEvent(o *Order) OrderPlacedEvent {
	lines := make([]OrderPlacedLine, 0, len(o.Items))
	for _, item := range o.Items {
		lines = append(lines, OrderPlacedLine{
			ProductID: item.Product.ID,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
		})
	}
	return OrderPlacedEvent{
		OrderID:    o.ID,
		CustomerID: o.CustomerID,
		Cost:       o.Cost,
		Items:      lines,
		Timestamp:  o.PlacedAt,
	}
}

// UserCreatedEvent is published by the identity service when an account
// is registered.
type UserCreatedEvent struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Timestamp time.Time `json:"timestamp"`
}
