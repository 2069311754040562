package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Cart struct {
	ID         uuid.UUID       `json:"id"`
	Items      []CartItem      `json:"items"`
	TotalPrice decimal.Decimal `json:"total_price"`
	ItemsCount int             `json:"items_count"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// CartItem references the live product; its price follows the catalog
// until the cart is checked out.
type CartItem struct {
	ID         int64           `json:"id"`
	Product    ProductSummary  `json:"product"`
	Quantity   int             `json:"quantity"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

// CartLine is a cart item joined with the product price read inside the
// checkout transaction.
type CartLine struct {
	ItemID    int64
	ProductID int64
	Name      string
	Price     decimal.Decimal
	Quantity  int
}

func LineTotal(price decimal.Decimal, quantity int) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(int64(quantity)))
}

// LinesCost sums price × quantity over lines using exact decimal math.
func LinesCost(lines []CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(LineTotal(l.Price, l.Quantity))
	}
	return total
}

// Totals fills the line totals, cart total and item count from Items.
func (c *Cart) Totals() {
	total := decimal.Zero
	for i := range c.Items {
		item := &c.Items[i]
		item.TotalPrice = LineTotal(item.Product.Price, item.Quantity)
		total = total.Add(item.TotalPrice)
	}
	c.TotalPrice = total
	c.ItemsCount = len(c.Items)
}
