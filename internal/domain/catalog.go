package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Collection struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	ProductsCount int       `json:"products_count"`
	AddedAt       time.Time `json:"added_at"`
	UpdatedAt     time.Time `json:"last_updated_at"`
}

type Product struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	Slug         string          `json:"slug"`
	Description  string          `json:"description"`
	Price        decimal.Decimal `json:"price"`
	Stock        int             `json:"stock"`
	CollectionID int64           `json:"collection"`
	AddedAt      time.Time       `json:"added_at"`
	UpdatedAt    time.Time       `json:"last_updated_at"`
}

// ProductSummary is the product shape embedded in cart and order lines.
type ProductSummary struct {
	ID    int64           `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

func (p *Product) Validate() error {
	if strings.TrimSpace(p.Name) == "" || strings.TrimSpace(p.Slug) == "" {
		return ErrInvalidProduct
	}
	if p.Stock < 0 {
		return ErrInvalidProduct
	}
	if !p.Price.IsPositive() {
		return ErrInvalidPrice
	}
	return nil
}

func (c *Collection) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrInvalidCollection
	}
	return nil
}
