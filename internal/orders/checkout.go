package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/joao-fontenele/storefront/internal/domain"
)

// CheckoutStore is the storage surface used by checkout. Implementations are
// bound to a single open transaction.
type CheckoutStore interface {
	// LockCart reports whether the cart exists and holds a row lock on it
	// until the transaction ends.
	LockCart(ctx context.Context, cartID uuid.UUID) (bool, error)
	CartLines(ctx context.Context, cartID uuid.UUID) ([]domain.CartLine, error)
	CustomerExists(ctx context.Context, customerID int64) (bool, error)
	InsertOrder(ctx context.Context, order *domain.Order) error
	// InsertOrderItems writes all items in one statement and sets their IDs.
	InsertOrderItems(ctx context.Context, orderID int64, items []domain.OrderItem) error
	DeleteCart(ctx context.Context, cartID uuid.UUID) (int64, error)
}

// TxRunner runs fn inside one transaction. The transaction commits only if
// fn returns nil and is rolled back on every other exit path.
type TxRunner interface {
	InTx(ctx context.Context, fn func(CheckoutStore) error) error
}

type Transactor struct {
	runner TxRunner
	now    func() time.Time
}

func NewTransactor(runner TxRunner) *Transactor {
	return &Transactor{
		runner: runner,
		now:    time.Now,
	}
}

// Checkout converts the cart into a pending order priced at the current
// catalog prices and deletes the cart, all in one transaction.
func (t *Transactor) Checkout(ctx context.Context, cartID uuid.UUID, customerID int64) (*domain.Order, error) {
	var order *domain.Order

	err := t.runner.InTx(ctx, func(s CheckoutStore) error {
		placed, err := placeOrder(ctx, s, cartID, customerID, t.now().UTC())
		if err != nil {
			return err
		}
		order = placed
		return nil
	})
	if err != nil {
		return nil, err
	}

	return order, nil
}

func placeOrder(ctx context.Context, s CheckoutStore, cartID uuid.UUID, customerID int64, now time.Time) (*domain.Order, error) {
	found, err := s.LockCart(ctx, cartID)
	if err != nil {
		return nil, storageErr("lock cart", err)
	}
	if !found {
		return nil, domain.ErrCartNotFound
	}

	lines, err := s.CartLines(ctx, cartID)
	if err != nil {
		return nil, storageErr("load cart lines", err)
	}
	if len(lines) == 0 {
		return nil, domain.ErrEmptyCart
	}

	exists, err := s.CustomerExists(ctx, customerID)
	if err != nil {
		return nil, storageErr("check customer", err)
	}
	if !exists {
		return nil, domain.ErrCustomerNotFound
	}

	order := &domain.Order{
		CustomerID: customerID,
		PlacedAt:   now,
		Status:     domain.OrderStatusPending,
		Cost:       domain.LinesCost(lines),
	}
	if err := s.InsertOrder(ctx, order); err != nil {
		return nil, storageErr("insert order", err)
	}

	items := make([]domain.OrderItem, 0, len(lines))
	for _, line := range lines {
		items = append(items, domain.OrderItem{
			Product: domain.ProductSummary{
				ID:    line.ProductID,
				Name:  line.Name,
				Price: line.Price,
			},
			UnitPrice: line.Price,
			Quantity:  line.Quantity,
		})
	}
	if err := s.InsertOrderItems(ctx, order.ID, items); err != nil {
		return nil, storageErr("insert order items", err)
	}
	order.Items = items

	deleted, err := s.DeleteCart(ctx, cartID)
	if err != nil {
		return nil, storageErr("delete cart", err)
	}
	if deleted == 0 {
		return nil, domain.ErrCartNotFound
	}

	return order, nil
}

func storageErr(op string, err error) error {
	if errors.Is(err, domain.ErrStorageTransaction) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStorageTransaction, err)
}
