package orders

import (
	"context"
	"errors"

	"github.com/joao-fontenele/storefront/internal/auth"
	"github.com/joao-fontenele/storefront/internal/domain"
)

type OrderStore interface {
	GetByID(ctx context.Context, id int64) (*domain.Order, error)
	List(ctx context.Context) ([]domain.Order, error)
	ListByCustomer(ctx context.Context, customerID int64) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, id int64, from, to domain.OrderStatus) (bool, error)
	Delete(ctx context.Context, id int64) (bool, error)
}

type CustomerLookup interface {
	GetByUserID(ctx context.Context, userID string) (*domain.Customer, error)
}

// Gateway applies role-based visibility and transition rules on top of the
// order store. Staff see and manage every order; customers see their own
// orders and may only cancel them while pending.
type Gateway struct {
	orders    OrderStore
	customers CustomerLookup
}

func NewGateway(orders OrderStore, customers CustomerLookup) *Gateway {
	return &Gateway{
		orders:    orders,
		customers: customers,
	}
}

func (g *Gateway) List(ctx context.Context, p auth.Principal) ([]domain.Order, error) {
	if p.Staff {
		return g.orders.List(ctx)
	}

	customer, err := g.customers.GetByUserID(ctx, p.UserID)
	if errors.Is(err, domain.ErrCustomerNotFound) {
		return []domain.Order{}, nil
	}
	if err != nil {
		return nil, err
	}

	return g.orders.ListByCustomer(ctx, customer.ID)
}

func (g *Gateway) Get(ctx context.Context, p auth.Principal, id int64) (*domain.Order, error) {
	order, err := g.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Staff {
		return order, nil
	}

	owner, err := g.isOwner(ctx, p, order)
	if err != nil {
		return nil, err
	}
	if !owner {
		return nil, domain.ErrOrderNotFound
	}
	return order, nil
}

// UpdateStatus moves an order to status. Staff transitions must follow the
// order state machine; customers may only cancel their own pending orders.
func (g *Gateway) UpdateStatus(ctx context.Context, p auth.Principal, id int64, status domain.OrderStatus) (*domain.Order, error) {
	if !status.Valid() {
		return nil, domain.ErrInvalidStatus
	}

	order, err := g.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !p.Staff {
		owner, err := g.isOwner(ctx, p, order)
		if err != nil {
			return nil, err
		}
		if !owner || status != domain.OrderStatusCanceled {
			return nil, domain.ErrForbidden
		}
	}

	if !order.Status.CanTransition(status) {
		return nil, domain.ErrInvalidTransition
	}

	updated, err := g.orders.UpdateStatus(ctx, id, order.Status, status)
	if err != nil {
		return nil, err
	}
	if !updated {
		// Deleted or moved by someone else since it was read.
		return nil, domain.ErrInvalidTransition
	}

	return g.orders.GetByID(ctx, id)
}

func (g *Gateway) Delete(ctx context.Context, p auth.Principal, id int64) error {
	if !p.Staff {
		return domain.ErrForbidden
	}

	deleted, err := g.orders.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return domain.ErrOrderNotFound
	}
	return nil
}

func (g *Gateway) isOwner(ctx context.Context, p auth.Principal, order *domain.Order) (bool, error) {
	customer, err := g.customers.GetByUserID(ctx, p.UserID)
	if errors.Is(err, domain.ErrCustomerNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return customer.ID == order.CustomerID, nil
}
