package orders

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront/internal/domain"
)

type memProduct struct {
	name  string
	price decimal.Decimal
}

type memCartItem struct {
	id        int64
	productID int64
	quantity  int
}

// memStore is an in-memory stand-in for Postgres. InTx holds the store
// lock for the whole callback and restores a snapshot when it fails.
type memStore struct {
	mu        sync.Mutex
	products  map[int64]memProduct
	carts     map[uuid.UUID][]memCartItem
	customers map[int64]domain.Customer
	orders    map[int64]*domain.Order
	nextID    int64

	failOn      string
	deleteNoRow bool
}

var errInjected = errors.New("injected failure")

func newMemStore() *memStore {
	return &memStore{
		products:  map[int64]memProduct{},
		carts:     map[uuid.UUID][]memCartItem{},
		customers: map[int64]domain.Customer{},
		orders:    map[int64]*domain.Order{},
	}
}

func (s *memStore) addProduct(id int64, name, price string) {
	s.products[id] = memProduct{name: name, price: decimal.RequireFromString(price)}
}

func (s *memStore) setPrice(id int64, price string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.products[id]
	p.price = decimal.RequireFromString(price)
	s.products[id] = p
}

func (s *memStore) addCart(items ...memCartItem) uuid.UUID {
	id := uuid.New()
	s.carts[id] = append([]memCartItem{}, items...)
	return id
}

func (s *memStore) addCustomer(id int64, userID string) {
	s.customers[id] = domain.Customer{ID: id, UserID: userID}
}

func (s *memStore) cartExists(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.carts[id]
	return ok
}

func (s *memStore) orderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

func (s *memStore) InTx(ctx context.Context, fn func(CheckoutStore) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	carts := make(map[uuid.UUID][]memCartItem, len(s.carts))
	for id, items := range s.carts {
		carts[id] = append([]memCartItem{}, items...)
	}
	orders := make(map[int64]*domain.Order, len(s.orders))
	for id, o := range s.orders {
		orders[id] = o
	}
	nextID := s.nextID

	if err := fn(&memTx{s: s}); err != nil {
		s.carts = carts
		s.orders = orders
		s.nextID = nextID
		return err
	}
	return nil
}

type memTx struct {
	s *memStore
}

func (t *memTx) fail(op string) error {
	if t.s.failOn == op {
		return errInjected
	}
	return nil
}

func (t *memTx) LockCart(ctx context.Context, cartID uuid.UUID) (bool, error) {
	if err := t.fail("lock"); err != nil {
		return false, err
	}
	_, ok := t.s.carts[cartID]
	return ok, nil
}

func (t *memTx) CartLines(ctx context.Context, cartID uuid.UUID) ([]domain.CartLine, error) {
	if err := t.fail("lines"); err != nil {
		return nil, err
	}
	var lines []domain.CartLine
	for _, item := range t.s.carts[cartID] {
		p := t.s.products[item.productID]
		lines = append(lines, domain.CartLine{
			ItemID:    item.id,
			ProductID: item.productID,
			Name:      p.name,
			Price:     p.price,
			Quantity:  item.quantity,
		})
	}
	return lines, nil
}

func (t *memTx) CustomerExists(ctx context.Context, customerID int64) (bool, error) {
	_, ok := t.s.customers[customerID]
	return ok, nil
}

func (t *memTx) InsertOrder(ctx context.Context, order *domain.Order) error {
	if err := t.fail("order"); err != nil {
		return err
	}
	t.s.nextID++
	order.ID = t.s.nextID
	stored := *order
	t.s.orders[order.ID] = &stored
	return nil
}

func (t *memTx) InsertOrderItems(ctx context.Context, orderID int64, items []domain.OrderItem) error {
	if err := t.fail("items"); err != nil {
		return err
	}
	for i := range items {
		t.s.nextID++
		items[i].ID = t.s.nextID
	}
	stored := *t.s.orders[orderID]
	stored.Items = append([]domain.OrderItem{}, items...)
	t.s.orders[orderID] = &stored
	return nil
}

func (t *memTx) DeleteCart(ctx context.Context, cartID uuid.UUID) (int64, error) {
	if err := t.fail("delete"); err != nil {
		return 0, err
	}
	if t.s.deleteNoRow {
		return 0, nil
	}
	if _, ok := t.s.carts[cartID]; !ok {
		return 0, nil
	}
	delete(t.s.carts, cartID)
	return 1, nil
}

func (s *memStore) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (s *memStore) List(ctx context.Context) ([]domain.Order, error) {
	return s.filter(func(domain.Order) bool { return true }), nil
}

func (s *memStore) ListByCustomer(ctx context.Context, customerID int64) ([]domain.Order, error) {
	return s.filter(func(o domain.Order) bool { return o.CustomerID == customerID }), nil
}

func (s *memStore) filter(keep func(domain.Order) bool) []domain.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []domain.Order{}
	for _, o := range s.orders {
		if keep(*o) {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (s *memStore) UpdateStatus(ctx context.Context, id int64, from, to domain.OrderStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok || o.Status != from {
		return false, nil
	}
	cp := *o
	cp.Status = to
	s.orders[id] = &cp
	return true, nil
}

func (s *memStore) Delete(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[id]; !ok {
		return false, nil
	}
	delete(s.orders, id)
	return true, nil
}

func (s *memStore) GetByUserID(ctx context.Context, userID string) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.customers {
		if c.UserID == userID {
			cp := c
			return &cp, nil
		}
	}
	return nil, domain.ErrCustomerNotFound
}
