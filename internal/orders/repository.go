package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/joao-fontenele/storefront/internal/domain"
)

type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// InTx runs fn against a checkout store bound to a new READ COMMITTED
// transaction. Concurrent checkouts of one cart are serialized by the row
// lock taken in LockCart.
func (r *OrderRepository) InTx(ctx context.Context, fn func(CheckoutStore) error) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w: %w", domain.ErrStorageTransaction, err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&txCheckoutStore{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w: %w", domain.ErrStorageTransaction, err)
	}
	return nil
}

type txCheckoutStore struct {
	tx *sql.Tx
}

func (s *txCheckoutStore) LockCart(ctx context.Context, cartID uuid.UUID) (bool, error) {
	var id uuid.UUID
	err := s.tx.QueryRowContext(ctx, `
		SELECT id FROM carts WHERE id = $1 FOR UPDATE
	`, cartID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *txCheckoutStore) CartLines(ctx context.Context, cartID uuid.UUID) ([]domain.CartLine, error) {
	rows, err := s.tx.QueryContext(ctx, `
		SELECT ci.id, p.id, p.name, p.price, ci.quantity
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1
		ORDER BY ci.id
	`, cartID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var lines []domain.CartLine
	for rows.Next() {
		var line domain.CartLine
		if err := rows.Scan(&line.ItemID, &line.ProductID, &line.Name, &line.Price, &line.Quantity); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}

	return lines, rows.Err()
}

func (s *txCheckoutStore) CustomerExists(ctx context.Context, customerID int64) (bool, error) {
	var exists bool
	err := s.tx.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM customers WHERE id = $1)
	`, customerID).Scan(&exists)
	return exists, err
}

func (s *txCheckoutStore) InsertOrder(ctx context.Context, order *domain.Order) error {
	return s.tx.QueryRowContext(ctx, `
		INSERT INTO orders (customer_id, placed_at, status, cost, updated_at)
		VALUES ($1, $2, $3, $4, $2)
		RETURNING id
	`, order.CustomerID, order.PlacedAt, order.Status, order.Cost).Scan(&order.ID)
}

func (s *txCheckoutStore) InsertOrderItems(ctx context.Context, orderID int64, items []domain.OrderItem) error {
	productIDs := make([]int64, len(items))
	prices := make([]string, len(items))
	quantities := make([]int64, len(items))
	for i, item := range items {
		productIDs[i] = item.Product.ID
		prices[i] = item.UnitPrice.String()
		quantities[i] = int64(item.Quantity)
	}

	rows, err := s.tx.QueryContext(ctx, `
		INSERT INTO order_items (order_id, product_id, unit_price, quantity)
		SELECT $1, t.product_id, t.unit_price, t.quantity
		FROM unnest($2::bigint[], $3::numeric[], $4::integer[]) AS t(product_id, unit_price, quantity)
		RETURNING id, product_id
	`, orderID, pq.Array(productIDs), pq.Array(prices), pq.Array(quantities))
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	// A cart holds at most one line per product, so product_id identifies
	// the inserted row.
	ids := make(map[int64]int64, len(items))
	for rows.Next() {
		var id, productID int64
		if err := rows.Scan(&id, &productID); err != nil {
			return err
		}
		ids[productID] = id
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if len(ids) != len(items) {
		return fmt.Errorf("inserted %d order items, expected %d", len(ids), len(items))
	}
	for i := range items {
		items[i].ID = ids[items[i].Product.ID]
	}
	return nil
}

func (s *txCheckoutStore) DeleteCart(ctx context.Context, cartID uuid.UUID) (int64, error) {
	result, err := s.tx.ExecContext(ctx, `DELETE FROM carts WHERE id = $1`, cartID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *OrderRepository) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	order := &domain.Order{}

	err := r.db.QueryRowContext(ctx, `
		SELECT id, customer_id, placed_at, status, cost
		FROM orders
		WHERE id = $1
	`, id).Scan(&order.ID, &order.CustomerID, &order.PlacedAt, &order.Status, &order.Cost)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, err
	}

	items, err := r.loadItems(ctx, []int64{order.ID})
	if err != nil {
		return nil, err
	}
	order.Items = items[order.ID]
	if order.Items == nil {
		order.Items = []domain.OrderItem{}
	}

	return order, nil
}

func (r *OrderRepository) List(ctx context.Context) ([]domain.Order, error) {
	return r.list(ctx, `
		SELECT id, customer_id, placed_at, status, cost
		FROM orders
		ORDER BY placed_at DESC, id DESC
	`)
}

func (r *OrderRepository) ListByCustomer(ctx context.Context, customerID int64) ([]domain.Order, error) {
	return r.list(ctx, `
		SELECT id, customer_id, placed_at, status, cost
		FROM orders
		WHERE customer_id = $1
		ORDER BY placed_at DESC, id DESC
	`, customerID)
}

func (r *OrderRepository) list(ctx context.Context, query string, args ...any) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var orders []domain.Order
	var orderIDs []int64

	for rows.Next() {
		var order domain.Order
		if err := rows.Scan(&order.ID, &order.CustomerID, &order.PlacedAt, &order.Status, &order.Cost); err != nil {
			return nil, err
		}
		orders = append(orders, order)
		orderIDs = append(orderIDs, order.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(orderIDs) == 0 {
		return []domain.Order{}, nil
	}

	items, err := r.loadItems(ctx, orderIDs)
	if err != nil {
		return nil, err
	}

	for i := range orders {
		orders[i].Items = items[orders[i].ID]
		if orders[i].Items == nil {
			orders[i].Items = []domain.OrderItem{}
		}
	}

	return orders, nil
}

func (r *OrderRepository) loadItems(ctx context.Context, orderIDs []int64) (map[int64][]domain.OrderItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT oi.order_id, oi.id, p.id, p.name, p.price, oi.unit_price, oi.quantity
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = ANY($1)
		ORDER BY oi.id
	`, pq.Array(orderIDs))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	items := make(map[int64][]domain.OrderItem, len(orderIDs))
	for rows.Next() {
		var orderID int64
		var item domain.OrderItem
		if err := rows.Scan(&orderID, &item.ID, &item.Product.ID, &item.Product.Name, &item.Product.Price, &item.UnitPrice, &item.Quantity); err != nil {
			return nil, err
		}
		items[orderID] = append(items[orderID], item)
	}

	return items, rows.Err()
}

// UpdateStatus moves the order from one status to another. It reports false
// when the order does not exist or is no longer in status from.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id int64, from, to domain.OrderStatus) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE orders SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`, to, id, from)
	if err != nil {
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rowsAffected > 0, nil
}

func (r *OrderRepository) Delete(ctx context.Context, id int64) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rowsAffected > 0, nil
}
