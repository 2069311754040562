package carts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/joao-fontenele/storefront/internal/domain"
)

type CartRepository struct {
	db *sql.DB
}

func NewCartRepository(db *sql.DB) *CartRepository {
	return &CartRepository{db: db}
}

func (r *CartRepository) Create(ctx context.Context) (*domain.Cart, error) {
	cart := &domain.Cart{
		ID:    uuid.New(),
		Items: []domain.CartItem{},
	}

	err := r.db.QueryRowContext(ctx, `
		INSERT INTO carts (id) VALUES ($1)
		RETURNING created_at, updated_at
	`, cart.ID).Scan(&cart.CreatedAt, &cart.UpdatedAt)
	if err != nil {
		return nil, err
	}

	cart.Totals()
	return cart, nil
}

func (r *CartRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Cart, error) {
	cart := &domain.Cart{ID: id}

	err := r.db.QueryRowContext(ctx, `
		SELECT created_at, updated_at FROM carts WHERE id = $1
	`, id).Scan(&cart.CreatedAt, &cart.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrCartNotFound
		}
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT ci.id, p.id, p.name, p.price, ci.quantity
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1
		ORDER BY ci.id
	`, id)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	cart.Items = []domain.CartItem{}
	for rows.Next() {
		var item domain.CartItem
		if err := rows.Scan(&item.ID, &item.Product.ID, &item.Product.Name, &item.Product.Price, &item.Quantity); err != nil {
			return nil, err
		}
		cart.Items = append(cart.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	cart.Totals()
	return cart, nil
}

func (r *CartRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM carts WHERE id = $1`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return domain.ErrCartNotFound
	}
	return nil
}

// AddItem puts quantity units of the product in the cart. A product already
// in the cart has its quantity increased instead of getting a second line.
func (r *CartRepository) AddItem(ctx context.Context, cartID uuid.UUID, productID int64, quantity int) (*domain.CartItem, error) {
	if quantity < 1 {
		return nil, domain.ErrInvalidQuantity
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var exists bool
	if err := tx.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)
	`, productID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, domain.ErrProductNotFound
	}

	// Touching the cart row also locks it against a concurrent checkout.
	if err := touchCart(ctx, tx, cartID); err != nil {
		return nil, err
	}

	var itemID int64
	if err := tx.QueryRowContext(ctx, `
		INSERT INTO cart_items (cart_id, product_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (cart_id, product_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity
		RETURNING id
	`, cartID, productID, quantity).Scan(&itemID); err != nil {
		return nil, err
	}

	item, err := getItem(ctx, tx, cartID, itemID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return item, nil
}

func (r *CartRepository) UpdateItemQuantity(ctx context.Context, cartID uuid.UUID, itemID int64, quantity int) (*domain.CartItem, error) {
	if quantity < 1 {
		return nil, domain.ErrInvalidQuantity
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if err := touchCart(ctx, tx, cartID); err != nil {
		return nil, err
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE cart_items SET quantity = $1
		WHERE id = $2 AND cart_id = $3
	`, quantity, itemID, cartID)
	if err != nil {
		return nil, err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rowsAffected == 0 {
		return nil, domain.ErrCartItemNotFound
	}

	item, err := getItem(ctx, tx, cartID, itemID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return item, nil
}

func (r *CartRepository) RemoveItem(ctx context.Context, cartID uuid.UUID, itemID int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := touchCart(ctx, tx, cartID); err != nil {
		return err
	}

	result, err := tx.ExecContext(ctx, `
		DELETE FROM cart_items WHERE id = $1 AND cart_id = $2
	`, itemID, cartID)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return domain.ErrCartItemNotFound
	}

	return tx.Commit()
}

func touchCart(ctx context.Context, tx *sql.Tx, cartID uuid.UUID) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE carts SET updated_at = NOW() WHERE id = $1
	`, cartID)
	if err != nil {
		return fmt.Errorf("touch cart: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return domain.ErrCartNotFound
	}
	return nil
}

func getItem(ctx context.Context, tx *sql.Tx, cartID uuid.UUID, itemID int64) (*domain.CartItem, error) {
	item := &domain.CartItem{}

	err := tx.QueryRowContext(ctx, `
		SELECT ci.id, p.id, p.name, p.price, ci.quantity
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.id = $1 AND ci.cart_id = $2
	`, itemID, cartID).Scan(&item.ID, &item.Product.ID, &item.Product.Name, &item.Product.Price, &item.Quantity)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrCartItemNotFound
		}
		return nil, err
	}

	item.TotalPrice = domain.LineTotal(item.Product.Price, item.Quantity)
	return item, nil
}
