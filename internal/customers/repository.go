package customers

import (
	"context"
	"database/sql"
	"errors"

	"github.com/joao-fontenele/storefront/internal/domain"
)

type CustomerRepository struct {
	db *sql.DB
}

func NewCustomerRepository(db *sql.DB) *CustomerRepository {
	return &CustomerRepository{db: db}
}

const customerColumns = `id, user_id, first_name, last_name, email, phone, address`

func scanCustomer(row interface{ Scan(...any) error }) (*domain.Customer, error) {
	c := &domain.Customer{}
	err := row.Scan(&c.ID, &c.UserID, &c.FirstName, &c.LastName, &c.Email, &c.Phone, &c.Address)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrCustomerNotFound
		}
		return nil, err
	}
	return c, nil
}

func (r *CustomerRepository) GetByUserID(ctx context.Context, userID string) (*domain.Customer, error) {
	return scanCustomer(r.db.QueryRowContext(ctx, `
		SELECT `+customerColumns+` FROM customers WHERE user_id = $1
	`, userID))
}

func (r *CustomerRepository) GetByID(ctx context.Context, id int64) (*domain.Customer, error) {
	return scanCustomer(r.db.QueryRowContext(ctx, `
		SELECT `+customerColumns+` FROM customers WHERE id = $1
	`, id))
}

func (r *CustomerRepository) List(ctx context.Context) ([]domain.Customer, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+customerColumns+` FROM customers
		ORDER BY first_name, last_name, id
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	customers := []domain.Customer{}
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, *c)
	}

	return customers, rows.Err()
}

func (r *CustomerRepository) UpdateProfile(ctx context.Context, userID, phone, address string) (*domain.Customer, error) {
	return scanCustomer(r.db.QueryRowContext(ctx, `
		UPDATE customers SET phone = $2, address = $3
		WHERE user_id = $1
		RETURNING `+customerColumns, userID, phone, address))
}

// Provision creates the customer for a newly registered user. It reports
// false when the user already has one, so redelivered events are harmless.
func (r *CustomerRepository) Provision(ctx context.Context, event domain.UserCreatedEvent) (bool, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO customers (user_id, first_name, last_name, email)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO NOTHING
		RETURNING id
	`, event.UserID, event.FirstName, event.LastName, event.Email).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
