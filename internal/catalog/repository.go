package catalog

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"github.com/joao-fontenele/storefront/internal/domain"
)

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

type CatalogRepository struct {
	db *sql.DB
}

func NewCatalogRepository(db *sql.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

func (r *CatalogRepository) ListCollections(ctx context.Context) ([]domain.Collection, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.id, c.name, c.description, COUNT(p.id), c.added_at, c.last_updated_at
		FROM collections c
		LEFT JOIN products p ON p.collection_id = c.id
		GROUP BY c.id
		ORDER BY c.name, c.id
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	collections := []domain.Collection{}
	for rows.Next() {
		var c domain.Collection
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.ProductsCount, &c.AddedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		collections = append(collections, c)
	}

	return collections, rows.Err()
}

func (r *CatalogRepository) GetCollection(ctx context.Context, id int64) (*domain.Collection, error) {
	c := &domain.Collection{}
	err := r.db.QueryRowContext(ctx, `
		SELECT c.id, c.name, c.description,
			(SELECT COUNT(*) FROM products p WHERE p.collection_id = c.id),
			c.added_at, c.last_updated_at
		FROM collections c
		WHERE c.id = $1
	`, id).Scan(&c.ID, &c.Name, &c.Description, &c.ProductsCount, &c.AddedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrCollectionNotFound
		}
		return nil, err
	}
	return c, nil
}

func (r *CatalogRepository) CreateCollection(ctx context.Context, c *domain.Collection) error {
	return r.db.QueryRowContext(ctx, `
		INSERT INTO collections (name, description)
		VALUES ($1, $2)
		RETURNING id, added_at, last_updated_at
	`, c.Name, c.Description).Scan(&c.ID, &c.AddedAt, &c.UpdatedAt)
}

func (r *CatalogRepository) UpdateCollection(ctx context.Context, c *domain.Collection) error {
	err := r.db.QueryRowContext(ctx, `
		UPDATE collections SET name = $2, description = $3, last_updated_at = NOW()
		WHERE id = $1
		RETURNING added_at, last_updated_at
	`, c.ID, c.Name, c.Description).Scan(&c.AddedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrCollectionNotFound
	}
	return err
}

func (r *CatalogRepository) DeleteCollection(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM collections WHERE id = $1`, id)
	if err != nil {
		if isPQError(err, pqForeignKeyViolation) {
			return domain.ErrCollectionInUse
		}
		return err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrCollectionNotFound
	}
	return nil
}

const productColumns = `id, name, slug, description, price, stock, collection_id, added_at, last_updated_at`

func scanProduct(row interface{ Scan(...any) error }) (*domain.Product, error) {
	p := &domain.Product{}
	err := row.Scan(&p.ID, &p.Name, &p.Slug, &p.Description, &p.Price, &p.Stock, &p.CollectionID, &p.AddedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrProductNotFound
		}
		return nil, err
	}
	return p, nil
}

func (r *CatalogRepository) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+productColumns+` FROM products ORDER BY name, id
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	products := []domain.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}

	return products, rows.Err()
}

func (r *CatalogRepository) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	return scanProduct(r.db.QueryRowContext(ctx, `
		SELECT `+productColumns+` FROM products WHERE id = $1
	`, id))
}

func (r *CatalogRepository) CreateProduct(ctx context.Context, p *domain.Product) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO products (name, slug, description, price, stock, collection_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, added_at, last_updated_at
	`, p.Name, p.Slug, p.Description, p.Price, p.Stock, p.CollectionID).Scan(&p.ID, &p.AddedAt, &p.UpdatedAt)
	return productWriteError(err)
}

func (r *CatalogRepository) UpdateProduct(ctx context.Context, p *domain.Product) error {
	err := r.db.QueryRowContext(ctx, `
		UPDATE products
		SET name = $2, slug = $3, description = $4, price = $5, stock = $6,
			collection_id = $7, last_updated_at = NOW()
		WHERE id = $1
		RETURNING added_at, last_updated_at
	`, p.ID, p.Name, p.Slug, p.Description, p.Price, p.Stock, p.CollectionID).Scan(&p.AddedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrProductNotFound
	}
	return productWriteError(err)
}

// DeleteProduct removes a product and any cart lines holding it. Products
// already sold stay, since order items keep a reference to them.
func (r *CatalogRepository) DeleteProduct(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		if isPQError(err, pqForeignKeyViolation) {
			return domain.ErrProductInUse
		}
		return err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}

func productWriteError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code == pqUniqueViolation && pqErr.Constraint == "products_slug_key":
			return domain.ErrSlugTaken
		case pqErr.Code == pqForeignKeyViolation:
			return domain.ErrCollectionNotFound
		}
	}
	return err
}

func isPQError(err error, code pq.ErrorCode) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == code
}
