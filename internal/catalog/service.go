package catalog

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/joao-fontenele/storefront/internal/domain"
)

type Repository interface {
	ListCollections(ctx context.Context) ([]domain.Collection, error)
	GetCollection(ctx context.Context, id int64) (*domain.Collection, error)
	CreateCollection(ctx context.Context, c *domain.Collection) error
	UpdateCollection(ctx context.Context, c *domain.Collection) error
	DeleteCollection(ctx context.Context, id int64) error

	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	CreateProduct(ctx context.Context, p *domain.Product) error
	UpdateProduct(ctx context.Context, p *domain.Product) error
	DeleteProduct(ctx context.Context, id int64) error
}

type Service struct {
	repo   Repository
	cache  ProductCache
	sfg    singleflight.Group
	logger *slog.Logger
}

// NewService builds the catalog service. A nil cache disables product
// caching.
func NewService(repo Repository, cache ProductCache, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		cache:  cache,
		logger: logger,
	}
}

func (s *Service) ListCollections(ctx context.Context) ([]domain.Collection, error) {
	return s.repo.ListCollections(ctx)
}

func (s *Service) GetCollection(ctx context.Context, id int64) (*domain.Collection, error) {
	return s.repo.GetCollection(ctx, id)
}

func (s *Service) CreateCollection(ctx context.Context, c *domain.Collection) error {
	if err := c.Validate(); err != nil {
		return err
	}
	return s.repo.CreateCollection(ctx, c)
}

func (s *Service) UpdateCollection(ctx context.Context, c *domain.Collection) error {
	if err := c.Validate(); err != nil {
		return err
	}
	return s.repo.UpdateCollection(ctx, c)
}

func (s *Service) DeleteCollection(ctx context.Context, id int64) error {
	return s.repo.DeleteCollection(ctx, id)
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	if s.cache == nil {
		return s.repo.GetProduct(ctx, id)
	}

	v, err, _ := s.sfg.Do(strconv.FormatInt(id, 10), func() (any, error) {
		p, err := s.cache.Get(ctx, id)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			s.logger.Warn("product cache get failed", "product_id", id, "error", err)
		}

		p, err = s.repo.GetProduct(ctx, id)
		if err != nil {
			return nil, err
		}

		if err := s.cache.Set(ctx, p); err != nil {
			s.logger.Warn("product cache set failed", "product_id", id, "error", err)
		}
		return p, nil
	})
	if err != nil {
		return nil, err
	}

	// Callers sharing a flight must not share the pointer.
	p := *v.(*domain.Product)
	return &p, nil
}

func (s *Service) CreateProduct(ctx context.Context, p *domain.Product) error {
	if err := p.Validate(); err != nil {
		return err
	}
	return s.repo.CreateProduct(ctx, p)
}

func (s *Service) UpdateProduct(ctx context.Context, p *domain.Product) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if err := s.repo.UpdateProduct(ctx, p); err != nil {
		return err
	}
	s.invalidate(p.ID)
	return nil
}

func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		return err
	}
	s.invalidate(id)
	return nil
}

func (s *Service) invalidate(id int64) {
	if s.cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, id); err != nil {
		s.logger.Warn("product cache invalidation failed", "product_id", id, "error", err)
	}
}
