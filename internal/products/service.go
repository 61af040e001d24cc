package products

import (
	"context"
	"errors"
	"fmt"

	"github.com/bozorline/shop-backend/pkg/db/models"
	pkgerrors "github.com/bozorline/shop-backend/pkg/errors"
	"github.com/bozorline/shop-backend/pkg/slug"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// slugAttempts caps the de-duplication loop when titles collide.
const slugAttempts = 50

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type categoryLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Category, error)
}

// CreateInput carries a new listing.
type CreateInput struct {
	Title       string
	Description string
	Price       decimal.Decimal
	Quantity    int
	CategoryID  uuid.UUID
}

// UpdateInput carries a partial listing update; nil fields stay untouched.
type UpdateInput struct {
	Title       *string
	Description *string
	Price       *decimal.Decimal
	Quantity    *int
	CategoryID  *uuid.UUID
	IsActive    *bool
}

// ListResult is one page of the catalog.
type ListResult struct {
	Products []models.Product
	Total    int64
	Limit    int
	Offset   int
}

// Service exposes catalog management and lookups.
type Service interface {
	List(ctx context.Context, filters ListFilters) (*ListResult, error)
	GetBySlug(ctx context.Context, productSlug string) (*models.Product, error)
	Create(ctx context.Context, input CreateInput) (*models.Product, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.Product, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type service struct {
	repo       ProductRepository
	tx         txRunner
	categories categoryLoader
}

// NewService builds the catalog service.
func NewService(repo ProductRepository, tx txRunner, categories categoryLoader) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if categories == nil {
		return nil, fmt.Errorf("category loader required")
	}
	return &service{repo: repo, tx: tx, categories: categories}, nil
}

// List returns a filtered catalog page.
func (s *service) List(ctx context.Context, filters ListFilters) (*ListResult, error) {
	if filters.Limit <= 0 {
		filters.Limit = defaultListLimit
	}
	if filters.Offset < 0 {
		filters.Offset = 0
	}

	items, total, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	return &ListResult{
		Products: items,
		Total:    total,
		Limit:    filters.Limit,
		Offset:   filters.Offset,
	}, nil
}

// GetBySlug loads one live listing.
func (s *service) GetBySlug(ctx context.Context, productSlug string) (*models.Product, error) {
	if productSlug == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "slug is required")
	}
	product, err := s.repo.FindActiveBySlug(ctx, productSlug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return product, nil
}

// Create inserts a listing, deriving a unique slug from the title.
func (s *service) Create(ctx context.Context, input CreateInput) (*models.Product, error) {
	if input.Title == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title is required")
	}
	if input.Price.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must not be negative")
	}
	if input.Quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must not be negative")
	}
	if input.CategoryID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "category id is required")
	}

	if _, err := s.categories.FindByID(ctx, input.CategoryID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "category not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load category")
	}

	var product *models.Product
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		uniqueSlug, err := s.uniqueSlug(ctx, repo, input.Title)
		if err != nil {
			return err
		}

		product = &models.Product{
			Title:       input.Title,
			Slug:        uniqueSlug,
			Description: input.Description,
			Price:       input.Price,
			Quantity:    input.Quantity,
			CategoryID:  input.CategoryID,
			IsActive:    true,
		}
		if err := repo.Create(ctx, product); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return product, nil
}

// Update applies a partial change to a listing. The slug stays stable across
// title edits so shared catalog links keep working.
func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.Product, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}

	var product *models.Product
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		found, err := repo.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
		}

		if input.Title != nil {
			if *input.Title == "" {
				return pkgerrors.New(pkgerrors.CodeValidation, "title must not be empty")
			}
			found.Title = *input.Title
		}
		if input.Description != nil {
			found.Description = *input.Description
		}
		if input.Price != nil {
			if input.Price.IsNegative() {
				return pkgerrors.New(pkgerrors.CodeValidation, "price must not be negative")
			}
			found.Price = *input.Price
		}
		if input.Quantity != nil {
			if *input.Quantity < 0 {
				return pkgerrors.New(pkgerrors.CodeValidation, "quantity must not be negative")
			}
			found.Quantity = *input.Quantity
		}
		if input.CategoryID != nil {
			if _, err := s.categories.FindByID(ctx, *input.CategoryID); err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return pkgerrors.New(pkgerrors.CodeNotFound, "category not found")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load category")
			}
			found.CategoryID = *input.CategoryID
		}
		if input.IsActive != nil {
			found.IsActive = *input.IsActive
		}

		if err := repo.Update(ctx, found); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product")
		}
		product = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return product, nil
}

// Delete soft-deletes a listing. Existing order lines keep their frozen
// prices; the product simply stops being sellable.
func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deactivate product")
	}
	return nil
}

func (s *service) uniqueSlug(ctx context.Context, repo ProductRepository, title string) (string, error) {
	base := slug.Make(title)
	if base == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "title must contain slug-safe characters")
	}

	candidate := base
	for i := 2; i <= slugAttempts; i++ {
		exists, err := repo.SlugExists(ctx, candidate)
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check slug")
		}
		if !exists {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
	return "", pkgerrors.New(pkgerrors.CodeConflict, "could not derive a unique slug")
}
