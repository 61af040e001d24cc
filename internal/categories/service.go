package categories

import (
	"context"
	"errors"
	"fmt"

	"github.com/bozorline/shop-backend/pkg/db/models"
	pkgerrors "github.com/bozorline/shop-backend/pkg/errors"
	"github.com/bozorline/shop-backend/pkg/slug"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const slugAttempts = 50

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// CreateInput carries a new category.
type CreateInput struct {
	Name     string
	ParentID *uuid.UUID
}

// Service exposes the category tree.
type Service interface {
	List(ctx context.Context) ([]models.Category, error)
	GetBySlug(ctx context.Context, categorySlug string) (*models.Category, error)
	Create(ctx context.Context, input CreateInput) (*models.Category, error)
}

type service struct {
	repo CategoryRepository
	tx   txRunner
}

// NewService builds the category service.
func NewService(repo CategoryRepository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("category repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx}, nil
}

// List returns the active category tree, roots first.
func (s *service) List(ctx context.Context) ([]models.Category, error) {
	roots, err := s.repo.ListRoots(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list categories")
	}
	return roots, nil
}

// GetBySlug loads one live category with its children.
func (s *service) GetBySlug(ctx context.Context, categorySlug string) (*models.Category, error) {
	if categorySlug == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "slug is required")
	}
	category, err := s.repo.FindActiveBySlug(ctx, categorySlug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "category not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load category")
	}
	return category, nil
}

// Create inserts a category, deriving a unique slug from the name.
func (s *service) Create(ctx context.Context, input CreateInput) (*models.Category, error) {
	if input.Name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}

	if input.ParentID != nil {
		if _, err := s.repo.FindByID(ctx, *input.ParentID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "parent category not found")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load parent category")
		}
	}

	var category *models.Category
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		base := slug.Make(input.Name)
		if base == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "name must contain slug-safe characters")
		}
		candidate := base
		for i := 2; ; i++ {
			exists, err := repo.SlugExists(ctx, candidate)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check slug")
			}
			if !exists {
				break
			}
			if i > slugAttempts {
				return pkgerrors.New(pkgerrors.CodeConflict, "could not derive a unique slug")
			}
			candidate = fmt.Sprintf("%s-%d", base, i)
		}

		category = &models.Category{
			Name:     input.Name,
			Slug:     candidate,
			ParentID: input.ParentID,
			IsActive: true,
		}
		if err := repo.Create(ctx, category); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create category")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return category, nil
}
