package categories

import (
	"context"

	"github.com/bozorline/shop-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CategoryRepository defines the persistence surface required by the category
// service.
type CategoryRepository interface {
	WithTx(tx *gorm.DB) CategoryRepository
	FindByID(ctx context.Context, id uuid.UUID) (*models.Category, error)
	FindActiveBySlug(ctx context.Context, slug string) (*models.Category, error)
	ListRoots(ctx context.Context) ([]models.Category, error)
	Create(ctx context.Context, category *models.Category) error
	SlugExists(ctx context.Context, slug string) (bool, error)
}

// Repository persists the category tree.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a category repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) CategoryRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindByID loads a category regardless of its active flag.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	var category models.Category
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&category).Error
	if err != nil {
		return nil, err
	}
	return &category, nil
}

// FindActiveBySlug loads a live category with its direct children.
func (r *Repository) FindActiveBySlug(ctx context.Context, slug string) (*models.Category, error) {
	var category models.Category
	err := r.db.WithContext(ctx).
		Preload("Children", "is_active = ?", true).
		Where("slug = ? AND is_active = ?", slug, true).
		First(&category).Error
	if err != nil {
		return nil, err
	}
	return &category, nil
}

// ListRoots returns the active top-level categories with their direct children.
func (r *Repository) ListRoots(ctx context.Context) ([]models.Category, error) {
	var roots []models.Category
	err := r.db.WithContext(ctx).
		Preload("Children", "is_active = ?", true).
		Where("parent_id IS NULL AND is_active = ?", true).
		Order("name ASC").
		Find(&roots).Error
	if err != nil {
		return nil, err
	}
	return roots, nil
}

// Create inserts a new category.
func (r *Repository) Create(ctx context.Context, category *models.Category) error {
	if category.ID == uuid.Nil {
		category.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(category).Error
}

// SlugExists reports whether any category already owns the slug.
func (r *Repository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Category{}).
		Where("slug = ?", slug).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
