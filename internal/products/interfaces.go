package products

import (
	"context"

	"github.com/bozorline/shop-backend/pkg/db/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ListFilters narrows catalog listings. Zero values mean "no filter".
type ListFilters struct {
	CategorySlug string
	Search       string
	MinPrice     *decimal.Decimal
	MaxPrice     *decimal.Decimal
	InStockOnly  bool
	Limit        int
	Offset       int
}

// ProductRepository defines the persistence surface required by the product
// service and by the cart/checkout flows that read catalog rows.
type ProductRepository interface {
	WithTx(tx *gorm.DB) ProductRepository
	FindActiveByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindActiveBySlug(ctx context.Context, slug string) (*models.Product, error)
	List(ctx context.Context, filters ListFilters) ([]models.Product, int64, error)
	Create(ctx context.Context, product *models.Product) error
	Update(ctx context.Context, product *models.Product) error
	Deactivate(ctx context.Context, id uuid.UUID) error
	SlugExists(ctx context.Context, slug string) (bool, error)
	UpdateRating(ctx context.Context, id uuid.UUID, rating float64, total int) error
}
