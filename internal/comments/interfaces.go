package comments

import (
	"context"

	"github.com/bozorline/shop-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CommentRepository defines the persistence surface of product reviews.
type CommentRepository interface {
	WithTx(tx *gorm.DB) CommentRepository
	FindByID(ctx context.Context, id uuid.UUID) (*models.Comment, error)
	FindByUserProduct(ctx context.Context, userID, productID uuid.UUID) (*models.Comment, error)
	ListActiveByProduct(ctx context.Context, productID uuid.UUID) ([]models.Comment, error)
	Create(ctx context.Context, comment *models.Comment) error
	Update(ctx context.Context, comment *models.Comment) error
	ActiveRatingStats(ctx context.Context, productID uuid.UUID) (int64, float64, error)
}
