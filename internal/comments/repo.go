package comments

import (
	"context"

	"github.com/bozorline/shop-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository persists product reviews.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a comment repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) CommentRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindByID loads a review regardless of its active flag.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Comment, error) {
	var comment models.Comment
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&comment).Error
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

// FindByUserProduct loads the (user, product) review regardless of its active
// flag.
func (r *Repository) FindByUserProduct(ctx context.Context, userID, productID uuid.UUID) (*models.Comment, error) {
	var comment models.Comment
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND product_id = ?", userID, productID).
		First(&comment).Error
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

// ListActiveByProduct lists the product's live reviews, newest first.
func (r *Repository) ListActiveByProduct(ctx context.Context, productID uuid.UUID) ([]models.Comment, error) {
	var items []models.Comment
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND is_active = ?", productID, true).
		Order("created_at DESC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// Create inserts a new review.
func (r *Repository) Create(ctx context.Context, comment *models.Comment) error {
	if comment.ID == uuid.Nil {
		comment.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(comment).Error
}

// Update persists text, rating and active-flag changes on an existing review.
func (r *Repository) Update(ctx context.Context, comment *models.Comment) error {
	return r.db.WithContext(ctx).
		Model(&models.Comment{}).
		Where("id = ?", comment.ID).
		Updates(map[string]any{
			"text":      comment.Text,
			"rating":    comment.Rating,
			"is_active": comment.IsActive,
		}).Error
}

// ActiveRatingStats returns the count and mean rating of the product's live
// reviews.
func (r *Repository) ActiveRatingStats(ctx context.Context, productID uuid.UUID) (int64, float64, error) {
	var row struct {
		Total int64
		Mean  float64
	}
	err := r.db.WithContext(ctx).
		Model(&models.Comment{}).
		Select("COUNT(*) AS total, COALESCE(AVG(rating), 0) AS mean").
		Where("product_id = ? AND is_active = ?", productID, true).
		Scan(&row).Error
	if err != nil {
		return 0, 0, err
	}
	return row.Total, row.Mean, nil
}
