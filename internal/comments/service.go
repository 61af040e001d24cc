package comments

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/bozorline/shop-backend/internal/products"
	"github.com/bozorline/shop-backend/pkg/db/models"
	"github.com/bozorline/shop-backend/pkg/enums"
	pkgerrors "github.com/bozorline/shop-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// defaultRating applies when a review carries no explicit rating.
const defaultRating = 5

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Actor identifies the caller for ownership checks.
type Actor struct {
	UserID uuid.UUID
	Role   enums.UserRole
}

// CreateInput carries a new review. A zero rating defaults to 5.
type CreateInput struct {
	Text   string
	Rating int
}

// UpdateInput carries a partial review edit; nil fields stay untouched.
type UpdateInput struct {
	Text   *string
	Rating *int
}

// Service exposes product reviews. Every mutation recomputes the product's
// rating aggregate in the same transaction, so the stored average and count
// are never stale.
type Service interface {
	ListByProduct(ctx context.Context, productSlug string) ([]models.Comment, error)
	Create(ctx context.Context, userID uuid.UUID, productSlug string, input CreateInput) (*models.Comment, error)
	Update(ctx context.Context, actor Actor, commentID uuid.UUID, input UpdateInput) (*models.Comment, error)
	Delete(ctx context.Context, actor Actor, commentID uuid.UUID) error
}

type service struct {
	repo        CommentRepository
	tx          txRunner
	productRepo products.ProductRepository
}

// NewService builds the review service.
func NewService(repo CommentRepository, tx txRunner, productRepo products.ProductRepository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("comment repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if productRepo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	return &service{repo: repo, tx: tx, productRepo: productRepo}, nil
}

// ListByProduct returns the live reviews of one listing, newest first.
func (s *service) ListByProduct(ctx context.Context, productSlug string) ([]models.Comment, error) {
	product, err := s.loadProductBySlug(ctx, nil, productSlug)
	if err != nil {
		return nil, err
	}

	items, err := s.repo.ListActiveByProduct(ctx, product.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list comments")
	}
	return items, nil
}

// Create posts the user's review of a listing. A user reviews a product at
// most once; a previously removed review is reused with the new text and
// rating.
func (s *service) Create(ctx context.Context, userID uuid.UUID, productSlug string, input CreateInput) (*models.Comment, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	text := strings.TrimSpace(input.Text)
	if text == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "text is required")
	}
	rating := input.Rating
	if rating == 0 {
		rating = defaultRating
	}
	if err := validateRating(rating); err != nil {
		return nil, err
	}

	var comment *models.Comment
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		product, err := s.loadProductBySlug(ctx, tx, productSlug)
		if err != nil {
			return err
		}

		existing, err := repo.FindByUserProduct(ctx, userID, product.ID)
		switch {
		case err == nil:
			if existing.IsActive {
				return pkgerrors.New(pkgerrors.CodeConflict, "product already reviewed")
			}
			existing.Text = text
			existing.Rating = rating
			existing.IsActive = true
			if err := repo.Update(ctx, existing); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update comment")
			}
			comment = existing
		case errors.Is(err, gorm.ErrRecordNotFound):
			comment = &models.Comment{
				UserID:    userID,
				ProductID: product.ID,
				Text:      text,
				Rating:    rating,
				IsActive:  true,
			}
			if err := repo.Create(ctx, comment); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create comment")
			}
		default:
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load comment")
		}

		return s.refreshProductRating(ctx, tx, repo, product.ID)
	})
	if err != nil {
		return nil, err
	}
	return comment, nil
}

// Update edits a review. Only its author or staff may change it.
func (s *service) Update(ctx context.Context, actor Actor, commentID uuid.UUID, input UpdateInput) (*models.Comment, error) {
	if commentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "comment id is required")
	}

	var comment *models.Comment
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		found, err := s.loadActiveComment(ctx, repo, actor, commentID)
		if err != nil {
			return err
		}

		if input.Text != nil {
			text := strings.TrimSpace(*input.Text)
			if text == "" {
				return pkgerrors.New(pkgerrors.CodeValidation, "text must not be empty")
			}
			found.Text = text
		}
		if input.Rating != nil {
			if err := validateRating(*input.Rating); err != nil {
				return err
			}
			found.Rating = *input.Rating
		}

		if err := repo.Update(ctx, found); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update comment")
		}
		comment = found
		return s.refreshProductRating(ctx, tx, repo, found.ProductID)
	})
	if err != nil {
		return nil, err
	}
	return comment, nil
}

// Delete removes a review. Only its author or staff may remove it.
func (s *service) Delete(ctx context.Context, actor Actor, commentID uuid.UUID) error {
	if commentID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "comment id is required")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		found, err := s.loadActiveComment(ctx, repo, actor, commentID)
		if err != nil {
			return err
		}

		found.IsActive = false
		if err := repo.Update(ctx, found); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deactivate comment")
		}
		return s.refreshProductRating(ctx, tx, repo, found.ProductID)
	})
}

func (s *service) loadActiveComment(ctx context.Context, repo CommentRepository, actor Actor, commentID uuid.UUID) (*models.Comment, error) {
	found, err := repo.FindByID(ctx, commentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "comment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load comment")
	}
	if !found.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "comment not found")
	}
	if !actor.Role.IsStaff() && found.UserID != actor.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the author or staff may change this comment")
	}
	return found, nil
}

func (s *service) loadProductBySlug(ctx context.Context, tx *gorm.DB, productSlug string) (*models.Product, error) {
	if productSlug == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "slug is required")
	}
	product, err := s.productRepo.WithTx(tx).FindActiveBySlug(ctx, productSlug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return product, nil
}

func (s *service) refreshProductRating(ctx context.Context, tx *gorm.DB, repo CommentRepository, productID uuid.UUID) error {
	total, mean, err := repo.ActiveRatingStats(ctx, productID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "aggregate ratings")
	}

	rating := 0.0
	if total > 0 {
		rating = math.Round(mean*10) / 10
	}
	if err := s.productRepo.WithTx(tx).UpdateRating(ctx, productID, rating, int(total)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store product rating")
	}
	return nil
}

func validateRating(rating int) error {
	if rating < 1 || rating > 5 {
		return pkgerrors.New(pkgerrors.CodeValidation, "rating must be between 1 and 5")
	}
	return nil
}
