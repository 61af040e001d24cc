package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/bozorline/shop-backend/internal/inventory"
	"github.com/bozorline/shop-backend/internal/products"
	"github.com/bozorline/shop-backend/pkg/db"
	"github.com/bozorline/shop-backend/pkg/db/models"
	pkgerrors "github.com/bozorline/shop-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes the cart operations. Every mutation recomputes the cart
// total before returning, so a stored cart total is never stale.
type Service interface {
	GetCart(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*models.Cart, error)
	UpdateItemQuantity(ctx context.Context, userID, productID uuid.UUID, quantity int) (*models.Cart, error)
	RemoveItem(ctx context.Context, userID, productID uuid.UUID) (*models.Cart, error)
	Clear(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
}

type service struct {
	repo        CartRepository
	tx          txRunner
	productRepo products.ProductRepository
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo CartRepository, tx txRunner, productRepo products.ProductRepository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if productRepo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	return &service{repo: repo, tx: tx, productRepo: productRepo}, nil
}

// GetCart returns the user's cart, creating an empty one on first access.
func (s *service) GetCart(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	var cart *models.Cart
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		found, err := s.ensureCart(ctx, repo, userID)
		if err != nil {
			return err
		}
		cart = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cart, nil
}

// AddItem puts quantity units of the product into the cart. An active line for
// the same product is incremented; a previously removed line is reactivated
// with exactly the requested quantity.
func (s *service) AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*models.Cart, error) {
	if err := validateLineInput(userID, productID, quantity); err != nil {
		return nil, err
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, err := s.ensureCart(ctx, repo, userID)
		if err != nil {
			return err
		}

		product, err := s.loadProduct(ctx, tx, productID)
		if err != nil {
			return err
		}

		item, err := repo.FindItem(ctx, cart.ID, productID)
		switch {
		case err == nil:
			next := quantity
			if item.IsActive {
				next = item.Quantity + quantity
			}
			if next > product.Quantity {
				return inventory.NewInsufficientStockError(product.ID, product.Title, product.Quantity)
			}
			item.Quantity = next
			item.IsActive = true
			if err := repo.UpdateItem(ctx, item); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart item")
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			if quantity > product.Quantity {
				return inventory.NewInsufficientStockError(product.ID, product.Title, product.Quantity)
			}
			line := &models.CartItem{
				CartID:    cart.ID,
				ProductID: productID,
				Quantity:  quantity,
				IsActive:  true,
			}
			if err := repo.CreateItem(ctx, line); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart item")
			}
		default:
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
		}

		return s.recomputeTotal(ctx, repo, cart.ID)
	})
	if err != nil {
		return nil, err
	}
	return s.GetCart(ctx, userID)
}

// UpdateItemQuantity sets the absolute quantity on an existing active line.
// It never creates a line: updating an absent product is NotFound.
func (s *service) UpdateItemQuantity(ctx context.Context, userID, productID uuid.UUID, quantity int) (*models.Cart, error) {
	if err := validateLineInput(userID, productID, quantity); err != nil {
		return nil, err
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, err := s.ensureCart(ctx, repo, userID)
		if err != nil {
			return err
		}

		item, err := s.activeItem(ctx, repo, cart.ID, productID)
		if err != nil {
			return err
		}

		product, err := s.loadProduct(ctx, tx, productID)
		if err != nil {
			return err
		}
		if quantity > product.Quantity {
			return inventory.NewInsufficientStockError(product.ID, product.Title, product.Quantity)
		}

		item.Quantity = quantity
		if err := repo.UpdateItem(ctx, item); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart item")
		}
		return s.recomputeTotal(ctx, repo, cart.ID)
	})
	if err != nil {
		return nil, err
	}
	return s.GetCart(ctx, userID)
}

// RemoveItem deactivates the product's line. The row stays behind so the
// (cart, product) uniqueness holds and a later re-add can reuse it.
func (s *service) RemoveItem(ctx context.Context, userID, productID uuid.UUID) (*models.Cart, error) {
	if userID == uuid.Nil || productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id and product id are required")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, err := s.ensureCart(ctx, repo, userID)
		if err != nil {
			return err
		}

		item, err := s.activeItem(ctx, repo, cart.ID, productID)
		if err != nil {
			return err
		}

		item.IsActive = false
		if err := repo.UpdateItem(ctx, item); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deactivate cart item")
		}
		return s.recomputeTotal(ctx, repo, cart.ID)
	})
	if err != nil {
		return nil, err
	}
	return s.GetCart(ctx, userID)
}

// Clear deactivates every line and zeroes the total.
func (s *service) Clear(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, err := s.ensureCart(ctx, repo, userID)
		if err != nil {
			return err
		}
		if err := repo.DeactivateAll(ctx, cart.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
		}
		return s.recomputeTotal(ctx, repo, cart.ID)
	})
	if err != nil {
		return nil, err
	}
	return s.GetCart(ctx, userID)
}

func (s *service) ensureCart(ctx context.Context, repo CartRepository, userID uuid.UUID) (*models.Cart, error) {
	cart, err := repo.FindByUser(ctx, userID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}

	created, cerr := repo.Create(ctx, &models.Cart{UserID: userID, TotalPrice: decimal.Zero})
	if cerr != nil {
		// a concurrent first access may have created it already
		if db.IsUniqueViolation(cerr, "idx_carts_user") {
			existing, ferr := repo.FindByUser(ctx, userID)
			if ferr != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, ferr, "load cart after conflict")
			}
			return existing, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, cerr, "create cart")
	}
	return created, nil
}

func (s *service) loadProduct(ctx context.Context, tx *gorm.DB, productID uuid.UUID) (*models.Product, error) {
	product, err := s.productRepo.WithTx(tx).FindActiveByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return product, nil
}

func (s *service) activeItem(ctx context.Context, repo CartRepository, cartID, productID uuid.UUID) (*models.CartItem, error) {
	item, err := repo.FindItem(ctx, cartID, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product is not in the cart")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
	}
	if !item.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product is not in the cart")
	}
	return item, nil
}

func (s *service) recomputeTotal(ctx context.Context, repo CartRepository, cartID uuid.UUID) error {
	items, err := repo.ActiveItems(ctx, cartID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list cart items")
	}

	total := decimal.Zero
	for _, item := range items {
		if item.Product == nil {
			continue
		}
		total = total.Add(item.Product.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	if err := repo.UpdateTotal(ctx, cartID, total); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store cart total")
	}
	return nil
}

func validateLineInput(userID, productID uuid.UUID, quantity int) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if productID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if quantity < 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	return nil
}
