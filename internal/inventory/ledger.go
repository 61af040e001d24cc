package inventory

import (
	"context"
	"errors"

	"github.com/bozorline/shop-backend/pkg/db/models"
	pkgerrors "github.com/bozorline/shop-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Ledger performs the guarded stock mutations on products.quantity. The
// check and the decrement are a single UPDATE so two concurrent checkouts can
// never drive the counter below zero, regardless of interleaving.
type Ledger struct{}

// NewLedger returns the ledger bound to the guarded SQL implementation.
func NewLedger() Ledger {
	return Ledger{}
}

// Reserve atomically subtracts qty from the product's available quantity.
// It fails when the product is missing/inactive or when fewer than qty units
// remain; the error carries the quantity actually available.
func (Ledger) Reserve(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for stock reservation")
	}
	if productID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "reservation quantity must be positive")
	}

	res := tx.WithContext(ctx).Exec(`
		UPDATE products
		SET quantity = quantity - ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND is_active = ? AND quantity >= ?
	`, qty, productID, true, qty)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "reserve stock")
	}
	if res.RowsAffected > 0 {
		return nil
	}

	var product models.Product
	err := tx.WithContext(ctx).
		Select("id", "title", "quantity", "is_active").
		Where("id = ?", productID).
		First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product for stock check")
	}
	if !product.IsActive {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product is not available")
	}

	return NewInsufficientStockError(product.ID, product.Title, product.Quantity)
}

// Release returns qty units to the product's available quantity. Products that
// no longer exist are skipped: restitution is best effort per line.
func (Ledger) Release(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if qty <= 0 {
		return nil
	}
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for stock release")
	}

	res := tx.WithContext(ctx).Exec(`
		UPDATE products
		SET quantity = quantity + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, qty, productID)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "release stock")
	}
	return nil
}

// NewInsufficientStockError builds the domain error naming the product and the
// quantity actually available.
func NewInsufficientStockError(productID uuid.UUID, title string, available int) *pkgerrors.Error {
	msg := "insufficient stock"
	if title != "" {
		msg = "insufficient stock for " + title
	}
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, msg).
		WithDetails(map[string]any{
			"product_id": productID,
			"available":  available,
		})
}
