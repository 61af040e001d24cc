package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/bozorline/shop-backend/internal/cart"
	"github.com/bozorline/shop-backend/internal/orders"
	"github.com/bozorline/shop-backend/pkg/db"
	"github.com/bozorline/shop-backend/pkg/db/models"
	"github.com/bozorline/shop-backend/pkg/enums"
	pkgerrors "github.com/bozorline/shop-backend/pkg/errors"
	"github.com/bozorline/shop-backend/pkg/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// maxAttempts bounds the retry loop around storage-level contention. The
// whole transaction is re-run from scratch on each attempt.
const maxAttempts = 3

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type stockReserver interface {
	Reserve(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
}

// Input carries the shipping details captured at checkout.
type Input struct {
	ShippingAddress string
	PhoneNumber     string
	Notes           string
}

// Service converts a cart into an order. The conversion is all-or-nothing:
// either every line is reserved, frozen and the cart emptied, or nothing
// changes at all.
type Service interface {
	CreateOrderFromCart(ctx context.Context, userID uuid.UUID, input Input) (*models.Order, error)
}

type service struct {
	tx       txRunner
	cartRepo cart.CartRepository
	orders   orders.OrderRepository
	stock    stockReserver
	logg     *logger.Logger
}

// NewService builds the checkout service.
func NewService(tx txRunner, cartRepo cart.CartRepository, orderRepo orders.OrderRepository, stock stockReserver, logg *logger.Logger) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if cartRepo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if orderRepo == nil {
		return nil, fmt.Errorf("order repository required")
	}
	if stock == nil {
		return nil, fmt.Errorf("stock reserver required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{tx: tx, cartRepo: cartRepo, orders: orderRepo, stock: stock, logg: logg}, nil
}

// CreateOrderFromCart runs the checkout transaction, retrying a bounded number
// of times when the storage layer reports contention.
func (s *service) CreateOrderFromCart(ctx context.Context, userID uuid.UUID, input Input) (*models.Order, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		order, err := s.runCheckout(ctx, userID, input)
		if err == nil {
			return order, nil
		}
		if !db.IsSerializationFailure(err) {
			return nil, err
		}
		lastErr = err
		s.logg.Warn(
			s.logg.WithFields(ctx, map[string]any{"attempt": attempt, "user_id": userID}),
			"checkout hit storage contention, retrying",
		)
	}

	return nil, pkgerrors.Wrap(pkgerrors.CodeStorageConflict, lastErr, "checkout kept conflicting with concurrent writes")
}

func (s *service) runCheckout(ctx context.Context, userID uuid.UUID, input Input) (*models.Order, error) {
	var orderID uuid.UUID

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		cartRepo := s.cartRepo.WithTx(tx)
		orderRepo := s.orders.WithTx(tx)

		userCart, err := cartRepo.FindByUser(ctx, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeCartEmpty, "cart is empty")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}

		// oldest line first, so a shortage is always reported against a
		// deterministic line
		lines, err := cartRepo.ActiveItems(ctx, userCart.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list cart items")
		}
		if len(lines) == 0 {
			return pkgerrors.New(pkgerrors.CodeCartEmpty, "cart is empty")
		}

		order := &models.Order{
			UserID:          userID,
			Status:          enums.OrderStatusNew,
			ShippingAddress: input.ShippingAddress,
			PhoneNumber:     input.PhoneNumber,
			Notes:           input.Notes,
		}
		if err := orderRepo.Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}

		total := decimal.Zero
		for _, line := range lines {
			if line.Product == nil {
				return pkgerrors.New(pkgerrors.CodeNotFound, "product no longer exists")
			}

			if err := s.stock.Reserve(ctx, tx, line.ProductID, line.Quantity); err != nil {
				return err
			}

			productID := line.ProductID
			item := &models.OrderItem{
				OrderID:   order.ID,
				ProductID: &productID,
				Price:     line.Product.Price,
				Quantity:  line.Quantity,
			}
			if err := orderRepo.CreateItem(ctx, item); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order item")
			}
			total = total.Add(line.Product.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
		}

		if err := orderRepo.UpdateTotal(ctx, order.ID, total); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store order total")
		}

		if err := cartRepo.DeactivateAll(ctx, userCart.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "empty cart")
		}
		if err := cartRepo.UpdateTotal(ctx, userCart.ID, decimal.Zero); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reset cart total")
		}

		orderID = order.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
	}
	return order, nil
}
