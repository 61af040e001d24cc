package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/bozorline/shop-backend/pkg/db/models"
	"github.com/bozorline/shop-backend/pkg/enums"
	pkgerrors "github.com/bozorline/shop-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type stockReleaser interface {
	Release(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
}

// Actor identifies who is calling an order operation.
type Actor struct {
	UserID uuid.UUID
	Role   enums.UserRole
}

// Service exposes the order lifecycle. Checkout creates orders; everything
// after that point goes through here.
type Service interface {
	Get(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.Order, error)
	List(ctx context.Context, actor Actor) ([]models.Order, error)
	UpdateStatus(ctx context.Context, actor Actor, orderID uuid.UUID, next enums.OrderStatus) (*models.Order, error)
	Cancel(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.Order, error)
	RecalculateTotal(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.Order, error)
}

type service struct {
	repo  OrderRepository
	tx    txRunner
	stock stockReleaser
}

// NewService builds the order service.
func NewService(repo OrderRepository, tx txRunner, stock stockReleaser) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("order repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if stock == nil {
		return nil, fmt.Errorf("stock releaser required")
	}
	return &service{repo: repo, tx: tx, stock: stock}, nil
}

// Get loads one order. Customers only ever see their own orders; a foreign
// order id behaves exactly like a missing one.
func (s *service) Get(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}

	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if !actor.Role.IsStaff() && order.UserID != actor.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

// List returns the actor's orders; staff see everything.
func (s *service) List(ctx context.Context, actor Actor) ([]models.Order, error) {
	if actor.Role.IsStaff() {
		items, err := s.repo.ListAll(ctx)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
		}
		return items, nil
	}

	items, err := s.repo.ListByUser(ctx, actor.UserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return items, nil
}

// UpdateStatus moves an order along the lifecycle. Staff only. Moving into
// cancelled runs the same stock restitution as a customer cancellation.
func (s *service) UpdateStatus(ctx context.Context, actor Actor, orderID uuid.UUID, next enums.OrderStatus) (*models.Order, error) {
	if !actor.Role.IsStaff() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only staff may update order status")
	}
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if !next.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown order status").
			WithDetails(map[string]any{"status": next})
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if !order.Status.CanTransitionTo(next) {
			return transitionError(order.Status, next)
		}

		if next == enums.OrderStatusCancelled {
			if err := s.restock(ctx, tx, repo, order.ID); err != nil {
				return err
			}
		}

		if err := repo.UpdateStatus(ctx, order.ID, next); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.reload(ctx, orderID)
}

// Cancel lets the owner (or staff) abort an order that has not shipped.
// Every line whose product still exists gets its units back.
func (s *service) Cancel(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if !actor.Role.IsStaff() && order.UserID != actor.UserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the order owner or staff may cancel it")
		}
		if !order.Status.CanCancel() {
			return transitionError(order.Status, enums.OrderStatusCancelled)
		}

		if err := s.restock(ctx, tx, repo, order.ID); err != nil {
			return err
		}
		if err := repo.UpdateStatus(ctx, order.ID, enums.OrderStatusCancelled); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.reload(ctx, orderID)
}

// RecalculateTotal re-derives the order total from its frozen lines. The
// result never depends on current catalog prices, so repeating it is a no-op.
func (s *service) RecalculateTotal(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.Order, error) {
	if !actor.Role.IsStaff() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only staff may recalculate order totals")
	}
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		if _, err := repo.FindByID(ctx, orderID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		items, err := repo.ItemsByOrder(ctx, orderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list order items")
		}

		total := decimal.Zero
		for _, item := range items {
			total = total.Add(item.TotalPrice())
		}
		if err := repo.UpdateTotal(ctx, orderID, total); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store order total")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.reload(ctx, orderID)
}

// restock returns each line's units to the catalog. Lines whose product was
// deleted carry a nil product id and are skipped.
func (s *service) restock(ctx context.Context, tx *gorm.DB, repo OrderRepository, orderID uuid.UUID) error {
	items, err := repo.ItemsByOrder(ctx, orderID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list order items")
	}
	for _, item := range items {
		if item.ProductID == nil {
			continue
		}
		if err := s.stock.Release(ctx, tx, *item.ProductID, item.Quantity); err != nil {
			return err
		}
	}
	return nil
}

func (s *service) reload(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
	}
	return order, nil
}

func transitionError(from, to enums.OrderStatus) error {
	return pkgerrors.New(pkgerrors.CodeInvalidTransition,
		fmt.Sprintf("cannot move order from %s to %s", from, to)).
		WithDetails(map[string]any{"from": from, "to": to})
}
