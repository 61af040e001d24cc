package inventory

import (
	"context"
	"testing"

	pkgerrors "github.com/bozorline/shop-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:inventory_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	ddl := `
CREATE TABLE products (
  id TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  slug TEXT NOT NULL UNIQUE,
  description TEXT NOT NULL DEFAULT '',
  price NUMERIC NOT NULL DEFAULT 0,
  quantity INTEGER NOT NULL DEFAULT 0,
  category_id TEXT NOT NULL,
  is_active INTEGER NOT NULL DEFAULT 1,
  rating REAL NOT NULL DEFAULT 0,
  total_ratings INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`
	if err := db.Exec(ddl).Error; err != nil {
		t.Fatalf("create products table: %v", err)
	}
	return db
}

func seedProduct(t *testing.T, db *gorm.DB, qty int, active bool) uuid.UUID {
	t.Helper()

	id := uuid.New()
	err := db.Exec(
		"INSERT INTO products (id, title, slug, price, quantity, category_id, is_active) VALUES (?, ?, ?, ?, ?, ?, ?)",
		id, "Widget", "widget-"+id.String(), "10.00", qty, uuid.New(), active,
	).Error
	if err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return id
}

func productQty(t *testing.T, db *gorm.DB, id uuid.UUID) int {
	t.Helper()

	var qty int
	if err := db.Raw("SELECT quantity FROM products WHERE id = ?", id).Scan(&qty).Error; err != nil {
		t.Fatalf("read quantity: %v", err)
	}
	return qty
}

func TestReserveDecrementsStock(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	product := seedProduct(t, db, 5, true)
	ledger := NewLedger()

	if err := ledger.Reserve(ctx, db, product, 3); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if got := productQty(t, db, product); got != 2 {
		t.Fatalf("expected quantity 2, got %d", got)
	}

	if err := ledger.Reserve(ctx, db, product, 2); err != nil {
		t.Fatalf("reserve remainder: %v", err)
	}
	if got := productQty(t, db, product); got != 0 {
		t.Fatalf("expected quantity 0, got %d", got)
	}
}

func TestReserveInsufficientStock(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	product := seedProduct(t, db, 2, true)
	ledger := NewLedger()

	err := ledger.Reserve(ctx, db, product, 3)
	if err == nil {
		t.Fatal("expected insufficient stock error")
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeInsufficientStock {
		t.Fatalf("unexpected error: %v", err)
	}

	details, ok := typed.Details().(map[string]any)
	if !ok {
		t.Fatalf("expected details map, got %T", typed.Details())
	}
	if details["available"] != 2 {
		t.Fatalf("expected available 2, got %v", details["available"])
	}

	// the failed reservation must not touch the counter
	if got := productQty(t, db, product); got != 2 {
		t.Fatalf("expected quantity 2, got %d", got)
	}
}

func TestReserveMissingOrInactiveProduct(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	ledger := NewLedger()

	err := ledger.Reserve(ctx, db, uuid.New(), 1)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found for missing product, got %v", err)
	}

	inactive := seedProduct(t, db, 10, false)
	err = ledger.Reserve(ctx, db, inactive, 1)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found for inactive product, got %v", err)
	}
}

func TestReserveInvalidQty(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	product := seedProduct(t, db, 5, true)
	ledger := NewLedger()

	err := ledger.Reserve(ctx, db, product, 0)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestReleaseRestoresStock(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	product := seedProduct(t, db, 1, true)
	ledger := NewLedger()

	if err := ledger.Release(ctx, db, product, 4); err != nil {
		t.Fatalf("release: %v", err)
	}
	if got := productQty(t, db, product); got != 5 {
		t.Fatalf("expected quantity 5, got %d", got)
	}
}

func TestReleaseSkipsMissingProduct(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	ledger := NewLedger()

	if err := ledger.Release(ctx, db, uuid.New(), 3); err != nil {
		t.Fatalf("release of missing product should be a no-op, got %v", err)
	}
}
