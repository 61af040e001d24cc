package cart

import (
	"context"
	"testing"

	"github.com/bozorline/shop-backend/internal/products"
	pkgerrors "github.com/bozorline/shop-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type dbRunner struct {
	db *gorm.DB
}

func (r dbRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error { return fn(tx) })
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:cart_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	for _, ddl := range []string{
		`CREATE TABLE products (
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
);`,
		`CREATE TABLE carts (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL UNIQUE,
  total_price NUMERIC NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE cart_items (
  id TEXT PRIMARY KEY,
  cart_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  quantity INTEGER NOT NULL DEFAULT 1,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME,
  UNIQUE (cart_id, product_id)
);`,
	} {
		if err := db.Exec(ddl).Error; err != nil {
			t.Fatalf("create table: %v", err)
		}
	}
	return db
}

func newTestService(t *testing.T, db *gorm.DB) Service {
	t.Helper()

	svc, err := NewService(NewRepository(db), dbRunner{db: db}, products.NewRepository(db))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func seedProduct(t *testing.T, db *gorm.DB, price string, qty int) uuid.UUID {
	t.Helper()

	id := uuid.New()
	err := db.Exec(
		"INSERT INTO products (id, title, slug, price, quantity, category_id, is_active) VALUES (?, ?, ?, ?, ?, ?, 1)",
		id, "Widget", "widget-"+id.String(), price, qty, uuid.New(),
	).Error
	if err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return id
}

func TestGetCartCreatesLazily(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	userID := uuid.New()

	first, err := svc.GetCart(ctx, userID)
	if err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	if !first.TotalPrice.IsZero() {
		t.Fatalf("new cart should have zero total, got %s", first.TotalPrice)
	}

	second, err := svc.GetCart(ctx, userID)
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected a single cart per user, got %s and %s", first.ID, second.ID)
	}
}

func TestAddItemComputesTotal(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	userID := uuid.New()
	product := seedProduct(t, db, "10.00", 5)

	cart, err := svc.AddItem(ctx, userID, product, 2)
	if err != nil {
		t.Fatalf("add item: %v", err)
	}

	if len(cart.ActiveItems()) != 1 {
		t.Fatalf("expected 1 active item, got %d", len(cart.ActiveItems()))
	}
	if !cart.TotalPrice.Equal(decimal.RequireFromString("20.00")) {
		t.Fatalf("expected total 20.00, got %s", cart.TotalPrice)
	}
}

func TestAddItemIncrementsActiveLine(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	userID := uuid.New()
	product := seedProduct(t, db, "10.00", 5)

	if _, err := svc.AddItem(ctx, userID, product, 2); err != nil {
		t.Fatalf("first add: %v", err)
	}
	cart, err := svc.AddItem(ctx, userID, product, 1)
	if err != nil {
		t.Fatalf("second add: %v", err)
	}

	items := cart.ActiveItems()
	if len(items) != 1 || items[0].Quantity != 3 {
		t.Fatalf("expected one line with quantity 3, got %+v", items)
	}
	if !cart.TotalPrice.Equal(decimal.RequireFromString("30.00")) {
		t.Fatalf("expected total 30.00, got %s", cart.TotalPrice)
	}
}

func TestAddItemInsufficientStock(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	userID := uuid.New()
	product := seedProduct(t, db, "10.00", 2)

	_, err := svc.AddItem(ctx, userID, product, 3)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeInsufficientStock {
		t.Fatalf("expected insufficient stock, got %v", err)
	}

	cart, err := svc.GetCart(ctx, userID)
	if err != nil {
		t.Fatalf("fetch cart: %v", err)
	}
	if len(cart.ActiveItems()) != 0 || !cart.TotalPrice.IsZero() {
		t.Fatalf("failed add must leave the cart empty, got %+v", cart)
	}
}

func TestUpdateItemQuantitySetsAbsoluteValue(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	userID := uuid.New()
	product := seedProduct(t, db, "10.00", 10)

	if _, err := svc.AddItem(ctx, userID, product, 2); err != nil {
		t.Fatalf("add: %v", err)
	}
	cart, err := svc.UpdateItemQuantity(ctx, userID, product, 5)
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	items := cart.ActiveItems()
	if len(items) != 1 || items[0].Quantity != 5 {
		t.Fatalf("expected quantity 5, got %+v", items)
	}
	if !cart.TotalPrice.Equal(decimal.RequireFromString("50.00")) {
		t.Fatalf("expected total 50.00, got %s", cart.TotalPrice)
	}
}

func TestUpdateItemQuantityNeverCreatesLines(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	userID := uuid.New()
	product := seedProduct(t, db, "10.00", 10)

	_, err := svc.UpdateItemQuantity(ctx, userID, product, 5)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestReAddAfterRemovalResetsQuantity(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	userID := uuid.New()
	product := seedProduct(t, db, "10.00", 10)

	if _, err := svc.AddItem(ctx, userID, product, 3); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := svc.RemoveItem(ctx, userID, product); err != nil {
		t.Fatalf("remove: %v", err)
	}
	cart, err := svc.AddItem(ctx, userID, product, 2)
	if err != nil {
		t.Fatalf("re-add: %v", err)
	}

	items := cart.ActiveItems()
	if len(items) != 1 || items[0].Quantity != 2 {
		t.Fatalf("re-add must reset quantity to 2, got %+v", items)
	}
	if !cart.TotalPrice.Equal(decimal.RequireFromString("20.00")) {
		t.Fatalf("expected total 20.00, got %s", cart.TotalPrice)
	}

	// the removed row is reused, never duplicated
	var count int64
	if err := db.Raw("SELECT COUNT(*) FROM cart_items WHERE cart_id = ? AND product_id = ?", cart.ID, product).Scan(&count).Error; err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected a single (cart, product) row, got %d", count)
	}
}

func TestRemoveItemRecomputesTotal(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	userID := uuid.New()
	productA := seedProduct(t, db, "10.00", 10)
	productB := seedProduct(t, db, "4.50", 10)

	if _, err := svc.AddItem(ctx, userID, productA, 1); err != nil {
		t.Fatalf("add a: %v", err)
	}
	if _, err := svc.AddItem(ctx, userID, productB, 2); err != nil {
		t.Fatalf("add b: %v", err)
	}

	cart, err := svc.RemoveItem(ctx, userID, productA)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if !cart.TotalPrice.Equal(decimal.RequireFromString("9.00")) {
		t.Fatalf("expected total 9.00, got %s", cart.TotalPrice)
	}
}

func TestClearEmptiesCart(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	userID := uuid.New()
	productA := seedProduct(t, db, "10.00", 10)
	productB := seedProduct(t, db, "5.00", 10)

	if _, err := svc.AddItem(ctx, userID, productA, 1); err != nil {
		t.Fatalf("add a: %v", err)
	}
	if _, err := svc.AddItem(ctx, userID, productB, 3); err != nil {
		t.Fatalf("add b: %v", err)
	}

	cart, err := svc.Clear(ctx, userID)
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if len(cart.ActiveItems()) != 0 || !cart.TotalPrice.IsZero() {
		t.Fatalf("cleared cart must be empty with zero total, got %+v", cart)
	}
}
