package comments

import (
	"context"
	"testing"

	"github.com/bozorline/shop-backend/internal/products"
	"github.com/bozorline/shop-backend/pkg/enums"
	pkgerrors "github.com/bozorline/shop-backend/pkg/errors"
	"github.com/google/uuid"
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

	dsn := "file:comments_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	for _, ddl := range []string{
		`CREATE TABLE categories (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  slug TEXT NOT NULL UNIQUE,
  parent_id TEXT,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`,
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
		`CREATE TABLE comments (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  text TEXT NOT NULL,
  rating INTEGER NOT NULL DEFAULT 5,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME,
  UNIQUE (user_id, product_id)
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
		t.Fatalf("comment service: %v", err)
	}
	return svc
}

func seedProduct(t *testing.T, db *gorm.DB) string {
	t.Helper()

	id := uuid.New()
	slug := "widget-" + id.String()
	err := db.Exec(
		"INSERT INTO products (id, title, slug, price, quantity, category_id, is_active) VALUES (?, ?, ?, ?, ?, ?, 1)",
		id, "Widget", slug, "10.00", 5, uuid.New(),
	).Error
	if err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return slug
}

func productAggregate(t *testing.T, db *gorm.DB, slug string) (float64, int) {
	t.Helper()

	var row struct {
		Rating       float64
		TotalRatings int
	}
	err := db.Raw("SELECT rating, total_ratings FROM products WHERE slug = ?", slug).Scan(&row).Error
	if err != nil {
		t.Fatalf("read aggregate: %v", err)
	}
	return row.Rating, row.TotalRatings
}

func commentRowCount(t *testing.T, db *gorm.DB) int64 {
	t.Helper()

	var count int64
	if err := db.Raw("SELECT COUNT(*) FROM comments").Scan(&count).Error; err != nil {
		t.Fatalf("count comments: %v", err)
	}
	return count
}

func expectCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()

	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != code {
		t.Fatalf("expected %s, got %v", code, err)
	}
}

func TestCreateCommentAggregatesProductRating(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	slug := seedProduct(t, db)

	if _, err := svc.Create(ctx, uuid.New(), slug, CreateInput{Text: "great", Rating: 5}); err != nil {
		t.Fatalf("first review: %v", err)
	}
	if _, err := svc.Create(ctx, uuid.New(), slug, CreateInput{Text: "ok", Rating: 4}); err != nil {
		t.Fatalf("second review: %v", err)
	}

	rating, total := productAggregate(t, db, slug)
	if rating != 4.5 || total != 2 {
		t.Fatalf("expected aggregate 4.5/2, got %v/%d", rating, total)
	}
}

func TestCreateCommentDefaultsRatingToFive(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	slug := seedProduct(t, db)

	comment, err := svc.Create(ctx, uuid.New(), slug, CreateInput{Text: "great"})
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if comment.Rating != 5 {
		t.Fatalf("expected default rating 5, got %d", comment.Rating)
	}
}

func TestCreateCommentValidatesRating(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	slug := seedProduct(t, db)

	_, err := svc.Create(ctx, uuid.New(), slug, CreateInput{Text: "great", Rating: 7})
	expectCode(t, err, pkgerrors.CodeValidation)

	_, err = svc.Create(ctx, uuid.New(), slug, CreateInput{Rating: 4})
	expectCode(t, err, pkgerrors.CodeValidation)
}

func TestSecondActiveCommentIsRejected(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	slug := seedProduct(t, db)
	userID := uuid.New()

	if _, err := svc.Create(ctx, userID, slug, CreateInput{Text: "great", Rating: 5}); err != nil {
		t.Fatalf("first review: %v", err)
	}

	_, err := svc.Create(ctx, userID, slug, CreateInput{Text: "again", Rating: 1})
	expectCode(t, err, pkgerrors.CodeConflict)
}

func TestReReviewAfterDeleteReusesRow(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	slug := seedProduct(t, db)
	userID := uuid.New()

	first, err := svc.Create(ctx, userID, slug, CreateInput{Text: "great", Rating: 5})
	if err != nil {
		t.Fatalf("first review: %v", err)
	}
	actor := Actor{UserID: userID, Role: enums.UserRoleCustomer}
	if err := svc.Delete(ctx, actor, first.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	second, err := svc.Create(ctx, userID, slug, CreateInput{Text: "changed my mind", Rating: 2})
	if err != nil {
		t.Fatalf("second review: %v", err)
	}

	if second.ID != first.ID {
		t.Fatalf("expected the removed row to be reused, got %s and %s", first.ID, second.ID)
	}
	if second.Text != "changed my mind" || second.Rating != 2 {
		t.Fatalf("re-review must replace text and rating, got %+v", second)
	}
	if got := commentRowCount(t, db); got != 1 {
		t.Fatalf("expected a single row, got %d", got)
	}

	rating, total := productAggregate(t, db, slug)
	if rating != 2 || total != 1 {
		t.Fatalf("expected aggregate 2/1, got %v/%d", rating, total)
	}
}

func TestUpdateCommentRecomputesAggregate(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	slug := seedProduct(t, db)
	userID := uuid.New()

	comment, err := svc.Create(ctx, userID, slug, CreateInput{Text: "great", Rating: 5})
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if _, err := svc.Create(ctx, uuid.New(), slug, CreateInput{Text: "ok", Rating: 4}); err != nil {
		t.Fatalf("second review: %v", err)
	}

	newRating := 1
	actor := Actor{UserID: userID, Role: enums.UserRoleCustomer}
	updated, err := svc.Update(ctx, actor, comment.ID, UpdateInput{Rating: &newRating})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Rating != 1 {
		t.Fatalf("expected rating 1, got %d", updated.Rating)
	}

	rating, total := productAggregate(t, db, slug)
	if rating != 2.5 || total != 2 {
		t.Fatalf("expected aggregate 2.5/2, got %v/%d", rating, total)
	}
}

func TestOnlyAuthorOrStaffMayChangeComment(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	slug := seedProduct(t, db)

	comment, err := svc.Create(ctx, uuid.New(), slug, CreateInput{Text: "great", Rating: 5})
	if err != nil {
		t.Fatalf("review: %v", err)
	}

	text := "hijacked"
	stranger := Actor{UserID: uuid.New(), Role: enums.UserRoleCustomer}
	_, err = svc.Update(ctx, stranger, comment.ID, UpdateInput{Text: &text})
	expectCode(t, err, pkgerrors.CodeForbidden)

	err = svc.Delete(ctx, stranger, comment.ID)
	expectCode(t, err, pkgerrors.CodeForbidden)

	admin := Actor{UserID: uuid.New(), Role: enums.UserRoleAdmin}
	if err := svc.Delete(ctx, admin, comment.ID); err != nil {
		t.Fatalf("staff delete: %v", err)
	}
}

func TestDeleteLastCommentClearsAggregate(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	slug := seedProduct(t, db)
	userID := uuid.New()

	comment, err := svc.Create(ctx, userID, slug, CreateInput{Text: "great", Rating: 5})
	if err != nil {
		t.Fatalf("review: %v", err)
	}

	actor := Actor{UserID: userID, Role: enums.UserRoleCustomer}
	if err := svc.Delete(ctx, actor, comment.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	rating, total := productAggregate(t, db, slug)
	if rating != 0 || total != 0 {
		t.Fatalf("expected cleared aggregate, got %v/%d", rating, total)
	}

	err = svc.Delete(ctx, actor, comment.ID)
	expectCode(t, err, pkgerrors.CodeNotFound)
}

func TestListReturnsActiveReviewsNewestFirst(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	slug := seedProduct(t, db)

	older, err := svc.Create(ctx, uuid.New(), slug, CreateInput{Text: "older", Rating: 3})
	if err != nil {
		t.Fatalf("older review: %v", err)
	}
	newer, err := svc.Create(ctx, uuid.New(), slug, CreateInput{Text: "newer", Rating: 4})
	if err != nil {
		t.Fatalf("newer review: %v", err)
	}
	removedBy := uuid.New()
	removed, err := svc.Create(ctx, removedBy, slug, CreateInput{Text: "removed", Rating: 1})
	if err != nil {
		t.Fatalf("removed review: %v", err)
	}

	// deterministic timestamps for the ordering assertion
	if err := db.Exec("UPDATE comments SET created_at = '2026-08-01 10:00:00' WHERE id = ?", older.ID).Error; err != nil {
		t.Fatalf("backdate: %v", err)
	}
	if err := db.Exec("UPDATE comments SET created_at = '2026-08-02 10:00:00' WHERE id = ?", newer.ID).Error; err != nil {
		t.Fatalf("backdate: %v", err)
	}
	if err := svc.Delete(ctx, Actor{UserID: removedBy, Role: enums.UserRoleCustomer}, removed.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	items, err := svc.ListByProduct(ctx, slug)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 live reviews, got %d", len(items))
	}
	if items[0].ID != newer.ID || items[1].ID != older.ID {
		t.Fatalf("expected newest first, got %s then %s", items[0].Text, items[1].Text)
	}

	_, err = svc.ListByProduct(ctx, "no-such-product")
	expectCode(t, err, pkgerrors.CodeNotFound)
}
