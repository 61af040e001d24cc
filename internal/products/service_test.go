package products

import (
	"context"
	"testing"

	"github.com/bozorline/shop-backend/pkg/db/models"
	pkgerrors "github.com/bozorline/shop-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type stubTx struct{}

func (stubTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubCategories struct {
	known map[uuid.UUID]bool
}

func (s *stubCategories) FindByID(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	if s.known[id] {
		return &models.Category{ID: id}, nil
	}
	return nil, gorm.ErrRecordNotFound
}

type stubRepo struct {
	products  map[uuid.UUID]*models.Product
	slugs     map[string]bool
	listCalls []ListFilters
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		products: map[uuid.UUID]*models.Product{},
		slugs:    map[string]bool{},
	}
}

func (r *stubRepo) WithTx(tx *gorm.DB) ProductRepository { return r }

func (r *stubRepo) FindActiveByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if p, ok := r.products[id]; ok && p.IsActive {
		return p, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if p, ok := r.products[id]; ok {
		return p, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubRepo) FindActiveBySlug(ctx context.Context, productSlug string) (*models.Product, error) {
	for _, p := range r.products {
		if p.Slug == productSlug && p.IsActive {
			return p, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubRepo) List(ctx context.Context, filters ListFilters) ([]models.Product, int64, error) {
	r.listCalls = append(r.listCalls, filters)
	return nil, 0, nil
}

func (r *stubRepo) Create(ctx context.Context, product *models.Product) error {
	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}
	r.products[product.ID] = product
	r.slugs[product.Slug] = true
	return nil
}

func (r *stubRepo) Update(ctx context.Context, product *models.Product) error {
	r.products[product.ID] = product
	return nil
}

func (r *stubRepo) Deactivate(ctx context.Context, id uuid.UUID) error {
	if p, ok := r.products[id]; ok && p.IsActive {
		p.IsActive = false
		return nil
	}
	return gorm.ErrRecordNotFound
}

func (r *stubRepo) SlugExists(ctx context.Context, productSlug string) (bool, error) {
	return r.slugs[productSlug], nil
}

func (r *stubRepo) UpdateRating(ctx context.Context, id uuid.UUID, rating float64, total int) error {
	if p, ok := r.products[id]; ok {
		p.Rating = rating
		p.TotalRatings = total
		return nil
	}
	return gorm.ErrRecordNotFound
}

func newTestService(t *testing.T, repo *stubRepo, categoryID uuid.UUID) Service {
	t.Helper()

	svc, err := NewService(repo, stubTx{}, &stubCategories{known: map[uuid.UUID]bool{categoryID: true}})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestCreateDerivesSlugFromTitle(t *testing.T) {
	t.Parallel()

	repo := newStubRepo()
	categoryID := uuid.New()
	svc := newTestService(t, repo, categoryID)

	product, err := svc.Create(context.Background(), CreateInput{
		Title:      "Red Mug",
		Price:      decimal.RequireFromString("9.99"),
		Quantity:   3,
		CategoryID: categoryID,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if product.Slug != "red-mug" {
		t.Fatalf("expected slug red-mug, got %q", product.Slug)
	}
	if !product.IsActive {
		t.Fatal("new product must be active")
	}
}

func TestCreateDeduplicatesSlug(t *testing.T) {
	t.Parallel()

	repo := newStubRepo()
	repo.slugs["red-mug"] = true
	categoryID := uuid.New()
	svc := newTestService(t, repo, categoryID)

	product, err := svc.Create(context.Background(), CreateInput{
		Title:      "Red Mug",
		Price:      decimal.RequireFromString("9.99"),
		CategoryID: categoryID,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if product.Slug != "red-mug-2" {
		t.Fatalf("expected slug red-mug-2, got %q", product.Slug)
	}
}

func TestCreateValidatesInput(t *testing.T) {
	t.Parallel()

	repo := newStubRepo()
	categoryID := uuid.New()
	svc := newTestService(t, repo, categoryID)
	ctx := context.Background()

	cases := []struct {
		name  string
		input CreateInput
	}{
		{"missing title", CreateInput{Price: decimal.NewFromInt(1), CategoryID: categoryID}},
		{"negative price", CreateInput{Title: "Mug", Price: decimal.NewFromInt(-1), CategoryID: categoryID}},
		{"negative quantity", CreateInput{Title: "Mug", Quantity: -1, CategoryID: categoryID}},
		{"missing category", CreateInput{Title: "Mug"}},
	}
	for _, tc := range cases {
		_, err := svc.Create(ctx, tc.input)
		if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
			t.Fatalf("%s: expected validation error, got %v", tc.name, err)
		}
	}
}

func TestCreateRejectsUnknownCategory(t *testing.T) {
	t.Parallel()

	repo := newStubRepo()
	svc := newTestService(t, repo, uuid.New())

	_, err := svc.Create(context.Background(), CreateInput{
		Title:      "Mug",
		CategoryID: uuid.New(),
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdateKeepsSlugStable(t *testing.T) {
	t.Parallel()

	repo := newStubRepo()
	categoryID := uuid.New()
	svc := newTestService(t, repo, categoryID)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateInput{
		Title:      "Red Mug",
		Price:      decimal.RequireFromString("9.99"),
		CategoryID: categoryID,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	title := "Blue Mug"
	updated, err := svc.Update(ctx, created.ID, UpdateInput{Title: &title})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Title != "Blue Mug" {
		t.Fatalf("expected title Blue Mug, got %q", updated.Title)
	}
	if updated.Slug != "red-mug" {
		t.Fatalf("slug must survive title edits, got %q", updated.Slug)
	}
}

func TestUpdateValidatesFields(t *testing.T) {
	t.Parallel()

	repo := newStubRepo()
	categoryID := uuid.New()
	svc := newTestService(t, repo, categoryID)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateInput{Title: "Mug", CategoryID: categoryID})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	negative := decimal.NewFromInt(-1)
	_, err = svc.Update(ctx, created.ID, UpdateInput{Price: &negative})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}

	empty := ""
	_, err = svc.Update(ctx, created.ID, UpdateInput{Title: &empty})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDeleteSoftDeletes(t *testing.T) {
	t.Parallel()

	repo := newStubRepo()
	categoryID := uuid.New()
	svc := newTestService(t, repo, categoryID)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateInput{Title: "Mug", CategoryID: categoryID})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := svc.Delete(ctx, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if repo.products[created.ID].IsActive {
		t.Fatal("delete must deactivate the product")
	}

	// a second delete behaves like a missing product
	err = svc.Delete(ctx, created.ID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListDefaultsPagination(t *testing.T) {
	t.Parallel()

	repo := newStubRepo()
	svc := newTestService(t, repo, uuid.New())

	result, err := svc.List(context.Background(), ListFilters{Limit: 0, Offset: -5})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if result.Limit != defaultListLimit || result.Offset != 0 {
		t.Fatalf("expected defaults (%d, 0), got (%d, %d)", defaultListLimit, result.Limit, result.Offset)
	}
	if len(repo.listCalls) != 1 || repo.listCalls[0].Limit != defaultListLimit {
		t.Fatalf("repository must receive the defaulted filters, got %+v", repo.listCalls)
	}
}
