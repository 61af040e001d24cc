package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bozorline/shop-backend/api/responses"
	"github.com/bozorline/shop-backend/api/validators"
	productsvc "github.com/bozorline/shop-backend/internal/products"
	"github.com/bozorline/shop-backend/pkg/db/models"
	pkgerrors "github.com/bozorline/shop-backend/pkg/errors"
	"github.com/bozorline/shop-backend/pkg/logger"
)

type productResponse struct {
	ID           uuid.UUID         `json:"id"`
	Title        string            `json:"title"`
	Slug         string            `json:"slug"`
	Description  string            `json:"description"`
	Price        decimal.Decimal   `json:"price"`
	Quantity     int               `json:"quantity"`
	InStock      bool              `json:"in_stock"`
	CategoryID   uuid.UUID         `json:"category_id"`
	Category     *categoryResponse `json:"category,omitempty"`
	Rating       float64           `json:"rating"`
	TotalRatings int               `json:"total_ratings"`
	IsActive     bool              `json:"is_active"`
	CreatedAt    time.Time         `json:"created_at"`
}

type productListResponse struct {
	Products []productResponse `json:"products"`
	Total    int64             `json:"total"`
	Limit    int               `json:"limit"`
	Offset   int               `json:"offset"`
}

func newProductResponse(p *models.Product) productResponse {
	resp := productResponse{
		ID:           p.ID,
		Title:        p.Title,
		Slug:         p.Slug,
		Description:  p.Description,
		Price:        p.Price,
		Quantity:     p.Quantity,
		InStock:      p.InStock(),
		CategoryID:   p.CategoryID,
		Rating:       p.Rating,
		TotalRatings: p.TotalRatings,
		IsActive:     p.IsActive,
		CreatedAt:    p.CreatedAt,
	}
	if p.Category != nil {
		cat := newCategoryResponse(p.Category)
		resp.Category = &cat
	}
	return resp
}

// ProductList serves the filtered public catalog.
func ProductList(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filters, err := listFiltersFromQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.List(r.Context(), filters)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]productResponse, len(result.Products))
		for i := range result.Products {
			items[i] = newProductResponse(&result.Products[i])
		}
		responses.WriteSuccess(w, productListResponse{
			Products: items,
			Total:    result.Total,
			Limit:    result.Limit,
			Offset:   result.Offset,
		})
	}
}

// ProductDetail serves a single live listing by slug.
func ProductDetail(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		product, err := svc.GetBySlug(r.Context(), chi.URLParam(r, "slug"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newProductResponse(product))
	}
}

type createProductRequest struct {
	Title       string          `json:"title" validate:"required,min=1,max=255"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price" validate:"required"`
	Quantity    int             `json:"quantity" validate:"min=0"`
	CategoryID  uuid.UUID       `json:"category_id" validate:"required"`
}

type updateProductRequest struct {
	Title       *string          `json:"title"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Quantity    *int             `json:"quantity"`
	CategoryID  *uuid.UUID       `json:"category_id"`
	IsActive    *bool            `json:"is_active"`
}

// ProductCreate adds a listing to the catalog. Staff only.
func ProductCreate(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.Create(r.Context(), productsvc.CreateInput{
			Title:       payload.Title,
			Description: payload.Description,
			Price:       payload.Price,
			Quantity:    payload.Quantity,
			CategoryID:  payload.CategoryID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newProductResponse(product))
	}
}

// ProductUpdate applies a partial update to a listing. Staff only.
func ProductUpdate(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.Update(r.Context(), id, productsvc.UpdateInput{
			Title:       payload.Title,
			Description: payload.Description,
			Price:       payload.Price,
			Quantity:    payload.Quantity,
			CategoryID:  payload.CategoryID,
			IsActive:    payload.IsActive,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newProductResponse(product))
	}
}

// ProductDelete soft-deletes a listing. Staff only.
func ProductDelete(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Delete(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

func listFiltersFromQuery(r *http.Request) (productsvc.ListFilters, error) {
	query := r.URL.Query()
	filters := productsvc.ListFilters{
		CategorySlug: query.Get("category"),
		Search:       query.Get("search"),
		InStockOnly:  query.Get("in_stock") == "true",
	}

	if raw := query.Get("min_price"); raw != "" {
		value, err := decimal.NewFromString(raw)
		if err != nil {
			return filters, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid min_price")
		}
		filters.MinPrice = &value
	}
	if raw := query.Get("max_price"); raw != "" {
		value, err := decimal.NewFromString(raw)
		if err != nil {
			return filters, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid max_price")
		}
		filters.MaxPrice = &value
	}
	if raw := query.Get("limit"); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil {
			return filters, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid limit")
		}
		filters.Limit = value
	}
	if raw := query.Get("offset"); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil {
			return filters, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid offset")
		}
		filters.Offset = value
	}
	return filters, nil
}
