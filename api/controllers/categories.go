package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bozorline/shop-backend/api/responses"
	"github.com/bozorline/shop-backend/api/validators"
	categorysvc "github.com/bozorline/shop-backend/internal/categories"
	"github.com/bozorline/shop-backend/pkg/db/models"
	"github.com/bozorline/shop-backend/pkg/logger"
)

type categoryResponse struct {
	ID       uuid.UUID          `json:"id"`
	Name     string             `json:"name"`
	Slug     string             `json:"slug"`
	ParentID *uuid.UUID         `json:"parent_id,omitempty"`
	Children []categoryResponse `json:"children,omitempty"`
}

func newCategoryResponse(c *models.Category) categoryResponse {
	resp := categoryResponse{
		ID:       c.ID,
		Name:     c.Name,
		Slug:     c.Slug,
		ParentID: c.ParentID,
	}
	for i := range c.Children {
		resp.Children = append(resp.Children, newCategoryResponse(&c.Children[i]))
	}
	return resp
}

// CategoryList serves the active category tree.
func CategoryList(svc categorysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roots, err := svc.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]categoryResponse, len(roots))
		for i := range roots {
			items[i] = newCategoryResponse(&roots[i])
		}
		responses.WriteSuccess(w, items)
	}
}

// CategoryDetail serves one category with its children.
func CategoryDetail(svc categorysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		category, err := svc.GetBySlug(r.Context(), chi.URLParam(r, "slug"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCategoryResponse(category))
	}
}

type createCategoryRequest struct {
	Name     string     `json:"name" validate:"required,min=1,max=255"`
	ParentID *uuid.UUID `json:"parent_id"`
}

// CategoryCreate adds a category. Staff only.
func CategoryCreate(svc categorysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createCategoryRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		category, err := svc.Create(r.Context(), categorysvc.CreateInput{
			Name:     payload.Name,
			ParentID: payload.ParentID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newCategoryResponse(category))
	}
}
