package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bozorline/shop-backend/api/responses"
	"github.com/bozorline/shop-backend/api/validators"
	commentsvc "github.com/bozorline/shop-backend/internal/comments"
	"github.com/bozorline/shop-backend/pkg/db/models"
	"github.com/bozorline/shop-backend/pkg/logger"
)

type commentResponse struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	ProductID uuid.UUID `json:"product_id"`
	Text      string    `json:"text"`
	Rating    int       `json:"rating"`
	CreatedAt time.Time `json:"created_at"`
}

func newCommentResponse(c *models.Comment) commentResponse {
	return commentResponse{
		ID:        c.ID,
		UserID:    c.UserID,
		ProductID: c.ProductID,
		Text:      c.Text,
		Rating:    c.Rating,
		CreatedAt: c.CreatedAt,
	}
}

type createCommentRequest struct {
	Text   string `json:"text" validate:"required"`
	Rating int    `json:"rating" validate:"omitempty,min=1,max=5"`
}

type updateCommentRequest struct {
	Text   *string `json:"text"`
	Rating *int    `json:"rating"`
}

// ProductCommentList serves a listing's live reviews, newest first.
func ProductCommentList(svc commentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := svc.ListByProduct(r.Context(), chi.URLParam(r, "slug"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := make([]commentResponse, len(items))
		for i := range items {
			resp[i] = newCommentResponse(&items[i])
		}
		responses.WriteSuccess(w, resp)
	}
}

// ProductCommentCreate posts the caller's review of a listing.
func ProductCommentCreate(svc commentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createCommentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		comment, err := svc.Create(r.Context(), userID, chi.URLParam(r, "slug"), commentsvc.CreateInput{
			Text:   payload.Text,
			Rating: payload.Rating,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newCommentResponse(comment))
	}
}

// CommentUpdate edits one of the caller's reviews (staff may edit any).
func CommentUpdate(svc commentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := currentActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		commentID, err := parseUUIDParam(r, "commentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateCommentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		comment, err := svc.Update(r.Context(), commentsvc.Actor{UserID: actor.UserID, Role: actor.Role}, commentID, commentsvc.UpdateInput{
			Text:   payload.Text,
			Rating: payload.Rating,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCommentResponse(comment))
	}
}

// CommentDelete removes one of the caller's reviews (staff may remove any).
func CommentDelete(svc commentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := currentActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		commentID, err := parseUUIDParam(r, "commentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Delete(r.Context(), commentsvc.Actor{UserID: actor.UserID, Role: actor.Role}, commentID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}
