package controllers

import (
	"net/http"
	"strings"

	"github.com/shopsterhq/shopster-backend/api/middleware"
	"github.com/shopsterhq/shopster-backend/api/responses"
	"github.com/shopsterhq/shopster-backend/api/validators"
	reviewsvc "github.com/shopsterhq/shopster-backend/internal/reviews"
	pkgerrors "github.com/shopsterhq/shopster-backend/pkg/errors"
	"github.com/shopsterhq/shopster-backend/pkg/logger"
)

func reviewRequester(r *http.Request) reviewsvc.Requester {
	requester := reviewsvc.Requester{IsStaff: middleware.IsStaffFromContext(r.Context())}
	if id := requesterUserID(r); id != nil {
		requester.UserID = *id
	}
	return requester
}

type submitReviewRequest struct {
	ProductID  string `json:"product_id" validate:"required,uuid"`
	Rating     int    `json:"rating" validate:"required,min=1,max=5"`
	Title      string `json:"title" validate:"omitempty,max=255"`
	Body       string `json:"body" validate:"required"`
	AuthorName string `json:"author_name" validate:"omitempty,max=255"`
}

func ReviewsSubmit(svc reviewsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload submitReviewRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := parseUUIDString(payload.ProductID, "product_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		review, err := svc.Submit(r.Context(), reviewRequester(r), reviewsvc.SubmitInput{
			ProductID:  productID,
			Rating:     payload.Rating,
			Title:      payload.Title,
			Body:       payload.Body,
			AuthorName: payload.AuthorName,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newReviewResponse(review))
	}
}

// ReviewsList returns a product's reviews. The public sees approved ones,
// authors also see their own, staff see everything and may filter by
// moderation status.
func ReviewsList(svc reviewsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.URL.Query().Get("product_id"))
		if raw == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "product_id query parameter required"))
			return
		}
		productID, err := parseUUIDString(raw, "product_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := paginationParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		statusFilter := strings.TrimSpace(r.URL.Query().Get("status"))
		page, err := svc.List(r.Context(), reviewRequester(r), productID, statusFilter, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]reviewResponse, len(page.Items))
		for i := range page.Items {
			items[i] = newReviewResponse(&page.Items[i])
		}
		responses.WriteSuccess(w, reviewPageResponse{Items: items, NextCursor: page.NextCursor})
	}
}

type updateReviewRequest struct {
	Rating *int    `json:"rating" validate:"omitempty,min=1,max=5"`
	Title  *string `json:"title" validate:"omitempty,max=255"`
	Body   *string `json:"body"`
}

// ReviewsUpdate lets the author edit a review; edits re-enter moderation.
func ReviewsUpdate(svc reviewsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseUUIDParam(r, "reviewID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateReviewRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		review, err := svc.Update(r.Context(), reviewRequester(r), id, reviewsvc.UpdateInput{
			Rating: payload.Rating,
			Title:  payload.Title,
			Body:   payload.Body,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newReviewResponse(review))
	}
}

func ReviewsDelete(svc reviewsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseUUIDParam(r, "reviewID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Delete(r.Context(), reviewRequester(r), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

type moderateReviewRequest struct {
	Approve *bool  `json:"approve" validate:"required"`
	Note    string `json:"note" validate:"omitempty,max=1024"`
}

func ReviewsModerate(svc reviewsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseUUIDParam(r, "reviewID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload moderateReviewRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		review, err := svc.Moderate(r.Context(), reviewRequester(r), id, reviewsvc.ModerateInput{
			Approve: *payload.Approve,
			Note:    payload.Note,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newReviewResponse(review))
	}
}
