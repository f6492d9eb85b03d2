package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/shopsterhq/shopster-backend/api/middleware"
	"github.com/shopsterhq/shopster-backend/api/responses"
	"github.com/shopsterhq/shopster-backend/api/validators"
	"github.com/shopsterhq/shopster-backend/internal/catalog"
	pkgerrors "github.com/shopsterhq/shopster-backend/pkg/errors"
	"github.com/shopsterhq/shopster-backend/pkg/logger"
)

// CategoriesList returns active categories; staff additionally see inactive
// ones.
func CategoriesList(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		includeInactive := middleware.IsStaffFromContext(r.Context())
		categories, err := svc.ListCategories(r.Context(), includeInactive)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCategoryListResponse(categories))
	}
}

func CategoriesGet(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slug := strings.TrimSpace(chi.URLParam(r, "slug"))
		if slug == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "category slug required"))
			return
		}
		category, err := svc.GetCategory(r.Context(), slug)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCategoryResponse(*category))
	}
}

type createCategoryRequest struct {
	Name            string `json:"name" validate:"required,max=255"`
	Slug            string `json:"slug" validate:"omitempty,max=255"`
	Description     string `json:"description"`
	MetaTitle       string `json:"meta_title" validate:"omitempty,max=255"`
	MetaDescription string `json:"meta_description"`
	IsActive        *bool  `json:"is_active"`
}

func CategoriesCreate(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createCategoryRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		category, err := svc.CreateCategory(r.Context(), catalog.CreateCategoryInput{
			Name:            payload.Name,
			Slug:            payload.Slug,
			Description:     payload.Description,
			MetaTitle:       payload.MetaTitle,
			MetaDescription: payload.MetaDescription,
			IsActive:        payload.IsActive,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newCategoryResponse(*category))
	}
}

type updateCategoryRequest struct {
	Name            *string `json:"name" validate:"omitempty,max=255"`
	Description     *string `json:"description"`
	MetaTitle       *string `json:"meta_title" validate:"omitempty,max=255"`
	MetaDescription *string `json:"meta_description"`
	IsActive        *bool   `json:"is_active"`
}

func CategoriesUpdate(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateCategoryRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		category, err := svc.UpdateCategory(r.Context(), id, catalog.UpdateCategoryInput{
			Name:            payload.Name,
			Description:     payload.Description,
			MetaTitle:       payload.MetaTitle,
			MetaDescription: payload.MetaDescription,
			IsActive:        payload.IsActive,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCategoryResponse(*category))
	}
}

func CategoriesDelete(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.DeleteCategory(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}
