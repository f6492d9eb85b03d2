package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shopsterhq/shopster-backend/api/middleware"
	"github.com/shopsterhq/shopster-backend/api/responses"
	"github.com/shopsterhq/shopster-backend/api/validators"
	"github.com/shopsterhq/shopster-backend/internal/catalog"
	pkgerrors "github.com/shopsterhq/shopster-backend/pkg/errors"
	"github.com/shopsterhq/shopster-backend/pkg/logger"
	"github.com/shopsterhq/shopster-backend/pkg/pagination"
)

func productFiltersFromQuery(r *http.Request) (catalog.ProductFilters, error) {
	query := r.URL.Query()

	priceMin, err := validators.ParseQueryDecimal(r, "price_min")
	if err != nil {
		return catalog.ProductFilters{}, err
	}
	priceMax, err := validators.ParseQueryDecimal(r, "price_max")
	if err != nil {
		return catalog.ProductFilters{}, err
	}

	return catalog.ProductFilters{
		CategorySlug:    strings.TrimSpace(query.Get("category")),
		Brand:           strings.TrimSpace(query.Get("brand")),
		PriceMin:        priceMin,
		PriceMax:        priceMax,
		InStockOnly:     query.Get("in_stock") == "true",
		Query:           strings.TrimSpace(query.Get("q")),
		Sort:            strings.TrimSpace(query.Get("sort")),
		IncludeInactive: middleware.IsStaffFromContext(r.Context()) && query.Get("include_inactive") == "true",
	}, nil
}

// ProductsList returns one page of the filtered catalog. Facets are included
// when the client asks for them.
func ProductsList(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := paginationParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filters, err := productFiltersFromQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		withFacets := r.URL.Query().Get("facets") == "true"
		list, err := svc.ListProducts(r.Context(), params, filters, withFacets)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newProductListResponse(list))
	}
}

// ProductsFacets returns only the facet aggregates for the current filter set.
func ProductsFacets(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filters, err := productFiltersFromQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListProducts(r.Context(), pagination.Params{Limit: 1}, filters, true)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list.Facets)
	}
}

func ProductsGet(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slug := strings.TrimSpace(chi.URLParam(r, "slug"))
		if slug == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "product slug required"))
			return
		}
		detail, err := svc.GetProduct(r.Context(), slug)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		resp := newProductResponse(detail.Product)
		resp.Rating = &detail.Rating
		responses.WriteSuccess(w, resp)
	}
}

type productImageRequest struct {
	URL       string `json:"url" validate:"required,url"`
	AltText   string `json:"alt_text"`
	IsMain    bool   `json:"is_main"`
	SortOrder int    `json:"sort_order"`
}

type createProductRequest struct {
	CategoryID       uuid.UUID             `json:"category_id" validate:"required"`
	Brand            string                `json:"brand" validate:"omitempty,max=255"`
	Name             string                `json:"name" validate:"required,max=255"`
	Slug             string                `json:"slug" validate:"omitempty,max=255"`
	SKU              string                `json:"sku" validate:"required,max=64"`
	ShortDescription string                `json:"short_description"`
	Description      string                `json:"description"`
	MetaTitle        string                `json:"meta_title" validate:"omitempty,max=255"`
	MetaDescription  string                `json:"meta_description"`
	MetaKeywords     string                `json:"meta_keywords"`
	Price            decimal.Decimal       `json:"price" validate:"required"`
	Currency         string                `json:"currency"`
	Stock            int                   `json:"stock" validate:"min=0"`
	IsActive         *bool                 `json:"is_active"`
	Images           []productImageRequest `json:"images" validate:"omitempty,dive"`
}

func imageInputs(images []productImageRequest) []catalog.ImageInput {
	out := make([]catalog.ImageInput, len(images))
	for i, image := range images {
		out[i] = catalog.ImageInput{
			URL:       image.URL,
			AltText:   image.AltText,
			IsMain:    image.IsMain,
			SortOrder: image.SortOrder,
		}
	}
	return out
}

func ProductsCreate(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.CreateProduct(r.Context(), catalog.CreateProductInput{
			CategoryID:       payload.CategoryID,
			Brand:            payload.Brand,
			Name:             payload.Name,
			Slug:             payload.Slug,
			SKU:              payload.SKU,
			ShortDescription: payload.ShortDescription,
			Description:      payload.Description,
			MetaTitle:        payload.MetaTitle,
			MetaDescription:  payload.MetaDescription,
			MetaKeywords:     payload.MetaKeywords,
			Price:            payload.Price,
			Currency:         payload.Currency,
			Stock:            payload.Stock,
			IsActive:         payload.IsActive,
			Images:           imageInputs(payload.Images),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newProductResponse(*product))
	}
}

type updateProductRequest struct {
	CategoryID       *uuid.UUID            `json:"category_id"`
	Brand            *string               `json:"brand" validate:"omitempty,max=255"`
	Name             *string               `json:"name" validate:"omitempty,max=255"`
	ShortDescription *string               `json:"short_description"`
	Description      *string               `json:"description"`
	MetaTitle        *string               `json:"meta_title" validate:"omitempty,max=255"`
	MetaDescription  *string               `json:"meta_description"`
	MetaKeywords     *string               `json:"meta_keywords"`
	Price            *decimal.Decimal      `json:"price"`
	Stock            *int                  `json:"stock" validate:"omitempty,min=0"`
	IsActive         *bool                 `json:"is_active"`
	Images           []productImageRequest `json:"images" validate:"omitempty,dive"`
}

func ProductsUpdate(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := catalog.UpdateProductInput{
			CategoryID:       payload.CategoryID,
			Brand:            payload.Brand,
			Name:             payload.Name,
			ShortDescription: payload.ShortDescription,
			Description:      payload.Description,
			MetaTitle:        payload.MetaTitle,
			MetaDescription:  payload.MetaDescription,
			MetaKeywords:     payload.MetaKeywords,
			Price:            payload.Price,
			Stock:            payload.Stock,
			IsActive:         payload.IsActive,
		}
		if payload.Images != nil {
			input.Images = imageInputs(payload.Images)
		}

		product, err := svc.UpdateProduct(r.Context(), id, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newProductResponse(*product))
	}
}

func ProductsDelete(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.DeleteProduct(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

func ProductsRestore(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.RestoreProduct(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newProductResponse(*product))
	}
}

// ProductsPurge permanently removes a soft-deleted product. Blocked while
// order snapshots still reference it.
func ProductsPurge(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.PurgeProduct(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "purged"})
	}
}
