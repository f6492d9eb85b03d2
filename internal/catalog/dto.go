package catalog

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shopsterhq/shopster-backend/pkg/db/models"
	"github.com/shopsterhq/shopster-backend/pkg/pagination"
)

// Sort orders accepted by product listings.
const (
	SortNewest    = "newest"
	SortPriceAsc  = "price_asc"
	SortPriceDesc = "price_desc"
	SortNameAsc   = "name_asc"
)

// ProductFilters narrows storefront product listings. Zero values mean
// "no constraint".
type ProductFilters struct {
	CategorySlug string
	Brand        string
	PriceMin     *decimal.Decimal
	PriceMax     *decimal.Decimal
	InStockOnly  bool
	Query        string
	Sort         string
	// IncludeInactive widens the listing for staff screens.
	IncludeInactive bool
}

// BrandFacet is one brand bucket with its live product count.
type BrandFacet struct {
	Brand string `json:"brand"`
	Count int64  `json:"count"`
}

// CategoryFacet is one category bucket with its live product count.
type CategoryFacet struct {
	Slug  string `json:"slug"`
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// Facets aggregates the filter sidebar for the current result set.
type Facets struct {
	Brands     []BrandFacet    `json:"brands"`
	Categories []CategoryFacet `json:"categories"`
	PriceMin   decimal.Decimal `json:"price_min"`
	PriceMax   decimal.Decimal `json:"price_max"`
}

// ReviewAggregate summarizes approved reviews for one product.
type ReviewAggregate struct {
	ProductID     uuid.UUID       `json:"-"`
	AverageRating decimal.Decimal `json:"average_rating"`
	ReviewCount   int64           `json:"review_count"`
}

// ProductDetail is a product plus its approved-review summary.
type ProductDetail struct {
	models.Product
	Rating ReviewAggregate `json:"rating"`
}

// ProductList is one page of products with facets for the same filter set.
type ProductList struct {
	Page   pagination.Page[models.Product] `json:"page"`
	Facets *Facets                         `json:"facets,omitempty"`
}

// CreateCategoryInput carries validated fields for a new category.
type CreateCategoryInput struct {
	Name            string
	Slug            string
	Description     string
	MetaTitle       string
	MetaDescription string
	IsActive        *bool
}

// UpdateCategoryInput carries partial category updates; nil fields are untouched.
type UpdateCategoryInput struct {
	Name            *string
	Description     *string
	MetaTitle       *string
	MetaDescription *string
	IsActive        *bool
}

// ImageInput is one product image row in create/update payloads.
type ImageInput struct {
	URL       string
	AltText   string
	IsMain    bool
	SortOrder int
}

// CreateProductInput carries validated fields for a new product.
type CreateProductInput struct {
	CategoryID       uuid.UUID
	Brand            string
	Name             string
	Slug             string
	SKU              string
	ShortDescription string
	Description      string
	MetaTitle        string
	MetaDescription  string
	MetaKeywords     string
	Price            decimal.Decimal
	Currency         string
	Stock            int
	IsActive         *bool
	Images           []ImageInput
}

// UpdateProductInput carries partial product updates; nil fields are untouched.
type UpdateProductInput struct {
	CategoryID       *uuid.UUID
	Brand            *string
	Name             *string
	ShortDescription *string
	Description      *string
	MetaTitle        *string
	MetaDescription  *string
	MetaKeywords     *string
	Price            *decimal.Decimal
	Stock            *int
	IsActive         *bool
	Images           []ImageInput
}
