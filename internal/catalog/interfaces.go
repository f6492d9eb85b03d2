package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shopsterhq/shopster-backend/pkg/db/models"
	"github.com/shopsterhq/shopster-backend/pkg/pagination"
)

// Repository defines persistence operations for the catalog tables.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	ListCategories(ctx context.Context, includeInactive bool) ([]models.Category, error)
	FindCategoryByID(ctx context.Context, id uuid.UUID) (*models.Category, error)
	FindCategoryBySlug(ctx context.Context, slug string) (*models.Category, error)
	CategorySlugExists(ctx context.Context, slug string) (bool, error)
	CreateCategory(ctx context.Context, category *models.Category) (*models.Category, error)
	UpdateCategory(ctx context.Context, id uuid.UUID, updates map[string]any) error
	DeleteCategory(ctx context.Context, id uuid.UUID) error
	CountProductsInCategory(ctx context.Context, id uuid.UUID) (int64, error)

	ListProducts(ctx context.Context, params pagination.Params, filters ProductFilters) ([]models.Product, error)
	Facets(ctx context.Context, filters ProductFilters) (*Facets, error)
	FindProductByID(ctx context.Context, id uuid.UUID, includeDeleted bool) (*models.Product, error)
	FindProductBySlug(ctx context.Context, slug string) (*models.Product, error)
	ProductSlugExists(ctx context.Context, slug string) (bool, error)
	CreateProduct(ctx context.Context, product *models.Product) (*models.Product, error)
	UpdateProduct(ctx context.Context, id uuid.UUID, updates map[string]any) error
	ReplaceProductImages(ctx context.Context, productID uuid.UUID, images []models.ProductImage) error
	SoftDeleteProduct(ctx context.Context, id uuid.UUID) error
	RestoreProduct(ctx context.Context, id uuid.UUID) error
	HardDeleteProduct(ctx context.Context, id uuid.UUID) error

	ReviewAggregates(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]ReviewAggregate, error)
}
