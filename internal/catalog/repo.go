package catalog

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/shopsterhq/shopster-backend/pkg/db/models"
	"github.com/shopsterhq/shopster-backend/pkg/pagination"
	"github.com/shopsterhq/shopster-backend/pkg/softdelete"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a catalog repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) ListCategories(ctx context.Context, includeInactive bool) ([]models.Category, error) {
	q := r.db.WithContext(ctx).Order("name ASC")
	if !includeInactive {
		q = q.Where("is_active = ?", true)
	}
	var categories []models.Category
	if err := q.Find(&categories).Error; err != nil {
		return nil, err
	}
	return categories, nil
}

func (r *repository) FindCategoryByID(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	var category models.Category
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&category).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *repository) FindCategoryBySlug(ctx context.Context, slug string) (*models.Category, error) {
	var category models.Category
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&category).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *repository) CategorySlugExists(ctx context.Context, slug string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Category{}).
		Where("slug = ?", slug).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) CreateCategory(ctx context.Context, category *models.Category) (*models.Category, error) {
	if err := r.db.WithContext(ctx).Create(category).Error; err != nil {
		return nil, err
	}
	return category, nil
}

func (r *repository) UpdateCategory(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Category{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&models.Category{}).Error
}

func (r *repository) CountProductsInCategory(ctx context.Context, id uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Scopes(softdelete.Live).
		Where("category_id = ?", id).
		Count(&count).Error
	return count, err
}

// applyProductFilters narrows the products query. skipDimension drops one
// facet dimension ("brand" or "category") so that facet can show its
// alternatives.
func (r *repository) applyProductFilters(q *gorm.DB, filters ProductFilters, skipDimension string) *gorm.DB {
	q = q.Scopes(softdelete.LiveOn("products"))
	if !filters.IncludeInactive {
		q = q.Where("products.is_active = ?", true)
	}
	if filters.CategorySlug != "" && skipDimension != "category" {
		q = q.Joins("JOIN categories ON categories.id = products.category_id").
			Where("categories.slug = ?", filters.CategorySlug)
	}
	if filters.Brand != "" && skipDimension != "brand" {
		q = q.Where("products.brand = ?", filters.Brand)
	}
	if filters.PriceMin != nil {
		q = q.Where("products.price >= ?", *filters.PriceMin)
	}
	if filters.PriceMax != nil {
		q = q.Where("products.price <= ?", *filters.PriceMax)
	}
	if filters.InStockOnly {
		q = q.Where("products.stock > 0")
	}
	if term := strings.TrimSpace(filters.Query); term != "" {
		like := "%" + term + "%"
		q = q.Where(
			"products.name ILIKE ? OR products.brand ILIKE ? OR products.short_description ILIKE ? OR products.sku ILIKE ?",
			like, like, like, like,
		)
	}
	return q
}

func (r *repository) ListProducts(ctx context.Context, params pagination.Params, filters ProductFilters) ([]models.Product, error) {
	q := r.applyProductFilters(r.db.WithContext(ctx).Model(&models.Product{}), filters, "")
	q = q.Preload("Category").Preload("Images", func(db *gorm.DB) *gorm.DB {
		return db.Order("sort_order ASC, created_at ASC")
	})

	switch filters.Sort {
	case SortPriceAsc:
		q = q.Order("products.price ASC, products.id ASC")
	case SortPriceDesc:
		q = q.Order("products.price DESC, products.id ASC")
	case SortNameAsc:
		q = q.Order("products.name ASC, products.id ASC")
	default:
		q = q.Order("products.created_at DESC, products.id DESC")
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, err
		}
		if cursor != nil {
			q = q.Where(
				"(products.created_at, products.id) < (?, ?)",
				cursor.CreatedAt, cursor.ID,
			)
		}
	}

	q = q.Limit(pagination.LimitWithBuffer(params.Limit))

	var products []models.Product
	if err := q.Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

func (r *repository) Facets(ctx context.Context, filters ProductFilters) (*Facets, error) {
	facets := &Facets{
		Brands:     []BrandFacet{},
		Categories: []CategoryFacet{},
	}

	brandQ := r.applyProductFilters(r.db.WithContext(ctx).Model(&models.Product{}), filters, "brand")
	err := brandQ.
		Where("products.brand <> ''").
		Select("products.brand AS brand, count(*) AS count").
		Group("products.brand").
		Order("count DESC, brand ASC").
		Scan(&facets.Brands).Error
	if err != nil {
		return nil, err
	}

	catQ := r.applyProductFilters(r.db.WithContext(ctx).Model(&models.Product{}), filters, "category")
	err = catQ.
		Joins("JOIN categories cat ON cat.id = products.category_id").
		Select("cat.slug AS slug, cat.name AS name, count(*) AS count").
		Group("cat.slug, cat.name").
		Order("count DESC, name ASC").
		Scan(&facets.Categories).Error
	if err != nil {
		return nil, err
	}

	var bounds struct {
		PriceMin decimal.NullDecimal
		PriceMax decimal.NullDecimal
	}
	priceQ := r.applyProductFilters(r.db.WithContext(ctx).Model(&models.Product{}), filters, "")
	err = priceQ.
		Select("min(products.price) AS price_min, max(products.price) AS price_max").
		Scan(&bounds).Error
	if err != nil {
		return nil, err
	}
	if bounds.PriceMin.Valid {
		facets.PriceMin = bounds.PriceMin.Decimal
	}
	if bounds.PriceMax.Valid {
		facets.PriceMax = bounds.PriceMax.Decimal
	}

	return facets, nil
}

func (r *repository) FindProductByID(ctx context.Context, id uuid.UUID, includeDeleted bool) (*models.Product, error) {
	q := r.db.WithContext(ctx).
		Preload("Category").
		Preload("Images", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC, created_at ASC")
		}).
		Where("id = ?", id)
	if !includeDeleted {
		q = q.Scopes(softdelete.Live)
	}
	var product models.Product
	if err := q.First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *repository) FindProductBySlug(ctx context.Context, slug string) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Scopes(softdelete.Live).
		Preload("Category").
		Preload("Images", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC, created_at ASC")
		}).
		Where("slug = ?", slug).
		First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// ProductSlugExists checks the whole table, soft-deleted rows included: a
// tombstoned product still holds its slug.
func (r *repository) ProductSlugExists(ctx context.Context, slug string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Scopes(softdelete.All).
		Where("slug = ?", slug).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) CreateProduct(ctx context.Context, product *models.Product) (*models.Product, error) {
	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		return nil, err
	}
	return product, nil
}

func (r *repository) UpdateProduct(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Product{}).
		Scopes(softdelete.Live).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) ReplaceProductImages(ctx context.Context, productID uuid.UUID, images []models.ProductImage) error {
	if err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Delete(&models.ProductImage{}).Error; err != nil {
		return err
	}
	if len(images) == 0 {
		return nil
	}
	for i := range images {
		images[i].ProductID = productID
	}
	return r.db.WithContext(ctx).Create(&images).Error
}

func (r *repository) SoftDeleteProduct(ctx context.Context, id uuid.UUID) error {
	return softdelete.SoftDelete(ctx, r.db, &models.Product{ID: id})
}

func (r *repository) RestoreProduct(ctx context.Context, id uuid.UUID) error {
	return softdelete.Restore(ctx, r.db, &models.Product{ID: id})
}

func (r *repository) HardDeleteProduct(ctx context.Context, id uuid.UUID) error {
	return softdelete.HardDelete(ctx, r.db, &models.Product{ID: id})
}

func (r *repository) ReviewAggregates(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]ReviewAggregate, error) {
	result := make(map[uuid.UUID]ReviewAggregate, len(productIDs))
	if len(productIDs) == 0 {
		return result, nil
	}

	var rows []struct {
		ProductID     uuid.UUID
		AverageRating decimal.Decimal
		ReviewCount   int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.ProductReview{}).
		Scopes(softdelete.Live).
		Where("product_id IN ?", productIDs).
		Where("moderation_status = ?", "approved").
		Select("product_id, round(avg(rating)::numeric, 2) AS average_rating, count(*) AS review_count").
		Group("product_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		result[row.ProductID] = ReviewAggregate{
			ProductID:     row.ProductID,
			AverageRating: row.AverageRating,
			ReviewCount:   row.ReviewCount,
		}
	}
	return result, nil
}
