package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shopsterhq/shopster-backend/pkg/db"
	"github.com/shopsterhq/shopster-backend/pkg/db/models"
	"github.com/shopsterhq/shopster-backend/pkg/enums"
	pkgerrors "github.com/shopsterhq/shopster-backend/pkg/errors"
	"github.com/shopsterhq/shopster-backend/pkg/pagination"
	"github.com/shopsterhq/shopster-backend/pkg/slug"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes catalog reads for the storefront and writes for staff.
type Service interface {
	ListCategories(ctx context.Context, includeInactive bool) ([]models.Category, error)
	GetCategory(ctx context.Context, slugValue string) (*models.Category, error)
	CreateCategory(ctx context.Context, input CreateCategoryInput) (*models.Category, error)
	UpdateCategory(ctx context.Context, id uuid.UUID, input UpdateCategoryInput) (*models.Category, error)
	DeleteCategory(ctx context.Context, id uuid.UUID) error

	ListProducts(ctx context.Context, params pagination.Params, filters ProductFilters, withFacets bool) (*ProductList, error)
	GetProduct(ctx context.Context, slugValue string) (*ProductDetail, error)
	CreateProduct(ctx context.Context, input CreateProductInput) (*models.Product, error)
	UpdateProduct(ctx context.Context, id uuid.UUID, input UpdateProductInput) (*models.Product, error)
	DeleteProduct(ctx context.Context, id uuid.UUID) error
	RestoreProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	PurgeProduct(ctx context.Context, id uuid.UUID) error
}

type service struct {
	repo Repository
	tx   txRunner
}

// NewService builds the catalog service.
func NewService(repo Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx}, nil
}

func (s *service) ListCategories(ctx context.Context, includeInactive bool) ([]models.Category, error) {
	categories, err := s.repo.ListCategories(ctx, includeInactive)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list categories")
	}
	return categories, nil
}

func (s *service) GetCategory(ctx context.Context, slugValue string) (*models.Category, error) {
	category, err := s.repo.FindCategoryBySlug(ctx, slugValue)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "category not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load category")
	}
	return category, nil
}

func (s *service) CreateCategory(ctx context.Context, input CreateCategoryInput) (*models.Category, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "category name is required")
	}

	slugValue := strings.TrimSpace(input.Slug)
	var created *models.Category
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		assigned, err := s.assignSlug(ctx, slugValue, name, repo.CategorySlugExists)
		if err != nil {
			return err
		}

		category := &models.Category{
			Name:            name,
			Slug:            assigned,
			Description:     input.Description,
			MetaTitle:       input.MetaTitle,
			MetaDescription: input.MetaDescription,
			IsActive:        true,
		}
		if input.IsActive != nil {
			category.IsActive = *input.IsActive
		}

		created, err = repo.CreateCategory(ctx, category)
		if err != nil {
			if db.IsUniqueViolation(err, "uniq_categories_name") {
				return pkgerrors.New(pkgerrors.CodeConflict, "category name already exists")
			}
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "category already exists")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create category")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *service) UpdateCategory(ctx context.Context, id uuid.UUID, input UpdateCategoryInput) (*models.Category, error) {
	updates := map[string]any{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "category name cannot be empty")
		}
		updates["name"] = name
	}
	if input.Description != nil {
		updates["description"] = *input.Description
	}
	if input.MetaTitle != nil {
		updates["meta_title"] = *input.MetaTitle
	}
	if input.MetaDescription != nil {
		updates["meta_description"] = *input.MetaDescription
	}
	if input.IsActive != nil {
		updates["is_active"] = *input.IsActive
	}
	if len(updates) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no fields to update")
	}

	var updated *models.Category
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.FindCategoryByID(ctx, id); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "category not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load category")
		}
		if err := repo.UpdateCategory(ctx, id, updates); err != nil {
			if db.IsUniqueViolation(err, "uniq_categories_name") {
				return pkgerrors.New(pkgerrors.CodeConflict, "category name already exists")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update category")
		}
		var err error
		updated, err = repo.FindCategoryByID(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload category")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.FindCategoryByID(ctx, id); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "category not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load category")
		}
		count, err := repo.CountProductsInCategory(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count category products")
		}
		if count > 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "category still has products").
				WithDetails(map[string]any{"product_count": count})
		}
		if err := repo.DeleteCategory(ctx, id); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete category")
		}
		return nil
	})
}

func (s *service) ListProducts(ctx context.Context, params pagination.Params, filters ProductFilters, withFacets bool) (*ProductList, error) {
	if err := validateFilters(filters); err != nil {
		return nil, err
	}

	products, err := s.repo.ListProducts(ctx, params, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}

	list := &ProductList{}
	if filters.Sort == "" || filters.Sort == SortNewest {
		list.Page = pagination.BuildPage(products, params.Limit, func(p models.Product) pagination.Cursor {
			return pagination.Cursor{CreatedAt: p.CreatedAt, ID: p.ID}
		})
	} else {
		// Non-chronological sorts page by limit only; no cursor is issued.
		limit := pagination.NormalizeLimit(params.Limit)
		if len(products) > limit {
			products = products[:limit]
		}
		list.Page = pagination.Page[models.Product]{Items: products}
	}

	if withFacets {
		facets, err := s.repo.Facets(ctx, filters)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load facets")
		}
		list.Facets = facets
	}

	return list, nil
}

func validateFilters(filters ProductFilters) error {
	switch filters.Sort {
	case "", SortNewest, SortPriceAsc, SortPriceDesc, SortNameAsc:
	default:
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown sort order").
			WithDetails(map[string]any{"sort": filters.Sort})
	}
	if filters.PriceMin != nil && filters.PriceMax != nil && filters.PriceMin.GreaterThan(*filters.PriceMax) {
		return pkgerrors.New(pkgerrors.CodeValidation, "price_min exceeds price_max")
	}
	return nil
}

func (s *service) GetProduct(ctx context.Context, slugValue string) (*ProductDetail, error) {
	product, err := s.repo.FindProductBySlug(ctx, slugValue)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}

	aggregates, err := s.repo.ReviewAggregates(ctx, []uuid.UUID{product.ID})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load review aggregates")
	}

	return &ProductDetail{
		Product: *product,
		Rating:  aggregates[product.ID],
	}, nil
}

func (s *service) CreateProduct(ctx context.Context, input CreateProductInput) (*models.Product, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product name is required")
	}
	if input.CategoryID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "category id is required")
	}
	sku := strings.TrimSpace(input.SKU)
	if sku == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sku is required")
	}
	if input.Price.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price cannot be negative")
	}
	if input.Stock < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock cannot be negative")
	}
	currency := enums.Currency(strings.ToUpper(strings.TrimSpace(input.Currency)))
	if currency == "" {
		currency = enums.CurrencyRUB
	}
	if !currency.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown currency").
			WithDetails(map[string]any{"currency": input.Currency})
	}

	var created *models.Product
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		if _, err := repo.FindCategoryByID(ctx, input.CategoryID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeValidation, "category does not exist")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load category")
		}

		assigned, err := s.assignSlug(ctx, strings.TrimSpace(input.Slug), name, repo.ProductSlugExists)
		if err != nil {
			return err
		}

		product := &models.Product{
			CategoryID:       input.CategoryID,
			Brand:            strings.TrimSpace(input.Brand),
			Name:             name,
			Slug:             assigned,
			SKU:              sku,
			ShortDescription: input.ShortDescription,
			Description:      input.Description,
			MetaTitle:        input.MetaTitle,
			MetaDescription:  input.MetaDescription,
			MetaKeywords:     input.MetaKeywords,
			Price:            input.Price,
			Currency:         currency,
			Stock:            input.Stock,
			IsActive:         true,
		}
		if input.IsActive != nil {
			product.IsActive = *input.IsActive
		}

		created, err = repo.CreateProduct(ctx, product)
		if err != nil {
			if db.IsUniqueViolation(err, "uniq_products_sku") {
				return pkgerrors.New(pkgerrors.CodeConflict, "sku already exists")
			}
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "product already exists")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product")
		}

		if len(input.Images) > 0 {
			images := imageModels(input.Images)
			if err := repo.ReplaceProductImages(ctx, created.ID, images); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store product images")
			}
			created.Images = images
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *service) UpdateProduct(ctx context.Context, id uuid.UUID, input UpdateProductInput) (*models.Product, error) {
	updates := map[string]any{}
	if input.CategoryID != nil {
		updates["category_id"] = *input.CategoryID
	}
	if input.Brand != nil {
		updates["brand"] = strings.TrimSpace(*input.Brand)
	}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product name cannot be empty")
		}
		updates["name"] = name
	}
	if input.ShortDescription != nil {
		updates["short_description"] = *input.ShortDescription
	}
	if input.Description != nil {
		updates["description"] = *input.Description
	}
	if input.MetaTitle != nil {
		updates["meta_title"] = *input.MetaTitle
	}
	if input.MetaDescription != nil {
		updates["meta_description"] = *input.MetaDescription
	}
	if input.MetaKeywords != nil {
		updates["meta_keywords"] = *input.MetaKeywords
	}
	if input.Price != nil {
		if input.Price.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "price cannot be negative")
		}
		updates["price"] = *input.Price
	}
	if input.Stock != nil {
		if *input.Stock < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock cannot be negative")
		}
		updates["stock"] = *input.Stock
	}
	if input.IsActive != nil {
		updates["is_active"] = *input.IsActive
	}
	if len(updates) == 0 && input.Images == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no fields to update")
	}

	var updated *models.Product
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		if _, err := repo.FindProductByID(ctx, id, false); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
		}

		if catID, ok := updates["category_id"]; ok {
			if _, err := repo.FindCategoryByID(ctx, catID.(uuid.UUID)); err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return pkgerrors.New(pkgerrors.CodeValidation, "category does not exist")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load category")
			}
		}

		if len(updates) > 0 {
			if err := repo.UpdateProduct(ctx, id, updates); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product")
			}
		}
		if input.Images != nil {
			if err := repo.ReplaceProductImages(ctx, id, imageModels(input.Images)); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "replace product images")
			}
		}

		var err error
		updated, err = repo.FindProductByID(ctx, id, false)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload product")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.FindProductByID(ctx, id, false); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if err := s.repo.SoftDeleteProduct(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete product")
	}
	return nil
}

func (s *service) RestoreProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	product, err := s.repo.FindProductByID(ctx, id, true)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if !product.IsDeleted() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "product is not deleted")
	}
	if err := s.repo.RestoreProduct(ctx, id); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restore product")
	}
	return s.repo.FindProductByID(ctx, id, false)
}

// PurgeProduct permanently removes a tombstoned product. Fails when order
// items still reference the row.
func (s *service) PurgeProduct(ctx context.Context, id uuid.UUID) error {
	product, err := s.repo.FindProductByID(ctx, id, true)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if !product.IsDeleted() {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "product must be soft-deleted before purge")
	}
	if err := s.repo.HardDeleteProduct(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "purge product").
			WithDetails(map[string]any{"hint": "orders may still reference this product"})
	}
	return nil
}

// assignSlug uses the explicit slug when given, otherwise derives one from
// name and resolves collisions with a numeric suffix.
func (s *service) assignSlug(ctx context.Context, explicit, name string, exists func(context.Context, string) (bool, error)) (string, error) {
	if explicit != "" {
		normalized := slug.Make(explicit)
		if normalized == "" {
			return "", pkgerrors.New(pkgerrors.CodeValidation, "slug is not valid")
		}
		taken, err := exists(ctx, normalized)
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check slug availability")
		}
		if taken {
			return "", pkgerrors.New(pkgerrors.CodeConflict, "slug already exists").
				WithDetails(map[string]any{"slug": normalized})
		}
		return normalized, nil
	}

	base := slug.Make(name)
	if base == "" {
		base = "item"
	}
	for n := 1; ; n++ {
		candidate := slug.WithSuffix(base, n)
		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check slug availability")
		}
		if !taken {
			return candidate, nil
		}
	}
}

func imageModels(inputs []ImageInput) []models.ProductImage {
	images := make([]models.ProductImage, 0, len(inputs))
	for _, in := range inputs {
		images = append(images, models.ProductImage{
			URL:       in.URL,
			AltText:   in.AltText,
			IsMain:    in.IsMain,
			SortOrder: in.SortOrder,
		})
	}
	return images
}
