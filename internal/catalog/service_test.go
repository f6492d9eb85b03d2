package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/shopsterhq/shopster-backend/pkg/db/models"
	pkgerrors "github.com/shopsterhq/shopster-backend/pkg/errors"
	"github.com/shopsterhq/shopster-backend/pkg/pagination"
)

type stubRepo struct {
	categories []*models.Category
	products   []*models.Product
	aggregates map[uuid.UUID]ReviewAggregate

	productCounts map[uuid.UUID]int64
	deletedCats   []uuid.UUID
	facets        *Facets
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		aggregates:    map[uuid.UUID]ReviewAggregate{},
		productCounts: map[uuid.UUID]int64{},
	}
}

func (s *stubRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubRepo) ListCategories(_ context.Context, includeInactive bool) ([]models.Category, error) {
	var out []models.Category
	for _, c := range s.categories {
		if includeInactive || c.IsActive {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (s *stubRepo) FindCategoryByID(_ context.Context, id uuid.UUID) (*models.Category, error) {
	for _, c := range s.categories {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubRepo) FindCategoryBySlug(_ context.Context, slugValue string) (*models.Category, error) {
	for _, c := range s.categories {
		if c.Slug == slugValue {
			return c, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubRepo) CategorySlugExists(_ context.Context, slugValue string) (bool, error) {
	for _, c := range s.categories {
		if c.Slug == slugValue {
			return true, nil
		}
	}
	return false, nil
}

func (s *stubRepo) CreateCategory(_ context.Context, category *models.Category) (*models.Category, error) {
	category.ID = uuid.New()
	s.categories = append(s.categories, category)
	return category, nil
}

func (s *stubRepo) UpdateCategory(_ context.Context, id uuid.UUID, updates map[string]any) error {
	for _, c := range s.categories {
		if c.ID == id {
			if name, ok := updates["name"].(string); ok {
				c.Name = name
			}
			if active, ok := updates["is_active"].(bool); ok {
				c.IsActive = active
			}
		}
	}
	return nil
}

func (s *stubRepo) DeleteCategory(_ context.Context, id uuid.UUID) error {
	s.deletedCats = append(s.deletedCats, id)
	return nil
}

func (s *stubRepo) CountProductsInCategory(_ context.Context, id uuid.UUID) (int64, error) {
	return s.productCounts[id], nil
}

func (s *stubRepo) ListProducts(_ context.Context, params pagination.Params, _ ProductFilters) ([]models.Product, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	var out []models.Product
	for _, p := range s.products {
		if len(out) == limit {
			break
		}
		out = append(out, *p)
	}
	return out, nil
}

func (s *stubRepo) Facets(_ context.Context, _ ProductFilters) (*Facets, error) {
	return s.facets, nil
}

func (s *stubRepo) FindProductByID(_ context.Context, id uuid.UUID, includeDeleted bool) (*models.Product, error) {
	for _, p := range s.products {
		if p.ID == id && (includeDeleted || !p.IsDeleted()) {
			return p, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubRepo) FindProductBySlug(_ context.Context, slugValue string) (*models.Product, error) {
	for _, p := range s.products {
		if p.Slug == slugValue && !p.IsDeleted() {
			return p, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubRepo) ProductSlugExists(_ context.Context, slugValue string) (bool, error) {
	for _, p := range s.products {
		if p.Slug == slugValue {
			return true, nil
		}
	}
	return false, nil
}

func (s *stubRepo) CreateProduct(_ context.Context, product *models.Product) (*models.Product, error) {
	product.ID = uuid.New()
	s.products = append(s.products, product)
	return product, nil
}

func (s *stubRepo) UpdateProduct(_ context.Context, id uuid.UUID, updates map[string]any) error {
	for _, p := range s.products {
		if p.ID == id {
			if name, ok := updates["name"].(string); ok {
				p.Name = name
			}
			if price, ok := updates["price"].(decimal.Decimal); ok {
				p.Price = price
			}
			if stock, ok := updates["stock"].(int); ok {
				p.Stock = stock
			}
		}
	}
	return nil
}

func (s *stubRepo) ReplaceProductImages(_ context.Context, productID uuid.UUID, images []models.ProductImage) error {
	for _, p := range s.products {
		if p.ID == productID {
			p.Images = images
		}
	}
	return nil
}

func (s *stubRepo) SoftDeleteProduct(_ context.Context, id uuid.UUID) error {
	for _, p := range s.products {
		if p.ID == id {
			now := timeNow()
			p.DeletedAt = &now
		}
	}
	return nil
}

func (s *stubRepo) RestoreProduct(_ context.Context, id uuid.UUID) error {
	for _, p := range s.products {
		if p.ID == id {
			p.DeletedAt = nil
		}
	}
	return nil
}

func (s *stubRepo) HardDeleteProduct(_ context.Context, id uuid.UUID) error {
	for i, p := range s.products {
		if p.ID == id {
			s.products = append(s.products[:i], s.products[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *stubRepo) ReviewAggregates(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]ReviewAggregate, error) {
	out := map[uuid.UUID]ReviewAggregate{}
	for _, id := range ids {
		if agg, ok := s.aggregates[id]; ok {
			out[id] = agg
		}
	}
	return out, nil
}

func timeNow() time.Time { return time.Now().UTC() }

type stubTx struct{}

func (stubTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error { return fn(nil) }

func newTestService(t *testing.T, repo Repository) Service {
	t.Helper()
	svc, err := NewService(repo, stubTx{})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func seedCategory(repo *stubRepo) *models.Category {
	cat := &models.Category{ID: uuid.New(), Name: "Apparel", Slug: "apparel", IsActive: true}
	repo.categories = append(repo.categories, cat)
	return cat
}

func TestCreateProduct_GeneratesSlug(t *testing.T) {
	repo := newStubRepo()
	cat := seedCategory(repo)
	svc := newTestService(t, repo)

	created, err := svc.CreateProduct(context.Background(), CreateProductInput{
		CategoryID: cat.ID,
		Name:       "Classic White Tee",
		SKU:        "TEE-001",
		Price:      decimal.RequireFromString("12.50"),
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	if created.Slug != "classic-white-tee" {
		t.Fatalf("unexpected slug %q", created.Slug)
	}
	if created.Currency != "RUB" {
		t.Fatalf("expected default currency RUB, got %q", created.Currency)
	}
	if !created.IsActive {
		t.Fatal("product should default to active")
	}
}

func TestCreateProduct_SlugCollisionGetsSuffix(t *testing.T) {
	repo := newStubRepo()
	cat := seedCategory(repo)
	repo.products = append(repo.products,
		&models.Product{ID: uuid.New(), Slug: "classic-white-tee"},
		&models.Product{ID: uuid.New(), Slug: "classic-white-tee-2"},
	)
	svc := newTestService(t, repo)

	created, err := svc.CreateProduct(context.Background(), CreateProductInput{
		CategoryID: cat.ID,
		Name:       "Classic White Tee",
		SKU:        "TEE-002",
		Price:      decimal.RequireFromString("12.50"),
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	if created.Slug != "classic-white-tee-3" {
		t.Fatalf("expected suffixed slug, got %q", created.Slug)
	}
}

func TestCreateProduct_ExplicitSlugConflict(t *testing.T) {
	repo := newStubRepo()
	cat := seedCategory(repo)
	repo.products = append(repo.products, &models.Product{ID: uuid.New(), Slug: "taken"})
	svc := newTestService(t, repo)

	_, err := svc.CreateProduct(context.Background(), CreateProductInput{
		CategoryID: cat.ID,
		Name:       "Another",
		Slug:       "taken",
		SKU:        "SKU-1",
		Price:      decimal.RequireFromString("1.00"),
	})
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestCreateProduct_Validation(t *testing.T) {
	repo := newStubRepo()
	cat := seedCategory(repo)
	svc := newTestService(t, repo)
	ctx := context.Background()

	cases := []CreateProductInput{
		{CategoryID: cat.ID, SKU: "S", Price: decimal.New(1, 0)},                                           // missing name
		{CategoryID: uuid.Nil, Name: "X", SKU: "S", Price: decimal.New(1, 0)},                              // missing category
		{CategoryID: cat.ID, Name: "X", Price: decimal.New(1, 0)},                                          // missing sku
		{CategoryID: cat.ID, Name: "X", SKU: "S", Price: decimal.RequireFromString("-1")},                  // negative price
		{CategoryID: cat.ID, Name: "X", SKU: "S", Price: decimal.New(1, 0), Stock: -1},                     // negative stock
		{CategoryID: cat.ID, Name: "X", SKU: "S", Price: decimal.New(1, 0), Currency: "BTC"},               // unknown currency
		{CategoryID: uuid.New(), Name: "X", SKU: "S", Price: decimal.New(1, 0)},                            // unknown category
	}
	for i, input := range cases {
		_, err := svc.CreateProduct(ctx, input)
		appErr := pkgerrors.As(err)
		if appErr == nil || appErr.Code() != pkgerrors.CodeValidation {
			t.Errorf("case %d: expected validation error, got %v", i, err)
		}
	}
}

func TestGetProduct_AttachesRatingAggregate(t *testing.T) {
	repo := newStubRepo()
	product := &models.Product{ID: uuid.New(), Slug: "rated", Name: "Rated"}
	repo.products = append(repo.products, product)
	repo.aggregates[product.ID] = ReviewAggregate{
		ProductID:     product.ID,
		AverageRating: decimal.RequireFromString("4.50"),
		ReviewCount:   12,
	}
	svc := newTestService(t, repo)

	detail, err := svc.GetProduct(context.Background(), "rated")
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if detail.Rating.ReviewCount != 12 {
		t.Fatalf("expected 12 reviews, got %d", detail.Rating.ReviewCount)
	}
	if !detail.Rating.AverageRating.Equal(decimal.RequireFromString("4.50")) {
		t.Fatalf("unexpected average %s", detail.Rating.AverageRating)
	}
}

func TestGetProduct_NotFound(t *testing.T) {
	svc := newTestService(t, newStubRepo())

	_, err := svc.GetProduct(context.Background(), "missing")
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListProducts_RejectsUnknownSort(t *testing.T) {
	svc := newTestService(t, newStubRepo())

	_, err := svc.ListProducts(context.Background(), pagination.Params{}, ProductFilters{Sort: "cheapest"}, false)
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestListProducts_RejectsInvertedPriceRange(t *testing.T) {
	svc := newTestService(t, newStubRepo())
	lo := decimal.RequireFromString("10")
	hi := decimal.RequireFromString("5")

	_, err := svc.ListProducts(context.Background(), pagination.Params{}, ProductFilters{PriceMin: &lo, PriceMax: &hi}, false)
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestListProducts_WithFacets(t *testing.T) {
	repo := newStubRepo()
	repo.facets = &Facets{
		Brands:   []BrandFacet{{Brand: "Acme", Count: 3}},
		PriceMin: decimal.RequireFromString("5.00"),
		PriceMax: decimal.RequireFromString("99.00"),
	}
	svc := newTestService(t, repo)

	list, err := svc.ListProducts(context.Background(), pagination.Params{}, ProductFilters{}, true)
	if err != nil {
		t.Fatalf("list products: %v", err)
	}
	if list.Facets == nil || len(list.Facets.Brands) != 1 {
		t.Fatalf("expected facets in response, got %+v", list.Facets)
	}
}

func TestDeleteCategory_BlockedWhenPopulated(t *testing.T) {
	repo := newStubRepo()
	cat := seedCategory(repo)
	repo.productCounts[cat.ID] = 4
	svc := newTestService(t, repo)

	err := svc.DeleteCategory(context.Background(), cat.ID)
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
	if len(repo.deletedCats) != 0 {
		t.Fatal("category must not be deleted")
	}
}

func TestRestoreProduct_RequiresTombstone(t *testing.T) {
	repo := newStubRepo()
	live := &models.Product{ID: uuid.New(), Slug: "live"}
	repo.products = append(repo.products, live)
	svc := newTestService(t, repo)

	_, err := svc.RestoreProduct(context.Background(), live.ID)
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestPurgeProduct_RequiresTombstone(t *testing.T) {
	repo := newStubRepo()
	live := &models.Product{ID: uuid.New(), Slug: "live"}
	repo.products = append(repo.products, live)
	svc := newTestService(t, repo)

	err := svc.PurgeProduct(context.Background(), live.ID)
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}
