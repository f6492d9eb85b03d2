package cart

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/shopsterhq/shopster-backend/pkg/db/models"
	pkgerrors "github.com/shopsterhq/shopster-backend/pkg/errors"
)

type stubRepo struct {
	carts         map[uuid.UUID]*models.Cart
	items         map[uuid.UUID]*models.CartItem
	createItemErr error
	touched       int
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		carts: map[uuid.UUID]*models.Cart{},
		items: map[uuid.UUID]*models.CartItem{},
	}
}

func (s *stubRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubRepo) Create(_ context.Context, cart *models.Cart) (*models.Cart, error) {
	cart.ID = uuid.New()
	s.carts[cart.ID] = cart
	return cart, nil
}

func (s *stubRepo) Find(_ context.Context, id uuid.UUID) (*models.Cart, error) {
	cart, ok := s.carts[id]
	if !ok || cart.IsDeleted() {
		return nil, gorm.ErrRecordNotFound
	}
	loaded := *cart
	loaded.Items = nil
	for _, item := range s.items {
		if item.CartID == id && !item.IsDeleted() {
			loaded.Items = append(loaded.Items, *item)
		}
	}
	return &loaded, nil
}

func (s *stubRepo) FindForUpdate(ctx context.Context, id uuid.UUID) (*models.Cart, error) {
	return s.Find(ctx, id)
}

func (s *stubRepo) Touch(_ context.Context, id uuid.UUID) error {
	s.touched++
	return nil
}

func (s *stubRepo) SoftDelete(_ context.Context, id uuid.UUID) error {
	if cart, ok := s.carts[id]; ok {
		now := time.Now().UTC()
		cart.DeletedAt = &now
	}
	return nil
}

func (s *stubRepo) FindItem(_ context.Context, cartID, itemID uuid.UUID) (*models.CartItem, error) {
	item, ok := s.items[itemID]
	if !ok || item.CartID != cartID || item.IsDeleted() {
		return nil, gorm.ErrRecordNotFound
	}
	return item, nil
}

func (s *stubRepo) FindItemByProduct(_ context.Context, cartID, productID uuid.UUID) (*models.CartItem, error) {
	for _, item := range s.items {
		if item.CartID == cartID && item.ProductID == productID && !item.IsDeleted() {
			return item, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubRepo) CreateItem(_ context.Context, item *models.CartItem) (*models.CartItem, error) {
	if s.createItemErr != nil {
		err := s.createItemErr
		s.createItemErr = nil
		return nil, err
	}
	item.ID = uuid.New()
	s.items[item.ID] = item
	return item, nil
}

func (s *stubRepo) UpdateItemQuantity(_ context.Context, itemID uuid.UUID, quantity int) error {
	if item, ok := s.items[itemID]; ok {
		item.Quantity = quantity
	}
	return nil
}

func (s *stubRepo) SoftDeleteItem(_ context.Context, itemID uuid.UUID) error {
	if item, ok := s.items[itemID]; ok {
		now := time.Now().UTC()
		item.DeletedAt = &now
	}
	return nil
}

func (s *stubRepo) SoftDeleteItems(_ context.Context, cartID uuid.UUID) error {
	for _, item := range s.items {
		if item.CartID == cartID && !item.IsDeleted() {
			now := time.Now().UTC()
			item.DeletedAt = &now
		}
	}
	return nil
}

type stubProducts struct {
	products map[uuid.UUID]*models.Product
}

func (s stubProducts) FindProductByID(_ context.Context, id uuid.UUID, includeDeleted bool) (*models.Product, error) {
	p, ok := s.products[id]
	if !ok || (!includeDeleted && p.IsDeleted()) {
		return nil, gorm.ErrRecordNotFound
	}
	return p, nil
}

type stubTx struct{}

func (stubTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error { return fn(nil) }

func newTestService(t *testing.T, repo Repository, products ProductSource) Service {
	t.Helper()
	svc, err := NewService(repo, products, stubTx{})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func seedFixture(t *testing.T) (*stubRepo, stubProducts, *models.Cart, *models.Product) {
	t.Helper()
	repo := newStubRepo()
	cart := &models.Cart{ID: uuid.New()}
	repo.carts[cart.ID] = cart
	product := &models.Product{
		ID:       uuid.New(),
		Name:     "Classic Tee",
		Price:    decimal.RequireFromString("10.00"),
		Stock:    5,
		IsActive: true,
	}
	products := stubProducts{products: map[uuid.UUID]*models.Product{product.ID: product}}
	return repo, products, cart, product
}

func TestAddItem_CreatesLine(t *testing.T) {
	repo, products, cart, product := seedFixture(t)
	svc := newTestService(t, repo, products)

	updated, err := svc.AddItem(context.Background(), cart.ID, product.ID, 2)
	if err != nil {
		t.Fatalf("add item: %v", err)
	}
	if len(updated.Items) != 1 || updated.Items[0].Quantity != 2 {
		t.Fatalf("unexpected items: %+v", updated.Items)
	}
	if repo.touched == 0 {
		t.Fatal("cart updated_at should be touched")
	}
}

func TestAddItem_MergesExistingLine(t *testing.T) {
	repo, products, cart, product := seedFixture(t)
	svc := newTestService(t, repo, products)
	ctx := context.Background()

	if _, err := svc.AddItem(ctx, cart.ID, product.ID, 2); err != nil {
		t.Fatalf("first add: %v", err)
	}
	updated, err := svc.AddItem(ctx, cart.ID, product.ID, 3)
	if err != nil {
		t.Fatalf("second add: %v", err)
	}
	if len(updated.Items) != 1 {
		t.Fatalf("expected a single merged line, got %d", len(updated.Items))
	}
	if updated.Items[0].Quantity != 5 {
		t.Fatalf("expected quantity 5, got %d", updated.Items[0].Quantity)
	}
}

func TestAddItem_ConcurrentInsertMerges(t *testing.T) {
	repo, products, cart, product := seedFixture(t)
	svc := newTestService(t, repo, products)

	// First insert loses the race against a line created by another request.
	repo.createItemErr = &pgconn.PgError{Code: "23505", ConstraintName: "uniq_cart_items_cart_product"}
	winner := &models.CartItem{ID: uuid.New(), CartID: cart.ID, ProductID: product.ID, Quantity: 1}
	repo.items[winner.ID] = winner

	updated, err := svc.AddItem(context.Background(), cart.ID, product.ID, 2)
	if err != nil {
		t.Fatalf("add item: %v", err)
	}
	if len(updated.Items) != 1 || updated.Items[0].Quantity != 3 {
		t.Fatalf("expected merged quantity 3, got %+v", updated.Items)
	}
}

func TestAddItem_Validations(t *testing.T) {
	repo, products, cart, product := seedFixture(t)
	svc := newTestService(t, repo, products)
	ctx := context.Background()

	if _, err := svc.AddItem(ctx, cart.ID, product.ID, 0); pkgerrors.As(err) == nil {
		t.Fatal("zero quantity must be rejected")
	}
	if _, err := svc.AddItem(ctx, cart.ID, product.ID, MaxQuantityPerLine+1); pkgerrors.As(err) == nil {
		t.Fatal("oversized quantity must be rejected")
	}
	if _, err := svc.AddItem(ctx, cart.ID, uuid.New(), 1); pkgerrors.As(err) == nil {
		t.Fatal("unknown product must be rejected")
	}

	product.IsActive = false
	_, err := svc.AddItem(ctx, cart.ID, product.ID, 1)
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeValidation {
		t.Fatalf("inactive product must be rejected, got %v", err)
	}
}

func TestUpdateItem_ZeroRemovesLine(t *testing.T) {
	repo, products, cart, product := seedFixture(t)
	svc := newTestService(t, repo, products)
	ctx := context.Background()

	withItem, err := svc.AddItem(ctx, cart.ID, product.ID, 2)
	if err != nil {
		t.Fatalf("add item: %v", err)
	}

	updated, err := svc.UpdateItem(ctx, cart.ID, withItem.Items[0].ID, 0)
	if err != nil {
		t.Fatalf("update item: %v", err)
	}
	if len(updated.Items) != 0 {
		t.Fatalf("expected empty cart, got %+v", updated.Items)
	}
}

func TestRemoveItem(t *testing.T) {
	repo, products, cart, product := seedFixture(t)
	svc := newTestService(t, repo, products)
	ctx := context.Background()

	withItem, err := svc.AddItem(ctx, cart.ID, product.ID, 1)
	if err != nil {
		t.Fatalf("add item: %v", err)
	}

	updated, err := svc.RemoveItem(ctx, cart.ID, withItem.Items[0].ID)
	if err != nil {
		t.Fatalf("remove item: %v", err)
	}
	if len(updated.Items) != 0 {
		t.Fatalf("expected empty cart, got %+v", updated.Items)
	}

	_, err = svc.RemoveItem(ctx, cart.ID, withItem.Items[0].ID)
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found for removed item, got %v", err)
	}
}

func TestDestroy_TombstonesCartAndItems(t *testing.T) {
	repo, products, cart, product := seedFixture(t)
	svc := newTestService(t, repo, products)
	ctx := context.Background()

	if _, err := svc.AddItem(ctx, cart.ID, product.ID, 1); err != nil {
		t.Fatalf("add item: %v", err)
	}
	if err := svc.Destroy(ctx, cart.ID); err != nil {
		t.Fatalf("destroy: %v", err)
	}

	if !cart.IsDeleted() {
		t.Fatal("cart should be tombstoned")
	}
	for _, item := range repo.items {
		if !item.IsDeleted() {
			t.Fatal("items should be tombstoned with the cart")
		}
	}

	_, err := svc.Get(ctx, cart.ID)
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("destroyed cart should read as not found, got %v", err)
	}
}

func TestSubtotalFollowsCurrentPrices(t *testing.T) {
	repo, products, cart, product := seedFixture(t)
	svc := newTestService(t, repo, products)
	ctx := context.Background()

	if _, err := svc.AddItem(ctx, cart.ID, product.ID, 2); err != nil {
		t.Fatalf("add item: %v", err)
	}

	loaded, err := svc.Get(ctx, cart.ID)
	if err != nil {
		t.Fatalf("get cart: %v", err)
	}
	// Stub Find does not preload products, attach manually like the real
	// repository's preload would.
	for i := range loaded.Items {
		loaded.Items[i].Product = product
	}
	if !loaded.Subtotal().Equal(decimal.RequireFromString("20.00")) {
		t.Fatalf("unexpected subtotal %s", loaded.Subtotal())
	}

	product.Price = decimal.RequireFromString("12.00")
	if !loaded.Subtotal().Equal(decimal.RequireFromString("24.00")) {
		t.Fatalf("subtotal should track current price, got %s", loaded.Subtotal())
	}
}
