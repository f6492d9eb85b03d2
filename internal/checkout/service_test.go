package checkout

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/shopsterhq/shopster-backend/internal/cart"
	"github.com/shopsterhq/shopster-backend/internal/identity"
	"github.com/shopsterhq/shopster-backend/internal/orders"
	"github.com/shopsterhq/shopster-backend/pkg/config"
	"github.com/shopsterhq/shopster-backend/pkg/db/models"
	pkgerrors "github.com/shopsterhq/shopster-backend/pkg/errors"
	"github.com/shopsterhq/shopster-backend/pkg/logger"
	"github.com/shopsterhq/shopster-backend/pkg/mailer"
	"github.com/shopsterhq/shopster-backend/pkg/pagination"
)

// stubCarts holds exactly one cart, which is all a placement touches.
type stubCarts struct {
	cart         *models.Cart
	itemsDeleted bool
	cartDeleted  bool
}

func (s *stubCarts) WithTx(tx *gorm.DB) cart.Repository { return s }

func (s *stubCarts) Create(context.Context, *models.Cart) (*models.Cart, error) {
	return nil, errors.New("not used")
}

func (s *stubCarts) Find(_ context.Context, id uuid.UUID) (*models.Cart, error) {
	if s.cart == nil || s.cart.ID != id || s.cartDeleted {
		return nil, gorm.ErrRecordNotFound
	}
	return s.cart, nil
}

func (s *stubCarts) FindForUpdate(ctx context.Context, id uuid.UUID) (*models.Cart, error) {
	return s.Find(ctx, id)
}

func (s *stubCarts) Touch(context.Context, uuid.UUID) error { return nil }

func (s *stubCarts) SoftDelete(_ context.Context, id uuid.UUID) error {
	s.cartDeleted = true
	return nil
}

func (s *stubCarts) FindItem(context.Context, uuid.UUID, uuid.UUID) (*models.CartItem, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubCarts) FindItemByProduct(context.Context, uuid.UUID, uuid.UUID) (*models.CartItem, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubCarts) CreateItem(context.Context, *models.CartItem) (*models.CartItem, error) {
	return nil, errors.New("not used")
}

func (s *stubCarts) UpdateItemQuantity(context.Context, uuid.UUID, int) error { return nil }

func (s *stubCarts) SoftDeleteItem(context.Context, uuid.UUID) error { return nil }

func (s *stubCarts) SoftDeleteItems(_ context.Context, cartID uuid.UUID) error {
	s.itemsDeleted = true
	return nil
}

type stubOrders struct {
	created   []*models.Order
	createErr error
}

func (s *stubOrders) WithTx(tx *gorm.DB) orders.Repository { return s }

func (s *stubOrders) Create(_ context.Context, order *models.Order) (*models.Order, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	order.ID = uuid.New()
	s.created = append(s.created, order)
	return order, nil
}

func (s *stubOrders) FindByID(context.Context, uuid.UUID) (*models.Order, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubOrders) List(context.Context, pagination.Params, orders.ListFilters) ([]models.Order, error) {
	return nil, nil
}

func (s *stubOrders) HasPurchased(context.Context, uuid.UUID, uuid.UUID) (bool, error) {
	return false, nil
}

type stubIdentity struct {
	resolution *identity.Resolution
	err        error
	calls      int
}

func (s *stubIdentity) Resolve(_ context.Context, _ *gorm.DB, authenticatedID *uuid.UUID, email, fullName string) (*identity.Resolution, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.resolution, nil
}

type recordingMailer struct {
	sent []mailer.Message
	err  error
}

func (m *recordingMailer) Send(_ context.Context, msg mailer.Message) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

type fakePublisher struct {
	messages []*gcppubsub.Message
	err      error
}

func (f *fakePublisher) Publish(_ context.Context, msg *gcppubsub.Message) publishResult {
	f.messages = append(f.messages, msg)
	return fakePublishResult{err: f.err}
}

type fakePublishResult struct {
	err error
}

func (r fakePublishResult) Get(context.Context) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	return "server-id", nil
}

type stubTx struct{}

func (stubTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error { return fn(nil) }

type fixture struct {
	carts    *stubCarts
	orders   *stubOrders
	identity *stubIdentity
	mail     *recordingMailer
	pub      *fakePublisher
	svc      Service
}

func price(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testConfig() *config.Config {
	return &config.Config{
		Checkout: config.CheckoutConfig{
			DefaultCurrency:        "RUB",
			DefaultShippingCountry: "Russia",
		},
		JWT: config.JWTConfig{
			Secret:               "test-secret",
			Issuer:               "shopster-test",
			ExpirationMinutes:    60,
			ActivationTTLMinutes: 60,
		},
		Frontend: config.FrontendConfig{
			AccountActivationURL: "https://shop.example/activate-account",
		},
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	productA := &models.Product{ID: uuid.New(), Name: "Product A", Price: price("10.00")}
	productB := &models.Product{ID: uuid.New(), Name: "Product B", Price: price("5.00")}
	cartID := uuid.New()
	f := &fixture{
		carts: &stubCarts{
			cart: &models.Cart{
				ID: cartID,
				Items: []models.CartItem{
					{ID: uuid.New(), CartID: cartID, ProductID: productA.ID, Quantity: 2, Product: productA},
					{ID: uuid.New(), CartID: cartID, ProductID: productB.ID, Quantity: 1, Product: productB},
				},
			},
		},
		orders:   &stubOrders{},
		identity: &stubIdentity{},
		mail:     &recordingMailer{},
		pub:      &fakePublisher{},
	}

	logg := logger.New(logger.Options{ServiceName: "checkout-test", Output: io.Discard})
	svc, err := NewService(ServiceParams{
		Config:    testConfig(),
		Logger:    logg,
		TxRunner:  stubTx{},
		Carts:     f.carts,
		Orders:    f.orders,
		Identity:  f.identity,
		Mailer:    f.mail,
		Publisher: f.pub,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	f.svc = svc
	return f
}

func validInput(cartID uuid.UUID) PlaceOrderInput {
	return PlaceOrderInput{
		CartID:           cartID,
		CustomerEmail:    "jane.doe@example.com",
		ShippingFullName: "Jane Doe",
		ShippingAddress:  "1 Main Street",
		ShippingCity:     "Springfield",
		ShippingAmount:   price("3.00"),
	}
}

func TestPlaceOrder_TotalsAndSnapshot(t *testing.T) {
	f := newFixture(t)
	guest := &models.User{ID: uuid.New(), Email: "jane.doe@example.com"}
	f.identity.resolution = &identity.Resolution{User: guest}

	placed, err := f.svc.PlaceOrder(context.Background(), validInput(f.carts.cart.ID))
	if err != nil {
		t.Fatalf("place order: %v", err)
	}

	order := placed.Order
	if !order.SubtotalAmount.Equal(price("25.00")) {
		t.Fatalf("subtotal = %s, want 25.00", order.SubtotalAmount)
	}
	if !order.TotalAmount.Equal(price("28.00")) {
		t.Fatalf("total = %s, want 28.00", order.TotalAmount)
	}
	if len(order.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(order.Items))
	}
	if !order.Items[0].LineTotal.Equal(price("20.00")) || !order.Items[1].LineTotal.Equal(price("5.00")) {
		t.Fatalf("unexpected line totals: %s, %s", order.Items[0].LineTotal, order.Items[1].LineTotal)
	}
	if order.Items[0].ProductName != "Product A" || !order.Items[0].UnitPrice.Equal(price("10.00")) {
		t.Fatalf("snapshot fields wrong: %+v", order.Items[0])
	}
	if order.UserID == nil || *order.UserID != guest.ID {
		t.Fatal("order should be attached to the resolved account")
	}
	if order.ShippingCountry != "Russia" {
		t.Fatalf("country default not applied: %q", order.ShippingCountry)
	}

	if !f.carts.itemsDeleted || !f.carts.cartDeleted {
		t.Fatal("cart and items must be consumed")
	}
	if placed.RequiresAccountActivation {
		t.Fatal("existing account must not require activation")
	}
}

func TestPlaceOrder_SnapshotIgnoresLaterPriceChange(t *testing.T) {
	f := newFixture(t)
	f.identity.resolution = &identity.Resolution{User: &models.User{ID: uuid.New()}}

	placed, err := f.svc.PlaceOrder(context.Background(), validInput(f.carts.cart.ID))
	if err != nil {
		t.Fatalf("place order: %v", err)
	}

	// Editing the live product after placement must not reach the snapshot.
	f.carts.cart.Items[0].Product.Price = price("99.00")
	f.carts.cart.Items[0].Product.Name = "Renamed"

	if !placed.Order.Items[0].UnitPrice.Equal(price("10.00")) {
		t.Fatalf("snapshot price changed: %s", placed.Order.Items[0].UnitPrice)
	}
	if placed.Order.Items[0].ProductName != "Product A" {
		t.Fatalf("snapshot name changed: %s", placed.Order.Items[0].ProductName)
	}
}

func TestPlaceOrder_EmptyCartRejected(t *testing.T) {
	f := newFixture(t)
	f.carts.cart.Items = nil

	_, err := f.svc.PlaceOrder(context.Background(), validInput(f.carts.cart.ID))
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(f.orders.created) != 0 {
		t.Fatal("no order may be created for an empty cart")
	}
	if f.carts.cartDeleted || f.carts.itemsDeleted {
		t.Fatal("empty cart must be left untouched")
	}
	if f.identity.calls != 0 {
		t.Fatal("identity must not be resolved for an empty cart")
	}
}

func TestPlaceOrder_UnknownCartRejected(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.PlaceOrder(context.Background(), validInput(uuid.New()))
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(f.orders.created) != 0 {
		t.Fatal("no order may be created for an unknown cart")
	}
}

func TestPlaceOrder_MissingShippingFields(t *testing.T) {
	f := newFixture(t)

	input := validInput(f.carts.cart.ID)
	input.ShippingAddress = ""
	input.ShippingCity = ""

	_, err := f.svc.PlaceOrder(context.Background(), input)
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	details, ok := appErr.Details().(map[string]any)
	if !ok {
		t.Fatalf("expected details, got %v", appErr.Details())
	}
	fields, ok := details["fields"].([]string)
	if !ok || len(fields) != 2 {
		t.Fatalf("expected both missing fields reported, got %v", details)
	}
}

func TestPlaceOrder_FailureLeavesCartIntact(t *testing.T) {
	f := newFixture(t)
	f.identity.resolution = &identity.Resolution{User: &models.User{ID: uuid.New()}}
	f.orders.createErr = errors.New("insert failed")

	_, err := f.svc.PlaceOrder(context.Background(), validInput(f.carts.cart.ID))
	if err == nil {
		t.Fatal("expected error")
	}
	if f.carts.cartDeleted || f.carts.itemsDeleted {
		t.Fatal("cart must survive a failed placement")
	}
	if len(f.mail.sent) != 0 || len(f.pub.messages) != 0 {
		t.Fatal("no notifications may be sent for a failed placement")
	}
}

func TestPlaceOrder_GuestProvisioningTriggersActivation(t *testing.T) {
	f := newFixture(t)
	guest := &models.User{ID: uuid.New(), Email: "jane.doe@example.com"}
	f.identity.resolution = &identity.Resolution{User: guest, Created: true}

	placed, err := f.svc.PlaceOrder(context.Background(), validInput(f.carts.cart.ID))
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	if !placed.RequiresAccountActivation {
		t.Fatal("fresh guest account must require activation")
	}
	if placed.ActivationEmail != "jane.doe@example.com" {
		t.Fatalf("unexpected activation email %q", placed.ActivationEmail)
	}

	// Confirmation and activation both go out.
	if len(f.mail.sent) != 2 {
		t.Fatalf("expected 2 emails, got %d", len(f.mail.sent))
	}
	activation := f.mail.sent[1]
	if !strings.Contains(activation.TextBody, "https://shop.example/activate-account?token=") {
		t.Fatalf("activation email missing token link: %q", activation.TextBody)
	}
}

func TestPlaceOrder_AnonymousWithoutEmail(t *testing.T) {
	f := newFixture(t)

	input := validInput(f.carts.cart.ID)
	input.CustomerEmail = ""

	placed, err := f.svc.PlaceOrder(context.Background(), input)
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	if f.identity.calls != 0 {
		t.Fatal("anonymous placement must not resolve an identity")
	}
	if placed.Order.UserID != nil {
		t.Fatal("anonymous order must not have an owner")
	}
	if len(f.mail.sent) != 0 {
		t.Fatal("no address to confirm to")
	}
}

func TestPlaceOrder_NotificationFailuresAreSwallowed(t *testing.T) {
	f := newFixture(t)
	f.identity.resolution = &identity.Resolution{User: &models.User{ID: uuid.New(), Email: "jane.doe@example.com"}, Created: true}
	f.mail.err = errors.New("sendgrid is down")
	f.pub.err = errors.New("pubsub is down")

	placed, err := f.svc.PlaceOrder(context.Background(), validInput(f.carts.cart.ID))
	if err != nil {
		t.Fatalf("committed order must not fail on notifications: %v", err)
	}
	if placed.Order == nil {
		t.Fatal("expected a placed order")
	}
}

func TestPlaceOrder_PublishesOrderEvent(t *testing.T) {
	f := newFixture(t)
	f.identity.resolution = &identity.Resolution{User: &models.User{ID: uuid.New()}}

	_, err := f.svc.PlaceOrder(context.Background(), validInput(f.carts.cart.ID))
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	if len(f.pub.messages) != 1 {
		t.Fatalf("expected 1 event, got %d", len(f.pub.messages))
	}
	msg := f.pub.messages[0]
	if msg.Attributes["event_type"] != "order.placed" {
		t.Fatalf("unexpected attributes: %v", msg.Attributes)
	}
	if !strings.Contains(string(msg.Data), `"total":"28.00"`) {
		t.Fatalf("event payload missing total: %s", msg.Data)
	}
}

func TestPlaceOrder_IdentityFailureAborts(t *testing.T) {
	f := newFixture(t)
	f.identity.err = pkgerrors.New(pkgerrors.CodeDependency, "identity store down")

	_, err := f.svc.PlaceOrder(context.Background(), validInput(f.carts.cart.ID))
	if err == nil {
		t.Fatal("expected error")
	}
	if len(f.orders.created) != 0 || f.carts.cartDeleted {
		t.Fatal("identity failure must abort the whole placement")
	}
}

func TestPlaceOrder_PlacedAtSet(t *testing.T) {
	f := newFixture(t)
	f.identity.resolution = &identity.Resolution{User: &models.User{ID: uuid.New()}}

	before := time.Now().UTC().Add(-time.Second)
	placed, err := f.svc.PlaceOrder(context.Background(), validInput(f.carts.cart.ID))
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	if placed.Order.PlacedAt.Before(before) {
		t.Fatalf("placed_at not set: %s", placed.Order.PlacedAt)
	}
}
