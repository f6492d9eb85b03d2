// Package checkout converts carts into immutable orders. Placement runs in a
// single transaction holding a row lock on the cart, so a cart can only ever
// be consumed once; notifications go out after the commit and never affect
// the order's fate.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/shopsterhq/shopster-backend/internal/cart"
	"github.com/shopsterhq/shopster-backend/internal/identity"
	"github.com/shopsterhq/shopster-backend/internal/orders"
	"github.com/shopsterhq/shopster-backend/pkg/config"
	"github.com/shopsterhq/shopster-backend/pkg/db/models"
	"github.com/shopsterhq/shopster-backend/pkg/enums"
	pkgerrors "github.com/shopsterhq/shopster-backend/pkg/errors"
	"github.com/shopsterhq/shopster-backend/pkg/logger"
	"github.com/shopsterhq/shopster-backend/pkg/mailer"
	"github.com/shopsterhq/shopster-backend/pkg/metrics"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// identityResolver is the slice of the identity service placement needs.
type identityResolver interface {
	Resolve(ctx context.Context, tx *gorm.DB, authenticatedID *uuid.UUID, email, fullName string) (*identity.Resolution, error)
}

// PlaceOrderInput carries everything needed to turn a cart into an order.
type PlaceOrderInput struct {
	CartID uuid.UUID
	// UserID is the authenticated requester, nil for guest checkouts.
	UserID *uuid.UUID

	CustomerEmail    string
	CustomerPhone    string
	ShippingFullName string
	ShippingAddress  string
	ShippingCity     string
	ShippingPostcode string
	ShippingCountry  string
	Notes            string
	ShippingAmount   decimal.Decimal
}

// PlacedOrder is the engine's result: the committed order plus whether a
// guest account was provisioned along the way.
type PlacedOrder struct {
	Order                     *models.Order
	RequiresAccountActivation bool
	ActivationEmail           string
}

// Service places orders.
type Service interface {
	PlaceOrder(ctx context.Context, input PlaceOrderInput) (*PlacedOrder, error)
}

// ServiceParams bundles the engine's dependencies. Mailer, Publisher and
// Metrics are optional; placement works without any of them.
type ServiceParams struct {
	Config    *config.Config
	Logger    *logger.Logger
	TxRunner  txRunner
	Carts     cart.Repository
	Orders    orders.Repository
	Identity  identityResolver
	Mailer    mailer.Mailer
	Publisher publisher
	Metrics   *metrics.CheckoutMetrics
}

type service struct {
	cfg      *config.Config
	logg     *logger.Logger
	tx       txRunner
	carts    cart.Repository
	orders   orders.Repository
	identity identityResolver
	mail     mailer.Mailer
	pub      publisher
	metrics  *metrics.CheckoutMetrics
	now      func() time.Time
}

// NewService builds the order placement engine.
func NewService(params ServiceParams) (Service, error) {
	if params.Config == nil {
		return nil, fmt.Errorf("config required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.TxRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order repository required")
	}
	if params.Identity == nil {
		return nil, fmt.Errorf("identity resolver required")
	}
	mail := params.Mailer
	if mail == nil {
		mail = mailer.NewNoop()
	}
	return &service{
		cfg:      params.Config,
		logg:     params.Logger,
		tx:       params.TxRunner,
		carts:    params.Carts,
		orders:   params.Orders,
		identity: params.Identity,
		mail:     mail,
		pub:      params.Publisher,
		metrics:  params.Metrics,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) PlaceOrder(ctx context.Context, input PlaceOrderInput) (*PlacedOrder, error) {
	start := s.now()

	if err := validateInput(&input); err != nil {
		s.metrics.IncFailed("validation")
		return nil, err
	}

	ctx = s.logg.WithCartID(ctx, input.CartID.String())

	var placed *PlacedOrder
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		placed, err = s.placeInTx(ctx, tx, input)
		return err
	})
	if err != nil {
		s.metrics.IncFailed(failureReason(err))
		return nil, err
	}

	s.metrics.IncPlaced()
	s.metrics.ObserveDuration(s.now().Sub(start))
	s.logg.Info(s.logg.WithOrderID(ctx, placed.Order.ID.String()), "order placed")

	// The order is committed; whatever happens to the notifications must
	// not reach the caller as a failure.
	s.dispatchNotifications(ctx, placed)

	return placed, nil
}

// placeInTx runs the placement steps under the cart row lock. Any error
// rolls back every write made here.
func (s *service) placeInTx(ctx context.Context, tx *gorm.DB, input PlaceOrderInput) (*PlacedOrder, error) {
	carts := s.carts.WithTx(tx)

	locked, err := carts.FindForUpdate(ctx, input.CartID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart not found").
				WithDetails(map[string]any{"cart_id": input.CartID})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock cart")
	}
	if len(locked.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	resolution, err := s.resolveIdentity(ctx, tx, input)
	if err != nil {
		return nil, err
	}

	order := s.orderShell(input, locked, resolution)
	subtotal := decimal.Zero
	for _, item := range locked.Items {
		if item.Product == nil {
			return nil, pkgerrors.New(pkgerrors.CodeDependency, "cart item has no product").
				WithDetails(map[string]any{"cart_item_id": item.ID})
		}
		line := item.Product.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		order.Items = append(order.Items, models.OrderItem{
			ProductID:   item.ProductID,
			ProductName: item.Product.Name,
			UnitPrice:   item.Product.Price,
			Quantity:    item.Quantity,
			LineTotal:   line,
		})
		subtotal = subtotal.Add(line)
	}
	order.SubtotalAmount = subtotal
	order.TotalAmount = subtotal.Add(order.ShippingAmount)

	created, err := s.orders.WithTx(tx).Create(ctx, order)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
	}

	// The cart is consumed: tombstone the items and the cart itself so a
	// second placement sees nothing to buy.
	if err := carts.SoftDeleteItems(ctx, locked.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "consume cart items")
	}
	if err := carts.SoftDelete(ctx, locked.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "consume cart")
	}

	placed := &PlacedOrder{Order: created}
	if resolution != nil && resolution.Created {
		placed.RequiresAccountActivation = true
		placed.ActivationEmail = resolution.User.Email
	}
	return placed, nil
}

// resolveIdentity maps the request to an account. Authenticated requesters
// get their own; guests with an email are matched or provisioned; guests
// without one place an anonymous order.
func (s *service) resolveIdentity(ctx context.Context, tx *gorm.DB, input PlaceOrderInput) (*identity.Resolution, error) {
	if input.UserID == nil && strings.TrimSpace(input.CustomerEmail) == "" {
		return nil, nil
	}
	return s.identity.Resolve(ctx, tx, input.UserID, input.CustomerEmail, input.ShippingFullName)
}

func (s *service) orderShell(input PlaceOrderInput, locked *models.Cart, resolution *identity.Resolution) *models.Order {
	order := &models.Order{
		CartID:           &locked.ID,
		Status:           enums.OrderStatusPending,
		PaymentStatus:    enums.PaymentStatusPending,
		SubtotalAmount:   decimal.Zero,
		ShippingAmount:   input.ShippingAmount,
		TotalAmount:      decimal.Zero,
		Currency:         s.currency(),
		CustomerEmail:    strings.ToLower(strings.TrimSpace(input.CustomerEmail)),
		CustomerPhone:    strings.TrimSpace(input.CustomerPhone),
		ShippingFullName: strings.TrimSpace(input.ShippingFullName),
		ShippingAddress:  strings.TrimSpace(input.ShippingAddress),
		ShippingCity:     strings.TrimSpace(input.ShippingCity),
		ShippingPostcode: strings.TrimSpace(input.ShippingPostcode),
		ShippingCountry:  strings.TrimSpace(input.ShippingCountry),
		Notes:            input.Notes,
		PlacedAt:         s.now(),
	}
	if order.ShippingCountry == "" {
		order.ShippingCountry = s.cfg.Checkout.DefaultShippingCountry
	}
	if resolution != nil && resolution.User != nil {
		id := resolution.User.ID
		order.UserID = &id
		if order.CustomerEmail == "" {
			order.CustomerEmail = resolution.User.Email
		}
	}
	return order
}

func (s *service) currency() enums.Currency {
	parsed, err := enums.ParseCurrency(strings.ToUpper(s.cfg.Checkout.DefaultCurrency))
	if err != nil {
		return enums.CurrencyRUB
	}
	return parsed
}

func validateInput(input *PlaceOrderInput) error {
	missing := []string{}
	if input.CartID == uuid.Nil {
		missing = append(missing, "cart_id")
	}
	if strings.TrimSpace(input.ShippingFullName) == "" {
		missing = append(missing, "shipping_full_name")
	}
	if strings.TrimSpace(input.ShippingAddress) == "" {
		missing = append(missing, "shipping_address")
	}
	if strings.TrimSpace(input.ShippingCity) == "" {
		missing = append(missing, "shipping_city")
	}
	if len(missing) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "missing required fields").
			WithDetails(map[string]any{"fields": missing})
	}
	if input.ShippingAmount.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "shipping amount cannot be negative")
	}
	return nil
}

func failureReason(err error) string {
	if appErr := pkgerrors.As(err); appErr != nil {
		return strings.ToLower(string(appErr.Code()))
	}
	return "internal"
}
