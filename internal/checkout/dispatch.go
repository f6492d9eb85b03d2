package checkout

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"go.uber.org/multierr"

	"github.com/shopsterhq/shopster-backend/pkg/auth"
	"github.com/shopsterhq/shopster-backend/pkg/mailer"
)

const (
	orderPlacedEventType   = "order.placed"
	notifyTimeout          = 10 * time.Second
	channelConfirmation    = "email_confirmation"
	channelActivation      = "email_activation"
	channelOrderEvent      = "pubsub_order_placed"
	activationTokenParam   = "token"
	dispatchFailureMessage = "post-commit notifications failed"
)

// publisher matches the slice of *pubsub.Publisher the dispatcher uses.
type publisher interface {
	Publish(ctx context.Context, msg *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(ctx context.Context) (string, error)
}

type gcpPublisher struct {
	pub *gcppubsub.Publisher
}

// NewGCPPublisher adapts a concrete Pub/Sub publisher for the engine. A nil
// argument yields a nil publisher, which disables event emission.
func NewGCPPublisher(pub *gcppubsub.Publisher) publisher {
	if pub == nil {
		return nil
	}
	return &gcpPublisher{pub: pub}
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return p.pub.Publish(ctx, msg)
}

// orderPlacedEvent is the payload published for every committed order.
type orderPlacedEvent struct {
	EventType  string    `json:"event_type"`
	OrderID    string    `json:"order_id"`
	UserID     string    `json:"user_id,omitempty"`
	ItemCount  int       `json:"item_count"`
	Subtotal   string    `json:"subtotal"`
	Shipping   string    `json:"shipping"`
	Total      string    `json:"total"`
	Currency   string    `json:"currency"`
	GuestOrder bool      `json:"guest_order"`
	PlacedAt   time.Time `json:"placed_at"`
}

// dispatchNotifications makes one attempt per channel after the order has
// committed. Every failure is logged and counted; none propagate.
func (s *service) dispatchNotifications(ctx context.Context, placed *PlacedOrder) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	var errs error
	if err := s.sendConfirmation(ctx, placed); err != nil {
		s.metrics.IncNotifyFailure(channelConfirmation)
		errs = multierr.Append(errs, fmt.Errorf("confirmation email: %w", err))
	}
	if placed.RequiresAccountActivation {
		if err := s.sendActivation(ctx, placed); err != nil {
			s.metrics.IncNotifyFailure(channelActivation)
			errs = multierr.Append(errs, fmt.Errorf("activation email: %w", err))
		}
	}
	if err := s.publishOrderPlaced(ctx, placed); err != nil {
		s.metrics.IncNotifyFailure(channelOrderEvent)
		errs = multierr.Append(errs, fmt.Errorf("order event: %w", err))
	}

	if errs != nil {
		s.logg.Warn(s.logg.WithOrderID(ctx, placed.Order.ID.String()), dispatchFailureMessage+": "+errs.Error())
	}
}

func (s *service) sendConfirmation(ctx context.Context, placed *PlacedOrder) error {
	order := placed.Order
	if order.CustomerEmail == "" {
		return nil
	}

	lines := make([]mailer.OrderLine, 0, len(order.Items))
	for _, item := range order.Items {
		lines = append(lines, mailer.OrderLine{
			Name:      item.ProductName,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			LineTotal: item.LineTotal,
		})
	}

	msg := mailer.BuildOrderConfirmation(mailer.OrderSummary{
		OrderID:       order.ID.String(),
		CustomerName:  order.ShippingFullName,
		CustomerEmail: order.CustomerEmail,
		Currency:      order.Currency.String(),
		Subtotal:      order.SubtotalAmount,
		Shipping:      order.ShippingAmount,
		Total:         order.TotalAmount,
		Lines:         lines,
	})
	return s.mail.Send(ctx, msg)
}

func (s *service) sendActivation(ctx context.Context, placed *PlacedOrder) error {
	if placed.Order.UserID == nil {
		return nil
	}

	token, err := auth.MintActivationToken(s.cfg.JWT, s.now(), *placed.Order.UserID, placed.ActivationEmail)
	if err != nil {
		return fmt.Errorf("mint activation token: %w", err)
	}

	activationURL, err := url.Parse(s.cfg.Frontend.AccountActivationURL)
	if err != nil {
		return fmt.Errorf("parse activation url: %w", err)
	}
	q := activationURL.Query()
	q.Set(activationTokenParam, token)
	activationURL.RawQuery = q.Encode()

	msg := mailer.BuildAccountActivation(placed.ActivationEmail, placed.Order.ShippingFullName, activationURL.String())
	return s.mail.Send(ctx, msg)
}

func (s *service) publishOrderPlaced(ctx context.Context, placed *PlacedOrder) error {
	if s.pub == nil {
		return nil
	}
	order := placed.Order

	event := orderPlacedEvent{
		EventType:  orderPlacedEventType,
		OrderID:    order.ID.String(),
		ItemCount:  len(order.Items),
		Subtotal:   order.SubtotalAmount.StringFixed(2),
		Shipping:   order.ShippingAmount.StringFixed(2),
		Total:      order.TotalAmount.StringFixed(2),
		Currency:   order.Currency.String(),
		GuestOrder: order.UserID == nil,
		PlacedAt:   order.PlacedAt,
	}
	if order.UserID != nil {
		event.UserID = order.UserID.String()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode order event: %w", err)
	}

	result := s.pub.Publish(ctx, &gcppubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"event_type": orderPlacedEventType,
			"order_id":   event.OrderID,
		},
	})
	if result == nil {
		return fmt.Errorf("publisher returned nil result")
	}
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish order event: %w", err)
	}
	return nil
}
