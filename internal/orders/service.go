package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shopsterhq/shopster-backend/pkg/db/models"
	"github.com/shopsterhq/shopster-backend/pkg/enums"
	pkgerrors "github.com/shopsterhq/shopster-backend/pkg/errors"
	"github.com/shopsterhq/shopster-backend/pkg/pagination"
)

// Requester identifies who is asking for order data.
type Requester struct {
	UserID  uuid.UUID
	IsStaff bool
}

// Service exposes order reads. Orders are only ever created by checkout.
type Service interface {
	// List returns the requester's own orders, newest first. Staff may
	// list all orders and filter by customer or status.
	List(ctx context.Context, requester Requester, params pagination.Params, filters ListFilters) (*pagination.Page[models.Order], error)
	// Get returns one order. Customers can only read their own.
	Get(ctx context.Context, requester Requester, id uuid.UUID) (*models.Order, error)
}

type service struct {
	repo Repository
}

// NewService builds the order query service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("order repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) List(ctx context.Context, requester Requester, params pagination.Params, filters ListFilters) (*pagination.Page[models.Order], error) {
	if !requester.IsStaff {
		if requester.UserID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "sign in to list orders")
		}
		// Customers always get their own scope, whatever was requested.
		own := requester.UserID
		filters.UserID = &own
	}

	if filters.Status != "" {
		if _, err := enums.ParseOrderStatus(filters.Status); err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown order status").
				WithDetails(map[string]any{"status": filters.Status})
		}
	}

	rows, err := s.repo.List(ctx, params, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}

	page := pagination.BuildPage(rows, params.Limit, func(o models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	return &page, nil
}

func (s *service) Get(ctx context.Context, requester Requester, id uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}

	if !requester.IsStaff {
		// Guest orders have no owner; hide them from everyone but staff
		// rather than leaking another customer's order.
		if order.UserID == nil || requester.UserID == uuid.Nil || *order.UserID != requester.UserID {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
	}
	return order, nil
}
