package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shopsterhq/shopster-backend/pkg/db/models"
	"github.com/shopsterhq/shopster-backend/pkg/pagination"
)

// ListFilters narrows an order listing.
type ListFilters struct {
	// UserID scopes the listing to one customer. Nil means no scoping,
	// which only staff callers are allowed to request.
	UserID *uuid.UUID
	Status string
}

// Repository persists orders and their snapshotted items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	// Create inserts the order together with its items in one statement
	// batch. The caller is expected to run it inside a transaction.
	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	List(ctx context.Context, params pagination.Params, filters ListFilters) ([]models.Order, error)

	// HasPurchased reports whether the user has a non-cancelled order
	// containing the product. Reviews use it to mark verified purchases.
	HasPurchased(ctx context.Context, userID, productID uuid.UUID) (bool, error)
}
