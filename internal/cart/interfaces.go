package cart

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shopsterhq/shopster-backend/pkg/db/models"
)

// Repository defines persistence operations for carts and their items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, cart *models.Cart) (*models.Cart, error)
	Find(ctx context.Context, id uuid.UUID) (*models.Cart, error)
	// FindForUpdate loads the live cart row under a FOR UPDATE lock so only
	// one checkout can consume it. Items and their products are loaded after
	// the lock is taken.
	FindForUpdate(ctx context.Context, id uuid.UUID) (*models.Cart, error)
	Touch(ctx context.Context, id uuid.UUID) error
	SoftDelete(ctx context.Context, id uuid.UUID) error

	FindItem(ctx context.Context, cartID, itemID uuid.UUID) (*models.CartItem, error)
	FindItemByProduct(ctx context.Context, cartID, productID uuid.UUID) (*models.CartItem, error)
	CreateItem(ctx context.Context, item *models.CartItem) (*models.CartItem, error)
	UpdateItemQuantity(ctx context.Context, itemID uuid.UUID, quantity int) error
	SoftDeleteItem(ctx context.Context, itemID uuid.UUID) error
	SoftDeleteItems(ctx context.Context, cartID uuid.UUID) error
}
