package cart

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/shopsterhq/shopster-backend/pkg/db/models"
	"github.com/shopsterhq/shopster-backend/pkg/softdelete"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a cart repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, cart *models.Cart) (*models.Cart, error) {
	if err := r.db.WithContext(ctx).Create(cart).Error; err != nil {
		return nil, err
	}
	return cart, nil
}

func itemsWithProducts(db *gorm.DB) *gorm.DB {
	return db.Scopes(softdelete.Live).Order("created_at ASC")
}

func (r *repository) Find(ctx context.Context, id uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	err := r.db.WithContext(ctx).
		Scopes(softdelete.Live).
		Preload("Items", itemsWithProducts).
		Preload("Items.Product").
		Where("id = ?", id).
		First(&cart).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

func (r *repository) FindForUpdate(ctx context.Context, id uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Scopes(softdelete.Live).
		Where("id = ?", id).
		First(&cart).Error
	if err != nil {
		return nil, err
	}

	// Items are loaded after the cart lock is held.
	err = r.db.WithContext(ctx).
		Scopes(softdelete.Live).
		Preload("Product").
		Where("cart_id = ?", id).
		Order("created_at ASC").
		Find(&cart.Items).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

func (r *repository) Touch(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ?", id).
		Update("updated_at", time.Now().UTC()).Error
}

func (r *repository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	return softdelete.SoftDelete(ctx, r.db, &models.Cart{ID: id})
}

func (r *repository) FindItem(ctx context.Context, cartID, itemID uuid.UUID) (*models.CartItem, error) {
	var item models.CartItem
	err := r.db.WithContext(ctx).
		Scopes(softdelete.Live).
		Preload("Product").
		Where("id = ? AND cart_id = ?", itemID, cartID).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) FindItemByProduct(ctx context.Context, cartID, productID uuid.UUID) (*models.CartItem, error) {
	var item models.CartItem
	err := r.db.WithContext(ctx).
		Scopes(softdelete.Live).
		Where("cart_id = ? AND product_id = ?", cartID, productID).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) CreateItem(ctx context.Context, item *models.CartItem) (*models.CartItem, error) {
	if err := r.db.WithContext(ctx).Create(item).Error; err != nil {
		return nil, err
	}
	return item, nil
}

func (r *repository) UpdateItemQuantity(ctx context.Context, itemID uuid.UUID, quantity int) error {
	return r.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Scopes(softdelete.Live).
		Where("id = ?", itemID).
		Update("quantity", quantity).Error
}

func (r *repository) SoftDeleteItem(ctx context.Context, itemID uuid.UUID) error {
	return softdelete.SoftDelete(ctx, r.db, &models.CartItem{ID: itemID})
}

// SoftDeleteItems tombstones every live item in the cart. Uses the same
// application clock as softdelete.SoftDelete so a consumed cart and its items
// carry matching deletion timestamps.
func (r *repository) SoftDeleteItems(ctx context.Context, cartID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Where("cart_id = ?", cartID).
		Where("deleted_at IS NULL").
		UpdateColumn("deleted_at", time.Now().UTC()).Error
}
