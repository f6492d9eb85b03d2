package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shopsterhq/shopster-backend/pkg/db"
	"github.com/shopsterhq/shopster-backend/pkg/db/models"
	pkgerrors "github.com/shopsterhq/shopster-backend/pkg/errors"
)

// MaxQuantityPerLine caps a single cart line.
const MaxQuantityPerLine = 99

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ProductSource provides the catalog lookups needed when mutating carts.
type ProductSource interface {
	FindProductByID(ctx context.Context, id uuid.UUID, includeDeleted bool) (*models.Product, error)
}

// Service manages pre-checkout baskets.
type Service interface {
	Create(ctx context.Context, userID *uuid.UUID) (*models.Cart, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Cart, error)
	Destroy(ctx context.Context, id uuid.UUID) error
	AddItem(ctx context.Context, cartID, productID uuid.UUID, quantity int) (*models.Cart, error)
	UpdateItem(ctx context.Context, cartID, itemID uuid.UUID, quantity int) (*models.Cart, error)
	RemoveItem(ctx context.Context, cartID, itemID uuid.UUID) (*models.Cart, error)
}

type service struct {
	repo     Repository
	products ProductSource
	tx       txRunner
}

// NewService builds the cart service.
func NewService(repo Repository, products ProductSource, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if products == nil {
		return nil, fmt.Errorf("product source required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, products: products, tx: tx}, nil
}

func (s *service) Create(ctx context.Context, userID *uuid.UUID) (*models.Cart, error) {
	cart := &models.Cart{UserID: userID, Items: []models.CartItem{}}
	created, err := s.repo.Create(ctx, cart)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart")
	}
	return created, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Cart, error) {
	cart, err := s.repo.Find(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return cart, nil
}

func (s *service) Destroy(ctx context.Context, id uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.Find(ctx, id); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}
		if err := repo.SoftDeleteItems(ctx, id); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart items")
		}
		if err := repo.SoftDelete(ctx, id); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart")
		}
		return nil
	})
}

func (s *service) AddItem(ctx context.Context, cartID, productID uuid.UUID, quantity int) (*models.Cart, error) {
	if err := validateQuantity(quantity); err != nil {
		return nil, err
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		if _, err := repo.Find(ctx, cartID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}

		product, err := s.products.FindProductByID(ctx, productID, false)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeValidation, "product does not exist")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
		}
		if !product.IsActive {
			return pkgerrors.New(pkgerrors.CodeValidation, "product is not available")
		}

		existing, err := repo.FindItemByProduct(ctx, cartID, productID)
		switch {
		case err == nil:
			newQty := existing.Quantity + quantity
			if newQty > MaxQuantityPerLine {
				return pkgerrors.New(pkgerrors.CodeValidation, "quantity exceeds per-line limit").
					WithDetails(map[string]any{"max": MaxQuantityPerLine})
			}
			if err := repo.UpdateItemQuantity(ctx, existing.ID, newQty); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update item quantity")
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			_, err := repo.CreateItem(ctx, &models.CartItem{
				CartID:    cartID,
				ProductID: productID,
				Quantity:  quantity,
			})
			if err != nil {
				// A concurrent add for the same product hit the partial
				// unique index first; fold the quantities together.
				if db.IsUniqueViolation(err, "uniq_cart_items_cart_product") {
					winner, findErr := repo.FindItemByProduct(ctx, cartID, productID)
					if findErr != nil {
						return pkgerrors.Wrap(pkgerrors.CodeDependency, findErr, "re-fetch cart item after conflict")
					}
					return s.bumpQuantity(ctx, repo, winner, quantity)
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart item")
			}
		default:
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "look up cart item")
		}

		return repo.Touch(ctx, cartID)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, cartID)
}

func (s *service) bumpQuantity(ctx context.Context, repo Repository, item *models.CartItem, add int) error {
	newQty := item.Quantity + add
	if newQty > MaxQuantityPerLine {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity exceeds per-line limit").
			WithDetails(map[string]any{"max": MaxQuantityPerLine})
	}
	if err := repo.UpdateItemQuantity(ctx, item.ID, newQty); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update item quantity")
	}
	return nil
}

func (s *service) UpdateItem(ctx context.Context, cartID, itemID uuid.UUID, quantity int) (*models.Cart, error) {
	if quantity < 0 || quantity > MaxQuantityPerLine {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity out of range").
			WithDetails(map[string]any{"max": MaxQuantityPerLine})
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		item, err := repo.FindItem(ctx, cartID, itemID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
		}

		// Zero quantity removes the line.
		if quantity == 0 {
			if err := repo.SoftDeleteItem(ctx, item.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove cart item")
			}
		} else if err := repo.UpdateItemQuantity(ctx, item.ID, quantity); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update item quantity")
		}

		return repo.Touch(ctx, cartID)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, cartID)
}

func (s *service) RemoveItem(ctx context.Context, cartID, itemID uuid.UUID) (*models.Cart, error) {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		item, err := repo.FindItem(ctx, cartID, itemID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
		}
		if err := repo.SoftDeleteItem(ctx, item.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove cart item")
		}
		return repo.Touch(ctx, cartID)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, cartID)
}

func validateQuantity(quantity int) error {
	if quantity <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if quantity > MaxQuantityPerLine {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity exceeds per-line limit").
			WithDetails(map[string]any{"max": MaxQuantityPerLine})
	}
	return nil
}
