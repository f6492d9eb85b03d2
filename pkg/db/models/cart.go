package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shopsterhq/shopster-backend/pkg/softdelete"
)

// Cart is a pre-checkout basket. Carts are tombstoned, not erased, when the
// checkout that consumed them commits, so a placed order's source cart stays
// auditable.
type Cart struct {
	ID        uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    *uuid.UUID `gorm:"column:user_id;type:uuid;index"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime"`
	softdelete.Model

	Items []CartItem `gorm:"foreignKey:CartID"`
}

// Subtotal sums quantity times current product price over the loaded items.
// Items whose product association is not loaded contribute nothing.
func (c Cart) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		if item.Product == nil {
			continue
		}
		total = total.Add(item.Product.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}

// TotalQuantity counts units across all loaded items.
func (c Cart) TotalQuantity() int {
	n := 0
	for _, item := range c.Items {
		n += item.Quantity
	}
	return n
}
