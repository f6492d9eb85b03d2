package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shopsterhq/shopster-backend/pkg/enums"
	"github.com/shopsterhq/shopster-backend/pkg/softdelete"
)

// Order is a placed checkout. Monetary columns and item snapshots are frozen
// at placement time; later catalog edits never change an order.
type Order struct {
	ID               uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID           *uuid.UUID          `gorm:"column:user_id;type:uuid;index"`
	CartID           *uuid.UUID          `gorm:"column:cart_id;type:uuid;index"`
	Status           enums.OrderStatus   `gorm:"column:status;not null;default:'pending'"`
	PaymentStatus    enums.PaymentStatus `gorm:"column:payment_status;not null;default:'pending'"`
	SubtotalAmount   decimal.Decimal     `gorm:"column:subtotal_amount;type:numeric(10,2);not null"`
	ShippingAmount   decimal.Decimal     `gorm:"column:shipping_amount;type:numeric(10,2);not null"`
	TotalAmount      decimal.Decimal     `gorm:"column:total_amount;type:numeric(10,2);not null"`
	Currency         enums.Currency      `gorm:"column:currency;not null;default:'RUB'"`
	CustomerEmail    string              `gorm:"column:customer_email;not null"`
	CustomerPhone    string              `gorm:"column:customer_phone;not null;default:''"`
	ShippingFullName string              `gorm:"column:shipping_full_name;not null;default:''"`
	ShippingAddress  string              `gorm:"column:shipping_address;not null;default:''"`
	ShippingCity     string              `gorm:"column:shipping_city;not null;default:''"`
	ShippingPostcode string              `gorm:"column:shipping_postcode;not null;default:''"`
	ShippingCountry  string              `gorm:"column:shipping_country;not null;default:''"`
	Notes            string              `gorm:"column:notes;not null;default:''"`
	PlacedAt         time.Time           `gorm:"column:placed_at;not null"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time           `gorm:"column:updated_at;autoUpdateTime"`
	softdelete.Model

	Items []OrderItem `gorm:"foreignKey:OrderID"`
}
