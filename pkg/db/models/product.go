package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shopsterhq/shopster-backend/pkg/enums"
	"github.com/shopsterhq/shopster-backend/pkg/softdelete"
)

// Product is a sellable catalog entry. Prices are stored as numeric(10,2);
// all arithmetic happens on decimal.Decimal, never on floats.
type Product struct {
	ID               uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CategoryID       uuid.UUID       `gorm:"column:category_id;type:uuid;not null;index"`
	Brand            string          `gorm:"column:brand;not null;default:'';index"`
	Name             string          `gorm:"column:name;not null"`
	Slug             string          `gorm:"column:slug;not null;uniqueIndex"`
	SKU              string          `gorm:"column:sku;not null;uniqueIndex"`
	ShortDescription string          `gorm:"column:short_description;not null;default:''"`
	Description      string          `gorm:"column:description;not null;default:''"`
	MetaTitle        string          `gorm:"column:meta_title;not null;default:''"`
	MetaDescription  string          `gorm:"column:meta_description;not null;default:''"`
	MetaKeywords     string          `gorm:"column:meta_keywords;not null;default:''"`
	Price            decimal.Decimal `gorm:"column:price;type:numeric(10,2);not null"`
	Currency         enums.Currency  `gorm:"column:currency;not null;default:'RUB'"`
	Stock            int             `gorm:"column:stock;not null;default:0"`
	IsActive         bool            `gorm:"column:is_active;not null;default:true"`
	CreatedAt        time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time       `gorm:"column:updated_at;autoUpdateTime"`
	softdelete.Model

	Category *Category      `gorm:"foreignKey:CategoryID"`
	Images   []ProductImage `gorm:"foreignKey:ProductID"`
}

// MainImage returns the image flagged as primary, or the first one when none
// carries the flag.
func (p Product) MainImage() *ProductImage {
	for i := range p.Images {
		if p.Images[i].IsMain {
			return &p.Images[i]
		}
	}
	if len(p.Images) > 0 {
		return &p.Images[0]
	}
	return nil
}

// InStock reports whether the product can currently be added to a cart.
func (p Product) InStock() bool {
	return p.Stock > 0
}
