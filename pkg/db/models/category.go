package models

import (
	"time"

	"github.com/google/uuid"
)

type Category struct {
	ID              uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name            string    `gorm:"column:name;not null;uniqueIndex"`
	Slug            string    `gorm:"column:slug;not null;uniqueIndex"`
	Description     string    `gorm:"column:description;not null;default:''"`
	MetaTitle       string    `gorm:"column:meta_title;not null;default:''"`
	MetaDescription string    `gorm:"column:meta_description;not null;default:''"`
	IsActive        bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time `gorm:"column:updated_at;autoUpdateTime"`

	Products []Product `gorm:"foreignKey:CategoryID"`
}
