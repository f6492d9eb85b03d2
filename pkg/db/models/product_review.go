package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/shopsterhq/shopster-backend/pkg/enums"
	"github.com/shopsterhq/shopster-backend/pkg/softdelete"
)

// ProductReview is a customer review held in a moderation queue. Only
// approved reviews are publicly visible or counted in rating aggregates.
// An authenticated user may hold at most one live review per product; the
// partial unique index enforcing that lives in the migrations.
type ProductReview struct {
	ID               uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID        uuid.UUID              `gorm:"column:product_id;type:uuid;not null;index"`
	UserID           *uuid.UUID             `gorm:"column:user_id;type:uuid;index"`
	Rating           int                    `gorm:"column:rating;not null"`
	Title            string                 `gorm:"column:title;not null;default:''"`
	Body             string                 `gorm:"column:body;not null"`
	AuthorName       string                 `gorm:"column:author_name;not null;default:''"`
	VerifiedPurchase bool                   `gorm:"column:verified_purchase;not null;default:false"`
	ModerationStatus enums.ModerationStatus `gorm:"column:moderation_status;not null;default:'pending'"`
	ModerationNote   string                 `gorm:"column:moderation_note;not null;default:''"`
	ModeratedAt      *time.Time             `gorm:"column:moderated_at"`
	ModeratedByID    *uuid.UUID             `gorm:"column:moderated_by_id;type:uuid"`
	CreatedAt        time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time              `gorm:"column:updated_at;autoUpdateTime"`
	softdelete.Model

	Product *Product `gorm:"foreignKey:ProductID"`
	User    *User    `gorm:"foreignKey:UserID"`
}

// DisplayName is the name shown publicly with the review.
func (r ProductReview) DisplayName() string {
	if r.AuthorName != "" {
		return r.AuthorName
	}
	if r.User != nil {
		return r.User.FullName()
	}
	return "Anonymous"
}
