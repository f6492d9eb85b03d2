package reviews

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shopsterhq/shopster-backend/pkg/db/models"
	"github.com/shopsterhq/shopster-backend/pkg/enums"
	"github.com/shopsterhq/shopster-backend/pkg/pagination"
)

// ListFilters narrows a review listing.
type ListFilters struct {
	ProductID uuid.UUID
	// Statuses restricts which moderation states are visible. Empty means
	// no restriction (staff only).
	Statuses []enums.ModerationStatus
	// OwnerID additionally includes this user's own reviews regardless of
	// moderation state.
	OwnerID *uuid.UUID
}

// Repository persists product reviews.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, review *models.ProductReview) (*models.ProductReview, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.ProductReview, error)
	List(ctx context.Context, params pagination.Params, filters ListFilters) ([]models.ProductReview, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
}
