package reviews

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shopsterhq/shopster-backend/pkg/db/models"
	"github.com/shopsterhq/shopster-backend/pkg/pagination"
	"github.com/shopsterhq/shopster-backend/pkg/softdelete"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a review repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, review *models.ProductReview) (*models.ProductReview, error) {
	if err := r.db.WithContext(ctx).Create(review).Error; err != nil {
		return nil, err
	}
	return review, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.ProductReview, error) {
	var review models.ProductReview
	err := r.db.WithContext(ctx).
		Scopes(softdelete.Live).
		Preload("User").
		Where("id = ?", id).
		First(&review).Error
	if err != nil {
		return nil, err
	}
	return &review, nil
}

func (r *repository) List(ctx context.Context, params pagination.Params, filters ListFilters) ([]models.ProductReview, error) {
	q := r.db.WithContext(ctx).
		Model(&models.ProductReview{}).
		Scopes(softdelete.Live).
		Preload("User").
		Order("created_at DESC, id DESC")

	if filters.ProductID != uuid.Nil {
		q = q.Where("product_id = ?", filters.ProductID)
	}
	if len(filters.Statuses) > 0 {
		if filters.OwnerID != nil {
			q = q.Where("moderation_status IN ? OR user_id = ?", filters.Statuses, *filters.OwnerID)
		} else {
			q = q.Where("moderation_status IN ?", filters.Statuses)
		}
	}

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		q = q.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var rows []models.ProductReview
	if err := q.Limit(pagination.LimitWithBuffer(params.Limit)).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.ProductReview{}).
		Scopes(softdelete.Live).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	return softdelete.SoftDelete(ctx, r.db, &models.ProductReview{ID: id})
}
