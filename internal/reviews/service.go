package reviews

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shopsterhq/shopster-backend/pkg/db"
	"github.com/shopsterhq/shopster-backend/pkg/db/models"
	"github.com/shopsterhq/shopster-backend/pkg/enums"
	pkgerrors "github.com/shopsterhq/shopster-backend/pkg/errors"
	"github.com/shopsterhq/shopster-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ProductSource provides the catalog lookups needed when submitting reviews.
type ProductSource interface {
	FindProductByID(ctx context.Context, id uuid.UUID, includeDeleted bool) (*models.Product, error)
}

// PurchaseChecker reports whether a user bought a product, which marks the
// review as a verified purchase.
type PurchaseChecker interface {
	HasPurchased(ctx context.Context, userID, productID uuid.UUID) (bool, error)
}

// Requester identifies who is acting on reviews.
type Requester struct {
	// UserID is uuid.Nil for anonymous visitors.
	UserID  uuid.UUID
	IsStaff bool
}

// SubmitInput is a new review submission.
type SubmitInput struct {
	ProductID  uuid.UUID
	Rating     int
	Title      string
	Body       string
	AuthorName string
}

// UpdateInput carries partial edits to an existing review.
type UpdateInput struct {
	Rating *int
	Title  *string
	Body   *string
}

// ModerateInput is a staff moderation decision.
type ModerateInput struct {
	Approve bool
	Note    string
}

// Service manages the review lifecycle: submission, the moderation queue,
// author edits and deletion.
type Service interface {
	Submit(ctx context.Context, requester Requester, input SubmitInput) (*models.ProductReview, error)
	List(ctx context.Context, requester Requester, productID uuid.UUID, statusFilter string, params pagination.Params) (*pagination.Page[models.ProductReview], error)
	Update(ctx context.Context, requester Requester, id uuid.UUID, input UpdateInput) (*models.ProductReview, error)
	Delete(ctx context.Context, requester Requester, id uuid.UUID) error
	Moderate(ctx context.Context, requester Requester, id uuid.UUID, input ModerateInput) (*models.ProductReview, error)
}

type service struct {
	repo      Repository
	products  ProductSource
	purchases PurchaseChecker
	tx        txRunner
	now       func() time.Time
}

// NewService builds the review service.
func NewService(repo Repository, products ProductSource, purchases PurchaseChecker, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("review repository required")
	}
	if products == nil {
		return nil, fmt.Errorf("product source required")
	}
	if purchases == nil {
		return nil, fmt.Errorf("purchase checker required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{
		repo:      repo,
		products:  products,
		purchases: purchases,
		tx:        tx,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Submit(ctx context.Context, requester Requester, input SubmitInput) (*models.ProductReview, error) {
	if input.Rating < 1 || input.Rating > 5 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rating must be between 1 and 5")
	}
	if strings.TrimSpace(input.Body) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "review body is required")
	}

	if _, err := s.products.FindProductByID(ctx, input.ProductID, false); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}

	review := &models.ProductReview{
		ProductID:        input.ProductID,
		Rating:           input.Rating,
		Title:            strings.TrimSpace(input.Title),
		Body:             input.Body,
		AuthorName:       strings.TrimSpace(input.AuthorName),
		ModerationStatus: enums.ModerationStatusPending,
	}

	if requester.UserID != uuid.Nil {
		userID := requester.UserID
		review.UserID = &userID

		purchased, err := s.purchases.HasPurchased(ctx, userID, input.ProductID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check purchase history")
		}
		review.VerifiedPurchase = purchased
	}

	created, err := s.repo.Create(ctx, review)
	if err != nil {
		if db.IsUniqueViolation(err, "uniq_product_reviews_product_user") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "you already reviewed this product")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create review")
	}
	return created, nil
}

func (s *service) List(ctx context.Context, requester Requester, productID uuid.UUID, statusFilter string, params pagination.Params) (*pagination.Page[models.ProductReview], error) {
	filters := ListFilters{ProductID: productID}

	if requester.IsStaff {
		if statusFilter != "" {
			status, err := enums.ParseModerationStatus(statusFilter)
			if err != nil {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown moderation status").
					WithDetails(map[string]any{"status": statusFilter})
			}
			filters.Statuses = []enums.ModerationStatus{status}
		}
	} else {
		// The public queue only shows approved reviews. Authors see their
		// own submissions in any state.
		filters.Statuses = []enums.ModerationStatus{enums.ModerationStatusApproved}
		if requester.UserID != uuid.Nil {
			owner := requester.UserID
			filters.OwnerID = &owner
		}
	}

	rows, err := s.repo.List(ctx, params, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list reviews")
	}

	page := pagination.BuildPage(rows, params.Limit, func(r models.ProductReview) pagination.Cursor {
		return pagination.Cursor{CreatedAt: r.CreatedAt, ID: r.ID}
	})
	return &page, nil
}

func (s *service) Update(ctx context.Context, requester Requester, id uuid.UUID, input UpdateInput) (*models.ProductReview, error) {
	updates := map[string]any{}
	if input.Rating != nil {
		if *input.Rating < 1 || *input.Rating > 5 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "rating must be between 1 and 5")
		}
		updates["rating"] = *input.Rating
	}
	if input.Title != nil {
		updates["title"] = strings.TrimSpace(*input.Title)
	}
	if input.Body != nil {
		if strings.TrimSpace(*input.Body) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "review body cannot be empty")
		}
		updates["body"] = *input.Body
	}
	if len(updates) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no fields to update")
	}

	// Edits go back into the moderation queue.
	updates["moderation_status"] = enums.ModerationStatusPending
	updates["moderation_note"] = ""
	updates["moderated_at"] = nil
	updates["moderated_by_id"] = nil

	var updated *models.ProductReview
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		review, err := s.loadOwned(ctx, repo, requester, id)
		if err != nil {
			return err
		}
		if err := repo.Update(ctx, review.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update review")
		}
		updated, err = repo.FindByID(ctx, review.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload review")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) Delete(ctx context.Context, requester Requester, id uuid.UUID) error {
	review, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "review not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load review")
	}
	if !requester.IsStaff && !isAuthor(review, requester) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "review not found")
	}
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete review")
	}
	return nil
}

func (s *service) Moderate(ctx context.Context, requester Requester, id uuid.UUID, input ModerateInput) (*models.ProductReview, error) {
	if !requester.IsStaff {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "moderation requires staff access")
	}

	status := enums.ModerationStatusRejected
	if input.Approve {
		status = enums.ModerationStatusApproved
	}

	var moderated *models.ProductReview
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		review, err := repo.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "review not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load review")
		}

		moderator := requester.UserID
		updates := map[string]any{
			"moderation_status": status,
			"moderation_note":   strings.TrimSpace(input.Note),
			"moderated_at":      s.now(),
			"moderated_by_id":   moderator,
		}
		if err := repo.Update(ctx, review.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "moderate review")
		}
		moderated, err = repo.FindByID(ctx, review.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload review")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return moderated, nil
}

// loadOwned fetches the review and enforces that the requester wrote it.
// Non-authors get not-found rather than forbidden so review IDs stay opaque.
func (s *service) loadOwned(ctx context.Context, repo Repository, requester Requester, id uuid.UUID) (*models.ProductReview, error) {
	review, err := repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "review not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load review")
	}
	if !isAuthor(review, requester) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "review not found")
	}
	return review, nil
}

func isAuthor(review *models.ProductReview, requester Requester) bool {
	return review.UserID != nil && requester.UserID != uuid.Nil && *review.UserID == requester.UserID
}
