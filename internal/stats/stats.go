// Package stats serves the staff dashboard aggregates.
package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/shopsterhq/shopster-backend/pkg/db/models"
	"github.com/shopsterhq/shopster-backend/pkg/enums"
	pkgerrors "github.com/shopsterhq/shopster-backend/pkg/errors"
)

const topProductLimit = 5

// Range bounds the reporting window. Zero values mean unbounded.
type Range struct {
	From time.Time
	To   time.Time
}

// StatusCount is the number of orders in one status.
type StatusCount struct {
	Status enums.OrderStatus `json:"status"`
	Count  int64             `json:"count"`
}

// RevenueByCurrency is gross revenue (order totals) per currency.
type RevenueByCurrency struct {
	Currency enums.Currency  `json:"currency"`
	Orders   int64           `json:"orders"`
	Revenue  decimal.Decimal `json:"revenue"`
}

// TopProduct ranks a product by units sold.
type TopProduct struct {
	ProductID   uuid.UUID `json:"product_id"`
	ProductName string    `json:"product_name"`
	Quantity    int64     `json:"quantity"`
}

// Overview is the staff dashboard payload.
type Overview struct {
	OrdersByStatus []StatusCount       `json:"orders_by_status"`
	Revenue        []RevenueByCurrency `json:"revenue"`
	TopProducts    []TopProduct        `json:"top_products"`
	PendingReviews int64               `json:"pending_reviews"`
}

// Repository runs the dashboard aggregate queries.
type Repository interface {
	OrdersByStatus(ctx context.Context, window Range) ([]StatusCount, error)
	Revenue(ctx context.Context, window Range) ([]RevenueByCurrency, error)
	TopProducts(ctx context.Context, window Range, limit int) ([]TopProduct, error)
	PendingReviewCount(ctx context.Context) (int64, error)
}

// Service assembles the staff overview.
type Service interface {
	Overview(ctx context.Context, window Range) (*Overview, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a stats repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) ordersInWindow(ctx context.Context, window Range) *gorm.DB {
	q := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("orders.deleted_at IS NULL")
	if !window.From.IsZero() {
		q = q.Where("orders.placed_at >= ?", window.From)
	}
	if !window.To.IsZero() {
		q = q.Where("orders.placed_at < ?", window.To)
	}
	return q
}

func (r *repository) OrdersByStatus(ctx context.Context, window Range) ([]StatusCount, error) {
	var rows []StatusCount
	err := r.ordersInWindow(ctx, window).
		Select("orders.status AS status, count(*) AS count").
		Group("orders.status").
		Order("count DESC").
		Scan(&rows).Error
	return rows, err
}

func (r *repository) Revenue(ctx context.Context, window Range) ([]RevenueByCurrency, error) {
	var rows []RevenueByCurrency
	err := r.ordersInWindow(ctx, window).
		Where("orders.status <> ?", enums.OrderStatusCancelled).
		Select("orders.currency AS currency, count(*) AS orders, coalesce(sum(orders.total_amount), 0) AS revenue").
		Group("orders.currency").
		Order("revenue DESC").
		Scan(&rows).Error
	return rows, err
}

func (r *repository) TopProducts(ctx context.Context, window Range, limit int) ([]TopProduct, error) {
	var rows []TopProduct
	err := r.ordersInWindow(ctx, window).
		Joins("JOIN order_items ON order_items.order_id = orders.id").
		Where("orders.status <> ?", enums.OrderStatusCancelled).
		Select("order_items.product_id AS product_id, order_items.product_name AS product_name, sum(order_items.quantity) AS quantity").
		Group("order_items.product_id, order_items.product_name").
		Order("quantity DESC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

func (r *repository) PendingReviewCount(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ProductReview{}).
		Where("deleted_at IS NULL").
		Where("moderation_status = ?", enums.ModerationStatusPending).
		Count(&count).Error
	return count, err
}

type service struct {
	repo Repository
}

// NewService builds the stats service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("stats repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Overview(ctx context.Context, window Range) (*Overview, error) {
	if !window.From.IsZero() && !window.To.IsZero() && window.To.Before(window.From) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "date range is inverted")
	}

	statuses, err := s.repo.OrdersByStatus(ctx, window)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count orders by status")
	}
	revenue, err := s.repo.Revenue(ctx, window)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum revenue")
	}
	top, err := s.repo.TopProducts(ctx, window, topProductLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rank products")
	}
	pending, err := s.repo.PendingReviewCount(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count pending reviews")
	}

	if statuses == nil {
		statuses = []StatusCount{}
	}
	if revenue == nil {
		revenue = []RevenueByCurrency{}
	}
	if top == nil {
		top = []TopProduct{}
	}

	return &Overview{
		OrdersByStatus: statuses,
		Revenue:        revenue,
		TopProducts:    top,
		PendingReviews: pending,
	}, nil
}
