package controllers

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shopsterhq/shopster-backend/internal/catalog"
	"github.com/shopsterhq/shopster-backend/internal/stats"
	"github.com/shopsterhq/shopster-backend/pkg/db/models"
	"github.com/shopsterhq/shopster-backend/pkg/enums"
)

// Response shapes returned to storefront clients. Models carry no JSON tags,
// so every handler maps through these instead of serializing rows directly.

// money renders a monetary amount with exactly two fraction digits, as stored
// in the numeric(10,2) columns. Raw decimal marshalling drops trailing zeros.
func money(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}

type categoryResponse struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	Slug            string    `json:"slug"`
	Description     string    `json:"description"`
	MetaTitle       string    `json:"meta_title"`
	MetaDescription string    `json:"meta_description"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func newCategoryResponse(category models.Category) categoryResponse {
	return categoryResponse{
		ID:              category.ID,
		Name:            category.Name,
		Slug:            category.Slug,
		Description:     category.Description,
		MetaTitle:       category.MetaTitle,
		MetaDescription: category.MetaDescription,
		IsActive:        category.IsActive,
		CreatedAt:       category.CreatedAt,
		UpdatedAt:       category.UpdatedAt,
	}
}

func newCategoryListResponse(categories []models.Category) []categoryResponse {
	out := make([]categoryResponse, len(categories))
	for i, category := range categories {
		out[i] = newCategoryResponse(category)
	}
	return out
}

type productImageResponse struct {
	ID        uuid.UUID `json:"id"`
	URL       string    `json:"url"`
	AltText   string    `json:"alt_text"`
	IsMain    bool      `json:"is_main"`
	SortOrder int       `json:"sort_order"`
}

type productResponse struct {
	ID               uuid.UUID                `json:"id"`
	CategoryID       uuid.UUID                `json:"category_id"`
	Category         *categoryResponse        `json:"category,omitempty"`
	Brand            string                   `json:"brand"`
	Name             string                   `json:"name"`
	Slug             string                   `json:"slug"`
	SKU              string                   `json:"sku"`
	ShortDescription string                   `json:"short_description"`
	Description      string                   `json:"description"`
	MetaTitle        string                   `json:"meta_title"`
	MetaDescription  string                   `json:"meta_description"`
	MetaKeywords     string                   `json:"meta_keywords"`
	Price            string                   `json:"price"`
	Currency         enums.Currency           `json:"currency"`
	Stock            int                      `json:"stock"`
	InStock          bool                     `json:"in_stock"`
	IsActive         bool                     `json:"is_active"`
	Images           []productImageResponse   `json:"images"`
	Rating           *catalog.ReviewAggregate `json:"rating,omitempty"`
	CreatedAt        time.Time                `json:"created_at"`
	UpdatedAt        time.Time                `json:"updated_at"`
}

func newProductResponse(product models.Product) productResponse {
	images := make([]productImageResponse, len(product.Images))
	for i, image := range product.Images {
		images[i] = productImageResponse{
			ID:        image.ID,
			URL:       image.URL,
			AltText:   image.AltText,
			IsMain:    image.IsMain,
			SortOrder: image.SortOrder,
		}
	}
	resp := productResponse{
		ID:               product.ID,
		CategoryID:       product.CategoryID,
		Brand:            product.Brand,
		Name:             product.Name,
		Slug:             product.Slug,
		SKU:              product.SKU,
		ShortDescription: product.ShortDescription,
		Description:      product.Description,
		MetaTitle:        product.MetaTitle,
		MetaDescription:  product.MetaDescription,
		MetaKeywords:     product.MetaKeywords,
		Price:            money(product.Price),
		Currency:         product.Currency,
		Stock:            product.Stock,
		InStock:          product.InStock(),
		IsActive:         product.IsActive,
		Images:           images,
		CreatedAt:        product.CreatedAt,
		UpdatedAt:        product.UpdatedAt,
	}
	if product.Category != nil {
		category := newCategoryResponse(*product.Category)
		resp.Category = &category
	}
	return resp
}

type facetsResponse struct {
	Brands     []catalog.BrandFacet    `json:"brands"`
	Categories []catalog.CategoryFacet `json:"categories"`
	PriceMin   string                  `json:"price_min"`
	PriceMax   string                  `json:"price_max"`
}

func newFacetsResponse(facets *catalog.Facets) *facetsResponse {
	if facets == nil {
		return nil
	}
	return &facetsResponse{
		Brands:     facets.Brands,
		Categories: facets.Categories,
		PriceMin:   money(facets.PriceMin),
		PriceMax:   money(facets.PriceMax),
	}
}

type productListResponse struct {
	Items      []productResponse `json:"items"`
	NextCursor string            `json:"next_cursor,omitempty"`
	Facets     *facetsResponse   `json:"facets,omitempty"`
}

func newProductListResponse(list *catalog.ProductList) productListResponse {
	items := make([]productResponse, len(list.Page.Items))
	for i, product := range list.Page.Items {
		items[i] = newProductResponse(product)
	}
	return productListResponse{
		Items:      items,
		NextCursor: list.Page.NextCursor,
		Facets:     newFacetsResponse(list.Facets),
	}
}

type cartItemResponse struct {
	ID        uuid.UUID        `json:"id"`
	ProductID uuid.UUID        `json:"product_id"`
	Quantity  int              `json:"quantity"`
	LineTotal string           `json:"line_total"`
	Product   *productResponse `json:"product,omitempty"`
}

type cartResponse struct {
	ID            uuid.UUID          `json:"id"`
	UserID        *uuid.UUID         `json:"user_id,omitempty"`
	Items         []cartItemResponse `json:"items"`
	Subtotal      string             `json:"subtotal"`
	TotalQuantity int                `json:"total_quantity"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

func newCartResponse(cart *models.Cart) cartResponse {
	items := make([]cartItemResponse, len(cart.Items))
	for i, item := range cart.Items {
		items[i] = cartItemResponse{
			ID:        item.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			LineTotal: money(item.LineTotal()),
		}
		if item.Product != nil {
			product := newProductResponse(*item.Product)
			items[i].Product = &product
		}
	}
	return cartResponse{
		ID:            cart.ID,
		UserID:        cart.UserID,
		Items:         items,
		Subtotal:      money(cart.Subtotal()),
		TotalQuantity: cart.TotalQuantity(),
		CreatedAt:     cart.CreatedAt,
		UpdatedAt:     cart.UpdatedAt,
	}
}

type orderItemResponse struct {
	ID          uuid.UUID `json:"id"`
	ProductID   uuid.UUID `json:"product_id"`
	ProductName string    `json:"product_name"`
	UnitPrice   string    `json:"unit_price"`
	Quantity    int       `json:"quantity"`
	LineTotal   string    `json:"line_total"`
}

type orderResponse struct {
	ID               uuid.UUID           `json:"id"`
	UserID           *uuid.UUID          `json:"user_id,omitempty"`
	CartID           *uuid.UUID          `json:"cart_id,omitempty"`
	Status           enums.OrderStatus   `json:"status"`
	PaymentStatus    enums.PaymentStatus `json:"payment_status"`
	SubtotalAmount   string              `json:"subtotal_amount"`
	ShippingAmount   string              `json:"shipping_amount"`
	TotalAmount      string              `json:"total_amount"`
	Currency         enums.Currency      `json:"currency"`
	CustomerEmail    string              `json:"customer_email"`
	CustomerPhone    string              `json:"customer_phone"`
	ShippingFullName string              `json:"shipping_full_name"`
	ShippingAddress  string              `json:"shipping_address"`
	ShippingCity     string              `json:"shipping_city"`
	ShippingPostcode string              `json:"shipping_postcode"`
	ShippingCountry  string              `json:"shipping_country"`
	Notes            string              `json:"notes"`
	PlacedAt         time.Time           `json:"placed_at"`
	Items            []orderItemResponse `json:"items"`
}

func newOrderResponse(order *models.Order) orderResponse {
	items := make([]orderItemResponse, len(order.Items))
	for i, item := range order.Items {
		items[i] = orderItemResponse{
			ID:          item.ID,
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			UnitPrice:   money(item.UnitPrice),
			Quantity:    item.Quantity,
			LineTotal:   money(item.LineTotal),
		}
	}
	return orderResponse{
		ID:               order.ID,
		UserID:           order.UserID,
		CartID:           order.CartID,
		Status:           order.Status,
		PaymentStatus:    order.PaymentStatus,
		SubtotalAmount:   money(order.SubtotalAmount),
		ShippingAmount:   money(order.ShippingAmount),
		TotalAmount:      money(order.TotalAmount),
		Currency:         order.Currency,
		CustomerEmail:    order.CustomerEmail,
		CustomerPhone:    order.CustomerPhone,
		ShippingFullName: order.ShippingFullName,
		ShippingAddress:  order.ShippingAddress,
		ShippingCity:     order.ShippingCity,
		ShippingPostcode: order.ShippingPostcode,
		ShippingCountry:  order.ShippingCountry,
		Notes:            order.Notes,
		PlacedAt:         order.PlacedAt,
		Items:            items,
	}
}

type orderPageResponse struct {
	Items      []orderResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

type reviewResponse struct {
	ID               uuid.UUID              `json:"id"`
	ProductID        uuid.UUID              `json:"product_id"`
	Rating           int                    `json:"rating"`
	Title            string                 `json:"title"`
	Body             string                 `json:"body"`
	AuthorName       string                 `json:"author_name"`
	VerifiedPurchase bool                   `json:"verified_purchase"`
	ModerationStatus enums.ModerationStatus `json:"moderation_status"`
	ModerationNote   string                 `json:"moderation_note,omitempty"`
	CreatedAt        time.Time              `json:"created_at"`
	UpdatedAt        time.Time              `json:"updated_at"`
}

func newReviewResponse(review *models.ProductReview) reviewResponse {
	return reviewResponse{
		ID:               review.ID,
		ProductID:        review.ProductID,
		Rating:           review.Rating,
		Title:            review.Title,
		Body:             review.Body,
		AuthorName:       review.DisplayName(),
		VerifiedPurchase: review.VerifiedPurchase,
		ModerationStatus: review.ModerationStatus,
		ModerationNote:   review.ModerationNote,
		CreatedAt:        review.CreatedAt,
		UpdatedAt:        review.UpdatedAt,
	}
}

type reviewPageResponse struct {
	Items      []reviewResponse `json:"items"`
	NextCursor string           `json:"next_cursor,omitempty"`
}

type revenueResponse struct {
	Currency enums.Currency `json:"currency"`
	Orders   int64          `json:"orders"`
	Revenue  string         `json:"revenue"`
}

type statsOverviewResponse struct {
	OrdersByStatus []stats.StatusCount `json:"orders_by_status"`
	Revenue        []revenueResponse   `json:"revenue"`
	TopProducts    []stats.TopProduct  `json:"top_products"`
	PendingReviews int64               `json:"pending_reviews"`
}

func newStatsOverviewResponse(overview *stats.Overview) statsOverviewResponse {
	revenue := make([]revenueResponse, len(overview.Revenue))
	for i, entry := range overview.Revenue {
		revenue[i] = revenueResponse{
			Currency: entry.Currency,
			Orders:   entry.Orders,
			Revenue:  money(entry.Revenue),
		}
	}
	return statsOverviewResponse{
		OrdersByStatus: overview.OrdersByStatus,
		Revenue:        revenue,
		TopProducts:    overview.TopProducts,
		PendingReviews: overview.PendingReviews,
	}
}
