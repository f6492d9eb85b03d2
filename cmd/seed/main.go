package main

import (
	"context"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/shopsterhq/shopster-backend/pkg/config"
	"github.com/shopsterhq/shopster-backend/pkg/db"
	"github.com/shopsterhq/shopster-backend/pkg/db/models"
	"github.com/shopsterhq/shopster-backend/pkg/enums"
	"github.com/shopsterhq/shopster-backend/pkg/logger"
	"github.com/shopsterhq/shopster-backend/pkg/migrate"
	"github.com/shopsterhq/shopster-backend/pkg/security"
	"github.com/shopsterhq/shopster-backend/pkg/slug"
)

// Demo data loader. Safe to re-run: everything is keyed on natural
// identifiers (slug, sku, username) and upserted with FirstOrCreate.
func main() {
	logg := logger.New(logger.Options{ServiceName: "seed"})
	ctx := context.Background()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logg.Error(ctx, "failed to load config", err)
		os.Exit(1)
	}
	if cfg.App.IsProd() {
		logg.Error(ctx, "refusing to seed a production environment", nil)
		os.Exit(1)
	}

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer dbClient.Close()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run migrations", err)
		os.Exit(1)
	}

	if err := seed(ctx, dbClient.DB(), cfg, logg); err != nil {
		logg.Error(ctx, "seed failed", err)
		os.Exit(1)
	}
	logg.Info(ctx, "seed complete")
}

func seed(ctx context.Context, conn *gorm.DB, cfg *config.Config, logg *logger.Logger) error {
	conn = conn.WithContext(ctx)

	categories, err := seedCategories(conn)
	if err != nil {
		return err
	}
	products, err := seedProducts(conn, categories)
	if err != nil {
		return err
	}
	admin, customer, err := seedUsers(conn, cfg)
	if err != nil {
		return err
	}
	if err := seedOrderHistory(conn, customer, products); err != nil {
		return err
	}
	if err := seedReviews(conn, admin, customer, products); err != nil {
		return err
	}

	logg.Info(ctx, "demo data in place")
	return nil
}

func seedCategories(conn *gorm.DB) (map[string]models.Category, error) {
	names := []string{"Electronics", "Books", "Home & Garden"}
	out := make(map[string]models.Category, len(names))
	for _, name := range names {
		category := models.Category{
			Name:     name,
			Slug:     slug.Make(name),
			IsActive: true,
		}
		if err := conn.Where(models.Category{Slug: category.Slug}).FirstOrCreate(&category).Error; err != nil {
			return nil, err
		}
		out[category.Slug] = category
	}
	return out, nil
}

type productSeed struct {
	category string
	brand    string
	name     string
	sku      string
	price    string
	stock    int
}

func seedProducts(conn *gorm.DB, categories map[string]models.Category) ([]models.Product, error) {
	seeds := []productSeed{
		{"electronics", "Voltix", "Wireless Charging Pad", "VX-CHG-001", "29.90", 120},
		{"electronics", "Voltix", "Bluetooth Speaker Mini", "VX-SPK-014", "54.50", 45},
		{"electronics", "Nordwave", "Noise Cancelling Headphones", "NW-HDP-220", "199.00", 18},
		{"books", "Papyrus", "The Art of Slow Cooking", "PP-BK-1021", "18.75", 0},
		{"books", "Papyrus", "Gardening Through the Seasons", "PP-BK-1088", "22.40", 64},
		{"home-garden", "Verde", "Ceramic Planter Set", "VR-PLT-310", "41.00", 33},
	}

	out := make([]models.Product, 0, len(seeds))
	for _, s := range seeds {
		category, ok := categories[s.category]
		if !ok {
			continue
		}
		product := models.Product{
			CategoryID: category.ID,
			Brand:      s.brand,
			Name:       s.name,
			Slug:       slug.Make(s.name),
			SKU:        s.sku,
			Price:      decimal.RequireFromString(s.price),
			Currency:   enums.CurrencyRUB,
			Stock:      s.stock,
			IsActive:   true,
		}
		if err := conn.Where(models.Product{SKU: s.sku}).FirstOrCreate(&product).Error; err != nil {
			return nil, err
		}
		out = append(out, product)
	}
	return out, nil
}

func seedUsers(conn *gorm.DB, cfg *config.Config) (admin, customer models.User, err error) {
	adminHash, err := security.HashPassword("admin-demo-password", cfg.Password)
	if err != nil {
		return admin, customer, err
	}
	customerHash, err := security.HashPassword("customer-demo-password", cfg.Password)
	if err != nil {
		return admin, customer, err
	}

	admin = models.User{
		Username:     "demo-admin",
		Email:        "admin@shopster.example",
		FirstName:    "Dana",
		LastName:     "Admin",
		PasswordHash: adminHash,
		IsStaff:      true,
		IsActive:     true,
	}
	if err := conn.Where(models.User{Username: admin.Username}).FirstOrCreate(&admin).Error; err != nil {
		return admin, customer, err
	}

	customer = models.User{
		Username:     "demo-customer",
		Email:        "customer@shopster.example",
		FirstName:    "Ivan",
		LastName:     "Petrov",
		PasswordHash: customerHash,
		IsActive:     true,
	}
	if err := conn.Where(models.User{Username: customer.Username}).FirstOrCreate(&customer).Error; err != nil {
		return admin, customer, err
	}
	return admin, customer, nil
}

func seedOrderHistory(conn *gorm.DB, customer models.User, products []models.Product) error {
	if len(products) < 2 {
		return nil
	}

	var existing int64
	if err := conn.Model(&models.Order{}).Where("user_id = ?", customer.ID).Count(&existing).Error; err != nil {
		return err
	}
	if existing > 0 {
		return nil
	}

	first, second := products[0], products[1]
	subtotal := first.Price.Mul(decimal.NewFromInt(2)).Add(second.Price)
	shipping := decimal.RequireFromString("3.00")

	order := models.Order{
		UserID:           &customer.ID,
		Status:           enums.OrderStatusCompleted,
		PaymentStatus:    enums.PaymentStatusPaid,
		SubtotalAmount:   subtotal,
		ShippingAmount:   shipping,
		TotalAmount:      subtotal.Add(shipping),
		Currency:         enums.CurrencyRUB,
		CustomerEmail:    customer.Email,
		ShippingFullName: customer.FullName(),
		ShippingAddress:  "Arbat 1",
		ShippingCity:     "Moscow",
		ShippingCountry:  "Russia",
		PlacedAt:         time.Now().UTC().Add(-72 * time.Hour),
		Items: []models.OrderItem{
			{
				ProductID:   first.ID,
				ProductName: first.Name,
				UnitPrice:   first.Price,
				Quantity:    2,
				LineTotal:   first.Price.Mul(decimal.NewFromInt(2)),
			},
			{
				ProductID:   second.ID,
				ProductName: second.Name,
				UnitPrice:   second.Price,
				Quantity:    1,
				LineTotal:   second.Price,
			},
		},
	}
	return conn.Create(&order).Error
}

func seedReviews(conn *gorm.DB, admin, customer models.User, products []models.Product) error {
	if len(products) == 0 {
		return nil
	}
	product := products[0]

	review := models.ProductReview{
		ProductID:        product.ID,
		UserID:           &customer.ID,
		Rating:           5,
		Title:            "Works great",
		Body:             "Charges quickly and the surface does not scratch the phone.",
		VerifiedPurchase: true,
		ModerationStatus: enums.ModerationStatusApproved,
		ModeratedByID:    &admin.ID,
	}
	now := time.Now().UTC()
	review.ModeratedAt = &now

	return conn.
		Where("product_id = ? AND user_id = ? AND deleted_at IS NULL", product.ID, customer.ID).
		FirstOrCreate(&review).Error
}
