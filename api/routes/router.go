package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shopsterhq/shopster-backend/api/controllers"
	"github.com/shopsterhq/shopster-backend/api/middleware"
	cartsvc "github.com/shopsterhq/shopster-backend/internal/cart"
	"github.com/shopsterhq/shopster-backend/internal/catalog"
	checkoutsvc "github.com/shopsterhq/shopster-backend/internal/checkout"
	"github.com/shopsterhq/shopster-backend/internal/identity"
	ordersvc "github.com/shopsterhq/shopster-backend/internal/orders"
	reviewsvc "github.com/shopsterhq/shopster-backend/internal/reviews"
	"github.com/shopsterhq/shopster-backend/internal/stats"
	"github.com/shopsterhq/shopster-backend/pkg/config"
	"github.com/shopsterhq/shopster-backend/pkg/logger"
	pkgredis "github.com/shopsterhq/shopster-backend/pkg/redis"
)

// Deps collects everything the HTTP surface needs. Optional entries may be
// nil; the matching routes degrade gracefully (no idempotency store means
// writes run unguarded, a nil metrics gatherer produces an empty /metrics).
type Deps struct {
	Config      *config.Config
	Logger      *logger.Logger
	Readiness   map[string]controllers.Pinger
	Idempotency pkgredis.IdempotencyStore
	Gatherer    prometheus.Gatherer

	Catalog  catalog.Service
	Carts    cartsvc.Service
	Checkout checkoutsvc.Service
	Orders   ordersvc.Service
	Reviews  reviewsvc.Service
	Stats    stats.Service
	Identity identity.Service
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Readiness))
	})

	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.OptionalAuth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(deps.Idempotency, logg))

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", controllers.CategoriesList(deps.Catalog, logg))
			r.Get("/{slug}", controllers.CategoriesGet(deps.Catalog, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireStaff(logg))
				r.Post("/", controllers.CategoriesCreate(deps.Catalog, logg))
				r.Patch("/{id}", controllers.CategoriesUpdate(deps.Catalog, logg))
				r.Delete("/{id}", controllers.CategoriesDelete(deps.Catalog, logg))
			})
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ProductsList(deps.Catalog, logg))
			r.Get("/facets", controllers.ProductsFacets(deps.Catalog, logg))
			r.Get("/{slug}", controllers.ProductsGet(deps.Catalog, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireStaff(logg))
				r.Post("/", controllers.ProductsCreate(deps.Catalog, logg))
				r.Patch("/{id}", controllers.ProductsUpdate(deps.Catalog, logg))
				r.Delete("/{id}", controllers.ProductsDelete(deps.Catalog, logg))
				r.Post("/{id}/restore", controllers.ProductsRestore(deps.Catalog, logg))
				r.Delete("/{id}/hard", controllers.ProductsPurge(deps.Catalog, logg))
			})
		})

		r.Route("/carts", func(r chi.Router) {
			r.Post("/", controllers.CartsCreate(deps.Carts, logg))
			r.Get("/{cartID}", controllers.CartsGet(deps.Carts, logg))
			r.Delete("/{cartID}", controllers.CartsDestroy(deps.Carts, logg))
			r.Post("/{cartID}/items", controllers.CartItemsAdd(deps.Carts, logg))
			r.Patch("/{cartID}/items/{itemID}", controllers.CartItemsUpdate(deps.Carts, logg))
			r.Delete("/{cartID}/items/{itemID}", controllers.CartItemsRemove(deps.Carts, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", controllers.OrdersPlace(deps.Checkout, logg))
			r.Get("/", controllers.OrdersList(deps.Orders, logg))
			r.Get("/{orderID}", controllers.OrdersGet(deps.Orders, logg))
		})

		r.Route("/reviews", func(r chi.Router) {
			r.Get("/", controllers.ReviewsList(deps.Reviews, logg))
			r.Post("/", controllers.ReviewsSubmit(deps.Reviews, logg))
			r.Patch("/{reviewID}", controllers.ReviewsUpdate(deps.Reviews, logg))
			r.Delete("/{reviewID}", controllers.ReviewsDelete(deps.Reviews, logg))

			r.With(middleware.RequireStaff(logg)).
				Post("/{reviewID}/moderate", controllers.ReviewsModerate(deps.Reviews, logg))
		})

		r.Post("/account/activate", controllers.AccountActivate(deps.Identity, logg))

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireStaff(logg))
			r.Get("/stats/overview", controllers.StatsOverview(deps.Stats, logg))
		})
	})

	return r
}
