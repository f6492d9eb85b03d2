package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/shopsterhq/shopster-backend/api/controllers"
	"github.com/shopsterhq/shopster-backend/api/routes"
	cartsvc "github.com/shopsterhq/shopster-backend/internal/cart"
	"github.com/shopsterhq/shopster-backend/internal/catalog"
	checkoutsvc "github.com/shopsterhq/shopster-backend/internal/checkout"
	"github.com/shopsterhq/shopster-backend/internal/identity"
	ordersvc "github.com/shopsterhq/shopster-backend/internal/orders"
	reviewsvc "github.com/shopsterhq/shopster-backend/internal/reviews"
	"github.com/shopsterhq/shopster-backend/internal/stats"
	"github.com/shopsterhq/shopster-backend/pkg/config"
	"github.com/shopsterhq/shopster-backend/pkg/db"
	"github.com/shopsterhq/shopster-backend/pkg/logger"
	"github.com/shopsterhq/shopster-backend/pkg/mailer"
	"github.com/shopsterhq/shopster-backend/pkg/metrics"
	"github.com/shopsterhq/shopster-backend/pkg/migrate"
	"github.com/shopsterhq/shopster-backend/pkg/pubsub"
	"github.com/shopsterhq/shopster-backend/pkg/redis"
)

const shutdownGrace = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	var orderMailer mailer.Mailer = mailer.NewNoop()
	if cfg.Sendgrid.Enabled() {
		client, err := mailer.New(cfg.Sendgrid)
		if err != nil {
			logg.Error(context.Background(), "failed to build mailer", err)
			os.Exit(1)
		}
		orderMailer = client
	} else {
		logg.Warn(context.Background(), "sendgrid disabled, order emails will be dropped")
	}

	var orderPublisher *pubsub.Client
	if cfg.GCP.ProjectID != "" {
		orderPublisher, err = pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap pubsub", err)
			os.Exit(1)
		}
		defer func() {
			if err := orderPublisher.Close(); err != nil {
				logg.Error(context.Background(), "error closing pubsub", err)
			}
		}()
	} else {
		logg.Warn(context.Background(), "gcp project not configured, order events will not be published")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	checkoutMetrics := metrics.NewCheckoutMetrics(registry)

	gormDB := dbClient.DB()
	catalogRepo := catalog.NewRepository(gormDB)
	cartRepo := cartsvc.NewRepository(gormDB)
	orderRepo := ordersvc.NewRepository(gormDB)
	reviewRepo := reviewsvc.NewRepository(gormDB)
	identityRepo := identity.NewRepository(gormDB)
	statsRepo := stats.NewRepository(gormDB)

	catalogService, err := catalog.NewService(catalogRepo, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to build catalog service", err)
		os.Exit(1)
	}
	cartService, err := cartsvc.NewService(cartRepo, catalogRepo, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to build cart service", err)
		os.Exit(1)
	}
	identityService, err := identity.NewService(identityRepo, dbClient, cfg.JWT, cfg.Password)
	if err != nil {
		logg.Error(context.Background(), "failed to build identity service", err)
		os.Exit(1)
	}
	orderService, err := ordersvc.NewService(orderRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to build order service", err)
		os.Exit(1)
	}
	reviewService, err := reviewsvc.NewService(reviewRepo, catalogRepo, orderRepo, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to build review service", err)
		os.Exit(1)
	}
	statsService, err := stats.NewService(statsRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to build stats service", err)
		os.Exit(1)
	}

	checkoutParams := checkoutsvc.ServiceParams{
		Config:   cfg,
		Logger:   logg,
		TxRunner: dbClient,
		Carts:    cartRepo,
		Orders:   orderRepo,
		Identity: identityService,
		Mailer:   orderMailer,
		Metrics:  checkoutMetrics,
	}
	if orderPublisher != nil {
		checkoutParams.Publisher = checkoutsvc.NewGCPPublisher(orderPublisher.OrdersPublisher())
	}
	checkoutService, err := checkoutsvc.NewService(checkoutParams)
	if err != nil {
		logg.Error(context.Background(), "failed to build checkout service", err)
		os.Exit(1)
	}

	readiness := map[string]controllers.Pinger{
		"database": dbClient,
		"redis":    redisClient,
	}
	if orderPublisher != nil {
		readiness["pubsub"] = orderPublisher
	}

	router := routes.NewRouter(routes.Deps{
		Config:      cfg,
		Logger:      logg,
		Readiness:   readiness,
		Idempotency: redisClient,
		Gatherer:    registry,
		Catalog:     catalogService,
		Carts:       cartService,
		Checkout:    checkoutService,
		Orders:      orderService,
		Reviews:     reviewService,
		Stats:       statsService,
		Identity:    identityService,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-runCtx.Done():
		logg.Info(ctx, "shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}
}
