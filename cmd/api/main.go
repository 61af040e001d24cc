package main

import (
	"context"
	"net/http"
	"os"

	"github.com/bozorline/shop-backend/api/routes"
	authsvc "github.com/bozorline/shop-backend/internal/auth"
	cartsvc "github.com/bozorline/shop-backend/internal/cart"
	categorysvc "github.com/bozorline/shop-backend/internal/categories"
	checkoutsvc "github.com/bozorline/shop-backend/internal/checkout"
	commentsvc "github.com/bozorline/shop-backend/internal/comments"
	"github.com/bozorline/shop-backend/internal/inventory"
	ordersvc "github.com/bozorline/shop-backend/internal/orders"
	productsvc "github.com/bozorline/shop-backend/internal/products"
	"github.com/bozorline/shop-backend/internal/users"
	"github.com/bozorline/shop-backend/pkg/auth/session"
	"github.com/bozorline/shop-backend/pkg/config"
	"github.com/bozorline/shop-backend/pkg/db"
	"github.com/bozorline/shop-backend/pkg/logger"
	"github.com/bozorline/shop-backend/pkg/migrate"
	"github.com/bozorline/shop-backend/pkg/metrics"
	redisclient "github.com/bozorline/shop-backend/pkg/redis"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
)

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

	redisClient, err := redisclient.New(context.Background(), cfg.Redis)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	userRepo := users.NewRepository(dbClient.DB())
	productRepo := productsvc.NewRepository(dbClient.DB())
	categoryRepo := categorysvc.NewRepository(dbClient.DB())
	cartRepo := cartsvc.NewRepository(dbClient.DB())
	orderRepo := ordersvc.NewRepository(dbClient.DB())
	commentRepo := commentsvc.NewRepository(dbClient.DB())
	ledger := inventory.NewLedger()

	authService, err := authsvc.NewService(
		userRepo,
		redisClient,
		sessionManager,
		authsvc.NewLogNotifier(logg),
		cfg.JWT,
		cfg.Password,
		cfg.Verification,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	productService, err := productsvc.NewService(productRepo, dbClient, categoryRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create product service", err)
		os.Exit(1)
	}

	categoryService, err := categorysvc.NewService(categoryRepo, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create category service", err)
		os.Exit(1)
	}

	commentService, err := commentsvc.NewService(commentRepo, dbClient, productRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create comment service", err)
		os.Exit(1)
	}

	cartService, err := cartsvc.NewService(cartRepo, dbClient, productRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}

	checkoutService, err := checkoutsvc.NewService(dbClient, cartRepo, orderRepo, ledger, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	orderService, err := ordersvc.NewService(orderRepo, dbClient, ledger)
	if err != nil {
		logg.Error(context.Background(), "failed to create order service", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	httpMetrics := metrics.NewHTTPMetrics(registry)

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
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			sessionManager,
			authService,
			productService,
			categoryService,
			commentService,
			cartService,
			checkoutService,
			orderService,
			registry,
			httpMetrics,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
