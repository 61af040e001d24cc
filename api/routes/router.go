package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bozorline/shop-backend/api/controllers"
	"github.com/bozorline/shop-backend/api/middleware"
	authsvc "github.com/bozorline/shop-backend/internal/auth"
	cartsvc "github.com/bozorline/shop-backend/internal/cart"
	categorysvc "github.com/bozorline/shop-backend/internal/categories"
	checkoutsvc "github.com/bozorline/shop-backend/internal/checkout"
	commentsvc "github.com/bozorline/shop-backend/internal/comments"
	ordersvc "github.com/bozorline/shop-backend/internal/orders"
	productsvc "github.com/bozorline/shop-backend/internal/products"
	"github.com/bozorline/shop-backend/pkg/auth/session"
	"github.com/bozorline/shop-backend/pkg/config"
	"github.com/bozorline/shop-backend/pkg/db"
	"github.com/bozorline/shop-backend/pkg/enums"
	"github.com/bozorline/shop-backend/pkg/logger"
	"github.com/bozorline/shop-backend/pkg/metrics"
	redisclient "github.com/bozorline/shop-backend/pkg/redis"
)

// NewRouter wires every service into the chi tree.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisP redisclient.Pinger,
	sessions session.AccessSessionChecker,
	authService authsvc.Service,
	productService productsvc.Service,
	categoryService categorysvc.Service,
	commentService commentsvc.Service,
	cartService cartsvc.Service,
	checkoutService checkoutsvc.Service,
	orderService ordersvc.Service,
	registry *prometheus.Registry,
	httpMetrics *metrics.HTTPMetrics,
) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(httpMetrics),
		middleware.CORS(),
	)

	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Post("/register", controllers.AuthRegister(authService, logg))
		r.Post("/verify", controllers.AuthVerify(authService, logg))
		r.Post("/login", controllers.AuthLogin(authService, logg))
		r.With(middleware.Auth(cfg.JWT, sessions, logg)).Post("/logout", controllers.AuthLogout(authService, logg))
		r.With(middleware.Auth(cfg.JWT, sessions, logg)).Get("/me", controllers.AuthProfile(authService, logg))
	})

	r.Route("/api/v1/products", func(r chi.Router) {
		r.Get("/", controllers.ProductList(productService, logg))
		r.Get("/{slug}", controllers.ProductDetail(productService, logg))
		r.Get("/{slug}/comments", controllers.ProductCommentList(commentService, logg))
		r.With(middleware.Auth(cfg.JWT, sessions, logg)).Post("/{slug}/comments", controllers.ProductCommentCreate(commentService, logg))
	})

	r.Route("/api/v1/categories", func(r chi.Router) {
		r.Get("/", controllers.CategoryList(categoryService, logg))
		r.Get("/{slug}", controllers.CategoryDetail(categoryService, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessions, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartFetch(cartService, logg))
			r.Post("/items", controllers.CartAddItem(cartService, logg))
			r.Patch("/items/{productId}", controllers.CartUpdateItem(cartService, logg))
			r.Delete("/items/{productId}", controllers.CartRemoveItem(cartService, logg))
			r.Post("/clear", controllers.CartClear(cartService, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", controllers.Checkout(checkoutService, logg))
			r.Get("/", controllers.OrderList(orderService, logg))
			r.Get("/{orderId}", controllers.OrderDetail(orderService, logg))
			r.Post("/{orderId}/cancel", controllers.OrderCancel(orderService, logg))
		})

		r.Route("/comments", func(r chi.Router) {
			r.Patch("/{commentId}", controllers.CommentUpdate(commentService, logg))
			r.Delete("/{commentId}", controllers.CommentDelete(commentService, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessions, logg))
		r.Use(middleware.RequireRole(string(enums.UserRoleAdmin), logg))

		r.Post("/products", controllers.ProductCreate(productService, logg))
		r.Patch("/products/{productId}", controllers.ProductUpdate(productService, logg))
		r.Delete("/products/{productId}", controllers.ProductDelete(productService, logg))

		r.Post("/categories", controllers.CategoryCreate(categoryService, logg))

		r.Get("/orders", controllers.OrderList(orderService, logg))
		r.Patch("/orders/{orderId}/status", controllers.AdminOrderStatus(orderService, logg))
		r.Post("/orders/{orderId}/recalculate", controllers.AdminOrderRecalculate(orderService, logg))
	})

	return r
}
