package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/pkg/health"
	"github.com/utafrali/storefront/pkg/middleware"
)

const serviceName = "storefront"

// productListMaxAge is the Cache-Control max-age of public catalog reads.
const productListMaxAge = 60

// RouterConfig carries everything NewRouter mounts.
type RouterConfig struct {
	Auth     AuthService
	Wishlist WishlistService
	Cart     CartService
	Products ProductService

	TokenValidator middleware.TokenValidator
	Health         *health.Handler
	Logger         *slog.Logger
	CORS           middleware.CORSConfig

	// AuthRateLimitRPS and AuthRateLimitBurst throttle the public auth
	// endpoints per client IP. A zero RPS disables the limit.
	AuthRateLimitRPS   float64
	AuthRateLimitBurst int
}

// NewRouter builds the chi router. ctx bounds background work started by
// middleware such as the rate limiter's eviction loop.
func NewRouter(ctx context.Context, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.RequestLogging(cfg.Logger))
	r.Use(middleware.Tracing(serviceName))
	r.Use(middleware.RequestLogger(cfg.Logger))
	r.Use(middleware.PrometheusMetrics(serviceName))
	r.Use(middleware.CORS(cfg.CORS))

	r.Get("/health/live", cfg.Health.LivenessHandler())
	r.Get("/health/ready", cfg.Health.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	authenticated := middleware.Auth(cfg.TokenValidator)
	authHandler := NewAuthHandler(cfg.Auth, cfg.Logger)
	userHandler := NewUserHandler(cfg.Auth, cfg.Logger)
	wishlistHandler := NewWishlistHandler(cfg.Wishlist, cfg.Logger)
	cartHandler := NewCartHandler(cfg.Cart, cfg.Logger)
	productHandler := NewProductHandler(cfg.Products, cfg.Logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				if cfg.AuthRateLimitRPS > 0 {
					r.Use(middleware.RateLimit(ctx, cfg.AuthRateLimitRPS, cfg.AuthRateLimitBurst, cfg.Logger))
				}
				r.Post("/register", authHandler.Register)
				r.Post("/login", authHandler.Login)
				r.Post("/refresh", authHandler.Refresh)
			})
			r.With(authenticated).Post("/logout", authHandler.Logout)
		})

		r.Route("/users/me", func(r chi.Router) {
			r.Use(authenticated, middleware.NoStore)
			r.Get("/", userHandler.GetProfile)
			r.Put("/", userHandler.UpdateProfile)
			r.Post("/password", userHandler.ChangePassword)
		})

		r.Route("/wishlist", func(r chi.Router) {
			r.Use(authenticated, middleware.NoStore)
			r.Get("/", wishlistHandler.List)
			r.Post("/{productId}", wishlistHandler.Toggle)
			r.Get("/{productId}", wishlistHandler.Status)
		})

		r.Route("/cart", func(r chi.Router) {
			r.Use(authenticated, middleware.NoStore)
			r.Get("/", cartHandler.Get)
			r.Delete("/", cartHandler.Clear)
			r.Post("/items", cartHandler.AddItem)
			r.Put("/items/{productId}", cartHandler.UpdateItem)
			r.Delete("/items/{productId}", cartHandler.RemoveItem)
		})

		r.Route("/products", func(r chi.Router) {
			r.With(middleware.CacheControl(productListMaxAge)).Get("/", productHandler.List)
			r.With(middleware.CacheControl(productListMaxAge)).Get("/search", productHandler.Search)
			r.With(middleware.CacheControl(productListMaxAge)).Get("/{id}", productHandler.Get)
			r.Group(func(r chi.Router) {
				r.Use(authenticated, middleware.RequireRole(domain.RoleAdmin))
				r.Post("/", productHandler.Create)
				r.Delete("/{id}", productHandler.Delete)
			})
		})
	})

	return r
}
