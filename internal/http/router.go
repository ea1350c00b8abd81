package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type RouterOptions struct {
	Sessions SessionResolver
	// Catalog serves /products when set.
	Catalog        ProductCatalog
	RequestTimeout time.Duration
	MaxBodySize    int64
	// Limiter guards mutating cart routes; nil disables it.
	Limiter *SessionLimiter
	// Metrics serves /metrics when set.
	Metrics http.Handler
	// Health reports dependency status for /health; nil means always ok.
	Health func() error
}

func NewRouter(opts RouterOptions) http.Handler {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if opts.MaxBodySize <= 0 {
		opts.MaxBodySize = 1 << 20 // 1MB
	}

	authHandler := NewAuthHandler(opts.RequestTimeout)
	cartHandler := NewCartHandler(opts.RequestTimeout)
	addressHandler := NewAddressHandler(opts.RequestTimeout)
	checkoutHandler := NewCheckoutHandler(opts.RequestTimeout)
	ordersHandler := NewOrdersHandler(opts.RequestTimeout)
	wishlistHandler := NewWishlistHandler(opts.RequestTimeout)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(middleware.Timeout(opts.RequestTimeout))
	r.Use(middleware.Compress(5))
	r.Use(MaxBodyMiddleware(opts.MaxBodySize))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if opts.Health != nil {
			if err := opts.Health(); err != nil {
				respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()})
				return
			}
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	mutating := func(r chi.Router) {
		if opts.Limiter != nil {
			r.Use(opts.Limiter.Middleware)
		}
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(SessionMiddleware(opts.Sessions))

		r.Route("/auth", func(r chi.Router) {
			r.Post("/otp", authHandler.SendOTP)
			r.Post("/otp/verify", authHandler.VerifyOTP)
			r.Post("/register", authHandler.Register)
			r.Get("/profile", authHandler.Profile)
			r.Put("/profile", authHandler.UpdateProfile)
			r.Post("/logout", authHandler.Logout)
		})
		r.Post("/devices", authHandler.RegisterDevice)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartHandler.GetCart)
			r.Group(func(r chi.Router) {
				mutating(r)
				r.Post("/items", cartHandler.AddItem)
				r.Patch("/items/{item_id}", cartHandler.UpdateQuantity)
				r.Delete("/items/{item_id}", cartHandler.RemoveItem)
			})
		})

		r.Route("/addresses", func(r chi.Router) {
			r.Get("/", addressHandler.List)
			r.Post("/", addressHandler.Add)
			r.Put("/{address_id}", addressHandler.Update)
			r.Delete("/{address_id}", addressHandler.Delete)
			r.Post("/{address_id}/default", addressHandler.SetDefault)
		})

		r.Route("/checkout", func(r chi.Router) {
			r.Get("/", checkoutHandler.State)
			r.Post("/address", checkoutHandler.SelectAddress)
			r.Post("/intent", checkoutHandler.CreateIntent)
			r.Post("/payment", checkoutHandler.Pay)
			r.Post("/restart", checkoutHandler.Restart)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", ordersHandler.ListOrders)
			r.Get("/{order_id}", ordersHandler.GetOrder)
		})

		r.Route("/wishlist", func(r chi.Router) {
			r.Get("/", wishlistHandler.List)
			r.Post("/", wishlistHandler.Add)
			r.Get("/{product_id}", wishlistHandler.Contains)
			r.Delete("/{product_id}", wishlistHandler.Remove)
		})

		if opts.Catalog != nil {
			productsHandler := NewProductsHandler(opts.Catalog, opts.RequestTimeout)
			r.Route("/products", func(r chi.Router) {
				r.Get("/search", productsHandler.Search)
				r.Get("/category/{subcategory_id}", productsHandler.ListByCategory)
				r.Get("/{product_id}", productsHandler.GetProduct)
				r.Get("/{product_id}/similar", productsHandler.Similar)
			})
		}
	})

	return otelhttp.NewHandler(r, "storefront")
}
